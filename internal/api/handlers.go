// SPDX-License-Identifier: MIT

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boothworks/boothd/internal/booth"
)

// statusResponse is the wire shape of GET /status and of command responses.
// busy is derived from state at this boundary; state is the source of truth.
type statusResponse struct {
	State              string         `json:"state"`
	Busy               bool           `json:"busy"`
	PhotosTaken        int            `json:"photosTaken"`
	TotalPhotos        int            `json:"totalPhotos"`
	CountdownRemaining int            `json:"countdownRemaining"`
	MostRecentStripURL string         `json:"mostRecentStripUrl,omitempty"`
	Error              *booth.Failure `json:"error,omitempty"`
}

func newStatusResponse(st booth.Status, latestStrip string) statusResponse {
	resp := statusResponse{
		State:              string(st.State),
		Busy:               st.State != booth.StateIdle,
		PhotosTaken:        st.PhotosTaken,
		TotalPhotos:        st.TotalPhotos,
		CountdownRemaining: st.CountdownRemaining,
		Error:              st.Error,
	}
	if latestStrip != "" {
		resp.MostRecentStripURL = "/sessions/" + latestStrip
	}
	return resp
}

// startSessionRequest is the POST /start-session body.
type startSessionRequest struct {
	PrintCount int `json:"printCount"`
	ImageCount int `json:"imageCount"`
}

func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Error:  "invalid_request",
			Detail: "malformed JSON body",
		})
		return
	}

	st, err := s.controller.StartSession(booth.StartRequest{
		PrintCount: req.PrintCount,
		ImageCount: req.ImageCount,
	})
	if err != nil {
		writeCommandError(w, err, st, s.store.LatestStrip())
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(st, s.store.LatestStrip()))
}

func (s *Server) handleTakePhoto(w http.ResponseWriter, r *http.Request) {
	st, err := s.controller.TakePhoto()
	if err != nil {
		writeCommandError(w, err, st, s.store.LatestStrip())
		return
	}
	writeJSON(w, http.StatusOK, newStatusResponse(st, s.store.LatestStrip()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newStatusResponse(s.controller.Status(), s.store.LatestStrip()))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Summary())
}

// handlePreview serves one viewfinder frame for the idle-screen UI. A busy
// booth answers 409 immediately; the UI falls back to the static screen.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	frame, err := s.controller.LivePreview(r.Context())
	if err != nil {
		if errors.Is(err, booth.ErrSessionConflict) {
			writeJSON(w, http.StatusConflict, errorBody{
				Error:  "busy",
				Detail: err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:  "camera_unavailable",
			Detail: err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(frame)
}
