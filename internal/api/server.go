// SPDX-License-Identifier: MIT

// Package api provides the HTTP control surface of boothd. It is a thin
// boundary: command endpoints forward to the booth controller, read
// endpoints are cheap, side-effect-free snapshots.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/boothworks/boothd/internal/booth"
	"github.com/boothworks/boothd/internal/health"
	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/store"
)

// Server wires the HTTP surface to the controller and its collaborators.
type Server struct {
	controller *booth.Controller
	registry   *health.Registry
	store      *store.Store

	commandRatePerMinute int
}

// Option configures a Server.
type Option func(*Server)

// WithCommandRate overrides the per-IP rate limit on command endpoints.
func WithCommandRate(perMinute int) Option {
	return func(s *Server) { s.commandRatePerMinute = perMinute }
}

// New creates the API server.
func New(controller *booth.Controller, registry *health.Registry, st *store.Store, opts ...Option) *Server {
	s := &Server{
		controller:           controller,
		registry:             registry,
		store:                st,
		commandRatePerMinute: 60,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the chi router with the canonical middleware stack.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(Recoverer)
	r.Use(RequestID)
	r.Use(Metrics())
	r.Use(log.Middleware())

	r.Group(func(r chi.Router) {
		r.Use(CommandRateLimit(s.commandRatePerMinute, time.Minute))
		r.Post("/start-session", s.handleStartSession)
		r.Post("/take-photo", s.handleTakePhoto)
	})

	r.Get("/status", s.handleStatus)
	r.Get("/health", s.handleHealth)
	r.Get("/preview", s.handlePreview)
	r.Handle("/sessions/*", http.StripPrefix("/sessions/", s.artifactFileServer()))

	return r
}
