// SPDX-License-Identifier: MIT

package api

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/metrics"
)

// artifactFileServer serves session artifacts (photos, strips, print sheets)
// from the sessions directory, with checks against path traversal, symlink
// escapes, and directory listing. The kiosk UI polls strip images from here.
func (s *Server) artifactFileServer() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := log.WithComponentFromContext(r.Context(), "api")

		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			logger.Warn().Str(log.FieldEvent, "file_req.denied").Str(log.FieldPath, r.URL.Path).Str("reason", "method_not_allowed").Msg("method not allowed")
			metrics.IncFileRequestDenied("method_not_allowed")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		path := r.URL.Path
		if isPathTraversal(path) {
			logger.Warn().Str(log.FieldEvent, "file_req.denied").Str(log.FieldPath, r.URL.Path).Str("reason", "path_escape").Msg("detected traversal sequence")
			metrics.IncFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if path == "" || strings.HasSuffix(path, "/") {
			logger.Warn().Str(log.FieldEvent, "file_req.denied").Str(log.FieldPath, r.URL.Path).Str("reason", "directory_listing").Msg("directory listing forbidden")
			metrics.IncFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		absRoot, err := filepath.Abs(s.store.SessionsRoot())
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "file_req.internal_error").Msg("could not resolve sessions root")
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		fullPath := filepath.Join(absRoot, path)

		realPath, err := filepath.EvalSymlinks(fullPath)
		if err != nil {
			if os.IsNotExist(err) {
				metrics.IncFileRequestDenied("not_found")
				http.Error(w, "Not found", http.StatusNotFound)
				return
			}
			logger.Error().Err(err).Str(log.FieldEvent, "file_req.internal_error").Str(log.FieldPath, fullPath).Msg("could not evaluate symlinks")
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		realRoot, err := filepath.EvalSymlinks(absRoot)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "file_req.internal_error").Msg("could not evaluate symlinks on sessions root")
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		// filepath.Rel catches symlink escapes that string prefix checks miss.
		relPath, err := filepath.Rel(realRoot, realPath)
		if err != nil || strings.HasPrefix(relPath, "..") || filepath.IsAbs(relPath) {
			logger.Warn().
				Str(log.FieldEvent, "file_req.denied").
				Str(log.FieldPath, path).
				Str("resolved_path", realPath).
				Str("reason", "path_escape").
				Msg("path escapes sessions directory")
			metrics.IncFileRequestDenied("path_escape")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// #nosec G304 -- realPath is validated to reside inside the sessions root
		f, err := os.Open(realPath)
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "file_req.internal_error").Str(log.FieldPath, realPath).Msg("could not open artifact")
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer func() {
			if err := f.Close(); err != nil {
				logger.Warn().Err(err).Str(log.FieldPath, realPath).Msg("failed to close file")
			}
		}()

		info, err := f.Stat()
		if err != nil {
			logger.Error().Err(err).Str(log.FieldEvent, "file_req.internal_error").Str(log.FieldPath, realPath).Msg("could not stat opened file")
			metrics.IncFileRequestDenied("internal_error")
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if info.IsDir() {
			metrics.IncFileRequestDenied("directory_listing")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}

		// Artifacts are write-once, so modtime+size is a stable validator.
		etag := fmt.Sprintf(`W/"%x-%x"`, info.ModTime().UnixNano(), info.Size())
		w.Header().Set("ETag", etag)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
			w.WriteHeader(http.StatusNotModified)
			return
		}

		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	})
}

// isPathTraversal checks a request path for traversal attempts. It decodes
// the input multiple times to catch double-encoding, applies Unicode
// normalization, and searches for dangerous sequences including NULs.
func isPathTraversal(p string) bool {
	decoded := p
	for i := 0; i < 3; i++ {
		prev := decoded
		if d, err := url.PathUnescape(decoded); err == nil {
			decoded = d
		} else if d2, err2 := url.QueryUnescape(decoded); err2 == nil {
			decoded = d2
		}
		if decoded == prev {
			break
		}
	}

	lower := strings.ToLower(decoded)
	dangerSubstrings := []string{
		"..",
		"%00",
		"%c0%ae",    // overlong UTF-8 for '.'
		"%e0%80%ae", // another overlong variant
	}
	for _, pat := range dangerSubstrings {
		if strings.Contains(lower, pat) {
			return true
		}
	}
	if strings.IndexByte(decoded, 0x00) >= 0 {
		return true
	}

	normalized := strings.ToLower(norm.NFC.String(decoded))
	return strings.Contains(normalized, "..")
}
