// SPDX-License-Identifier: MIT

// Package store owns the on-disk session layout:
//
//	<root>/sessions/<date>/session_<id>/photos/photo_<n>.jpg
//	<root>/sessions/<date>/session_<id>/strip.jpg
//	<root>/sessions/<date>/session_<id>/print.jpg
//
// The layout is a stability contract for downstream sharing tooling and
// must not change shape across releases without a migration note.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

const (
	sessionsDirName = "sessions"
	latestPointer   = "latest-strip"
)

// Store manages session artifact directories under a single root.
type Store struct {
	root string

	mu     sync.RWMutex
	latest string // relative path of the most recent strip, "" if none yet
}

// New creates the store root (and its sessions directory) if needed and
// restores the latest-strip pointer from a previous run.
func New(root string) (*Store, error) {
	if root == "" {
		return nil, fmt.Errorf("store: root is required")
	}
	if err := os.MkdirAll(filepath.Join(root, sessionsDirName), 0o750); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}

	s := &Store{root: root}
	if data, err := os.ReadFile(filepath.Join(root, latestPointer)); err == nil {
		s.latest = strings.TrimSpace(string(data))
	}
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }

// SessionsRoot returns the directory that the artifact fileserver exposes.
func (s *Store) SessionsRoot() string { return filepath.Join(s.root, sessionsDirName) }

// Session is the artifact directory set for one session.
type Session struct {
	store *Store
	dir   string
}

// CreateSession creates the directory tree for a new session. The session
// directory must not already exist; a second create for the same id fails.
func (s *Store) CreateSession(id string, date time.Time) (*Session, error) {
	dir := filepath.Join(s.SessionsRoot(), date.Format("2006-01-02"), "session_"+id)
	if _, err := os.Stat(dir); err == nil {
		return nil, fmt.Errorf("store: session directory already exists: %s", dir)
	}
	if err := os.MkdirAll(filepath.Join(dir, "photos"), 0o750); err != nil {
		return nil, fmt.Errorf("store: create session directory: %w", err)
	}
	return &Session{store: s, dir: dir}, nil
}

// Dir returns the session directory.
func (sess *Session) Dir() string { return sess.dir }

// PhotoPath returns the write path for the n-th photo (1-based).
func (sess *Session) PhotoPath(n int) string {
	return filepath.Join(sess.dir, "photos", fmt.Sprintf("photo_%d.jpg", n))
}

// StripPath returns the write path for the strip artifact.
func (sess *Session) StripPath() string { return filepath.Join(sess.dir, "strip.jpg") }

// PrintPath returns the write path for the print sheet artifact.
func (sess *Session) PrintPath() string { return filepath.Join(sess.dir, "print.jpg") }

// WriteArtifact atomically writes an artifact. Artifacts are write-once:
// writing a path that already exists is an error.
func (sess *Session) WriteArtifact(path string, data []byte) error {
	if !strings.HasPrefix(path, sess.dir+string(filepath.Separator)) {
		return fmt.Errorf("store: artifact path outside session directory: %s", path)
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("store: artifact already written: %s", path)
	}
	if err := renameio.WriteFile(path, data, 0o640); err != nil {
		return fmt.Errorf("store: write artifact: %w", err)
	}
	return nil
}

// Rel returns path relative to the sessions root, suitable for building
// /sessions/... URLs. Paths outside the sessions root return an error.
func (s *Store) Rel(path string) (string, error) {
	rel, err := filepath.Rel(s.SessionsRoot(), path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("store: path outside sessions root: %s", path)
	}
	return filepath.ToSlash(rel), nil
}

// SetLatestStrip records the most recent strip (relative to the sessions
// root) in memory and persists the pointer across restarts.
func (s *Store) SetLatestStrip(rel string) error {
	s.mu.Lock()
	s.latest = rel
	s.mu.Unlock()
	if err := renameio.WriteFile(filepath.Join(s.root, latestPointer), []byte(rel+"\n"), 0o640); err != nil {
		return fmt.Errorf("store: persist latest strip pointer: %w", err)
	}
	return nil
}

// LatestStrip returns the relative path of the most recent strip, or ""
// when no strip has been produced yet.
func (s *Store) LatestStrip() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}
