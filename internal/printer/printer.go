// SPDX-License-Identifier: MIT

// Package printer defines the print spooler port. Submission is
// acceptance-only: a returned job ID means the spooler took the file,
// not that paper came out.
package printer

import (
	"context"
	"fmt"
)

// Kind classifies printer failures.
type Kind string

const (
	// Unavailable means the spooler or queue cannot be reached at all.
	Unavailable Kind = "printer_unavailable"
	// SubmissionFailed means the spooler rejected the job.
	SubmissionFailed Kind = "printer_submission_failed"
)

// Error is a classified printer failure.
type Error struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("printer: %s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("printer: %s", e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Spooler is the narrow port the controller hands finished print sheets to.
type Spooler interface {
	// Submit sends path to the spooler as copies independent jobs and
	// returns the identifier of the last accepted job.
	Submit(ctx context.Context, path string, copies int, title string) (jobID string, err error)
	// Probe reports whether the queue currently accepts jobs.
	Probe(ctx context.Context) error
}
