// SPDX-License-Identifier: MIT

package printer

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-process spooler for development and tests.
type Fake struct {
	// SubmitErr, when set, is returned by every Submit.
	SubmitErr error
	// ProbeErr, when set, is returned by Probe.
	ProbeErr error

	mu   sync.Mutex
	jobs []string
}

// Submit records the submission and returns a synthetic job ID.
func (f *Fake) Submit(_ context.Context, path string, copies int, _ string) (string, error) {
	if f.SubmitErr != nil {
		return "", f.SubmitErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := 0; i < copies; i++ {
		f.jobs = append(f.jobs, path)
	}
	return fmt.Sprintf("fake-%d", len(f.jobs)), nil
}

// Probe reports the configured probe result.
func (f *Fake) Probe(_ context.Context) error {
	return f.ProbeErr
}

// Jobs returns the submitted file paths, one entry per copy.
func (f *Fake) Jobs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.jobs))
	copy(out, f.jobs)
	return out
}
