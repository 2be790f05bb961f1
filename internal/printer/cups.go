// SPDX-License-Identifier: MIT

package printer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/boothworks/boothd/internal/log"
)

// lp prints e.g. `request id is Booth-42 (1 file(s))`.
var requestIDRe = regexp.MustCompile(`request id is (\S+)`)

// CUPS submits print sheets to a CUPS queue via the lp command.
type CUPS struct {
	LPBin        string
	LPStatBin    string
	ProbeTimeout time.Duration

	// mu guards queue, which config hot reload may swap between jobs.
	mu    sync.RWMutex
	queue string
}

// NewCUPS creates a spooler for the given queue.
func NewCUPS(queue, lpBin, lpstatBin string) *CUPS {
	if lpBin == "" {
		lpBin = "lp"
	}
	if lpstatBin == "" {
		lpstatBin = "lpstat"
	}
	return &CUPS{queue: queue, LPBin: lpBin, LPStatBin: lpstatBin, ProbeTimeout: 5 * time.Second}
}

// SetQueue retargets future submissions and probes to a different queue.
// Jobs already handed to lp are unaffected.
func (c *CUPS) SetQueue(queue string) {
	c.mu.Lock()
	c.queue = queue
	c.mu.Unlock()
}

// Queue returns the active queue name.
func (c *CUPS) Queue() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.queue
}

// Submit hands path to the queue as copies independent jobs. Independent
// jobs match booth flow better than printer-side copy semantics: the first
// sheet starts printing while the rest are still spooling.
func (c *CUPS) Submit(ctx context.Context, path string, copies int, title string) (string, error) {
	if copies < 1 {
		return "", &Error{Kind: SubmissionFailed, Detail: fmt.Sprintf("copies must be >= 1 (got %d)", copies)}
	}
	if info, err := os.Stat(path); err != nil {
		return "", &Error{Kind: SubmissionFailed, Detail: "print file does not exist", Err: err}
	} else if info.IsDir() {
		return "", &Error{Kind: SubmissionFailed, Detail: "print path is a directory"}
	}
	if _, err := exec.LookPath(c.LPBin); err != nil {
		return "", &Error{Kind: Unavailable, Detail: fmt.Sprintf("%s not found in PATH", c.LPBin), Err: err}
	}

	logger := log.WithComponentFromContext(ctx, "printer")
	queue := c.Queue()

	var jobID string
	for i := 0; i < copies; i++ {
		jobTitle := title
		if copies > 1 {
			jobTitle = fmt.Sprintf("%s (%d/%d)", title, i+1, copies)
		}

		// #nosec G204 -- binary and queue come from operator configuration
		cmd := exec.CommandContext(ctx, c.LPBin, "-d", queue, "-t", jobTitle, path)
		var out bytes.Buffer
		cmd.Stdout = &out
		cmd.Stderr = &out

		if err := cmd.Run(); err != nil {
			detail := strings.TrimSpace(out.String())
			if errors.Is(err, exec.ErrNotFound) {
				return "", &Error{Kind: Unavailable, Detail: detail, Err: err}
			}
			return "", &Error{Kind: SubmissionFailed, Detail: detail, Err: err}
		}

		jobID = parseJobID(out.String())
		logger.Info().
			Str(log.FieldEvent, "print.submitted").
			Str(log.FieldJobID, jobID).
			Str(log.FieldPath, path).
			Str("title", jobTitle).
			Msg("print job accepted by spooler")
	}
	return jobID, nil
}

// Probe asks lpstat whether the queue exists and is enabled.
func (c *CUPS) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.ProbeTimeout)
	defer cancel()
	queue := c.Queue()

	// #nosec G204 -- binary and queue come from operator configuration
	cmd := exec.CommandContext(ctx, c.LPStatBin, "-p", queue)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	if err := cmd.Run(); err != nil {
		return &Error{
			Kind:   Unavailable,
			Detail: strings.TrimSpace(out.String()),
			Err:    err,
		}
	}
	if strings.Contains(strings.ToLower(out.String()), "disabled") {
		return &Error{Kind: Unavailable, Detail: fmt.Sprintf("queue %s is disabled", queue)}
	}
	return nil
}

// parseJobID extracts the job identifier from lp output, or returns the
// trimmed output when the format is unexpected.
func parseJobID(out string) string {
	if m := requestIDRe.FindStringSubmatch(out); m != nil {
		return m[1]
	}
	return strings.TrimSpace(out)
}
