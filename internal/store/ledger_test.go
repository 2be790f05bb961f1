// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := OpenLedger(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestLedgerRecordAndLookup(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	entry := LedgerEntry{
		ID:         "sess-1",
		Date:       "2026-08-25",
		AlbumCode:  "AB12CD34",
		StripPath:  "2026-08-25/session_sess-1/strip.jpg",
		Photos:     3,
		PrintCount: 2,
		CreatedAt:  time.Date(2026, 8, 25, 15, 0, 0, 0, time.UTC),
	}
	require.NoError(t, l.Record(ctx, entry))

	got, err := l.Lookup(ctx, "AB12CD34")
	require.NoError(t, err)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, entry.StripPath, got.StripPath)
	assert.Equal(t, entry.Photos, got.Photos)
	assert.Equal(t, entry.PrintCount, got.PrintCount)
	assert.True(t, entry.CreatedAt.Equal(got.CreatedAt))
}

func TestLedgerDuplicateIDRejected(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	entry := LedgerEntry{ID: "dup", Date: "2026-08-25", AlbumCode: "X", StripPath: "p", CreatedAt: time.Now()}
	require.NoError(t, l.Record(ctx, entry))
	assert.Error(t, l.Record(ctx, entry))
}

func TestLedgerUnknownAlbumCode(t *testing.T) {
	l := openTestLedger(t)

	_, err := l.Lookup(context.Background(), "NOPE")
	assert.ErrorContains(t, err, "unknown album code")
}

func TestLedgerSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	ctx := context.Background()

	l, err := OpenLedger(path)
	require.NoError(t, err)
	require.NoError(t, l.Record(ctx, LedgerEntry{
		ID: "s1", Date: "2026-08-25", AlbumCode: "CODE1234", StripPath: "p", CreatedAt: time.Now(),
	}))
	require.NoError(t, l.Close())

	reopened, err := OpenLedger(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.Lookup(ctx, "CODE1234")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.ID)
}
