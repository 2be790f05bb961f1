// SPDX-License-Identifier: MIT

package booth

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boothworks/boothd/internal/log"
	"github.com/boothworks/boothd/internal/store"
)

func TestLedgerDateFollowsSessionCreation(t *testing.T) {
	dir := t.TempDir()
	st, err := store.New(dir)
	require.NoError(t, err)
	ledger, err := store.OpenLedger(filepath.Join(dir, "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })

	c := New(Deps{Store: st, Ledger: ledger}, Settings{})
	t.Cleanup(c.Close)

	// A session that starts just before midnight finishes on the next day.
	// Its ledger row must carry the date that partitions its directory, not
	// the completion date, or the strip path would not resolve.
	created := time.Now().Add(-24 * time.Hour)
	dirs, err := st.CreateSession("0f0e0d0c-aaaa", created)
	require.NoError(t, err)

	sess := &session{
		id:         "0f0e0d0c-aaaa",
		albumCode:  "0F0E0D0C",
		createdAt:  created,
		printCount: 1,
		dirs:       dirs,
		photos:     []string{dirs.PhotoPath(1)},
	}
	c.recordLedger(context.Background(), sess, log.WithComponent("booth"))

	entry, err := ledger.Lookup(context.Background(), "0F0E0D0C")
	require.NoError(t, err)
	wantDate := created.Format("2006-01-02")
	assert.Equal(t, wantDate, entry.Date)
	assert.True(t, strings.HasPrefix(entry.StripPath, wantDate+"/"),
		"strip path %q not under its own date partition", entry.StripPath)
}
