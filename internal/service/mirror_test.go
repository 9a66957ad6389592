package service

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"economy-core/internal/core/domain"
	"economy-core/pkg/logger"
)

func TestFileMirror_WritesNDJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.ndjson")
	m, err := NewFileMirror(path, 16, logger.New("error", false))
	require.NoError(t, err)

	m.Enqueue(domain.LedgerEntry{Seq: 1, ModuleID: "mod-arena", Op: domain.OpDeposit, Amount: 100, OK: true})
	m.Enqueue(domain.LedgerEntry{Seq: 2, ModuleID: "mod-arena", Op: domain.OpWithdraw, Amount: 40, OK: true})
	require.NoError(t, m.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var entries []domain.LedgerEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e domain.LedgerEntry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		entries = append(entries, e)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].Seq)
	assert.Equal(t, int64(2), entries[1].Seq)
	assert.Equal(t, domain.OpWithdraw, entries[1].Op)
}

func TestFileMirror_AppendsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.ndjson")
	log := logger.New("error", false)

	m1, err := NewFileMirror(path, 4, log)
	require.NoError(t, err)
	m1.Enqueue(domain.LedgerEntry{Seq: 1})
	require.NoError(t, m1.Close())

	m2, err := NewFileMirror(path, 4, log)
	require.NoError(t, err)
	m2.Enqueue(domain.LedgerEntry{Seq: 2})
	require.NoError(t, m2.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"seq":1`)
	assert.Contains(t, string(data), `"seq":2`)
}

func TestFileMirror_EnqueueAfterCloseIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.ndjson")
	m, err := NewFileMirror(path, 4, logger.New("error", false))
	require.NoError(t, err)
	require.NoError(t, m.Close())

	// Must not panic on the closed channel.
	m.Enqueue(domain.LedgerEntry{Seq: 3})
	require.NoError(t, m.Close())
}

func TestFileMirror_DropsWhenFull(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.ndjson")
	m, err := NewFileMirror(path, 1, logger.New("error", false))
	require.NoError(t, err)

	// Flood far past the queue size; with a single-slot queue at least one
	// entry must be dropped and counted rather than blocking.
	for i := 0; i < 1000; i++ {
		m.Enqueue(domain.LedgerEntry{Seq: int64(i)})
	}
	require.NoError(t, m.Close())

	assert.Positive(t, m.Dropped())
}
