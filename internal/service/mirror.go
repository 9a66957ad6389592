package service

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"economy-core/internal/core/domain"
)

// FileMirror appends committed ledger entries to an NDJSON file through a
// bounded queue. It is strictly best-effort: when the queue is full the entry
// is dropped and counted, never blocking the wallet engine. The database
// ledger remains the source of truth.
type FileMirror struct {
	queue   chan domain.LedgerEntry
	file    *os.File
	log     zerolog.Logger
	wg      sync.WaitGroup
	closeMu sync.Mutex
	closed  bool

	droppedMu sync.Mutex
	dropped   int64
}

// NewFileMirror opens (or creates) the mirror file in append mode and starts
// the writer goroutine.
func NewFileMirror(path string, queueSize int, log zerolog.Logger) (*FileMirror, error) {
	if queueSize < 1 {
		queueSize = 1
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening mirror file: %w", err)
	}

	m := &FileMirror{
		queue: make(chan domain.LedgerEntry, queueSize),
		file:  f,
		log:   log,
	}

	m.wg.Add(1)
	go m.run()

	return m, nil
}

// Enqueue hands an entry to the writer. Never blocks; a full queue drops the
// entry.
func (m *FileMirror) Enqueue(entry domain.LedgerEntry) {
	m.closeMu.Lock()
	defer m.closeMu.Unlock()
	if m.closed {
		return
	}

	select {
	case m.queue <- entry:
	default:
		m.droppedMu.Lock()
		m.dropped++
		n := m.dropped
		m.droppedMu.Unlock()
		m.log.Warn().Int64("dropped_total", n).Int64("seq", entry.Seq).Msg("mirror queue full, entry dropped")
	}
}

// Dropped returns how many entries were discarded because the queue was full.
func (m *FileMirror) Dropped() int64 {
	m.droppedMu.Lock()
	defer m.droppedMu.Unlock()
	return m.dropped
}

// Close drains the queue, flushes remaining entries to disk, and closes the
// file. Enqueue calls after Close are no-ops.
func (m *FileMirror) Close() error {
	m.closeMu.Lock()
	if m.closed {
		m.closeMu.Unlock()
		return nil
	}
	m.closed = true
	close(m.queue)
	m.closeMu.Unlock()

	m.wg.Wait()
	return m.file.Close()
}

func (m *FileMirror) run() {
	defer m.wg.Done()

	enc := json.NewEncoder(m.file)
	for entry := range m.queue {
		if err := enc.Encode(entry); err != nil {
			m.log.Error().Err(err).Int64("seq", entry.Seq).Msg("mirror write failed")
		}
	}
}
