package ledger

import (
	"context"
	"sync"
	"time"
)

// Memory keeps entries for the lifetime of the process.
type Memory struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

var _ Ledger = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) Record(_ context.Context, e Entry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = int64(len(m.entries) + 1)
	if e.IndexState == "" {
		e.IndexState = IndexNone
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = m.now()
	}
	m.entries = append(m.entries, e)
	return e.ID, nil
}

func (m *Memory) MarkPending(_ context.Context, id int64) error { return m.mark(id, IndexPending) }
func (m *Memory) MarkIndexed(_ context.Context, id int64) error { return m.mark(id, IndexIndexed) }

func (m *Memory) mark(id int64, state IndexState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id <= 0 || int(id) > len(m.entries) {
		return ErrNotFound
	}
	m.entries[id-1].IndexState = state
	return nil
}

func (m *Memory) Pending(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Entry
	for _, e := range m.entries {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e.IndexState == IndexPending {
			out = append(out, e)
		}
	}
	return out, nil
}

// Entries returns a copy of everything recorded.
func (m *Memory) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}
