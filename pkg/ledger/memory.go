package ledger

import (
	"context"
	"errors"
	"sync"
)

// Memory is an in-process Store for local runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory returns an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{records: map[string]Record{}}
}

func (m *Memory) Get(ctx context.Context, originalFile string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[originalFile]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *Memory) Create(ctx context.Context, rec *Record) error {
	if rec == nil || rec.OriginalFile == "" {
		return errors.New("ledger: record key is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[rec.OriginalFile]; ok {
		return ErrAlreadyExists
	}
	m.records[rec.OriginalFile] = *rec
	return nil
}

// Put stores rec unconditionally. Tests use it to seed malformed records.
func (m *Memory) Put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.OriginalFile] = rec
}

// Len reports the number of stored records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error {
	return nil
}
