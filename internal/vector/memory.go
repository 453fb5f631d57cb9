package vector

import (
	"context"
	"sync"

	"github.com/mirrorlab/codesync/internal/seal"
)

// MemoryIndex is an in-process index for tests and single-node development.
type MemoryIndex struct {
	mu      sync.RWMutex
	records map[string]*seal.Record
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{records: make(map[string]*seal.Record)}
}

func (m *MemoryIndex) Upsert(_ context.Context, rec *seal.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	m.records[rec.ChunkHash] = &cp
	return nil
}

func (m *MemoryIndex) Delete(_ context.Context, chunkHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, chunkHash)
	return nil
}

func (m *MemoryIndex) Get(_ context.Context, chunkHash string) (*seal.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[chunkHash]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemoryIndex) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	return keys, nil
}

// Len reports the number of stored records.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
