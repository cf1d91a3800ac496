package store

import (
	"sync"

	"github.com/locshare/locshare/pkg/core"
)

// Memory is the default backend: records live only for the process
// lifetime. Used when no durability is configured and in tests.
type Memory struct {
	mu      sync.RWMutex
	records map[string]core.LocationRecord
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = make(map[string]core.LocationRecord)
	return nil
}

func (m *Memory) Close() error {
	return nil
}

func (m *Memory) SaveRecord(key string, rec core.LocationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[key] = rec
	return nil
}

func (m *Memory) DeleteRecord(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.records, key)
	return nil
}

func (m *Memory) LoadSnapshot(namespace string) (core.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := make(core.Snapshot)
	for key, rec := range m.records {
		ns, id, err := ParseKey(key)
		if err != nil || ns != namespace {
			continue
		}
		snap[id] = rec
	}
	return snap, nil
}
