package trace

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemStore keeps trace data in memory. Used when no database is configured
// and by tests. Safe for concurrent use.
type MemStore struct {
	mu      sync.Mutex
	vaults  map[string]*memVault
	ordered []string // vault keys, creation order
}

type memVault struct {
	createdAt time.Time
	records   []Record
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{vaults: map[string]*memVault{}}
}

func (s *MemStore) CreateVault(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.vaults[key]; exists {
		return fmt.Errorf("vault %q already exists", key)
	}
	s.vaults[key] = &memVault{createdAt: time.Now().UTC()}
	s.ordered = append(s.ordered, key)
	if len(s.ordered) > maxVaults {
		pruned := s.ordered[0]
		s.ordered = s.ordered[1:]
		delete(s.vaults, pruned)
	}
	return nil
}

func (s *MemStore) AppendRecords(vaultKey string, records []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vaultKey]
	if !ok {
		return fmt.Errorf("vault %q not found", vaultKey)
	}
	v.records = append(v.records, records...)
	return nil
}

func (s *MemStore) Records(vaultKey string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[vaultKey]
	if !ok {
		return nil, fmt.Errorf("vault %q not found", vaultKey)
	}
	out := make([]Record, len(v.records))
	copy(out, v.records)
	return out, nil
}

func (s *MemStore) ListVaults(limit, offset int) ([]Vault, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, len(s.ordered))
	copy(keys, s.ordered)
	sort.SliceStable(keys, func(i, j int) bool {
		return s.vaults[keys[i]].createdAt.After(s.vaults[keys[j]].createdAt)
	})

	total := len(keys)
	if offset >= len(keys) {
		return nil, total, nil
	}
	keys = keys[offset:]
	if limit >= 0 && limit < len(keys) {
		keys = keys[:limit]
	}

	vaults := make([]Vault, 0, len(keys))
	for _, key := range keys {
		v := s.vaults[key]
		vaults = append(vaults, Vault{Key: key, CreatedAt: v.createdAt, RecordCount: len(v.records)})
	}
	return vaults, total, nil
}

func (s *MemStore) Close() error { return nil }
