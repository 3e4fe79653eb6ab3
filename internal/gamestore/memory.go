package gamestore

import (
    "context"
    "encoding/json"
    "sync"
)

// MemoryStore is used when no redis is configured. State is lost on restart.
type MemoryStore struct {
    mu  sync.RWMutex
    raw []byte
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (m *MemoryStore) Load(ctx context.Context) (*Snapshot, error) {
    m.mu.RLock()
    defer m.mu.RUnlock()
    if m.raw == nil { return nil, ErrNoSnapshot }
    var snap Snapshot
    if err := json.Unmarshal(m.raw, &snap); err != nil { return nil, err }
    return &snap, nil
}

// Save stores a deep copy so later mutation by the caller does not leak in.
func (m *MemoryStore) Save(ctx context.Context, snap *Snapshot) error {
    raw, err := json.Marshal(snap)
    if err != nil { return err }
    m.mu.Lock()
    m.raw = raw
    m.mu.Unlock()
    return nil
}

func (m *MemoryStore) Clear(ctx context.Context) error {
    m.mu.Lock()
    m.raw = nil
    m.mu.Unlock()
    return nil
}

func (m *MemoryStore) Close() error { return nil }
