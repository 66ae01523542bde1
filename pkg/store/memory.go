package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"deltanet/pkg/model"
)

// MemoryStore is a simple in-memory RecordStore, intended for dev and
// tests.
type MemoryStore struct {
	mu          sync.RWMutex
	artifacts   map[string]model.Artifact
	assets      map[string]model.Asset
	collections map[string]model.Collection
	consents    map[string]model.Consent
	audit       []model.AuditEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		artifacts:   make(map[string]model.Artifact),
		assets:      make(map[string]model.Asset),
		collections: make(map[string]model.Collection),
		consents:    make(map[string]model.Consent),
	}
}

func (m *MemoryStore) GetArtifact(_ context.Context, id string) (model.Artifact, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.artifacts[id]
	return a, ok, nil
}

func (m *MemoryStore) ListArtifacts(_ context.Context, titleFilter string, limit int) ([]model.Artifact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	needle := strings.ToLower(titleFilter)
	out := make([]model.Artifact, 0, len(m.artifacts))
	for _, a := range m.artifacts {
		if needle != "" && !strings.Contains(strings.ToLower(a.Title), needle) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (m *MemoryStore) InsertArtifact(_ context.Context, a model.Artifact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Explicit-id re-ingest overwrites; dedup is the store's business, not
	// this layer's.
	m.artifacts[a.ID] = a
	return nil
}

func (m *MemoryStore) GetAsset(_ context.Context, id string) (model.Asset, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assets[id]
	return a, ok, nil
}

func (m *MemoryStore) ListAssets(_ context.Context, artifactID string) ([]model.Asset, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Asset{}
	for _, a := range m.assets {
		if a.ArtifactID == artifactID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) InsertAsset(_ context.Context, a model.Asset) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[a.ID] = a
	return nil
}

func (m *MemoryStore) ListCollections(_ context.Context, limit int) ([]model.Collection, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Collection, 0, len(m.collections))
	for _, c := range m.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if n := clampLimit(limit); len(out) > n {
		out = out[:n]
	}
	return out, nil
}

// InsertCollection is used by tests and dev seeding; the wire protocol has
// no collection ingest operation.
func (m *MemoryStore) InsertCollection(_ context.Context, c model.Collection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.collections[c.ID] = c
	return nil
}

func (m *MemoryStore) InsertConsent(_ context.Context, c model.Consent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.consents[c.ID] = c
	return nil
}

func (m *MemoryStore) AppendAudit(_ context.Context, e model.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, e)
	return nil
}

// Consents returns the consent record for an artifact, if any.
func (m *MemoryStore) Consents(artifactID string) []model.Consent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []model.Consent{}
	for _, c := range m.consents {
		if c.ArtifactID == artifactID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Audit returns a copy of the audit trail, oldest first.
func (m *MemoryStore) Audit() []model.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.AuditEntry(nil), m.audit...)
}
