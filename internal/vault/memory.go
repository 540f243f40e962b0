package vault

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"sync"

	"colsync/internal/snapshot"
)

// MemoryVault is an in-memory implementation of the snapshot.Vault interface.
// It is useful for testing and is safe for concurrent use.
type MemoryVault struct {
	name      string
	mu        sync.RWMutex
	manifests map[string]snapshot.Manifest // "hostID/id" -> manifest
	payloads  map[string][]byte            // "hostID/id" -> payload
}

// NewMemoryVault creates a new in-memory vault with the given name.
func NewMemoryVault(name string) *MemoryVault {
	return &MemoryVault{
		name:      name,
		manifests: make(map[string]snapshot.Manifest),
		payloads:  make(map[string][]byte),
	}
}

func snapshotKey(hostID, id string) string {
	return hostID + "/" + id
}

// PutSnapshot stores a snapshot payload and its manifest.
func (m *MemoryVault) PutSnapshot(manifest snapshot.Manifest, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if int64(len(data)) != manifest.Size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", manifest.Size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := snapshotKey(manifest.HostID, manifest.ID)
	m.manifests[key] = manifest
	m.payloads[key] = data
	return nil
}

// GetSnapshot writes a snapshot payload to w.
func (m *MemoryVault) GetSnapshot(hostID, id string, w io.Writer) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.payloads[snapshotKey(hostID, id)]
	if !ok {
		return fmt.Errorf("snapshot %s for host %s: %w", id, hostID, snapshot.ErrNotFound)
	}
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

// ListSnapshots returns the manifests of a host, oldest first.
func (m *MemoryVault) ListSnapshots(hostID string) ([]snapshot.Manifest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []snapshot.Manifest
	for _, manifest := range m.manifests {
		if manifest.HostID == hostID {
			out = append(out, manifest)
		}
	}
	sortManifests(out)
	return out, nil
}

// DeleteSnapshot removes a snapshot.
func (m *MemoryVault) DeleteSnapshot(hostID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := snapshotKey(hostID, id)
	delete(m.manifests, key)
	delete(m.payloads, key)
	return nil
}

// ValidateSetup always succeeds for in-memory vault.
func (m *MemoryVault) ValidateSetup() error {
	return nil
}

// sortManifests orders by creation time, then id.
func sortManifests(ms []snapshot.Manifest) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID < ms[j].ID
	})
}

// Compile-time check that MemoryVault implements snapshot.Vault interface
var _ snapshot.Vault = (*MemoryVault)(nil)
