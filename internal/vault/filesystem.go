package vault

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"colsync/internal/snapshot"
)

const (
	payloadSuffix  = ".age"
	manifestSuffix = ".toml"
)

// FileSystemVault is a filesystem-based implementation of the snapshot.Vault
// interface. Snapshots are stored per host:
//
//	<root>/
//	  snapshots/
//	    <hostID>/
//	      <id>.age    (encrypted catalog)
//	      <id>.toml   (manifest)
type FileSystemVault struct {
	name         string
	root         string
	snapshotsDir string
}

// NewFileSystemVault creates a new filesystem vault rooted at the given path.
func NewFileSystemVault(name, root string) (*FileSystemVault, error) {
	snapshotsDir := filepath.Join(root, "snapshots")
	if err := os.MkdirAll(snapshotsDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshots directory: %w", err)
	}

	return &FileSystemVault{
		name:         name,
		root:         root,
		snapshotsDir: snapshotsDir,
	}, nil
}

func (v *FileSystemVault) hostDir(hostID string) string {
	return filepath.Join(v.snapshotsDir, hostID)
}

// PutSnapshot writes the payload first and the manifest last, so a listed
// snapshot always has its payload.
func (v *FileSystemVault) PutSnapshot(m snapshot.Manifest, r io.Reader) error {
	if m.HostID == "" || m.ID == "" {
		return fmt.Errorf("snapshot manifest requires host id and id")
	}
	dir := v.hostDir(m.HostID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}

	if err := writeFileAtomic(filepath.Join(dir, m.ID+payloadSuffix), r, m.Size); err != nil {
		return err
	}

	var sb strings.Builder
	if err := snapshot.EncodeManifest(&sb, m); err != nil {
		return err
	}
	manifest := sb.String()
	return writeFileAtomic(filepath.Join(dir, m.ID+manifestSuffix), strings.NewReader(manifest), int64(len(manifest)))
}

// GetSnapshot writes a snapshot payload to w.
func (v *FileSystemVault) GetSnapshot(hostID, id string, w io.Writer) error {
	f, err := os.Open(filepath.Join(v.hostDir(hostID), id+payloadSuffix))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("snapshot %s for host %s: %w", id, hostID, snapshot.ErrNotFound)
		}
		return fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	return nil
}

// ListSnapshots reads the manifests of a host, oldest first.
func (v *FileSystemVault) ListSnapshots(hostID string) ([]snapshot.Manifest, error) {
	entries, err := os.ReadDir(v.hostDir(hostID))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}

	var out []snapshot.Manifest
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), manifestSuffix) {
			continue
		}
		m, err := readManifest(filepath.Join(v.hostDir(hostID), e.Name()))
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	sortManifests(out)
	return out, nil
}

func readManifest(p string) (snapshot.Manifest, error) {
	f, err := os.Open(p)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("opening manifest: %w", err)
	}
	defer f.Close()

	m, err := snapshot.DecodeManifest(f)
	if err != nil {
		return snapshot.Manifest{}, fmt.Errorf("%s: %w", filepath.Base(p), err)
	}
	return m, nil
}

// DeleteSnapshot removes the manifest first, then the payload.
func (v *FileSystemVault) DeleteSnapshot(hostID, id string) error {
	dir := v.hostDir(hostID)
	for _, name := range []string{id + manifestSuffix, id + payloadSuffix} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("deleting %s: %w", name, err)
		}
	}
	return nil
}

// ValidateSetup verifies that the vault directories are accessible.
func (v *FileSystemVault) ValidateSetup() error {
	for _, dir := range []string{v.root, v.snapshotsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("vault directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("vault path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFileAtomic writes data from r to destPath via a temp file and rename.
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	success = true
	return nil
}

// Compile-time check that FileSystemVault implements snapshot.Vault interface
var _ snapshot.Vault = (*FileSystemVault)(nil)
