package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"colsync/internal/collection"
)

// Service creates, lists, restores and prunes catalog snapshots of one host.
type Service struct {
	source    Source
	vault     Vault
	encryptor Encryptor
	hostID    string
	logger    collection.Logger
	clock     collection.Clock
	idgen     collection.IDGenerator
}

// NewService creates a snapshot service.
func NewService(source Source, vault Vault, encryptor Encryptor, hostID string, logger collection.Logger, clock collection.Clock, idgen collection.IDGenerator) *Service {
	return &Service{
		source:    source,
		vault:     vault,
		encryptor: encryptor,
		hostID:    hostID,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Create copies the catalog, encrypts the copy and stores it in the vault.
// operationID links the snapshot to the scan operation that triggered it.
func (s *Service) Create(operationID int64) (*Manifest, error) {
	if !s.encryptor.IsConfigured() {
		return nil, fmt.Errorf("encryption keys not configured; run 'colsync snapshot keygen' first")
	}

	tmpDir, err := os.MkdirTemp("", "colsync-snapshot-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	plainPath := filepath.Join(tmpDir, "catalog.db")
	if err := s.source.BackupTo(plainPath); err != nil {
		return nil, fmt.Errorf("copying catalog: %w", err)
	}

	encPath := plainPath + ".age"
	size, sum, err := s.encryptFile(plainPath, encPath)
	if err != nil {
		return nil, err
	}

	m := Manifest{
		ID:          s.idgen.New(),
		HostID:      s.hostID,
		CreatedAt:   s.clock.Now().UTC(),
		OperationID: operationID,
		Size:        size,
		SHA256:      sum,
	}

	f, err := os.Open(encPath)
	if err != nil {
		return nil, fmt.Errorf("opening encrypted snapshot: %w", err)
	}
	defer f.Close()

	if err := s.vault.PutSnapshot(m, f); err != nil {
		return nil, fmt.Errorf("storing snapshot: %w", err)
	}

	s.logger.Info("snapshot created", "id", m.ID, "size", m.Size, "operation", operationID)
	return &m, nil
}

// encryptFile encrypts src into dst and returns the ciphertext size and checksum.
func (s *Service) encryptFile(src, dst string) (int64, string, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, "", fmt.Errorf("opening catalog copy: %w", err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, "", fmt.Errorf("creating encrypted snapshot: %w", err)
	}

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(out, h)}
	if err := s.encryptor.Encrypt(in, cw); err != nil {
		out.Close()
		return 0, "", fmt.Errorf("encrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return 0, "", fmt.Errorf("closing encrypted snapshot: %w", err)
	}
	return cw.n, hex.EncodeToString(h.Sum(nil)), nil
}

// List returns the snapshots of this host, oldest first.
func (s *Service) List() ([]Manifest, error) {
	manifests, err := s.vault.ListSnapshots(s.hostID)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	return manifests, nil
}

// Latest returns the newest snapshot, or nil if there is none.
func (s *Service) Latest() (*Manifest, error) {
	manifests, err := s.List()
	if err != nil {
		return nil, err
	}
	if len(manifests) == 0 {
		return nil, nil
	}
	m := manifests[len(manifests)-1]
	return &m, nil
}

func (s *Service) find(id string) (*Manifest, error) {
	if id == "" {
		m, err := s.Latest()
		if err != nil {
			return nil, err
		}
		if m == nil {
			return nil, fmt.Errorf("no snapshots for host %s: %w", s.hostID, ErrNotFound)
		}
		return m, nil
	}
	manifests, err := s.List()
	if err != nil {
		return nil, err
	}
	for i := range manifests {
		if manifests[i].ID == id {
			return &manifests[i], nil
		}
	}
	return nil, fmt.Errorf("snapshot %s: %w", id, ErrNotFound)
}

// Restore writes the decrypted snapshot id (the latest when id is empty)
// to destPath. The payload checksum is verified before decryption and an
// existing file at destPath is never overwritten.
func (s *Service) Restore(id string, decryptCtx DecryptionContext, destPath string) (*Manifest, error) {
	if decryptCtx == nil {
		return nil, fmt.Errorf("restoring snapshot: decryption context required")
	}
	if _, err := os.Stat(destPath); err == nil {
		return nil, fmt.Errorf("restore target already exists: %s", destPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking restore target: %w", err)
	}

	m, err := s.find(id)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(destPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating restore directory: %w", err)
	}

	encFile, err := os.CreateTemp(dir, ".snapshot-*.age")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	encPath := encFile.Name()
	defer os.Remove(encPath)

	h := sha256.New()
	cw := &countingWriter{w: io.MultiWriter(encFile, h)}
	if err := s.vault.GetSnapshot(s.hostID, m.ID, cw); err != nil {
		encFile.Close()
		return nil, fmt.Errorf("fetching snapshot: %w", err)
	}
	if err := encFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if cw.n != m.Size || hex.EncodeToString(h.Sum(nil)) != m.SHA256 {
		return nil, fmt.Errorf("snapshot %s failed verification", m.ID)
	}

	if err := s.decryptFile(decryptCtx, encPath, destPath); err != nil {
		return nil, err
	}
	s.logger.Info("snapshot restored", "id", m.ID, "path", destPath)
	return m, nil
}

func (s *Service) decryptFile(decryptCtx DecryptionContext, src, destPath string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	defer in.Close()

	out, err := os.CreateTemp(filepath.Dir(destPath), ".restore-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := out.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if err := decryptCtx.Decrypt(in, out); err != nil {
		out.Close()
		return fmt.Errorf("decrypting snapshot: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("closing restored catalog: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("moving restored catalog into place: %w", err)
	}
	success = true
	return nil
}

// Prune deletes all but the newest keep snapshots and returns how many
// were deleted.
func (s *Service) Prune(keep int) (int, error) {
	if keep < 1 {
		return 0, fmt.Errorf("prune must keep at least one snapshot")
	}
	manifests, err := s.List()
	if err != nil {
		return 0, err
	}
	if len(manifests) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, m := range manifests[:len(manifests)-keep] {
		if err := s.vault.DeleteSnapshot(s.hostID, m.ID); err != nil {
			return deleted, fmt.Errorf("deleting snapshot %s: %w", m.ID, err)
		}
		deleted++
	}
	s.logger.Info("snapshots pruned", "deleted", deleted, "kept", keep)
	return deleted, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
