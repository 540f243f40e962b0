// Package snapshot stores encrypted copies of the catalog in a vault.
package snapshot

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNotFound is returned by vaults for unknown snapshots.
var ErrNotFound = errors.New("snapshot not found")

// Manifest describes one stored snapshot. Size and SHA256 cover the
// encrypted payload as stored in the vault.
type Manifest struct {
	ID          string    `toml:"id"`
	HostID      string    `toml:"host_id"`
	CreatedAt   time.Time `toml:"created_at"`
	OperationID int64     `toml:"operation_id"`
	Size        int64     `toml:"size"`
	SHA256      string    `toml:"sha256"`
}

// EncodeManifest writes m as TOML.
func EncodeManifest(w io.Writer, m Manifest) error {
	if err := toml.NewEncoder(w).Encode(m); err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	return nil
}

// DecodeManifest reads a TOML manifest.
func DecodeManifest(r io.Reader) (Manifest, error) {
	var m Manifest
	if _, err := toml.NewDecoder(r).Decode(&m); err != nil {
		return Manifest{}, fmt.Errorf("decoding manifest: %w", err)
	}
	if m.ID == "" {
		return Manifest{}, fmt.Errorf("decoding manifest: missing id")
	}
	return m, nil
}

// Vault is a storage backend for snapshots, partitioned by host.
// Payloads are streamed through io.Reader/io.Writer.
type Vault interface {
	// PutSnapshot stores the payload read from r under m.HostID and m.ID.
	// m.Size bytes are read from r.
	PutSnapshot(m Manifest, r io.Reader) error

	// GetSnapshot writes the payload of a snapshot to w. Unknown snapshots
	// return an error wrapping ErrNotFound.
	GetSnapshot(hostID, id string, w io.Writer) error

	// ListSnapshots returns the manifests of a host, oldest first.
	ListSnapshots(hostID string) ([]Manifest, error)

	// DeleteSnapshot removes a snapshot. Deleting an unknown snapshot is not an error.
	DeleteSnapshot(hostID, id string) error

	// ValidateSetup verifies that the vault is accessible and properly configured.
	ValidateSetup() error
}

// Encryptor encrypts snapshots with a public key. Decryption needs the
// private key, unlocked with a passphrase for the duration of a restore.
type Encryptor interface {
	// Setup generates a key pair and protects the private key with passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key and returns a context for the session.
	// Returns an error if the passphrase is incorrect.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if the key pair exists.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory only.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}

// Source produces a consistent copy of the catalog at destPath.
type Source interface {
	BackupTo(destPath string) error
}
