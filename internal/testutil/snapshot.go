package testutil

import (
	"colsync/internal/encryption"
	"colsync/internal/snapshot"
	"colsync/internal/vault"
)

// NewSnapshotVault returns an in-memory snapshot vault.
func NewSnapshotVault() *vault.MemoryVault {
	return vault.NewMemoryVault("test-vault")
}

// NewSnapshotEncryptor returns a configured fake encryptor whose
// passphrase is "test".
func NewSnapshotEncryptor() snapshot.Encryptor {
	e := encryption.NewUnconfiguredFakeEncryptor()
	e.Setup("test")
	return e
}
