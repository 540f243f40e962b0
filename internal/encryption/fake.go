package encryption

import (
	"bytes"
	"fmt"
	"io"

	"colsync/internal/snapshot"
)

// fakeHeader marks payloads written by FakeEncryptor so that snapshot
// checksums differ from the plaintext catalog.
var fakeHeader = []byte("CSENC\x00\x00\x00")

// FakeEncryptor is a deterministic stand-in for AgeEncryptor. It frames the
// payload with a fixed header and remembers the Setup passphrase so that
// Unlock can reject a wrong one the way the real encryptor does.
type FakeEncryptor struct {
	passphrase string
	configured bool
}

var _ snapshot.Encryptor = (*FakeEncryptor)(nil)

// NewFakeEncryptor returns an encryptor that is already configured with an
// empty passphrase.
func NewFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{configured: true}
}

// NewUnconfiguredFakeEncryptor returns an encryptor that needs Setup first.
func NewUnconfiguredFakeEncryptor() *FakeEncryptor {
	return &FakeEncryptor{}
}

func (e *FakeEncryptor) Setup(passphrase string) error {
	e.passphrase = passphrase
	e.configured = true
	return nil
}

func (e *FakeEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if !e.configured {
		return fmt.Errorf("encryptor not configured")
	}
	if _, err := w.Write(fakeHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *FakeEncryptor) Unlock(passphrase string) (snapshot.DecryptionContext, error) {
	if !e.configured {
		return nil, fmt.Errorf("encryptor not configured")
	}
	if passphrase != e.passphrase {
		return nil, fmt.Errorf("wrong passphrase")
	}
	return FakeDecryptionContext{}, nil
}

func (e *FakeEncryptor) IsConfigured() bool { return e.configured }

// FakeDecryptionContext strips the header written by FakeEncryptor.
type FakeDecryptionContext struct{}

var _ snapshot.DecryptionContext = FakeDecryptionContext{}

func (FakeDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(fakeHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", err)
	}
	if !bytes.Equal(header, fakeHeader) {
		return fmt.Errorf("payload was not written by the fake encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
