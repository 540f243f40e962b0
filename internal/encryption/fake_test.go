package encryption

import (
	"bytes"
	"strings"
	"testing"

	"colsync/internal/config"
)

func TestFakeEncryptor(t *testing.T) {
	t.Parallel()

	e := NewUnconfiguredFakeEncryptor()
	if e.IsConfigured() {
		t.Fatal("IsConfigured() = true before Setup")
	}
	var buf bytes.Buffer
	if err := e.Encrypt(strings.NewReader("x"), &buf); err == nil {
		t.Error("Encrypt() before Setup should fail")
	}
	if err := e.Setup("pw"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if _, err := e.Unlock("nope"); err == nil {
		t.Error("Unlock() with wrong passphrase should fail")
	}

	buf.Reset()
	if err := e.Encrypt(strings.NewReader("catalog"), &buf); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if buf.String() == "catalog" {
		t.Error("output equals plaintext")
	}
	ctx, err := e.Unlock("pw")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var out bytes.Buffer
	if err := ctx.Decrypt(&buf, &out); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if out.String() != "catalog" {
		t.Errorf("Decrypt() = %q", out.String())
	}

	if err := ctx.Decrypt(strings.NewReader("plain text payload"), &out); err == nil {
		t.Error("Decrypt() should reject foreign payloads")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		wantErr bool
	}{
		{name: "age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "a.pub", PrivateKeyPath: "a.key"}},
		{name: "default type", cfg: config.EncryptionConfig{PublicKeyPath: "a.pub", PrivateKeyPath: "a.key"}},
		{name: "age without paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "fake", cfg: config.EncryptionConfig{Type: "fake"}},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got == nil {
				t.Error("got nil encryptor")
			}
		})
	}
}
