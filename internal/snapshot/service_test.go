package snapshot_test

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"colsync/internal/collection"
	"colsync/internal/database"
	"colsync/internal/encryption"
	"colsync/internal/snapshot"
	"colsync/internal/testutil"
	"colsync/internal/vault"
)

type fixture struct {
	catalog *database.SQLiteCatalog
	vault   *vault.MemoryVault
	enc     snapshot.Encryptor
	clock   *testutil.StubClock
	svc     *snapshot.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		catalog: testutil.NewTestCatalog(t),
		vault:   testutil.NewSnapshotVault(),
		enc:     testutil.NewSnapshotEncryptor(),
		clock:   testutil.FixedClock(),
	}
	f.svc = snapshot.NewService(f.catalog, f.vault, f.enc, "host-1",
		collection.NewNopLogger(), f.clock, testutil.NewStubIDGenerator())
	return f
}

func (f *fixture) create(t *testing.T, op int64) *snapshot.Manifest {
	t.Helper()
	m, err := f.svc.Create(op)
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.clock.Advance(time.Minute)
	return m
}

func (f *fixture) unlock(t *testing.T) snapshot.DecryptionContext {
	t.Helper()
	ctx, err := f.enc.Unlock("test")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	return ctx
}

func TestService_CreateAndRestore(t *testing.T) {
	f := newFixture(t)
	testutil.AddAlbumRoot(t, f.catalog, "/photos")

	m := f.create(t, 7)
	if m.HostID != "host-1" || m.OperationID != 7 || m.Size == 0 {
		t.Errorf("manifest = %+v", m)
	}

	var payload bytes.Buffer
	if err := f.vault.GetSnapshot("host-1", m.ID, &payload); err != nil {
		t.Fatalf("GetSnapshot() error = %v", err)
	}
	sum := sha256.Sum256(payload.Bytes())
	if got := hex.EncodeToString(sum[:]); got != m.SHA256 {
		t.Errorf("manifest checksum %s does not match payload %s", m.SHA256, got)
	}
	if bytes.HasPrefix(payload.Bytes(), []byte("SQLite format 3")) {
		t.Error("vault holds an unencrypted catalog")
	}

	// Changes after the snapshot must not show up in the restored copy.
	testutil.AddAlbumRoot(t, f.catalog, "/later")

	dest := filepath.Join(t.TempDir(), "restored", "catalog.db")
	got, err := f.svc.Restore("", f.unlock(t), dest)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if got.ID != m.ID {
		t.Errorf("Restore() restored %s, want %s", got.ID, m.ID)
	}

	restored, err := database.NewSQLiteCatalog(dest)
	if err != nil {
		t.Fatalf("opening restored catalog: %v", err)
	}
	defer restored.Close()
	roots, err := restored.ListAlbumRoots()
	if err != nil {
		t.Fatalf("ListAlbumRoots() error = %v", err)
	}
	if len(roots) != 1 || roots[0].Path != "/photos" {
		t.Errorf("restored roots = %v, want only /photos", roots)
	}
}

func TestService_RestoreRefusesExistingTarget(t *testing.T) {
	f := newFixture(t)
	f.create(t, 1)

	dest := filepath.Join(t.TempDir(), "catalog.db")
	if err := os.WriteFile(dest, []byte("live catalog"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Restore("", f.unlock(t), dest); err == nil {
		t.Fatal("Restore() over an existing file should fail")
	}
	data, _ := os.ReadFile(dest)
	if string(data) != "live catalog" {
		t.Error("existing file was modified")
	}
}

func TestService_RestoreDetectsTampering(t *testing.T) {
	f := newFixture(t)
	m := f.create(t, 1)

	var payload bytes.Buffer
	if err := f.vault.GetSnapshot("host-1", m.ID, &payload); err != nil {
		t.Fatal(err)
	}
	tampered := payload.Bytes()
	tampered[len(tampered)-1] ^= 0xff
	if err := f.vault.PutSnapshot(*m, bytes.NewReader(tampered)); err != nil {
		t.Fatal(err)
	}

	dest := filepath.Join(t.TempDir(), "catalog.db")
	_, err := f.svc.Restore(m.ID, f.unlock(t), dest)
	if err == nil || !strings.Contains(err.Error(), "verification") {
		t.Fatalf("Restore() error = %v, want verification failure", err)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Error("tampered snapshot was written to the target")
	}
	entries, _ := os.ReadDir(filepath.Dir(dest))
	if len(entries) != 0 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestService_RestoreErrors(t *testing.T) {
	f := newFixture(t)
	dest := filepath.Join(t.TempDir(), "catalog.db")

	if _, err := f.svc.Restore("", nil, dest); err == nil {
		t.Error("Restore() without decryption context should fail")
	}
	if _, err := f.svc.Restore("", f.unlock(t), dest); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Restore() on empty vault error = %v, want ErrNotFound", err)
	}
	f.create(t, 1)
	if _, err := f.svc.Restore("missing", f.unlock(t), dest); !errors.Is(err, snapshot.ErrNotFound) {
		t.Errorf("Restore(missing) error = %v, want ErrNotFound", err)
	}
}

func TestService_LatestAndPrune(t *testing.T) {
	f := newFixture(t)

	latest, err := f.svc.Latest()
	if err != nil || latest != nil {
		t.Fatalf("Latest() on empty vault = %v, %v", latest, err)
	}

	var ids []string
	for op := int64(1); op <= 4; op++ {
		ids = append(ids, f.create(t, op).ID)
	}

	latest, err = f.svc.Latest()
	if err != nil {
		t.Fatalf("Latest() error = %v", err)
	}
	if latest.ID != ids[3] {
		t.Errorf("Latest() = %s, want %s", latest.ID, ids[3])
	}

	if _, err := f.svc.Prune(0); err == nil {
		t.Error("Prune(0) should fail")
	}
	deleted, err := f.svc.Prune(2)
	if err != nil {
		t.Fatalf("Prune() error = %v", err)
	}
	if deleted != 2 {
		t.Errorf("Prune() deleted %d, want 2", deleted)
	}
	list, _ := f.svc.List()
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[3] {
		t.Errorf("after prune List() = %v", list)
	}
	if deleted, _ := f.svc.Prune(5); deleted != 0 {
		t.Errorf("Prune(5) deleted %d, want 0", deleted)
	}
}

func TestService_CreateRequiresKeys(t *testing.T) {
	f := newFixture(t)
	svc := snapshot.NewService(f.catalog, f.vault, encryption.NewUnconfiguredFakeEncryptor(), "host-1",
		collection.NewNopLogger(), f.clock, testutil.NewStubIDGenerator())
	if _, err := svc.Create(1); err == nil {
		t.Fatal("Create() without keys should fail")
	}
	if list, _ := f.vault.ListSnapshots("host-1"); len(list) != 0 {
		t.Errorf("vault not empty: %v", list)
	}
}

func TestManifest_EncodeDecode(t *testing.T) {
	m := snapshot.Manifest{
		ID:          "id-1",
		HostID:      "host-1",
		CreatedAt:   time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		OperationID: 3,
		Size:        42,
		SHA256:      "abc",
	}
	var buf bytes.Buffer
	if err := snapshot.EncodeManifest(&buf, m); err != nil {
		t.Fatalf("EncodeManifest() error = %v", err)
	}
	got, err := snapshot.DecodeManifest(&buf)
	if err != nil {
		t.Fatalf("DecodeManifest() error = %v", err)
	}
	if got.ID != m.ID || !got.CreatedAt.Equal(m.CreatedAt) || got.Size != 42 || got.OperationID != 3 {
		t.Errorf("DecodeManifest() = %+v", got)
	}

	if _, err := snapshot.DecodeManifest(strings.NewReader("size = 1\n")); err == nil {
		t.Error("DecodeManifest() should reject a manifest without id")
	}
}
