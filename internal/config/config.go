package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for colsync.
type Config struct {
	HostID   string         `toml:"host_id"`
	BaseDir  string         `toml:"base_dir"`
	LogDir   string         `toml:"log_dir"`
	Database DatabaseConfig `toml:"database"`
	Scan     ScanConfig     `toml:"scan"`
	Watch    WatchConfig    `toml:"watch"`
	Deferred DeferredConfig `toml:"deferred"`
	Snapshot SnapshotConfig `toml:"snapshot"`
}

// DatabaseConfig represents configuration for the catalog.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// ScanConfig holds the collection scanner settings.
type ScanConfig struct {
	FastScan             bool   `toml:"fast_scan"`
	AlbumDateFrom        string `toml:"album_date_from"` // "folder", "oldest", "newest" or "average"
	RescanIfModified     bool   `toml:"rescan_if_modified"`
	UseXMPSidecar        bool   `toml:"use_xmp_sidecar"`
	UpdateFileTimestamp  bool   `toml:"update_file_timestamp"`
	DeferredFileScanning bool   `toml:"deferred_file_scanning"`
	UpdatingHash         bool   `toml:"updating_hash"`
	CountTotalFiles      bool   `toml:"count_total_files"`

	// Suffix lists; empty means the built-in defaults.
	ImageFilters []string `toml:"image_filters,omitempty"`
	VideoFilters []string `toml:"video_filters,omitempty"`
	AudioFilters []string `toml:"audio_filters,omitempty"`

	// IgnoreDirectories uses gitignore-style patterns relative to an album root.
	IgnoreDirectories []string `toml:"ignore_directories,omitempty"`

	RemoveAfterDays       int `toml:"remove_after_days"`
	MinDaysBetweenDeletes int `toml:"min_days_between_deletes"`
	ForceDeleteAfterDays  int `toml:"force_delete_after_days"`
	ForceDeleteAfterScans int `toml:"force_delete_after_scans"`
}

// WatchConfig configures the filesystem watcher.
type WatchConfig struct {
	Enabled    bool `toml:"enabled"`
	DebounceMS int  `toml:"debounce_ms"`
}

// DeferredConfig represents configuration for the deferred album queue.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DeferredConfig struct {
	Type     string `toml:"type"`                // "memory" or "filesystem"
	QueueDir string `toml:"queue_dir,omitempty"` // only used for type=filesystem
}

// SnapshotConfig configures catalog snapshots.
type SnapshotConfig struct {
	Enabled    bool             `toml:"enabled"`
	Vault      VaultConfig      `toml:"vault"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// EncryptionConfig holds paths to the age key pair used for snapshots.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default) or "fake"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`
	// Recipients are extra age public keys every snapshot is encrypted to.
	Recipients []string `toml:"recipients,omitempty"`
}

// VaultConfig represents configuration for a snapshot vault backend.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type VaultConfig struct {
	Type string `toml:"type"` // "memory", "s3", or "filesystem"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket string `toml:"s3_bucket,omitempty"`
	S3Prefix string `toml:"s3_prefix,omitempty"`
	S3Region string `toml:"s3_region,omitempty"`
	// S3Endpoint selects an S3-compatible service (path-style addressing).
	S3Endpoint        string `toml:"s3_endpoint,omitempty"`
	S3AccessKeyID     string `toml:"s3_access_key_id,omitempty"`
	S3SecretAccessKey string `toml:"s3_secret_access_key,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSVaultRoot string `toml:"fs_vault_root,omitempty"`
}

// NewConfig creates a Config with default settings rooted at baseDir.
func NewConfig(hostID, baseDir string) *Config {
	return &Config{
		HostID:  hostID,
		BaseDir: baseDir,
		LogDir:  filepath.Join(baseDir, "log"),
		Database: DatabaseConfig{
			Type:    "sqlite",
			DataDir: filepath.Join(baseDir, "db"),
		},
		Scan: ScanConfig{
			FastScan:              true,
			AlbumDateFrom:         "folder",
			RemoveAfterDays:       7,
			MinDaysBetweenDeletes: 7,
			ForceDeleteAfterDays:  30,
			ForceDeleteAfterScans: 10,
		},
		Watch: WatchConfig{Enabled: true, DebounceMS: 500},
		Deferred: DeferredConfig{
			Type:     "filesystem",
			QueueDir: filepath.Join(baseDir, "deferred"),
		},
		Snapshot: SnapshotConfig{
			Vault: VaultConfig{
				Type:        "filesystem",
				Name:        "local",
				FSVaultRoot: filepath.Join(baseDir, "vault"),
			},
			Encryption: EncryptionConfig{
				Type:           "age",
				PublicKeyPath:  filepath.Join(baseDir, "keys", "colsync.pub"),
				PrivateKeyPath: filepath.Join(baseDir, "keys", "colsync.key"),
			},
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init writes a new config file at path. An existing file is left alone.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
