// Package config loads the cjm YAML configuration file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wjkennedy/cjm/internal/layout"
	"github.com/wjkennedy/cjm/internal/store"
)

// Config is the top-level configuration document.
type Config struct {
	Store  StoreConfig  `yaml:"store"`
	Layout LayoutConfig `yaml:"layout"`
	Server ServerConfig `yaml:"server"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	KeyMode string `yaml:"key_mode"`
}

type LayoutConfig struct {
	Iterations int `yaml:"iterations"`

	// Seed fixes the layout when set; nil means a fresh random layout per call.
	Seed *int64 `yaml:"seed"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir"`
	DefaultVersion string `yaml:"default_version"`

	// WatchDir, when set, is a drop directory whose files are ingested
	// without going through HTTP. It must differ from UploadDir, which the
	// upload handler already ingests.
	WatchDir string `yaml:"watch_dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Store: StoreConfig{
			Backend: string(store.BackendSQLite),
			Path:    "cjm.db",
			KeyMode: string(store.KeyLegacy),
		},
		Layout: LayoutConfig{
			Iterations: layout.DefaultIterations,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			UploadDir:      "data/uploaded_json_files",
			DefaultVersion: "1.0",
		},
	}
}

// Load reads path on top of Default. Keys missing from the file keep their
// default; unknown keys are an error. An empty path returns Default.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes a YAML document on top of Default and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if _, err := store.ParseBackend(c.Store.Backend); err != nil {
		return fmt.Errorf("store.backend: %w", err)
	}
	if _, err := store.ParseKeyMode(c.Store.KeyMode); err != nil {
		return fmt.Errorf("store.key_mode: %w", err)
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return errors.New("store.path: must not be empty")
	}
	if c.Layout.Iterations <= 0 {
		return fmt.Errorf("layout.iterations: must be positive, got %d", c.Layout.Iterations)
	}
	if strings.TrimSpace(c.Server.DefaultVersion) == "" {
		return errors.New("server.default_version: must not be empty")
	}
	if c.Server.WatchDir != "" && sameDir(c.Server.WatchDir, c.Server.UploadDir) {
		return fmt.Errorf("server.watch_dir: must differ from server.upload_dir %q", c.Server.UploadDir)
	}
	return nil
}

func sameDir(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

// StoreOptions converts the store section for store.Open.
func (c Config) StoreOptions(logger *slog.Logger) store.Options {
	return store.Options{
		Backend: store.Backend(c.Store.Backend),
		Path:    c.Store.Path,
		KeyMode: store.KeyMode(c.Store.KeyMode),
		Logger:  logger,
	}
}

// LayoutOptions converts the layout section for layout.Spring.
func (c Config) LayoutOptions() []layout.Option {
	opts := []layout.Option{layout.WithIterations(c.Layout.Iterations)}
	if c.Layout.Seed != nil {
		opts = append(opts, layout.WithSeed(*c.Layout.Seed))
	}
	return opts
}
