// Package config loads and saves the three persisted TOML files named in
// spec.md §6: config.toml, bookmarks.toml, theme.toml, using
// github.com/BurntSushi/toml. ssh_config overlays are not parsed by this
// package.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/duotui/duotui/internal/obscure"
)

// Config is config.toml: UI preferences, ticks, notifications, fmt template.
type Config struct {
	TickMillis       int    `toml:"ticks_ms"`
	Notifications    bool   `toml:"notifications"`
	FileFmtTemplate  string `toml:"file_fmt_template"`
	ShowHidden       bool   `toml:"show_hidden"`
	GroupDirs        string `toml:"group_dirs"` // "first" | "last" | "none"
	DefaultOnConflict string `toml:"default_on_conflict"`
	LogLevel         string `toml:"log_level"`
}

// DefaultConfig matches the defaults implied by spec.md's operation
// tables (100ms tick is the TransferEngine default; 16ms is the
// EventLoop's own render tick from §4.7, kept separate here).
func DefaultConfig() Config {
	return Config{
		TickMillis:        100,
		Notifications:     false,
		FileFmtTemplate:   "{NAME:<40} {SIZE:>10} {MTIME}",
		ShowHidden:        false,
		GroupDirs:         "first",
		DefaultOnConflict: "prompt",
		LogLevel:          "info",
	}
}

// Bookmark is one saved endpoint, persisted in bookmarks.toml.
type Bookmark struct {
	Name              string `toml:"name"`
	Kind              string `toml:"kind"`
	Host              string `toml:"host"`
	Port              int    `toml:"port"`
	User              string `toml:"user"`
	ObscuredPassword  string `toml:"password"` // obscured via internal/obscure, not encrypted
	Path              string `toml:"path"`
}

// Bookmarks is bookmarks.toml's top-level shape.
type Bookmarks struct {
	Bookmarks []Bookmark `toml:"bookmark"`
}

// SetPassword obscures plaintext and stores it on the bookmark.
func (b *Bookmark) SetPassword(plaintext string) error {
	enc, err := obscure.Obscure(plaintext)
	if err != nil {
		return err
	}
	b.ObscuredPassword = enc
	return nil
}

// Password reveals the bookmark's obscured password.
func (b Bookmark) Password() (string, error) {
	if b.ObscuredPassword == "" {
		return "", nil
	}
	return obscure.Reveal(b.ObscuredPassword)
}

// Theme is theme.toml: the color palette. Rendering itself is out of
// scope (spec.md §1); this is only the persisted data the TUI layer
// would consume.
type Theme struct {
	Name    string            `toml:"name"`
	Colors  map[string]string `toml:"colors"`
}

// Dir is the user config directory; overridden by -c on the CLI.
type Dir string

// Load reads config.toml, bookmarks.toml and theme.toml from dir. Missing
// files are not an error: callers get zero-value (default) structs.
func Load(dir Dir) (Config, Bookmarks, Theme, error) {
	cfg := DefaultConfig()
	if err := decodeIfExists(filepath.Join(string(dir), "config.toml"), &cfg); err != nil {
		return Config{}, Bookmarks{}, Theme{}, err
	}
	var bm Bookmarks
	if err := decodeIfExists(filepath.Join(string(dir), "bookmarks.toml"), &bm); err != nil {
		return Config{}, Bookmarks{}, Theme{}, err
	}
	var th Theme
	if err := decodeIfExists(filepath.Join(string(dir), "theme.toml"), &th); err != nil {
		return Config{}, Bookmarks{}, Theme{}, err
	}
	return cfg, bm, th, nil
}

func decodeIfExists(path string, v any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	_, err := toml.DecodeFile(path, v)
	return err
}

// SaveBookmarks writes bookmarks.toml atomically (write-temp, rename),
// so a crash mid-write never corrupts the file.
func SaveBookmarks(dir Dir, bm Bookmarks) error {
	return atomicWriteTOML(filepath.Join(string(dir), "bookmarks.toml"), bm)
}

// SaveConfig writes config.toml atomically.
func SaveConfig(dir Dir, cfg Config) error {
	return atomicWriteTOML(filepath.Join(string(dir), "config.toml"), cfg)
}

func atomicWriteTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := toml.NewEncoder(tmp).Encode(v); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// SecretStore is the out-of-scope OS-keyring boundary (spec.md §1): the
// core only ever talks to this interface, never to a concrete keyring.
type SecretStore interface {
	Get(service, account string) (string, error)
	Set(service, account, secret string) error
}

// connectTimeout and opTimeout are the two timeouts named in §5.
func (c Config) ConnectTimeout() time.Duration { return 30 * time.Second }
func (c Config) OpTimeout() time.Duration      { return 30 * time.Second }
