package internal

import (
	"log/slog"
	"path/filepath"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/mnemo/internal/noteservice"
)

// IndexFile is the index database name used when sqlite.path is empty.
const IndexFile = "index.db"

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Store  StoreConfig       `yaml:"store"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Notes  NotesConfig       `yaml:"notes"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	return c.Notes.Validate()
}

// IndexPath returns the index database location, defaulting to a file inside
// the knowledge directory.
func (c *Config) IndexPath() string {
	if c.SQLite.Path != "" {
		return c.SQLite.Path
	}
	return filepath.Join(c.Store.Path, IndexFile)
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// StoreConfig holds the path to the knowledge directory.
type StoreConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the store configuration.
func (c *StoreConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration. An empty Path places
// the index inside the knowledge directory.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Length(0, 4096)),
	)
}

// NotesConfig holds note service behaviour.
type NotesConfig struct {
	OnCollision string `yaml:"on_collision"`
	SearchLimit int    `yaml:"search_limit"`
	ListLimit   int    `yaml:"list_limit"`
}

// Validate validates the notes configuration.
func (c *NotesConfig) Validate() error {
	if c.OnCollision == "" {
		c.OnCollision = string(noteservice.CollisionReject)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.OnCollision, validation.In(
			string(noteservice.CollisionReject),
			string(noteservice.CollisionSuffix),
		)),
		validation.Field(&c.SearchLimit, validation.Min(0), validation.Max(noteservice.MaxLimit)),
		validation.Field(&c.ListLimit, validation.Min(0), validation.Max(noteservice.MaxLimit)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Store: StoreConfig{
			Path: "./knowledge",
		},
		Notes: NotesConfig{
			OnCollision: string(noteservice.CollisionReject),
			SearchLimit: noteservice.DefaultSearchLimit,
			ListLimit:   noteservice.DefaultListLimit,
		},
	}
}
