package internal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"
	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Library LibraryConfig     `yaml:"library"`
	SQLite  SQLiteConfig      `yaml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth"`
	Decoder DecoderConfig     `yaml:"decoder"`
	Events  EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Library.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Decoder.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// LibraryConfig holds the archive library location and import limits.
// MaxArchiveBytes accepts human sizes such as "64 MiB" or "100MB"; empty or
// "0" disables the limit.
type LibraryConfig struct {
	Path            string `yaml:"path"`
	MaxArchiveBytes string `yaml:"max_archive_bytes"`
}

// Validate validates the library configuration.
func (c *LibraryConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.MaxArchiveBytes, validation.By(func(any) error {
			_, err := c.MaxBytes()
			return err
		})),
	)
}

// MaxBytes parses MaxArchiveBytes.
func (c *LibraryConfig) MaxBytes() (int64, error) {
	if c.MaxArchiveBytes == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.MaxArchiveBytes)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", c.MaxArchiveBytes, err)
	}
	if n > 1<<40 {
		return 0, fmt.Errorf("size %q exceeds 1 TiB", c.MaxArchiveBytes)
	}
	return int64(n), nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// DecoderConfig tunes the binary property list decoder.
type DecoderConfig struct {
	// RecursionMargin is the number of decode steps allowed beyond a
	// document's declared object count.
	RecursionMargin uint64 `yaml:"recursion_margin"`
}

// Validate validates the decoder configuration.
func (c *DecoderConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.RecursionMargin, validation.Max(uint64(1<<20))),
	)
}

// EventsConfig tunes the server-sent events stream.
type EventsConfig struct {
	// LibraryThrottle is the minimum interval between library.updated events.
	LibraryThrottle time.Duration `yaml:"library_throttle"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Library: LibraryConfig{
			Path:            "./library",
			MaxArchiveBytes: "64 MiB",
		},
		SQLite: SQLiteConfig{
			Path: "./unwebarchiver.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Decoder: DecoderConfig{
			RecursionMargin: 16,
		},
		Events: EventsConfig{
			LibraryThrottle: 2 * time.Second,
		},
	}
}
