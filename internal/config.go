package internal

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notevault/internal/daily"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app" toml:"app"`
	Server ServerConfig      `yaml:"server" toml:"server"`
	Vault  VaultConfig       `yaml:"vault" toml:"vault"`
	Auth   AuthConfig        `yaml:"auth" toml:"auth"`
	Events EventsConfig      `yaml:"events" toml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.Vault.Validate(); err != nil {
		return fmt.Errorf("vault: %w", err)
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	// LogFile, when set, receives a copy of every log line.
	LogFile string `yaml:"log_file" toml:"log_file"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host string `yaml:"host" toml:"host"`
	Port int    `yaml:"port" toml:"port"`
	// MCP mounts the streamable HTTP tool transport at /mcp.
	MCP bool `yaml:"mcp" toml:"mcp"`
}

// Address returns HTTP server address.
func (c *ServerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Validate validates the HTTP configuration.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// VaultConfig holds the vault root and the daily note policy.
type VaultConfig struct {
	Location  string       `yaml:"location" toml:"location"`
	DailyNote daily.Config `yaml:"daily_note" toml:"daily_note"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if c.DailyNote.DateFormat == "" {
		c.DailyNote.DateFormat = daily.DefaultDateFormat
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Location, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local use.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
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

// EventsConfig controls the change feed.
type EventsConfig struct {
	Enabled bool `yaml:"enabled" toml:"enabled"`
	// Throttle is the minimum gap between two vault.changed events.
	Throttle time.Duration `yaml:"throttle" toml:"throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Throttle, validation.Min(time.Duration(0))),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
			MCP:  true,
		},
		Vault: VaultConfig{
			Location: "./vault",
			DailyNote: daily.Config{
				DateFormat: daily.DefaultDateFormat,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Events: EventsConfig{
			Enabled:  true,
			Throttle: 2 * time.Second,
		},
	}
}
