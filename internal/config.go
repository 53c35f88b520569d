package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Notion     NotionConfig      `yaml:"notion"`
	LLM        LLMConfig         `yaml:"llm"`
	Transcribe TranscribeConfig  `yaml:"transcribe"`
	Diary      DiaryConfig       `yaml:"diary"`
	Journal    JournalConfig     `yaml:"journal"`
	Inbox      InboxConfig       `yaml:"inbox"`
	Auth       AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Notion.Validate(); err != nil {
		return err
	}
	if err := c.LLM.Validate(); err != nil {
		return err
	}
	if err := c.Diary.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
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
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// NotionConfig holds document store settings. Token is deliberately not
// required here: its absence surfaces as a credential error at first
// store use, not at startup.
type NotionConfig struct {
	Token          string `yaml:"token"`
	DatabaseID     string `yaml:"database_id"`
	BaseURL        string `yaml:"base_url"`
	Version        string `yaml:"version"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the document store configuration.
func (c *NotionConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.DatabaseID, validation.Required),
	)
}

// Timeout returns the per-call timeout.
func (c *NotionConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LLMConfig holds the text-understanding collaborator settings.
type LLMConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Validate validates the collaborator configuration.
func (c *LLMConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Model, validation.Required),
	)
}

// Timeout returns the per-call timeout.
func (c *LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// TranscribeConfig holds speech-to-text settings. When Model is empty
// audio uploads are disabled and only text entries are accepted.
type TranscribeConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	Model          string `yaml:"model"`
	Language       string `yaml:"language"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Enabled reports whether audio transcription is configured.
func (c *TranscribeConfig) Enabled() bool {
	return c.Model != ""
}

// Timeout returns the per-call timeout.
func (c *TranscribeConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DiaryConfig holds diary pipeline settings. Timezone fixes what
// "today" means regardless of the host clock's zone.
type DiaryConfig struct {
	Timezone string `yaml:"timezone"`
}

// Validate validates the diary configuration, including that the
// timezone actually loads.
func (c *DiaryConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.Required),
	); err != nil {
		return err
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("diary: invalid timezone %q: %w", c.Timezone, err)
	}
	return nil
}

// Location returns the configured timezone.
func (c *DiaryConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// JournalConfig holds the processing journal database path.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// InboxConfig holds the drop-directory ingestion settings.
type InboxConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// AuthConfig holds API authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
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

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Notion: NotionConfig{
			DatabaseID: "",
		},
		LLM: LLMConfig{
			Model: "gpt-4o-mini",
		},
		Transcribe: TranscribeConfig{
			Language: "ja",
		},
		Diary: DiaryConfig{
			Timezone: "Asia/Tokyo",
		},
		Journal: JournalConfig{
			Path: "./dagaz.db",
		},
		Inbox: InboxConfig{
			Enabled: false,
			Path:    "./inbox",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
