package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/plantbutler/internal/weather"
	pkgconfig "github.com/starford/plantbutler/pkg/config"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Assistant modes.
const (
	AssistantRemote  = "remote"
	AssistantOffline = "offline"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Storage   StorageConfig     `yaml:"storage"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Assistant AssistantConfig   `yaml:"assistant"`
	Weather   WeatherConfig     `yaml:"weather"`
	Notify    NotifyConfig      `yaml:"notify"`
	Alarms    AlarmsConfig      `yaml:"alarms"`
}

// Validate validates the configuration. Relative directories under storage
// are resolved against data_dir.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if c.SQLite.Path == "" {
		c.SQLite.Path = filepath.Join(c.Storage.DataDir, "plantbutler.db")
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Assistant.Validate(); err != nil {
		return err
	}
	if err := c.Weather.Validate(); err != nil {
		return err
	}
	return c.Notify.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	Log      LogConfig  `yaml:"log"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// LogConfig selects the log handler and an optional rotated file.
type LogConfig struct {
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// Validate validates the log configuration.
func (c *LogConfig) Validate() error {
	if c.Format == "" {
		c.Format = LogFormatJSON
	}
	if c.File != "" {
		c.File = pkgconfig.ExpandPath(c.File)
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Format, validation.In(LogFormatJSON, LogFormatText)),
	)
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

// StorageConfig holds the on-disk locations. Empty sub-directories default
// to folders inside DataDir.
type StorageConfig struct {
	DataDir   string `yaml:"data_dir"`
	PhotosDir string `yaml:"photos_dir"`
	InboxDir  string `yaml:"inbox_dir"`
	PrefsDir  string `yaml:"prefs_dir"`
}

// Validate validates the storage configuration and fills derived paths.
func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.DataDir, validation.Required),
	); err != nil {
		return err
	}
	c.DataDir = pkgconfig.ExpandPath(c.DataDir)
	c.PhotosDir = c.under(c.PhotosDir, "photos")
	c.InboxDir = c.under(c.InboxDir, "inbox")
	c.PrefsDir = c.under(c.PrefsDir, "prefs")
	return nil
}

func (c *StorageConfig) under(path, fallback string) string {
	if path == "" {
		return filepath.Join(c.DataDir, fallback)
	}
	return pkgconfig.ExpandPath(path)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	c.Path = pkgconfig.ExpandPath(c.Path)
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

// AssistantConfig configures the chat backend and the relay pool.
type AssistantConfig struct {
	Mode           string        `yaml:"mode"`
	BaseURL        string        `yaml:"base_url"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	Workers        int           `yaml:"workers"`
	QueueSize      int           `yaml:"queue_size"`
}

// Validate validates the assistant configuration.
func (c *AssistantConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AssistantOffline
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.In(AssistantRemote, AssistantOffline)),
		validation.Field(&c.BaseURL,
			validation.When(c.Mode == AssistantRemote, validation.Required, is.URL)),
		validation.Field(&c.ConnectTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.ReadTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.WriteTimeout, validation.Min(time.Duration(0))),
		validation.Field(&c.Workers, validation.Min(1), validation.Max(32)),
		validation.Field(&c.QueueSize, validation.Min(1)),
	)
}

// WeatherConfig configures the weather provider and the home location.
type WeatherConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	// KeyringUser names the OS keyring entry holding the API key when
	// APIKey is empty.
	KeyringUser string        `yaml:"keyring_user"`
	Lang        string        `yaml:"lang"`
	Lat         *float64      `yaml:"lat"`
	Lon         *float64      `yaml:"lon"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the weather configuration.
func (c *WeatherConfig) Validate() error {
	if (c.Lat == nil) != (c.Lon == nil) {
		return fmt.Errorf("weather: lat and lon must be set together")
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.Lat, validation.Min(-90.0), validation.Max(90.0)),
		validation.Field(&c.Lon, validation.Min(-180.0), validation.Max(180.0)),
	)
}

// HasHome reports whether a default location is configured.
func (c *WeatherConfig) HasHome() bool {
	return c.Lat != nil && c.Lon != nil
}

// NotifyConfig configures reminder delivery.
type NotifyConfig struct {
	WebhookURL  string `yaml:"webhook_url"`
	ChannelID   string `yaml:"channel_id"`
	ChannelName string `yaml:"channel_name"`
}

// Validate validates the notification configuration.
func (c *NotifyConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.WebhookURL, is.URL),
	)
}

// AlarmsConfig controls the alarm backend. Exact false makes every schedule
// fail with the exact-alarm permission error.
type AlarmsConfig struct {
	Exact bool `yaml:"exact"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			Log:      LogConfig{Format: LogFormatJSON},
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			DataDir: "./data",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Assistant: AssistantConfig{
			Mode:           AssistantOffline,
			ConnectTimeout: 20 * time.Second,
			ReadTimeout:    60 * time.Second,
			WriteTimeout:   60 * time.Second,
			Workers:        2,
			QueueSize:      64,
		},
		Weather: WeatherConfig{
			BaseURL: weather.DefaultBaseURL,
			Lang:    "en",
			Timeout: 10 * time.Second,
		},
		Alarms: AlarmsConfig{
			Exact: true,
		},
	}
}
