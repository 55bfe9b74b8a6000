package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pkgconfig "github.com/starford/plantbutler/pkg/config"
)

func TestAuthConfig_DisabledMode(t *testing.T) {
	cfg := AuthConfig{Mode: "disabled", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled mode should pass: %v", err)
	}
	if cfg.AuthEnabled() {
		t.Error("disabled mode should not be enabled")
	}
}

func TestAuthConfig_EmptyModeDefaultsDisabled(t *testing.T) {
	cfg := AuthConfig{Mode: "", Token: ""}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("empty mode should default to disabled: %v", err)
	}
	if cfg.Mode != AuthModeDisabled {
		t.Errorf("mode = %q, want %q", cfg.Mode, AuthModeDisabled)
	}
}

func TestAuthConfig_TokenModeValid(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: "mysecret"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("token mode with token should pass: %v", err)
	}
	if !cfg.AuthEnabled() {
		t.Error("token mode should be enabled")
	}
}

func TestAuthConfig_TokenModeEmptyToken(t *testing.T) {
	cfg := AuthConfig{Mode: "token", Token: ""}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("token mode with empty token should fail")
	}
	if !strings.Contains(err.Error(), "token is empty") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestAuthConfig_InvalidMode(t *testing.T) {
	cfg := AuthConfig{Mode: "magic", Token: "x"}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("invalid mode should fail validation")
	}
}

func TestFullConfig_AuthValidationCalled(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Auth.Mode = "token"
	cfg.Auth.Token = ""
	err := cfg.Validate()
	if err == nil {
		t.Fatal("full config validate should catch auth error")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	cfg := NewDefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
	if cfg.Storage.PhotosDir != filepath.Join("data", "photos") {
		t.Errorf("photos dir = %q", cfg.Storage.PhotosDir)
	}
	if cfg.SQLite.Path != filepath.Join("data", "plantbutler.db") {
		t.Errorf("sqlite path = %q", cfg.SQLite.Path)
	}
	if !cfg.Alarms.Exact {
		t.Error("exact alarms should default to true")
	}
	if cfg.Assistant.Mode != AssistantOffline {
		t.Errorf("assistant mode = %q", cfg.Assistant.Mode)
	}
}

func TestAssistantRemoteNeedsBaseURL(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Assistant.Mode = AssistantRemote
	if err := cfg.Validate(); err == nil {
		t.Fatal("remote assistant without base_url should fail")
	}
	cfg.Assistant.BaseURL = "http://10.0.2.2:8000/"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("remote assistant with base_url: %v", err)
	}
}

func TestWeatherHomeMustBePaired(t *testing.T) {
	lat := 37.5
	cfg := NewDefaultConfig()
	cfg.Weather.Lat = &lat
	if err := cfg.Validate(); err == nil {
		t.Fatal("lat without lon should fail")
	}
	lon := 127.0
	cfg.Weather.Lon = &lon
	if err := cfg.Validate(); err != nil {
		t.Fatalf("paired home: %v", err)
	}
	if !cfg.Weather.HasHome() {
		t.Error("HasHome = false")
	}
	bad := 200.0
	cfg.Weather.Lon = &bad
	if err := cfg.Validate(); err == nil {
		t.Error("lon 200 should fail")
	}
}

func TestLogFormat(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.App.Log.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Error("unknown log format should fail")
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
app:
  log_level: debug
  http:
    port: 9090
storage:
  data_dir: ` + dir + `
  inbox_dir: ` + filepath.Join(dir, "drop") + `
assistant:
  mode: remote
  base_url: http://localhost:8000/
  read_timeout: 5s
weather:
  api_key: ${PB_TEST_WEATHER_KEY}
  lat: 37.5
  lon: 127
alarms:
  exact: false
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PB_TEST_WEATHER_KEY", "k123")

	cfg := NewDefaultConfig()
	if err := pkgconfig.Load(path, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.App.HTTP.Port != 9090 || cfg.App.LogLevel.String() != "DEBUG" {
		t.Errorf("app = %+v", cfg.App)
	}
	if cfg.Storage.InboxDir != filepath.Join(dir, "drop") || cfg.Storage.PrefsDir != filepath.Join(dir, "prefs") {
		t.Errorf("storage = %+v", cfg.Storage)
	}
	if cfg.Assistant.ReadTimeout != 5*time.Second || cfg.Assistant.ConnectTimeout != 20*time.Second {
		t.Errorf("timeouts = %v / %v", cfg.Assistant.ReadTimeout, cfg.Assistant.ConnectTimeout)
	}
	if cfg.Weather.APIKey != "k123" || !cfg.Weather.HasHome() {
		t.Errorf("weather = %+v", cfg.Weather)
	}
	if cfg.Alarms.Exact {
		t.Error("alarms.exact should be false")
	}
}
