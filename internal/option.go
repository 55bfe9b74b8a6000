package internal

import (
	"github.com/starford/plantbutler/internal/alarm"
	"github.com/starford/plantbutler/internal/assistant"
	"github.com/starford/plantbutler/internal/notify"
)

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	version   string
	assistant assistant.Client
	alarms    alarm.Manager
	sinks     []notify.Sink
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithVersion sets the version reported by the MCP server.
func WithVersion(v string) Option {
	return func(a *application) {
		a.version = v
	}
}

// WithAssistant replaces the assistant client chosen by config.
func WithAssistant(c assistant.Client) Option {
	return func(a *application) {
		a.assistant = c
	}
}

// WithAlarmBackend replaces the in-process alarm timers.
func WithAlarmBackend(m alarm.Manager) Option {
	return func(a *application) {
		a.alarms = m
	}
}

// WithNotifySink adds a notification sink next to the configured ones.
func WithNotifySink(s notify.Sink) Option {
	return func(a *application) {
		a.sinks = append(a.sinks, s)
	}
}
