// Package sentry reports unexpected errors to Sentry.
package sentry

import (
	"time"

	"github.com/getsentry/sentry-go"
)

const (
	LevelWarning Level = sentry.LevelWarning
	LevelError   Level = sentry.LevelError
)

type Level = sentry.Level

// Reporter is what the rest of the service depends on.
type Reporter interface {
	Capture(err error, level Level, tags map[string]string)
	Flush(timeout time.Duration) bool
}

type Config struct {
	DSN         string
	Environment string
}

type Service struct {
	hub *sentry.Hub
}

// New initializes a client. An empty DSN yields a client that drops events.
func New(cfg Config) (*Service, error) {
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Debug:            cfg.Environment == "development" && cfg.DSN != "",
		SampleRate:       1.0,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, err
	}
	return &Service{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

// Capture sends err with the given level and tags on a throwaway scope.
func (s *Service) Capture(err error, level Level, tags map[string]string) {
	if err == nil {
		return
	}
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTags(tags)
		s.hub.CaptureException(err)
	})
}

func (s *Service) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

// Close flushes pending events.
func (s *Service) Close() {
	s.Flush(2 * time.Second)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Capture(error, Level, map[string]string) {}
func (Nop) Flush(time.Duration) bool                { return true }
