package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler fires the runner on a cron spec in a fixed location.
type Scheduler struct {
	cron *cron.Cron
	log  *slog.Logger
}

func NewScheduler(r *Runner, spec string, loc *time.Location, timeout time.Duration, logger *slog.Logger) (*Scheduler, error) {
	logger = logger.With("component", "scheduler")
	c := cron.New(cron.WithLocation(loc), cron.WithChain(cron.Recover(cronLogger{logger})))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := r.Run(ctx, "cron"); err != nil {
			logger.Error("scheduled sweep failed", "error", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("cron spec %q: %w", spec, err)
	}
	return &Scheduler{cron: c, log: logger}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	for _, e := range s.cron.Entries() {
		s.log.Info("reminder sweep scheduled", "next", e.Next)
	}
}

// Stop waits for a running sweep or for ctx, whichever comes first.
func (s *Scheduler) Stop(ctx context.Context) {
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
}

type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, kv ...any) { c.l.Debug(msg, kv...) }
func (c cronLogger) Error(err error, msg string, kv ...any) {
	c.l.Error(msg, append(kv, "error", err)...)
}
