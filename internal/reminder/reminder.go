// Package reminder drives the daily reminder sweep: a single runner shared by
// the cron schedule, the HTTP trigger and the gRPC trigger.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"booking-api/internal/apperr"
	"booking-api/internal/booking"
	"booking-api/internal/sentry"
)

var ErrSweepInProgress = fmt.Errorf("reminder sweep already running: %w", apperr.ErrConflict)

type Sweeper interface {
	SendDueReminders(ctx context.Context) (booking.SweepResult, error)
}

// Locker admits one sweep at a time.
type Locker interface {
	TryLock(ctx context.Context) (release func(), ok bool, err error)
}

// LocalLocker guards a single process.
type LocalLocker struct{ mu sync.Mutex }

func (l *LocalLocker) TryLock(context.Context) (func(), bool, error) {
	if !l.mu.TryLock() {
		return nil, false, nil
	}
	return l.mu.Unlock, true, nil
}

type Runner struct {
	sweeper Sweeper
	lock    Locker
	report  sentry.Reporter
	log     *slog.Logger
}

func NewRunner(sw Sweeper, lock Locker, report sentry.Reporter, logger *slog.Logger) *Runner {
	if lock == nil {
		lock = &LocalLocker{}
	}
	if report == nil {
		report = sentry.Nop{}
	}
	return &Runner{sweeper: sw, lock: lock, report: report, log: logger.With("component", "reminder")}
}

// Run performs one sweep tagged with the trigger that asked for it.
func (r *Runner) Run(ctx context.Context, trigger string) (booking.SweepResult, error) {
	release, ok, err := r.lock.TryLock(ctx)
	if err != nil {
		r.report.Capture(err, sentry.LevelError, map[string]string{"trigger": trigger, "stage": "lock"})
		return booking.SweepResult{}, err
	}
	if !ok {
		r.log.WarnContext(ctx, "sweep skipped, another one is running", "trigger", trigger)
		return booking.SweepResult{}, ErrSweepInProgress
	}
	defer release()

	res, err := r.sweeper.SendDueReminders(ctx)
	if err != nil {
		r.report.Capture(err, sentry.LevelError, map[string]string{"trigger": trigger, "stage": "load"})
		return res, err
	}
	if res.Err != nil {
		r.report.Capture(res.Err, sentry.LevelWarning, map[string]string{"trigger": trigger, "stage": "send"})
	}
	r.log.InfoContext(ctx, "sweep finished", "trigger", trigger, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}
