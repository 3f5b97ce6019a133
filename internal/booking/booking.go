// Package booking implements the appointment lifecycle, its queries and the
// daily reminder sweep.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/model"
)

type Repository interface {
	CreateAppointment(ctx context.Context, a *model.Appointment) error
	GetAppointment(ctx context.Context, id string) (*model.Appointment, error)
	SetAppointmentStatus(ctx context.Context, id string, st model.Status) (*model.Appointment, error)
	ListAppointments(ctx context.Context) ([]model.Appointment, error)
	ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error)
	ListAppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	DueReminders(ctx context.Context, from, to time.Time) ([]model.Reminder, error)
	CountAppointmentsByStatus(ctx context.Context) (model.StatusCounts, error)
}

type Mailer interface {
	SendAppointmentReminder(ctx context.Context, r model.Reminder) error
}

type Service struct {
	repo Repository
	mail Mailer
	log  *slog.Logger
	now  func() time.Time
	loc  *time.Location
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLocation sets the zone used for "today" and for bare dates.
func WithLocation(loc *time.Location) Option {
	return func(s *Service) { s.loc = loc }
}

func New(repo Repository, mail Mailer, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		repo: repo,
		mail: mail,
		log:  logger.With("component", "booking"),
		now:  time.Now,
		loc:  time.Local,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// CreateInput carries the raw request fields. DateTime is RFC 3339 or a
// zoneless "2006-01-02T15:04[:05]" taken in the service location.
type CreateInput struct {
	ServiceID          string
	DateTime           string
	RequestDescription string
}

// Create books a new Pending appointment for owner. The service reference,
// the date and the slot are not checked.
func (s *Service) Create(ctx context.Context, owner auth.Identity, in CreateInput) (*model.Appointment, error) {
	fields := map[string]string{}
	at, err := s.parseDateTime(in.DateTime)
	if err != nil {
		fields["date_time"] = err.Error()
	}
	if strings.TrimSpace(in.RequestDescription) == "" {
		fields["request_description"] = "required"
	}
	if err := apperr.Validation(fields); err != nil {
		return nil, err
	}

	a := &model.Appointment{
		ID:                 uuid.New().String(),
		ServiceID:          in.ServiceID,
		UserID:             owner.UserID,
		DateTime:           at,
		RequestDescription: in.RequestDescription,
		Status:             model.StatusPending,
	}
	if err := s.repo.CreateAppointment(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Apply runs action on appointment id on behalf of caller.
func (s *Service) Apply(ctx context.Context, caller auth.Identity, id string, action Action) (*model.Appointment, error) {
	t, ok := transitions[action]
	if !ok {
		return nil, apperr.Invalid("action", "unknown")
	}
	if err := t.permit(caller); err != nil {
		return nil, err
	}
	cur, err := s.repo.GetAppointment(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := t.check(caller, cur); err != nil {
		return nil, err
	}
	a, err := s.repo.SetAppointmentStatus(ctx, id, t.to)
	if err != nil {
		return nil, err
	}
	s.log.InfoContext(ctx, "appointment status changed",
		"appointment_id", id, "action", action, "from", cur.Status, "to", a.Status, "by", caller.UserID)
	return a, nil
}

func (s *Service) Cancel(ctx context.Context, caller auth.Identity, id string) (*model.Appointment, error) {
	return s.Apply(ctx, caller, id, ActionCancel)
}

func (s *Service) Approve(ctx context.Context, caller auth.Identity, id string) (*model.Appointment, error) {
	return s.Apply(ctx, caller, id, ActionApprove)
}

func (s *Service) Reject(ctx context.Context, caller auth.Identity, id string) (*model.Appointment, error) {
	return s.Apply(ctx, caller, id, ActionReject)
}

func (s *Service) Reset(ctx context.Context, caller auth.Identity, id string) (*model.Appointment, error) {
	return s.Apply(ctx, caller, id, ActionReset)
}

// ----- queries -----

func (s *Service) ListAll(ctx context.Context, caller auth.Identity) ([]model.Appointment, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	return s.repo.ListAppointments(ctx)
}

// ListForDate returns appointments in [d, d+24h) for the parsed date d.
func (s *Service) ListForDate(ctx context.Context, caller auth.Identity, date string) ([]model.Appointment, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	from, err := s.ParseDate(date)
	if err != nil {
		return nil, err
	}
	return s.repo.ListAppointmentsBetween(ctx, from, from.Add(24*time.Hour))
}

func (s *Service) ListForOwner(ctx context.Context, caller auth.Identity) ([]model.Appointment, error) {
	return s.repo.ListAppointmentsByUser(ctx, caller.UserID)
}

func (s *Service) Stats(ctx context.Context, caller auth.Identity) (model.StatusCounts, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return model.StatusCounts{}, err
	}
	return s.repo.CountAppointmentsByStatus(ctx)
}

// ParseDate accepts RFC 3339 timestamps or bare YYYY-MM-DD dates, the latter
// taken as midnight in the service location.
func (s *Service) ParseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, apperr.Invalid("date", "required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(time.DateOnly, raw, s.loc); err == nil {
		return t, nil
	}
	return time.Time{}, apperr.Invalid("date", "expected RFC 3339 or YYYY-MM-DD")
}

// localDateTimes are the zoneless layouts sent by datetime-local inputs.
var localDateTimes = []string{"2006-01-02T15:04", "2006-01-02T15:04:05"}

func (s *Service) parseDateTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	for _, layout := range localDateTimes {
		if t, err := time.ParseInLocation(layout, raw, s.loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("expected RFC 3339 or YYYY-MM-DDTHH:MM")
}

// ----- reminders -----

type SweepResult struct {
	Sent   int   `json:"sent"`
	Failed int   `json:"failed"`
	Err    error `json:"-"`
}

// Today returns [start, end] of the current day in the service location, end
// being the last representable instant of the day.
func (s *Service) Today() (time.Time, time.Time) {
	now := s.now().In(s.loc)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	end := start.AddDate(0, 0, 1).Add(-time.Nanosecond)
	return start, end
}

// SendDueReminders mails every owner of a Confirmed appointment dated today.
// A failed send does not stop the sweep. Nothing records that a reminder went
// out, so a second call on the same day sends again.
func (s *Service) SendDueReminders(ctx context.Context) (SweepResult, error) {
	start, end := s.Today()
	due, err := s.repo.DueReminders(ctx, start, end)
	if err != nil {
		return SweepResult{}, fmt.Errorf("load due reminders: %w", err)
	}

	var res SweepResult
	var errs []error
	for _, r := range due {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.mail.SendAppointmentReminder(ctx, r); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("reminder %s: %w", r.AppointmentID, err))
			s.log.WarnContext(ctx, "reminder send failed", "appointment_id", r.AppointmentID, "error", err)
			continue
		}
		res.Sent++
	}
	res.Err = errors.Join(errs...)
	s.log.InfoContext(ctx, "reminder sweep done",
		"due", len(due), "sent", res.Sent, "failed", res.Failed, "day", start.Format(time.DateOnly))
	return res, nil
}
