package store

import (
	"context"
	"fmt"
	"time"

	"booking-api/internal/model"
)

const appointmentSelect = `
	SELECT a.id, a.service_id, a.user_id, a.date_time, a.request_description,
	       a.status, a.created_at, a.updated_at, s.title, u.username
	FROM appointments a
	LEFT JOIN services s ON s.id = a.service_id
	LEFT JOIN users u ON u.id = a.user_id`

func scanAppointment(row rowScanner) (*model.Appointment, error) {
	a := &model.Appointment{}
	err := row.Scan(
		&a.ID, &a.ServiceID, &a.UserID, &a.DateTime, &a.RequestDescription,
		(*string)(&a.Status), &a.CreatedAt, &a.UpdatedAt, &a.ServiceTitle, &a.Username,
	)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Store) queryAppointments(ctx context.Context, q string, args ...any) ([]model.Appointment, error) {
	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	out := []model.Appointment{}
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) CreateAppointment(ctx context.Context, a *model.Appointment) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO appointments (id, service_id, user_id, date_time, request_description, status)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at, updated_at`,
		a.ID, a.ServiceID, a.UserID, a.DateTime, a.RequestDescription, string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return translate(err, "create appointment")
}

func (s *Store) GetAppointment(ctx context.Context, id string) (*model.Appointment, error) {
	a, err := scanAppointment(s.pool.QueryRow(ctx, appointmentSelect+` WHERE a.id = $1`, id))
	if err != nil {
		return nil, translate(err, "appointment "+id)
	}
	return a, nil
}

// SetAppointmentStatus writes status and returns the updated row. Unknown
// ids fail with apperr.ErrNotFound and write nothing.
func (s *Store) SetAppointmentStatus(ctx context.Context, id string, st model.Status) (*model.Appointment, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE appointments SET status=$1, updated_at=NOW() WHERE id=$2`, string(st), id)
	if err != nil {
		return nil, fmt.Errorf("set appointment status: %w", err)
	}
	if err := affected(tag, "appointment "+id); err != nil {
		return nil, err
	}
	return s.GetAppointment(ctx, id)
}

func (s *Store) ListAppointments(ctx context.Context) ([]model.Appointment, error) {
	return s.queryAppointments(ctx, appointmentSelect+` ORDER BY a.date_time`)
}

// ListAppointmentsBetween returns appointments in [from, to).
func (s *Store) ListAppointmentsBetween(ctx context.Context, from, to time.Time) ([]model.Appointment, error) {
	return s.queryAppointments(ctx,
		appointmentSelect+` WHERE a.date_time >= $1 AND a.date_time < $2 ORDER BY a.date_time`,
		from, to)
}

func (s *Store) ListAppointmentsByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.queryAppointments(ctx,
		appointmentSelect+` WHERE a.user_id = $1 ORDER BY a.date_time`, userID)
}

// DueReminders returns confirmed appointments in [from, to], both ends inclusive.
func (s *Store) DueReminders(ctx context.Context, from, to time.Time) ([]model.Reminder, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT a.id, s.title, a.date_time, u.email
		 FROM appointments a
		 JOIN users u ON u.id = a.user_id
		 LEFT JOIN services s ON s.id = a.service_id
		 WHERE a.status = $1 AND a.date_time >= $2 AND a.date_time <= $3
		 ORDER BY a.date_time`,
		string(model.StatusConfirmed), from, to)
	if err != nil {
		return nil, fmt.Errorf("due reminders: %w", err)
	}
	defer rows.Close()

	var out []model.Reminder
	for rows.Next() {
		var r model.Reminder
		if err := rows.Scan(&r.AppointmentID, &r.ServiceTitle, &r.DateTime, &r.Email); err != nil {
			return nil, fmt.Errorf("scan reminder: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) CountAppointmentsByStatus(ctx context.Context) (model.StatusCounts, error) {
	var c model.StatusCounts
	rows, err := s.pool.Query(ctx, `SELECT status, COUNT(*) FROM appointments GROUP BY status`)
	if err != nil {
		return c, fmt.Errorf("count appointments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var st string
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return c, fmt.Errorf("scan count: %w", err)
		}
		c.Add(model.Status(st), n)
	}
	return c, rows.Err()
}
