// Package memstore is an in-memory implementation of the store methods, used
// for local runs (STORE_DRIVER=memory) and as the repository in tests.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"booking-api/internal/apperr"
	"booking-api/internal/model"
)

type Store struct {
	mu           sync.RWMutex
	now          func() time.Time
	users        map[string]*model.User
	services     map[string]*model.Service
	appointments map[string]*model.Appointment
	seq          int64
	order        map[string]int64
}

func New() *Store {
	return &Store{
		now:          time.Now,
		users:        map[string]*model.User{},
		services:     map[string]*model.Service{},
		appointments: map[string]*model.Appointment{},
		order:        map[string]int64{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) stamp(id string) {
	s.seq++
	s.order[id] = s.seq
}

// ----- users -----

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.users {
		if o.Email == u.Email {
			return fmt.Errorf("create user: users_email_key: %w", apperr.ErrConflict)
		}
		if o.Username == u.Username {
			return fmt.Errorf("create user: users_username_key: %w", apperr.ErrConflict)
		}
	}
	u.CreatedAt = s.now()
	cp := *u
	s.users[u.ID] = &cp
	s.stamp(u.ID)
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user by email: %w", apperr.ErrNotFound)
}

func (s *Store) ListUsersByRole(_ context.Context, role model.Role) ([]model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.User{}
	for _, u := range s.users {
		if u.Role == role {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	return out, nil
}

func (s *Store) updateUser(id string, fn func(u *model.User)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, apperr.ErrNotFound)
	}
	fn(u)
	return nil
}

func (s *Store) SetUserStatus(_ context.Context, id string, status model.UserStatus) error {
	return s.updateUser(id, func(u *model.User) { u.Status = status })
}

func (s *Store) LinkProvider(_ context.Context, id, provider, subject string) error {
	switch provider {
	case "google", "facebook":
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	return s.updateUser(id, func(u *model.User) {
		if provider == "google" {
			u.GoogleID = &subject
		} else {
			u.FacebookID = &subject
		}
	})
}

func (s *Store) SetResetToken(_ context.Context, id, hash string, expiry time.Time) error {
	return s.updateUser(id, func(u *model.User) {
		u.ResetTokenHash = &hash
		u.ResetTokenExpiry = &expiry
	})
}

func (s *Store) UserByResetToken(_ context.Context, hash string, now time.Time) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.ResetTokenHash != nil && *u.ResetTokenHash == hash &&
			u.ResetTokenExpiry != nil && u.ResetTokenExpiry.After(now) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("reset token: %w", apperr.ErrNotFound)
}

func (s *Store) UpdatePassword(_ context.Context, id, hash string) error {
	return s.updateUser(id, func(u *model.User) {
		u.PasswordHash = hash
		u.ResetTokenHash = nil
		u.ResetTokenExpiry = nil
	})
}

// ----- services -----

func (s *Store) ListServices(context.Context) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Service, 0, len(s.services))
	for _, sv := range s.services {
		out = append(out, *sv)
	}
	sort.Slice(out, func(i, j int) bool { return s.order[out[i].ID] > s.order[out[j].ID] })
	return out, nil
}

func (s *Store) CreateService(_ context.Context, sv *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv.CreatedAt = s.now()
	cp := *sv
	s.services[sv.ID] = &cp
	s.stamp(sv.ID)
	return nil
}

func (s *Store) UpdateService(_ context.Context, sv *model.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.services[sv.ID]
	if !ok {
		return fmt.Errorf("service %s: %w", sv.ID, apperr.ErrNotFound)
	}
	sv.CreatedAt = cur.CreatedAt
	cp := *sv
	s.services[sv.ID] = &cp
	return nil
}

func (s *Store) DeleteService(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.services[id]; !ok {
		return fmt.Errorf("service %s: %w", id, apperr.ErrNotFound)
	}
	delete(s.services, id)
	return nil
}

// ----- appointments -----

// project resolves the weak references. Caller holds the lock.
func (s *Store) project(a *model.Appointment) model.Appointment {
	out := *a
	out.ServiceTitle, out.Username = nil, nil
	if sv, ok := s.services[a.ServiceID]; ok {
		title := sv.Title
		out.ServiceTitle = &title
	}
	if u, ok := s.users[a.UserID]; ok {
		name := u.Username
		out.Username = &name
	}
	return out
}

func (s *Store) filter(keep func(a *model.Appointment) bool) []model.Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []model.Appointment{}
	for _, a := range s.appointments {
		if keep(a) {
			out = append(out, s.project(a))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].DateTime.Equal(out[j].DateTime) {
			return s.order[out[i].ID] < s.order[out[j].ID]
		}
		return out[i].DateTime.Before(out[j].DateTime)
	})
	return out
}

func (s *Store) CreateAppointment(_ context.Context, a *model.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[a.UserID]; !ok {
		return fmt.Errorf("create appointment: user %s: %w", a.UserID, apperr.ErrNotFound)
	}
	now := s.now()
	a.CreatedAt, a.UpdatedAt = now, now
	cp := *a
	s.appointments[a.ID] = &cp
	s.stamp(a.ID)
	return nil
}

func (s *Store) GetAppointment(_ context.Context, id string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	out := s.project(a)
	return &out, nil
}

func (s *Store) SetAppointmentStatus(_ context.Context, id string, st model.Status) (*model.Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.appointments[id]
	if !ok {
		return nil, fmt.Errorf("appointment %s: %w", id, apperr.ErrNotFound)
	}
	a.Status = st
	a.UpdatedAt = s.now()
	out := s.project(a)
	return &out, nil
}

func (s *Store) ListAppointments(context.Context) ([]model.Appointment, error) {
	return s.filter(func(*model.Appointment) bool { return true }), nil
}

func (s *Store) ListAppointmentsBetween(_ context.Context, from, to time.Time) ([]model.Appointment, error) {
	return s.filter(func(a *model.Appointment) bool {
		return !a.DateTime.Before(from) && a.DateTime.Before(to)
	}), nil
}

func (s *Store) ListAppointmentsByUser(_ context.Context, userID string) ([]model.Appointment, error) {
	return s.filter(func(a *model.Appointment) bool { return a.UserID == userID }), nil
}

func (s *Store) DueReminders(_ context.Context, from, to time.Time) ([]model.Reminder, error) {
	due := s.filter(func(a *model.Appointment) bool {
		return a.Status == model.StatusConfirmed && !a.DateTime.Before(from) && !a.DateTime.After(to)
	})
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Reminder
	for _, a := range due {
		u, ok := s.users[a.UserID]
		if !ok {
			continue
		}
		out = append(out, model.Reminder{
			AppointmentID: a.ID,
			ServiceTitle:  a.ServiceTitle,
			DateTime:      a.DateTime,
			Email:         u.Email,
		})
	}
	return out, nil
}

func (s *Store) CountAppointmentsByStatus(context.Context) (model.StatusCounts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c model.StatusCounts
	for _, a := range s.appointments {
		c.Add(a.Status, 1)
	}
	return c, nil
}
