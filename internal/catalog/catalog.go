// Package catalog manages the bookable services.
package catalog

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/model"
)

type Repository interface {
	ListServices(ctx context.Context) ([]model.Service, error)
	CreateService(ctx context.Context, sv *model.Service) error
	UpdateService(ctx context.Context, sv *model.Service) error
	DeleteService(ctx context.Context, id string) error
}

// Cache holds the full list. Get reports false on a miss.
type Cache interface {
	Get(ctx context.Context) ([]model.Service, bool)
	Set(ctx context.Context, list []model.Service)
	Invalidate(ctx context.Context)
}

type nopCache struct{}

func (nopCache) Get(context.Context) ([]model.Service, bool) { return nil, false }
func (nopCache) Set(context.Context, []model.Service)        {}
func (nopCache) Invalidate(context.Context)                  {}

type Service struct {
	repo  Repository
	cache Cache
	log   *slog.Logger
}

// New returns a catalog service. cache may be nil.
func New(repo Repository, cache Cache, logger *slog.Logger) *Service {
	if cache == nil {
		cache = nopCache{}
	}
	return &Service{repo: repo, cache: cache, log: logger.With("component", "catalog")}
}

// Input carries every editable field; updates overwrite all of them.
type Input struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Category    model.Category `json:"category"`
	Duration    string         `json:"duration"`
	Price       *float64       `json:"price"`
}

func (in Input) validate() error {
	fields := map[string]string{}
	if strings.TrimSpace(in.Title) == "" {
		fields["title"] = "required"
	}
	if strings.TrimSpace(in.Description) == "" {
		fields["description"] = "required"
	}
	switch {
	case in.Category == "":
		fields["category"] = "required"
	case !in.Category.Valid():
		fields["category"] = "must be one of Visit, Consultation, Session"
	}
	if strings.TrimSpace(in.Duration) == "" {
		fields["duration"] = "required"
	}
	switch {
	case in.Price == nil:
		fields["price"] = "required"
	case *in.Price < 0:
		fields["price"] = "must not be negative"
	}
	return apperr.Validation(fields)
}

func (s *Service) List(ctx context.Context) ([]model.Service, error) {
	if list, ok := s.cache.Get(ctx); ok {
		return list, nil
	}
	list, err := s.repo.ListServices(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, list)
	return list, nil
}

func (s *Service) Create(ctx context.Context, caller auth.Identity, in Input) (*model.Service, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	sv := in.service(uuid.New().String())
	if err := s.repo.CreateService(ctx, sv); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	s.log.InfoContext(ctx, "service created", "service_id", sv.ID, "by", caller.UserID)
	return sv, nil
}

func (s *Service) Update(ctx context.Context, caller auth.Identity, id string, in Input) (*model.Service, error) {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}
	sv := in.service(id)
	if err := s.repo.UpdateService(ctx, sv); err != nil {
		return nil, err
	}
	s.cache.Invalidate(ctx)
	s.log.InfoContext(ctx, "service updated", "service_id", id, "by", caller.UserID)
	return sv, nil
}

// Delete removes the service. Appointments keep the dangling reference.
func (s *Service) Delete(ctx context.Context, caller auth.Identity, id string) error {
	if err := auth.Authorize(caller, model.RoleAdmin); err != nil {
		return err
	}
	if err := s.repo.DeleteService(ctx, id); err != nil {
		return err
	}
	s.cache.Invalidate(ctx)
	s.log.InfoContext(ctx, "service deleted", "service_id", id, "by", caller.UserID)
	return nil
}

func (in Input) service(id string) *model.Service {
	return &model.Service{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Category:    in.Category,
		Duration:    strings.TrimSpace(in.Duration),
		Price:       *in.Price,
	}
}
