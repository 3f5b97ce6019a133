package store

import (
	"context"
	"fmt"

	"booking-api/internal/model"
)

func (s *Store) ListServices(ctx context.Context) ([]model.Service, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, title, description, category, duration, price, created_at
		 FROM services ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	defer rows.Close()

	out := []model.Service{}
	for rows.Next() {
		var sv model.Service
		if err := rows.Scan(&sv.ID, &sv.Title, &sv.Description, (*string)(&sv.Category),
			&sv.Duration, &sv.Price, &sv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan service: %w", err)
		}
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *Store) CreateService(ctx context.Context, sv *model.Service) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO services (id, title, description, category, duration, price)
		 VALUES ($1,$2,$3,$4,$5,$6)
		 RETURNING created_at`,
		sv.ID, sv.Title, sv.Description, string(sv.Category), sv.Duration, sv.Price,
	).Scan(&sv.CreatedAt)
	return translate(err, "create service")
}

// UpdateService overwrites every editable column.
func (s *Store) UpdateService(ctx context.Context, sv *model.Service) error {
	err := s.pool.QueryRow(ctx,
		`UPDATE services
		 SET title=$1, description=$2, category=$3, duration=$4, price=$5
		 WHERE id=$6
		 RETURNING created_at`,
		sv.Title, sv.Description, string(sv.Category), sv.Duration, sv.Price, sv.ID,
	).Scan(&sv.CreatedAt)
	return translate(err, "service "+sv.ID)
}

func (s *Store) DeleteService(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM services WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("delete service: %w", err)
	}
	return affected(tag, "service "+id)
}
