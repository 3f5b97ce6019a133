package store

import (
	"context"
	"fmt"
	"time"

	"booking-api/internal/model"
)

const userColumns = `id, username, email, password_hash, status, role,
	google_id, facebook_id, reset_token_hash, reset_token_expiry, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash,
		(*string)(&u.Status), (*string)(&u.Role),
		&u.GoogleID, &u.FacebookID, &u.ResetTokenHash, &u.ResetTokenExpiry, &u.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO users (id, username, email, password_hash, status, role, google_id, facebook_id)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 RETURNING created_at`,
		u.ID, u.Username, u.Email, u.PasswordHash, string(u.Status), string(u.Role), u.GoogleID, u.FacebookID,
	).Scan(&u.CreatedAt)
	return translate(err, "create user")
}

func (s *Store) UserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, translate(err, "user "+id)
	}
	return u, nil
}

func (s *Store) UserByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, translate(err, "user by email")
	}
	return u, nil
}

func (s *Store) ListUsersByRole(ctx context.Context, role model.Role) ([]model.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY created_at DESC`, string(role))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	out := []model.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, *u)
	}
	return out, rows.Err()
}

func (s *Store) SetUserStatus(ctx context.Context, id string, status model.UserStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("set user status: %w", err)
	}
	return affected(tag, "user "+id)
}

// LinkProvider records the federated subject id for provider ("google" or "facebook").
func (s *Store) LinkProvider(ctx context.Context, id, provider, subject string) error {
	var q string
	switch provider {
	case "google":
		q = `UPDATE users SET google_id = $1 WHERE id = $2`
	case "facebook":
		q = `UPDATE users SET facebook_id = $1 WHERE id = $2`
	default:
		return fmt.Errorf("unknown provider %q", provider)
	}
	tag, err := s.pool.Exec(ctx, q, subject, id)
	if err != nil {
		return fmt.Errorf("link provider: %w", err)
	}
	return affected(tag, "user "+id)
}

func (s *Store) SetResetToken(ctx context.Context, id, hash string, expiry time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users SET reset_token_hash = $1, reset_token_expiry = $2 WHERE id = $3`,
		hash, expiry, id)
	if err != nil {
		return fmt.Errorf("set reset token: %w", err)
	}
	return affected(tag, "user "+id)
}

// UserByResetToken only matches tokens that are still unexpired at now.
func (s *Store) UserByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE reset_token_hash = $1 AND reset_token_expiry > $2`, hash, now))
	if err != nil {
		return nil, translate(err, "reset token")
	}
	return u, nil
}

// UpdatePassword sets a new hash and clears any pending reset token.
func (s *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE users
		 SET password_hash = $1, reset_token_hash = NULL, reset_token_expiry = NULL
		 WHERE id = $2`, hash, id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return affected(tag, "user "+id)
}
