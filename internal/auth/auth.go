package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"booking-api/internal/apperr"
	"booking-api/internal/model"
)

var (
	ErrBadToken     = errors.New("invalid token")
	ErrExpiredToken = errors.New("expired token")
)

func HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
	return string(b), err
}

// CheckPassword is false for federated accounts, which have no hash.
func CheckPassword(hash, pw string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

// Identity is the authenticated caller.
type Identity struct {
	UserID string
	Role   model.Role
}

func (id Identity) IsAdmin() bool { return id.Role == model.RoleAdmin }

// Authorize fails with apperr.ErrForbidden unless the caller's role is allowed.
func Authorize(id Identity, allowed ...model.Role) error {
	if slices.Contains(allowed, id.Role) {
		return nil
	}
	return fmt.Errorf("role %q: %w", id.Role, apperr.ErrForbidden)
}

type Claims struct {
	UserID string     `json:"uid"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() Identity {
	return Identity{UserID: c.UserID, Role: c.Role}
}

// MakeToken signs a session token for uid carrying its role.
func MakeToken(uid string, role model.Role, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	c := Claims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   uid,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString([]byte(secret))
	return tok, exp, err
}

func ParseToken(raw, secret string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	tok, err := parser.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		// block alg confusion
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrBadToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrBadToken
	}
	c, ok := tok.Claims.(*Claims)
	if !ok || !tok.Valid || c.UserID == "" || !c.Role.Valid() {
		return nil, ErrBadToken
	}
	return c, nil
}

// GenerateResetToken returns a random 32-byte hex token and its sha256 hash.
// Only the hash is persisted.
func GenerateResetToken() (raw string, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", err
	}
	raw = hex.EncodeToString(b)
	return raw, HashResetToken(raw), nil
}

func HashResetToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
