package auth_test

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"booking-api/internal/apperr"
	"booking-api/internal/auth"
	"booking-api/internal/model"
)

const secret = "test-secret"

func TestPasswordHashing(t *testing.T) {
	hash, err := auth.HashPassword("testpass123")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !auth.CheckPassword(hash, "testpass123") {
		t.Error("correct password rejected")
	}
	if auth.CheckPassword(hash, "wrongpass") {
		t.Error("wrong password accepted")
	}
	if auth.CheckPassword("", "") {
		t.Error("empty hash must never match")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	tok, exp, err := auth.MakeToken("uid-1", model.RoleAdmin, secret, time.Hour)
	if err != nil {
		t.Fatalf("make token: %v", err)
	}
	claims, err := auth.ParseToken(tok, secret)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != "uid-1" || claims.Role != model.RoleAdmin {
		t.Errorf("claims mismatch: %+v", claims)
	}
	diff := time.Until(exp)
	if diff < 59*time.Minute || diff > 61*time.Minute {
		t.Errorf("expected ~1h expiry, got %v", diff)
	}
	if id := claims.Identity(); !id.IsAdmin() {
		t.Error("expected admin identity")
	}
}

func TestParseTokenFailures(t *testing.T) {
	tok, _, _ := auth.MakeToken("uid", model.RoleUser, secret, time.Hour)
	expired, _, _ := auth.MakeToken("uid", model.RoleUser, secret, -time.Minute)

	// none-alg token
	none := jwt.NewWithClaims(jwt.SigningMethodNone, auth.Claims{
		UserID: "uid", Role: model.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	noneTok, _ := none.SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name string
		raw  string
		key  string
		want error
	}{
		{"wrong secret", tok, "other", auth.ErrBadToken},
		{"garbage", "not.a.token", secret, auth.ErrBadToken},
		{"expired", expired, secret, auth.ErrExpiredToken},
		{"alg none", noneTok, secret, auth.ErrBadToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.ParseToken(tt.raw, tt.key)
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	user := auth.Identity{UserID: "u", Role: model.RoleUser}
	admin := auth.Identity{UserID: "a", Role: model.RoleAdmin}

	if err := auth.Authorize(admin, model.RoleAdmin); err != nil {
		t.Errorf("admin denied: %v", err)
	}
	if err := auth.Authorize(user, model.RoleUser, model.RoleAdmin); err != nil {
		t.Errorf("user denied: %v", err)
	}
	if err := auth.Authorize(user, model.RoleAdmin); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected forbidden, got %v", err)
	}
}

func TestResetToken(t *testing.T) {
	raw, hash, err := auth.GenerateResetToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(raw) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(raw))
	}
	if auth.HashResetToken(raw) != hash {
		t.Error("hash mismatch")
	}
	raw2, _, _ := auth.GenerateResetToken()
	if raw == raw2 {
		t.Error("tokens should differ")
	}
}
