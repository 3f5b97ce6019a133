// Package oauth resolves a provider access token into a profile by calling
// the provider's identity endpoint.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"booking-api/internal/apperr"
)

const (
	Google   = "google"
	Facebook = "facebook"
)

// Profile is what a provider tells us about the token holder.
type Profile struct {
	Provider string
	Subject  string
	Email    string
	Name     string
}

type Provider interface {
	Name() string
	Profile(ctx context.Context, accessToken string) (*Profile, error)
}

type endpoint struct {
	name   string
	url    string
	decode func(body []byte) (*Profile, error)
}

// NewGoogle calls the OpenID userinfo endpoint (v3).
func NewGoogle(userinfoURL string) Provider {
	return &endpoint{name: Google, url: userinfoURL, decode: func(body []byte) (*Profile, error) {
		var p struct {
			Sub   string `json:"sub"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		return &Profile{Subject: p.Sub, Email: p.Email, Name: p.Name}, nil
	}}
}

// NewFacebook calls the Graph API /me endpoint.
func NewFacebook(graphURL string) Provider {
	u, err := url.Parse(graphURL)
	if err == nil {
		q := u.Query()
		q.Set("fields", "id,name,email")
		u.RawQuery = q.Encode()
		graphURL = u.String()
	}
	return &endpoint{name: Facebook, url: graphURL, decode: func(body []byte) (*Profile, error) {
		var p struct {
			ID    string `json:"id"`
			Email string `json:"email"`
			Name  string `json:"name"`
		}
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, err
		}
		return &Profile{Subject: p.ID, Email: p.Email, Name: p.Name}, nil
	}}
}

func (e *endpoint) Name() string { return e.name }

func (e *endpoint) Profile(ctx context.Context, accessToken string) (*Profile, error) {
	if accessToken == "" {
		return nil, fmt.Errorf("%s: empty token: %w", e.name, apperr.ErrUnauthenticated)
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", e.name, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: profile request: %w", e.name, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%s: read profile: %w", e.name, err)
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusBadRequest ||
		resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s rejected token (%d): %w", e.name, resp.StatusCode, apperr.ErrUnauthenticated)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%s: profile endpoint returned %d", e.name, resp.StatusCode)
	}

	p, err := e.decode(body)
	if err != nil {
		return nil, fmt.Errorf("%s: decode profile: %w", e.name, err)
	}
	if p.Subject == "" {
		return nil, fmt.Errorf("%s: profile without subject: %w", e.name, apperr.ErrUnauthenticated)
	}
	p.Provider = e.name
	return p, nil
}

// Registry looks providers up by name.
type Registry map[string]Provider

func NewRegistry(ps ...Provider) Registry {
	r := Registry{}
	for _, p := range ps {
		r[p.Name()] = p
	}
	return r
}

var ErrUnknownProvider = errors.New("unknown provider")

func (r Registry) Get(name string) (Provider, error) {
	p, ok := r[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownProvider, name)
	}
	return p, nil
}
