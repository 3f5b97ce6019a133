package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CRON_SECRET", "cron")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Port != "8080" || c.GRPCPort != "50051" {
		t.Errorf("ports = %s/%s", c.Port, c.GRPCPort)
	}
	if c.JWTExpiresIn != 24*time.Hour || c.RememberTTL != 7*24*time.Hour {
		t.Errorf("ttls = %v/%v", c.JWTExpiresIn, c.RememberTTL)
	}
	if !c.CookieSecure {
		t.Error("cookies should default to secure")
	}
	if c.ReminderCron != "0 8 * * *" {
		t.Errorf("cron = %q", c.ReminderCron)
	}
	if c.CatalogCacheTTL != 5*time.Minute {
		t.Errorf("cache ttl = %v", c.CatalogCacheTTL)
	}
	if len(c.TrustedProxies) != 0 {
		t.Errorf("no proxy should be trusted by default, got %v", c.TrustedProxies)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("CRON_SECRET", "cron")
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("COOKIE_SECURE", "false")
	t.Setenv("TZ_LOCATION", "UTC")
	t.Setenv("FRONTEND_URL", "https://app.test/")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.test, https://b.test,")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.168.1.10")

	c, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.StoreDriver != "memory" || c.CookieSecure {
		t.Errorf("driver=%s secure=%v", c.StoreDriver, c.CookieSecure)
	}
	if c.Location != time.UTC {
		t.Errorf("location = %v", c.Location)
	}
	if c.FrontendURL != "https://app.test" {
		t.Errorf("frontend = %q", c.FrontendURL)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.test" {
		t.Errorf("origins = %v", c.CORSOrigins)
	}
	if c.RedisDB != 3 {
		t.Errorf("redis db = %d", c.RedisDB)
	}
	if len(c.TrustedProxies) != 2 || c.TrustedProxies[0] != "10.0.0.0/8" {
		t.Errorf("proxies = %v", c.TrustedProxies)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"missing secrets", map[string]string{}, "JWT_SECRET is required"},
		{"missing cron secret", map[string]string{"JWT_SECRET": "x"}, "CRON_SECRET is required"},
		{"bad driver", map[string]string{"JWT_SECRET": "x", "CRON_SECRET": "y", "STORE_DRIVER": "mongo"}, "STORE_DRIVER"},
		{"bad duration", map[string]string{"JWT_SECRET": "x", "CRON_SECRET": "y", "JWT_EXPIRES_IN": "1 day"}, "JWT_EXPIRES_IN"},
		{"bad zone", map[string]string{"JWT_SECRET": "x", "CRON_SECRET": "y", "TZ_LOCATION": "Mars/Olympus"}, "TZ_LOCATION"},
		{"admin without password", map[string]string{"JWT_SECRET": "x", "CRON_SECRET": "y", "ADMIN_EMAIL": "a@x.com"}, "ADMIN_PASSWORD"},
		{"bad proxy", map[string]string{"JWT_SECRET": "x", "CRON_SECRET": "y", "TRUSTED_PROXIES": "10.0.0.0/8,loadbalancer"}, "TRUSTED_PROXIES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			t.Setenv("CRON_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
