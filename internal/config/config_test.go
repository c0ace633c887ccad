package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	d := Defaults()
	if d.Host != "0.0.0.0" || d.Port != 10159 {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.EphemeralTokenTTL != 3_600_000*time.Millisecond {
		t.Fatalf("unexpected default TTL: %v", d.EphemeralTokenTTL)
	}
}

func TestLoadFileMergesOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kvrelay.yaml")
	contents := "host: 127.0.0.1\ndatabaseId: db-1\naccessToken: secret\nephemeralTokenTtlMs: 1000\n"
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	merged, err := LoadFile(path, Defaults())
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if merged.Host != "127.0.0.1" {
		t.Fatalf("expected host override, got %q", merged.Host)
	}
	if merged.Port != Defaults().Port {
		t.Fatalf("expected port to retain its default, got %d", merged.Port)
	}
	if merged.DatabaseID != "db-1" || merged.AccessToken != "secret" {
		t.Fatalf("expected file values to apply, got %+v", merged)
	}
	if merged.EphemeralTokenTTL != 1000*time.Millisecond {
		t.Fatalf("expected TTL override, got %v", merged.EphemeralTokenTTL)
	}
}

func TestValidateRequiresDatabaseIDAndAccessToken(t *testing.T) {
	c := Defaults()
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error with no database-id/access-token")
	}
	c.DatabaseID = "db"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error with no access-token")
	}
	c.AccessToken = "tok"
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error once both are set: %v", err)
	}
}
