package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
listen:
  port: 1800
  api_port: 8080

pool:
  max_connections: 500
  dial_timeout: 3s
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.Port != 1800 {
		t.Errorf("expected port 1800, got %d", cfg.Listen.Port)
	}
	if cfg.Listen.APIPort != 8080 {
		t.Errorf("expected api port 8080, got %d", cfg.Listen.APIPort)
	}
	if cfg.Pool.MaxConnections != 500 {
		t.Errorf("expected max connections 500, got %d", cfg.Pool.MaxConnections)
	}
	if cfg.Pool.DialTimeout != 3*time.Second {
		t.Errorf("expected dial timeout 3s, got %v", cfg.Pool.DialTimeout)
	}
}

func TestLoadEnvSubstitution(t *testing.T) {
	os.Setenv("TEST_ADMIN_TOKEN_HASH", "abc123")
	defer os.Unsetenv("TEST_ADMIN_TOKEN_HASH")

	yaml := `
admin:
  token_hash: ${TEST_ADMIN_TOKEN_HASH}
`
	path := writeTemp(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Admin.TokenHash != "abc123" {
		t.Errorf("expected token hash abc123, got %s", cfg.Admin.TokenHash)
	}
}

func TestLoadValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "invalid listen port",
			yaml: `
listen:
  port: 99999
`,
		},
		{
			name: "negative max connections",
			yaml: `
pool:
  max_connections: -1
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTemp(t, tt.yaml)
			_, err := Load(path)
			if err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	path := writeTemp(t, "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Listen.Port != 1800 {
		t.Errorf("expected default port 1800, got %d", cfg.Listen.Port)
	}
	if cfg.Listen.APIPort != 8080 {
		t.Errorf("expected default api port 8080, got %d", cfg.Listen.APIPort)
	}
	if cfg.Pool.MaxConnections != 1000 {
		t.Errorf("expected default max connections 1000, got %d", cfg.Pool.MaxConnections)
	}
	if cfg.Pool.DialTimeout != 5*time.Second {
		t.Errorf("expected default dial timeout 5s, got %v", cfg.Pool.DialTimeout)
	}
	if cfg.Roster.Path != "./servers_metadata.txt" {
		t.Errorf("expected default roster path, got %s", cfg.Roster.Path)
	}
}

func TestEffectivePollTimeout(t *testing.T) {
	p := PoolConfig{}
	if got := p.EffectivePollTimeout(); got != 100*time.Millisecond {
		t.Errorf("expected default poll timeout 100ms, got %v", got)
	}

	p = PoolConfig{DebugPoll: true}
	if got := p.EffectivePollTimeout(); got != 10000*time.Millisecond {
		t.Errorf("expected debug poll timeout 10000ms, got %v", got)
	}

	p = PoolConfig{PollTimeout: 250 * time.Millisecond}
	if got := p.EffectivePollTimeout(); got != 250*time.Millisecond {
		t.Errorf("expected overridden poll timeout 250ms, got %v", got)
	}
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing temp file: %v", err)
	}
	return path
}
