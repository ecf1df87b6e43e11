package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-client
server:
  url: wss://chat.example.com
  session_key: sess-123
connection:
  reconnect_base_delay: 2s
  heartbeat_interval: 20s
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-client" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-client")
	}
	if cfg.Server.URL != "wss://chat.example.com" {
		t.Errorf("Server.URL = %q, want %q", cfg.Server.URL, "wss://chat.example.com")
	}
	if cfg.Server.SessionKey != "sess-123" {
		t.Errorf("Server.SessionKey = %q, want %q", cfg.Server.SessionKey, "sess-123")
	}
	if cfg.Connection.ReconnectBaseDelay != 2*time.Second {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want 2s", cfg.Connection.ReconnectBaseDelay)
	}
	if cfg.Connection.HeartbeatInterval != 20*time.Second {
		t.Errorf("Connection.HeartbeatInterval = %v, want 20s", cfg.Connection.HeartbeatInterval)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_SESSION_KEY", "secret-session")

	yaml := `
instance:
  id: test-client
server:
  url: wss://chat.example.com
  session_key: ${TEST_SESSION_KEY}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.SessionKey != "secret-session" {
		t.Errorf("Server.SessionKey = %q, want %q", cfg.Server.SessionKey, "secret-session")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-client
server:
  url: wss://chat.example.com
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Connection.ReconnectBaseDelay != DefaultReconnectBaseDelay {
		t.Errorf("Connection.ReconnectBaseDelay = %v, want default %v",
			cfg.Connection.ReconnectBaseDelay, DefaultReconnectBaseDelay)
	}
	if cfg.Connection.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Connection.ReconnectMaxDelay = %v, want default %v",
			cfg.Connection.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Stream.MaxRecords != DefaultMaxRecords {
		t.Errorf("Stream.MaxRecords = %d, want default %d", cfg.Stream.MaxRecords, DefaultMaxRecords)
	}
	if cfg.Queue.RequestTimeout != DefaultRequestTimeout {
		t.Errorf("Queue.RequestTimeout = %v, want default %v", cfg.Queue.RequestTimeout, DefaultRequestTimeout)
	}
	if cfg.Lifecycle.Cooldown != DefaultLifecycleCooldown {
		t.Errorf("Lifecycle.Cooldown = %v, want default %v", cfg.Lifecycle.Cooldown, DefaultLifecycleCooldown)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
}

func TestValidate(t *testing.T) {
	valid := func() ClientConfig {
		cfg := ClientConfig{
			Instance: InstanceConfig{ID: "test"},
			Server:   ServerConfig{URL: "wss://chat.example.com"},
		}
		cfg.applyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*ClientConfig)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *ClientConfig) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing server url",
			mutate:  func(c *ClientConfig) { c.Server.URL = "" },
			wantErr: "server.url is required",
		},
		{
			name:    "http server url",
			mutate:  func(c *ClientConfig) { c.Server.URL = "https://chat.example.com" },
			wantErr: `server.url must use ws:// or wss://, got "https://chat.example.com"`,
		},
		{
			name: "max delay below base delay",
			mutate: func(c *ClientConfig) {
				c.Connection.ReconnectBaseDelay = 10 * time.Second
				c.Connection.ReconnectMaxDelay = 1 * time.Second
			},
			wantErr: "connection.reconnect_max_delay (1s) cannot be below reconnect_base_delay (10s)",
		},
		{
			name:    "zero max records",
			mutate:  func(c *ClientConfig) { c.Stream.MaxRecords = -1 },
			wantErr: "stream.max_records must be >= 1",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *ClientConfig) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "valid config",
			mutate:  func(c *ClientConfig) {},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
