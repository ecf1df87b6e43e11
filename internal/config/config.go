package config

import "time"

// ClientConfig is the root configuration for a streaming-session client.
type ClientConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	Server     ServerConfig     `yaml:"server"`
	Connection ConnectionConfig `yaml:"connection"`
	Stream     StreamConfig     `yaml:"stream"`
	Queue      QueueConfig      `yaml:"queue"`
	Lifecycle  LifecycleConfig  `yaml:"lifecycle"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// InstanceConfig identifies this client instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// ServerConfig holds the streaming endpoint settings.
type ServerConfig struct {
	URL        string `yaml:"url"`         // Origin, e.g. wss://chat.example.com
	SessionKey string `yaml:"session_key"` // Default session; callers may override at connect time
}

// ConnectionConfig holds connection manager settings.
type ConnectionConfig struct {
	ReconnectBaseDelay     time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay      time.Duration `yaml:"reconnect_max_delay"`
	HeartbeatInterval      time.Duration `yaml:"heartbeat_interval"`
	IdleThreshold          time.Duration `yaml:"idle_threshold"`
	PongTimeout            time.Duration `yaml:"pong_timeout"`
	ForceReconnectCooldown time.Duration `yaml:"force_reconnect_cooldown"`
	HandshakeTimeout       time.Duration `yaml:"handshake_timeout"`
	WriteTimeout           time.Duration `yaml:"write_timeout"`
	FrameBufferSize        int           `yaml:"frame_buffer_size"`
}

// StreamConfig holds stream assembler settings.
type StreamConfig struct {
	MaxRecords  int           `yaml:"max_records"`
	StaleWindow time.Duration `yaml:"stale_window"`
}

// QueueConfig holds request queue settings.
type QueueConfig struct {
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// LifecycleConfig holds lifecycle coordinator settings.
type LifecycleConfig struct {
	Cooldown time.Duration `yaml:"cooldown"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
