package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultReconnectBaseDelay     = 1 * time.Second
	DefaultReconnectMaxDelay      = 30 * time.Second
	DefaultHeartbeatInterval      = 10 * time.Second
	DefaultIdleThreshold          = 30 * time.Second
	DefaultPongTimeout            = 10 * time.Second
	DefaultForceReconnectCooldown = 2 * time.Second
	DefaultHandshakeTimeout       = 10 * time.Second
	DefaultWriteTimeout           = 5 * time.Second
	DefaultFrameBufferSize        = 256
	DefaultMaxRecords             = 100
	DefaultStaleWindow            = 5 * time.Minute
	DefaultRequestTimeout         = 60 * time.Second
	DefaultLifecycleCooldown      = 2 * time.Second
	DefaultMetricsPort            = 9090
	DefaultMetricsPath            = "/metrics"
)

func (c *ClientConfig) applyDefaults() {
	// Connection defaults
	if c.Connection.ReconnectBaseDelay == 0 {
		c.Connection.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Connection.ReconnectMaxDelay == 0 {
		c.Connection.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Connection.HeartbeatInterval == 0 {
		c.Connection.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if c.Connection.IdleThreshold == 0 {
		c.Connection.IdleThreshold = DefaultIdleThreshold
	}
	if c.Connection.PongTimeout == 0 {
		c.Connection.PongTimeout = DefaultPongTimeout
	}
	if c.Connection.ForceReconnectCooldown == 0 {
		c.Connection.ForceReconnectCooldown = DefaultForceReconnectCooldown
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.FrameBufferSize == 0 {
		c.Connection.FrameBufferSize = DefaultFrameBufferSize
	}

	// Stream defaults
	if c.Stream.MaxRecords == 0 {
		c.Stream.MaxRecords = DefaultMaxRecords
	}
	if c.Stream.StaleWindow == 0 {
		c.Stream.StaleWindow = DefaultStaleWindow
	}

	// Queue defaults
	if c.Queue.RequestTimeout == 0 {
		c.Queue.RequestTimeout = DefaultRequestTimeout
	}

	// Lifecycle defaults
	if c.Lifecycle.Cooldown == 0 {
		c.Lifecycle.Cooldown = DefaultLifecycleCooldown
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
