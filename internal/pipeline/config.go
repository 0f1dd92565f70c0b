package pipeline

import "time"

// Config holds the connection tunables. Zero fields take the defaults.
type Config struct {
	// URL is the pipeline WebSocket endpoint.
	URL string

	// KeepaliveEvery is the PING cadence on an established connection.
	KeepaliveEvery time.Duration

	// LivenessEvery is the sweep cadence: a connection silent for longer
	// than this window is torn down, and a dropped one is redialed.
	LivenessEvery time.Duration

	// RetryAfterClose is the reconnect delay after losing an established
	// connection.
	RetryAfterClose time.Duration

	// RetryAfterFail is the reconnect delay after a dial that never
	// established.
	RetryAfterFail time.Duration

	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns the production tunables. The keepalive runs inside
// the liveness window so a healthy pipeline always answers before a sweep.
func DefaultConfig() Config {
	return Config{
		URL:             "ws://127.0.0.1:8765",
		KeepaliveEvery:  20 * time.Second,
		LivenessEvery:   24 * time.Second,
		RetryAfterClose: 3 * time.Second,
		RetryAfterFail:  5 * time.Second,
		DialTimeout:     4 * time.Second,
		WriteTimeout:    5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.URL == "" {
		c.URL = def.URL
	}
	if c.KeepaliveEvery <= 0 {
		c.KeepaliveEvery = def.KeepaliveEvery
	}
	if c.LivenessEvery <= 0 {
		c.LivenessEvery = def.LivenessEvery
	}
	if c.RetryAfterClose <= 0 {
		c.RetryAfterClose = def.RetryAfterClose
	}
	if c.RetryAfterFail <= 0 {
		c.RetryAfterFail = def.RetryAfterFail
	}
	if c.DialTimeout <= 0 {
		c.DialTimeout = def.DialTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}
