package server

import "time"

// Config is the HTTP server configuration.
type Config struct {
	// Address to listen on (e.g., ":8000")
	ListenAddr string

	// ServedModelID is advertised by /api/v1/models.
	ServedModelID string

	// ShutdownTimeout bounds graceful shutdown. Zero means 10 seconds.
	ShutdownTimeout time.Duration
}
