package db

import (
	"context"
	"database/sql"
	"time"
)

// Health describes the result of a database health probe.
type Health struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Error   string        `json:"error,omitempty"`
}

// Check pings the database with a short deadline and reports the outcome.
func Check(ctx context.Context, sdb *sql.DB) Health {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := sdb.PingContext(ctx)
	h := Health{
		Healthy: err == nil,
		Latency: time.Since(start),
	}
	if err != nil {
		h.Error = err.Error()
	}
	return h
}
