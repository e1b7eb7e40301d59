// Package mirror pushes copies of written rows to a hosted Supabase
// (PostgREST) endpoint. The mirror is strictly best-effort: it runs only
// after the local transaction commits, and every failure is logged and
// swallowed so it can never fail a request.
package mirror

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// PolicyEvent is the mirrored shape of a provisioned policy.
type PolicyEvent struct {
	PolicyID     string  `json:"policy_id"`
	PatientID    string  `json:"patient_id"`
	ProviderID   string  `json:"provider_id"`
	PolicyNumber string  `json:"policy_number"`
	Coverage     float64 `json:"coverage_amount"`
	ValidUntil   string  `json:"valid_until"`
	Status       string  `json:"status"`
}

// RecordEvent is the mirrored shape of a written medical record.
type RecordEvent struct {
	RecordID   string `json:"record_id"`
	PatientID  string `json:"patient_id"`
	HospitalID string `json:"hospital_id,omitempty"`
	RecordType string `json:"record_type"`
	Title      string `json:"title"`
}

// Notifier receives post-commit write notifications.
type Notifier interface {
	PolicyProvisioned(ctx context.Context, ev PolicyEvent)
	RecordWritten(ctx context.Context, ev RecordEvent)
}

// Noop is the Notifier used when no mirror is configured.
type Noop struct{}

func (Noop) PolicyProvisioned(context.Context, PolicyEvent) {}
func (Noop) RecordWritten(context.Context, RecordEvent)     {}

// Client mirrors rows to a Supabase PostgREST endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient creates a mirror client for the given Supabase project URL and
// service key.
func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 5 * time.Second},
		logger:  logger,
	}
}

func (c *Client) PolicyProvisioned(ctx context.Context, ev PolicyEvent) {
	c.post(ctx, "policies", ev)
}

func (c *Client) RecordWritten(ctx context.Context, ev RecordEvent) {
	c.post(ctx, "medical_records", ev)
}

// post inserts one row into a PostgREST table. Errors are logged, never
// returned.
func (c *Client) post(ctx context.Context, table string, payload interface{}) {
	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn().Err(err).Str("table", table).Msg("mirror: marshal payload")
		return
	}

	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, table)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.logger.Warn().Err(err).Str("table", table).Msg("mirror: build request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("table", table).Msg("mirror: sync failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		c.logger.Warn().Int("status", resp.StatusCode).Str("table", table).Msg("mirror: sync rejected")
		return
	}

	c.logger.Debug().Str("table", table).Msg("mirror: synced")
}
