package mirror

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_PolicyProvisioned(t *testing.T) {
	var gotPath, gotKey string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("apikey")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "service-key", zerolog.Nop())
	c.PolicyProvisioned(context.Background(), PolicyEvent{
		PolicyID:     "pol-1",
		PatientID:    "pat-1",
		ProviderID:   "ins-1",
		PolicyNumber: "POL-1",
		Coverage:     10000,
		ValidUntil:   "2030-01-01",
		Status:       "active",
	})

	assert.Equal(t, "/rest/v1/policies", gotPath)
	assert.Equal(t, "service-key", gotKey)

	var ev PolicyEvent
	require.NoError(t, json.Unmarshal(gotBody, &ev))
	assert.Equal(t, "POL-1", ev.PolicyNumber)
	assert.Equal(t, "active", ev.Status)
}

func TestClient_RecordWritten(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", zerolog.Nop())
	c.RecordWritten(context.Background(), RecordEvent{RecordID: "r1", PatientID: "p1"})

	assert.Equal(t, "/rest/v1/medical_records", gotPath)
}

func TestClient_SwallowsFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", zerolog.Nop())
	// Must not panic or block on server errors...
	c.PolicyProvisioned(context.Background(), PolicyEvent{PolicyID: "p"})

	// ...nor on an unreachable endpoint.
	down := NewClient("http://127.0.0.1:1", "k", zerolog.Nop())
	down.PolicyProvisioned(context.Background(), PolicyEvent{PolicyID: "p"})
}

func TestNoop(t *testing.T) {
	var n Notifier = Noop{}
	n.PolicyProvisioned(context.Background(), PolicyEvent{})
	n.RecordWritten(context.Background(), RecordEvent{})
}
