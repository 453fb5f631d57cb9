package sdk

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFastClient(t *testing.T, url string) *Client {
	t.Helper()
	client, err := New(url,
		WithRetryCount(1),
		WithRetryBackoff(10*time.Millisecond, 20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
	}))
	t.Cleanup(srv.Close)

	client := newFastClient(t, srv.URL)
	out, err := client.Sync.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", out.Status)
}

func TestUnreachableServerIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := newFastClient(t, url)
	_, err := client.Sync.Probe(context.Background(), &ProbeRequest{ProjectID: "p"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestAPIErrorIsNotTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(APIError{Code: CodeProjectNotFound, Message: "project not found"})
	}))
	t.Cleanup(srv.Close)

	client := newFastClient(t, srv.URL)
	_, err := client.Sync.Probe(context.Background(), &ProbeRequest{ProjectID: "p"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, CodeProjectNotFound, apiErr.Code)
}
