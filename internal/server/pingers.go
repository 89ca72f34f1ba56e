package server

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// dbPinger is the subset of the relational store used by readiness checks.
type dbPinger interface {
	Ping(ctx context.Context) error
}

// StorePinger probes the relational database. It satisfies the Pinger
// interface and is used by GET /api/ready.
type StorePinger struct {
	// db is the store to probe.
	db dbPinger
}

// NewStorePinger constructs a StorePinger for the given store.
func NewStorePinger(db dbPinger) *StorePinger {
	return &StorePinger{db: db}
}

// Name returns the dependency label used in readiness responses.
func (p *StorePinger) Name() string { return "database" }

// Ping checks the database connection.
func (p *StorePinger) Ping(ctx context.Context) error {
	if err := p.db.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// HTTPPinger probes an HTTP dependency (e.g. a local Ollama server) with a
// GET request. Any response below 500 counts as reachable; an auth failure
// still proves the endpoint is up.
type HTTPPinger struct {
	// url is the probe target.
	url string
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
	// client is the HTTP client with a short timeout.
	client *http.Client
}

// NewHTTPPinger constructs an HTTPPinger for the given URL and label.
func NewHTTPPinger(url, name string) *HTTPPinger {
	return &HTTPPinger{
		url:    url,
		name:   name,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Name returns the backend label used in readiness responses.
func (p *HTTPPinger) Name() string { return p.name }

// Ping sends a GET request to the probe URL. Server errors (5xx) and
// transport failures count as unreachable.
func (p *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("probe returned HTTP %d", resp.StatusCode)
	}
	return nil
}
