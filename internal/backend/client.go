// Package backend talks to the warehouse REST API that owns the console's
// collections.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/odyssey-erp/warehouse-console/internal/authz"
	"github.com/odyssey-erp/warehouse-console/internal/platform/httpx"
)

var (
	// ErrUnauthorized is returned for 401 responses.
	ErrUnauthorized = fmt.Errorf("backend: %w", httpx.ErrUnauthorized)
	// ErrForbidden is returned for 403 responses.
	ErrForbidden = fmt.Errorf("backend: %w", httpx.ErrForbidden)
	// ErrNotFound is returned for 404 responses.
	ErrNotFound = fmt.Errorf("backend: %w", httpx.ErrNotFound)
	// ErrUnavailable is returned while the circuit breaker is open.
	ErrUnavailable = fmt.Errorf("backend: %w", httpx.ErrUnavailable)
)

// StatusError carries an unexpected backend status.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: unexpected status %d: %s", e.Status, e.Body)
}

// Record is a single backend document.
type Record map[string]any

// ID returns the record identifier as a string.
func (r Record) ID() string {
	for _, key := range []string{"id", "_id"} {
		switch v := r[key].(type) {
		case string:
			return v
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case json.Number:
			return v.String()
		}
	}
	return ""
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	Logger  *slog.Logger
	// OnDeauthorized runs whenever the backend answers 401 or 403.
	OnDeauthorized func(ctx context.Context)
	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// Client is a thin JSON client with a circuit breaker in front of the backend.
type Client struct {
	baseURL        *url.URL
	token          string
	http           *http.Client
	breaker        *gobreaker.CircuitBreaker
	logger         *slog.Logger
	onDeauthorized func(ctx context.Context)
}

// NewClient validates cfg and returns a Client.
func NewClient(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("backend: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("backend: base url %q must be absolute", cfg.BaseURL)
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "warehouse-backend",
		Timeout: 15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// Only transport failures and 5xx answers count against the backend.
			// A caller giving up says nothing about backend health.
			if errors.Is(err, context.Canceled) {
				return true
			}
			var se *StatusError
			if errors.As(err, &se) {
				return se.Status < http.StatusInternalServerError
			}
			return err == nil || errors.Is(err, httpx.ErrUnauthorized) ||
				errors.Is(err, httpx.ErrForbidden) || errors.Is(err, httpx.ErrNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("backend breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	})
	return &Client{
		baseURL:        base,
		token:          cfg.Token,
		http:           httpClient,
		breaker:        breaker,
		logger:         logger,
		onDeauthorized: cfg.OnDeauthorized,
	}, nil
}

// List fetches every record of a collection. The backend may answer with a
// bare array or with {"data": [...]}.
func (c *Client) List(ctx context.Context, actor *authz.Identity, collection string) ([]Record, error) {
	body, err := c.do(ctx, actor, http.MethodGet, collection, "", nil)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}
	var envelope struct {
		Data []Record `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", collection, err)
	}
	return envelope.Data, nil
}

// Get fetches one record.
func (c *Client) Get(ctx context.Context, actor *authz.Identity, collection, id string) (Record, error) {
	body, err := c.do(ctx, actor, http.MethodGet, collection, id, nil)
	if err != nil {
		return nil, err
	}
	return decodeRecord(collection, body)
}

// Create posts a new record and returns the stored version.
func (c *Client) Create(ctx context.Context, actor *authz.Identity, collection string, rec Record) (Record, error) {
	body, err := c.do(ctx, actor, http.MethodPost, collection, "", rec)
	if err != nil {
		return nil, err
	}
	return decodeRecord(collection, body)
}

// Update patches the given fields of a record.
func (c *Client) Update(ctx context.Context, actor *authz.Identity, collection, id string, fields Record) (Record, error) {
	body, err := c.do(ctx, actor, http.MethodPatch, collection, id, fields)
	if err != nil {
		return nil, err
	}
	return decodeRecord(collection, body)
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, actor *authz.Identity, collection, id string) error {
	_, err := c.do(ctx, actor, http.MethodDelete, collection, id, nil)
	return err
}

func (c *Client) do(ctx context.Context, actor *authz.Identity, method, collection, id string, payload any) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, collection, err)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.roundTrip(ctx, actor, method, collection, id, payload)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, ErrUnavailable
	}
	if errors.Is(err, httpx.ErrUnauthorized) || errors.Is(err, httpx.ErrForbidden) {
		c.logger.Warn("backend rejected credentials",
			slog.String("method", method),
			slog.String("collection", collection),
			slog.Any("error", err))
		if c.onDeauthorized != nil {
			c.onDeauthorized(ctx)
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	body, _ := out.([]byte)
	return body, nil
}

func (c *Client) roundTrip(ctx context.Context, actor *authz.Identity, method, collection, id string, payload any) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("backend: encode: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(collection, id), reader)
	if err != nil {
		return nil, fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if actor != nil {
		req.Header.Set("X-Actor-ID", actor.ID)
		req.Header.Set("X-Actor-Role", actor.Role.String())
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend: %s %s: %w", method, collection, err)
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("backend: read body: %w", err)
	}

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		return nil, ErrUnauthorized
	case res.StatusCode == http.StatusForbidden:
		return nil, ErrForbidden
	case res.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case res.StatusCode < 200 || res.StatusCode > 299:
		return nil, &StatusError{Status: res.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

func (c *Client) endpoint(collection, id string) string {
	elems := []string{url.PathEscape(strings.Trim(collection, "/"))}
	if id != "" {
		elems = append(elems, url.PathEscape(id))
	}
	return c.baseURL.JoinPath(elems...).String()
}

func decodeRecord(collection string, body []byte) (Record, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return Record{}, nil
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("backend: decode %s: %w", collection, err)
	}
	if data, ok := rec["data"].(map[string]any); ok && len(rec) == 1 {
		return Record(data), nil
	}
	return rec, nil
}
