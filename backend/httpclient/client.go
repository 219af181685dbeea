// Package httpclient implements backend.Backend over the JSON HTTP API of
// an external generation service.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/poiesic/counsel/backend"
	"github.com/poiesic/counsel/core"
	"github.com/poiesic/counsel/telemetry"
)

// maxErrorBody caps how much of a failed response is kept for the error.
const maxErrorBody = 4096

// ErrBaseURLRequired is returned when no service URL is configured.
var ErrBaseURLRequired = errors.New("backend base url is required")

// Client talks to the generation service. It never retries.
type Client struct {
	baseURL  string
	http     *http.Client
	timeouts backend.Timeouts
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

var _ backend.Backend = (*Client)(nil)

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc != nil {
			c.http = hc
		}
		return nil
	}
}

// WithTimeouts sets per-operation deadlines; zero fields keep their defaults.
func WithTimeouts(t backend.Timeouts) Option {
	return func(c *Client) error {
		c.timeouts = t.WithDefaults()
		return nil
	}
}

// WithMetrics records call counts and latency.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(c *Client) error {
		c.metrics = m
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger != nil {
			c.logger = logger
		}
		return nil
	}
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	c := &Client{
		baseURL:  baseURL,
		http:     &http.Client{},
		timeouts: backend.DefaultTimeouts(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	c.logger = c.logger.With("component", "backend-http")
	return c, nil
}

type parseRequest struct {
	DocumentId core.ID `json:"documentId"`
	FilePath   string  `json:"filePath"`
	FileType   string  `json:"fileType"`
}

type searchRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type searchResponse struct {
	Results []backend.SemanticHit `json:"results"`
}

type qaRequest struct {
	Question  string `json:"question"`
	SessionId string `json:"sessionId"`
}

// ParseDocument posts to /parse.
func (c *Client) ParseDocument(ctx context.Context, documentID core.ID, filePath, fileType string) (*backend.ParseAck, error) {
	var ack backend.ParseAck
	err := c.call(ctx, backend.OpParse, "/parse", c.timeouts.Parse, parseRequest{
		DocumentId: documentID,
		FilePath:   filePath,
		FileType:   fileType,
	}, &ack)
	if err != nil {
		return nil, err
	}
	return &ack, nil
}

// SemanticSearch posts to /search.
func (c *Client) SemanticSearch(ctx context.Context, query string, limit int) ([]backend.SemanticHit, error) {
	var resp searchResponse
	err := c.call(ctx, backend.OpSearch, "/search", c.timeouts.Search, searchRequest{
		Query: query,
		Limit: limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Results, nil
}

// AskQuestion posts to /qa. A response without an answer is a bad response.
func (c *Client) AskQuestion(ctx context.Context, question, sessionHint string) (*backend.QAResult, error) {
	var result backend.QAResult
	err := c.call(ctx, backend.OpAsk, "/qa", c.timeouts.Ask, qaRequest{
		Question:  question,
		SessionId: sessionHint,
	}, &result)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(result.Answer) == "" {
		return nil, backend.BadResponse(backend.OpAsk, http.StatusOK, errors.New("empty answer"))
	}
	return &result, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) call(ctx context.Context, op, path string, timeout time.Duration, body, out any) (err error) {
	start := time.Now()
	defer func() {
		c.metrics.ObserveBackend(op, err, time.Since(start))
		if err != nil {
			c.logger.Warn("backend call failed", "op", op, "elapsed", time.Since(start), "err", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return &backend.Error{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &backend.Error{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return backend.Unavailable(op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return backend.BadResponse(op, resp.StatusCode, fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(b))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctx.Err() != nil {
			return backend.Unavailable(op, ctx.Err())
		}
		return backend.BadResponse(op, resp.StatusCode, err)
	}
	return nil
}
