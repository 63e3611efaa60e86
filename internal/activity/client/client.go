// Package client talks to the remote activity store over its REST API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/auth"
	"github.com/emissiontracker/emissiontracker/internal/provider/resilience"
	"github.com/emissiontracker/emissiontracker/internal/telemetry"
)

const (
	// ProviderName identifies the activity store in the registry and metrics.
	ProviderName = "activity-store"

	// DefaultBaseURL is the activity collection of the test deployment.
	DefaultBaseURL = "https://emission-tracker-api-test.azurewebsites.net/api/transport-activity"

	tracerName = "github.com/emissiontracker/emissiontracker/internal/activity/client"
)

// Config holds configuration for the activity store client.
type Config struct {
	// BaseURL is the activity collection URL (optional, defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient *resilience.Client

	// Tokens supplies bearer tokens. Without it requests are unauthenticated.
	Tokens auth.Source

	// Registry records the store's health (optional).
	Registry *resilience.Registry

	// Metrics records request metrics (optional).
	Metrics *telemetry.ProviderMetrics

	// Tracer traces store operations (optional, defaults to the global tracer).
	Tracer trace.Tracer

	// Limiter throttles outgoing requests (optional).
	Limiter *rate.Limiter

	Logger zerolog.Logger
}

// Client is an activity.Store backed by the remote REST API.
type Client struct {
	baseURL    string
	httpClient *resilience.Client
	tokens     auth.Source
	registry   *resilience.Registry
	metrics    *telemetry.ProviderMetrics
	tracer     trace.Tracer
	limiter    *rate.Limiter
	logger     zerolog.Logger
}

// New creates a new activity store client.
func New(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		rc := resilience.DefaultClientConfig(ProviderName)
		rc.Registry = cfg.Registry
		rc.Logger = cfg.Logger
		httpClient = resilience.NewClient(rc)
	}

	tracer := cfg.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}

	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		tokens:     cfg.Tokens,
		registry:   cfg.Registry,
		metrics:    cfg.Metrics,
		tracer:     tracer,
		limiter:    cfg.Limiter,
		logger:     cfg.Logger.With().Str("provider", ProviderName).Logger(),
	}
}

// List fetches the projected activities matching opts.
func (c *Client) List(ctx context.Context, opts activity.ListOptions) ([]activity.ListItem, error) {
	u := c.baseURL
	if q := opts.Values().Encode(); q != "" {
		u += "?" + q
	}

	var items []activity.ListItem
	err := c.do(ctx, "list", http.MethodGet, u, nil, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return items, nil
}

// Create posts a new activity and returns the ID taken from the Location
// header of the response.
func (c *Client) Create(ctx context.Context, req *activity.CreateRequest) (string, error) {
	var id string
	err := c.do(ctx, "create", http.MethodPost, c.baseURL, req, func(resp *http.Response) error {
		id = activity.ExtractIDFromLocation(resp.Header.Get("Location"))
		if id == "" {
			return fmt.Errorf("%w: response has no Location header", activity.ErrMissingID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return id, nil
}

// Get fetches an activity by ID.
func (c *Client) Get(ctx context.Context, id string) (*activity.Record, error) {
	if id == "" {
		return nil, activity.ErrMissingID
	}

	var rec activity.Record
	err := c.do(ctx, "get", http.MethodGet, c.itemURL(id), nil, func(resp *http.Response) error {
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &rec, nil
}

// Update replaces an existing activity.
func (c *Client) Update(ctx context.Context, req *activity.UpdateRequest) error {
	if req.ID == "" {
		return activity.ErrMissingID
	}
	return c.do(ctx, "update", http.MethodPut, c.itemURL(req.ID), req, nil)
}

// Delete deletes an activity by ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	if id == "" {
		return activity.ErrMissingID
	}
	return c.do(ctx, "delete", http.MethodDelete, c.itemURL(id), nil, nil)
}

func (c *Client) itemURL(id string) string {
	return c.baseURL + "/" + url.PathEscape(id)
}

// do performs one store operation. A 401 triggers a single token refresh
// and retry. handle is called with successful responses only.
func (c *Client) do(ctx context.Context, op, method, u string, body any, handle func(*http.Response) error) (err error) {
	start := time.Now()
	requestID := newRequestID()

	ctx, span := c.tracer.Start(ctx, "activity."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("request.id", requestID),
		),
	)
	defer func() {
		c.finish(op, requestID, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}

	resp, err := c.send(ctx, method, u, payload, requestID)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drain(resp)
		if c.tokens == nil {
			return rejected(activity.ErrUnauthorized, resp.StatusCode)
		}
		if rerr := c.tokens.Refresh(ctx); rerr != nil {
			return fmt.Errorf("%w: %w", rejected(activity.ErrUnauthorized, resp.StatusCode), rerr)
		}
		c.logger.Debug().Str("operation", op).Msg("retrying after token refresh")

		resp, err = c.send(ctx, method, u, payload, requestID)
		if err != nil {
			return err
		}
		if resp.StatusCode == http.StatusUnauthorized {
			drain(resp)
			return rejected(activity.ErrUnauthorized, resp.StatusCode)
		}
	}
	defer drain(resp)

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return rejected(activity.ErrNotFound, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return decodeAPIError(resp)
	}

	if handle == nil {
		return nil
	}
	return handle(resp)
}

func (c *Client) send(ctx context.Context, method, u string, payload []byte, requestID string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("getting access token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	return resp, nil
}

// finish records the outcome of an operation. Only transport failures and
// 5xx responses count against the store's health.
func (c *Client) finish(op, requestID string, start time.Time, err error) {
	duration := time.Since(start)
	c.metrics.RecordRequest(ProviderName, op, duration, err)

	if c.registry != nil {
		c.registry.Record(ProviderName, err)
	}

	evt := c.logger.Debug()
	if resilience.IsFailure(err) {
		evt = c.logger.Warn()
	}
	evt.Err(err).
		Str("operation", op).
		Str("request_id", requestID).
		Dur("duration", duration).
		Msg("activity store request")
}

// rejected attaches the store's answer to a sentinel error.
func rejected(sentinel error, status int) error {
	return fmt.Errorf("%w (%w)", sentinel, &resilience.StatusError{StatusCode: status})
}

// decodeAPIError reads the store's [{instancePath, message}] error body.
func decodeAPIError(resp *http.Response) error {
	apiErr := &activity.APIError{StatusCode: resp.StatusCode}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil || len(bytes.TrimSpace(data)) == 0 {
		return apiErr
	}

	var list []activity.FieldError
	if json.Unmarshal(data, &list) == nil {
		apiErr.Errors = list
		return apiErr
	}

	var single activity.FieldError
	if json.Unmarshal(data, &single) == nil && single.Message != "" {
		apiErr.Errors = []activity.FieldError{single}
	}
	return apiErr
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}

func newRequestID() string {
	return "req_" + uuid.New().String()[:22]
}

// Ensure Client implements activity.Store interface.
var _ activity.Store = (*Client)(nil)
