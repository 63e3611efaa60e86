package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"golang.org/x/time/rate"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/activity/activitytest"
	"github.com/emissiontracker/emissiontracker/internal/activity/client"
	"github.com/emissiontracker/emissiontracker/internal/auth"
	"github.com/emissiontracker/emissiontracker/internal/emission"
	"github.com/emissiontracker/emissiontracker/internal/provider/resilience"
)

// swapSource hands out current and replaces it with next on Refresh.
type swapSource struct {
	mu         sync.Mutex
	current    string
	next       string
	refreshErr error
	refreshes  int
}

func (s *swapSource) Token(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, nil
}

func (s *swapSource) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	if s.refreshErr != nil {
		return s.refreshErr
	}
	s.current = s.next
	return nil
}

var _ auth.Source = (*swapSource)(nil)

func newClient(t *testing.T, baseURL string, tokens auth.Source) (*client.Client, *resilience.Registry) {
	t.Helper()

	registry := resilience.NewRegistry()
	cfg := resilience.DefaultClientConfig(client.ProviderName)
	cfg.MaxRetries = 0
	cfg.Timeout = 5 * time.Second
	cfg.Registry = registry

	return client.New(client.Config{
		BaseURL:    baseURL,
		HTTPClient: resilience.NewClient(cfg),
		Tokens:     tokens,
		Registry:   registry,
		Logger:     zerolog.Nop(),
	}), registry
}

func carRequest(title string, total float64) *activity.CreateRequest {
	fuel := emission.FuelDiesel
	mode := emission.CalcSpecificEmissions
	persons := 1
	distance := 100.0
	se := total * 1000 / distance
	return &activity.CreateRequest{
		Title:             title,
		Date:              "2024-01-15T00:00:00.000Z",
		TotalEmissions:    total,
		Distance:          &distance,
		SpecificEmissions: &se,
		FuelType:          &fuel,
		CalcMode:          &mode,
		Persons:           &persons,
		TransportMode:     emission.TransportCar,
	}
}

func TestClient_CRUD(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, _ := newClient(t, srv.BaseURL(), nil)
	ctx := context.Background()

	id, err := c.Create(ctx, carRequest("Commute", 12.5))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, err := c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, id, rec.ID)
	assert.Equal(t, "Commute", rec.Title)
	assert.InDelta(t, 12.5, rec.TotalEmissions, 1e-9)
	assert.Equal(t, emission.TransportCar, rec.TransportMode)

	update := &activity.UpdateRequest{ID: id, CreateRequest: *carRequest("Commute home", 20)}
	require.NoError(t, c.Update(ctx, update))

	rec, err = c.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Commute home", rec.Title)
	assert.InDelta(t, 20.0, rec.TotalEmissions, 1e-9)

	require.NoError(t, c.Delete(ctx, id))

	_, err = c.Get(ctx, id)
	assert.ErrorIs(t, err, activity.ErrNotFound)
	assert.Equal(t, 0, srv.Store.Len())
}

func TestClient_List(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, _ := newClient(t, srv.BaseURL(), nil)
	ctx := context.Background()

	older := carRequest("Older", 1)
	older.Date = "2023-01-01T00:00:00.000Z"
	_, err := c.Create(ctx, older)
	require.NoError(t, err)

	newer := carRequest("Newer", 2)
	newer.Date = "2024-06-01T00:00:00.000Z"
	_, err = c.Create(ctx, newer)
	require.NoError(t, err)

	opts := activity.OverviewListOptions()
	opts.DateAfter = time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	items, err := c.List(ctx, opts)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Newer", items[0].Title)
	assert.InDelta(t, 2.0, items[0].TotalEmissions, 1e-9)

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, http.MethodGet, last.Method)
	assert.Equal(t, opts.Values().Encode(), last.RawQuery)
}

func TestClient_ListProjection(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, _ := newClient(t, srv.BaseURL(), nil)
	ctx := context.Background()

	_, err := c.Create(ctx, carRequest("Trip", 3))
	require.NoError(t, err)

	items, err := c.List(ctx, activity.ListOptions{TotalEmissions: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEmpty(t, items[0].ID)
	assert.Empty(t, items[0].Title)
	assert.InDelta(t, 3.0, items[0].TotalEmissions, 1e-9)
}

func TestClient_Headers(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithAcceptedTokens("good"))
	defer srv.Close()

	c, _ := newClient(t, srv.BaseURL(), auth.StaticSource{AccessToken: "good"})

	_, err := c.List(context.Background(), activity.OverviewListOptions())
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer good", reqs[0].Authorization)
	assert.True(t, strings.HasPrefix(reqs[0].RequestID, "req_"))
	assert.Len(t, reqs[0].RequestID, len("req_")+22)
}

func TestClient_RefreshesOnUnauthorized(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithAcceptedTokens("fresh"))
	defer srv.Close()

	tokens := &swapSource{current: "stale", next: "fresh"}
	c, _ := newClient(t, srv.BaseURL(), tokens)

	id, err := c.Create(context.Background(), carRequest("After refresh", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	assert.Equal(t, 1, tokens.refreshes)

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer stale", reqs[0].Authorization)
	assert.Equal(t, "Bearer fresh", reqs[1].Authorization)
	assert.Equal(t, reqs[0].RequestID, reqs[1].RequestID)
	assert.JSONEq(t, string(reqs[0].Body), string(reqs[1].Body), "body is resent")
}

func TestClient_UnauthorizedAfterRefresh(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithAcceptedTokens("good"))
	defer srv.Close()

	tokens := &swapSource{current: "stale", next: "still-stale"}
	c, registry := newClient(t, srv.BaseURL(), tokens)

	_, err := c.List(context.Background(), activity.OverviewListOptions())
	assert.ErrorIs(t, err, activity.ErrUnauthorized)
	assert.Equal(t, 1, tokens.refreshes, "refreshes once")
	assert.Len(t, srv.Requests(), 2)

	health := registry.Health(client.ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt, "auth failures do not count against the store")
}

func TestClient_RefreshFails(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithAcceptedTokens("good"))
	defer srv.Close()

	refreshErr := errors.New("refresh token expired")
	tokens := &swapSource{current: "stale", refreshErr: refreshErr}
	c, _ := newClient(t, srv.BaseURL(), tokens)

	_, err := c.Get(context.Background(), "abc")
	assert.ErrorIs(t, err, activity.ErrUnauthorized)
	assert.ErrorIs(t, err, refreshErr)
	assert.Len(t, srv.Requests(), 1)
}

func TestClient_UnauthorizedWithoutTokens(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithAcceptedTokens("good"))
	defer srv.Close()

	c, _ := newClient(t, srv.BaseURL(), nil)

	err := c.Delete(context.Background(), "abc")
	assert.ErrorIs(t, err, activity.ErrUnauthorized)
}

func TestClient_ValidationError(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, registry := newClient(t, srv.BaseURL(), nil)

	req := carRequest("", 1)
	req.TotalEmissions = -1

	_, err := c.Create(context.Background(), req)
	require.Error(t, err)

	var apiErr *activity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, []activity.FieldError{
		{InstancePath: "", Message: "must have required property 'title'"},
		{InstancePath: "/totalEmissions", Message: "must be >= 0"},
	}, apiErr.Errors)

	health := registry.Health(client.ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)
	assert.NotNil(t, health.LastSuccessAt)
	assert.Equal(t, uint64(1), health.Rejected)
}

func TestClient_ServerError(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, registry := newClient(t, srv.BaseURL(), nil)
	srv.FailNext(http.StatusInternalServerError)

	_, err := c.List(context.Background(), activity.OverviewListOptions())

	var apiErr *activity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)

	health := registry.Health(client.ProviderName)
	require.NotNil(t, health)
	assert.NotNil(t, health.LastFailureAt)
	assert.Contains(t, health.LastError, "status 500")
}

func TestClient_NotFound(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c, registry := newClient(t, srv.BaseURL(), nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "missing")
	assert.ErrorIs(t, err, activity.ErrNotFound)
	var statusErr *resilience.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)

	err = c.Update(ctx, &activity.UpdateRequest{ID: "missing", CreateRequest: *carRequest("x", 1)})
	assert.ErrorIs(t, err, activity.ErrNotFound)

	assert.ErrorIs(t, c.Delete(ctx, "missing"), activity.ErrNotFound)

	health := registry.Health(client.ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt)
	assert.Equal(t, uint64(3), health.Rejected)
	assert.Equal(t, uint32(0), health.Counts.TotalFailures)
}

func TestClient_MissingID(t *testing.T) {
	c, _ := newClient(t, "http://127.0.0.1:1", nil)
	ctx := context.Background()

	_, err := c.Get(ctx, "")
	assert.ErrorIs(t, err, activity.ErrMissingID)
	assert.ErrorIs(t, c.Update(ctx, &activity.UpdateRequest{}), activity.ErrMissingID)
	assert.ErrorIs(t, c.Delete(ctx, ""), activity.ErrMissingID)
}

func TestClient_CreateWithoutLocation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, nil)

	_, err := c.Create(context.Background(), carRequest("x", 1))
	assert.ErrorIs(t, err, activity.ErrMissingID)
}

func TestClient_SingleErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(activity.FieldError{InstancePath: "/date", Message: "too early"})
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL, nil)

	_, err := c.Create(context.Background(), carRequest("x", 1))

	var apiErr *activity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, []activity.FieldError{{InstancePath: "/date", Message: "too early"}}, apiErr.Errors)
	assert.EqualError(t, err, "activity store: status 422: /date too early")
}

func TestClient_ItemURLEscapesID(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := newClient(t, server.URL+"/api/transport-activity/", nil)

	require.NoError(t, c.Delete(context.Background(), "a b"))
	assert.Equal(t, "/api/transport-activity/a%20b", gotPath)
}

func TestClient_RateLimited(t *testing.T) {
	srv := activitytest.NewServer(activitytest.WithRateLimit(1, time.Minute))
	defer srv.Close()

	c, registry := newClient(t, srv.BaseURL(), nil)
	ctx := context.Background()

	_, err := c.List(ctx, activity.OverviewListOptions())
	require.NoError(t, err)

	_, err = c.List(ctx, activity.OverviewListOptions())
	var apiErr *activity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.Equal(t, []activity.FieldError{{Message: "rate limit exceeded"}}, apiErr.Errors)

	health := registry.Health(client.ProviderName)
	require.NotNil(t, health)
	assert.Nil(t, health.LastFailureAt, "throttling is not a store failure")
	assert.Equal(t, uint64(1), health.Rejected)
}

func TestClient_Spans(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	c := client.New(client.Config{
		BaseURL: srv.BaseURL(),
		Tracer:  tp.Tracer("test"),
		Logger:  zerolog.Nop(),
	})

	ctx := context.Background()
	_, err := c.List(ctx, activity.OverviewListOptions())
	require.NoError(t, err)
	_, err = c.Get(ctx, "missing")
	require.ErrorIs(t, err, activity.ErrNotFound)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "activity.list", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "activity.get", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
}

func TestClient_Limiter(t *testing.T) {
	srv := activitytest.NewServer()
	defer srv.Close()

	c := client.New(client.Config{
		BaseURL: srv.BaseURL(),
		Limiter: rate.NewLimiter(rate.Limit(0.001), 1),
		Logger:  zerolog.Nop(),
	})

	_, err := c.List(context.Background(), activity.OverviewListOptions())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.List(ctx, activity.OverviewListOptions())
	assert.ErrorContains(t, err, "rate limiter")
	assert.Len(t, srv.Requests(), 1, "throttled request is not sent")
}
