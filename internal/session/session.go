// Package session holds the editing state of a single trip: the engine
// state, the trip metadata and the store it is saved to.
//
// Sessions are owned by one caller and are not safe for concurrent use.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
	"github.com/emissiontracker/emissiontracker/internal/telemetry"
)

// ErrTransportMode is returned when a loaded activity belongs to another
// transport mode than the session.
var ErrTransportMode = errors.New("activity has a different transport mode")

// Options configure a session.
type Options struct {
	// Metrics records saved trips (optional).
	Metrics *telemetry.TripMetrics

	// Now returns the current time (optional, defaults to time.Now).
	Now func() time.Time

	Logger zerolog.Logger
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

// trip is the part of a session that does not depend on the engine.
type trip struct {
	store   activity.Store
	mode    emission.TransportMode
	id      string
	meta    activity.Meta
	metrics *telemetry.TripMetrics
	logger  zerolog.Logger
}

func newTrip(store activity.Store, mode emission.TransportMode, opts Options) trip {
	return trip{
		store: store,
		mode:  mode,
		meta: activity.Meta{
			Title: mode.InitialTitle(),
			Date:  opts.now(),
		},
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "session").Str("transport_mode", string(mode)).Logger(),
	}
}

// load fetches id and checks its transport mode.
func (t *trip) load(ctx context.Context, id string) (*activity.Record, error) {
	rec, err := t.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading activity %s: %w", id, err)
	}
	if rec.TransportMode != t.mode {
		return nil, fmt.Errorf("loading activity %s: %w: %q", id, ErrTransportMode, rec.TransportMode)
	}

	t.id = rec.ID
	if t.id == "" {
		t.id = id
	}
	t.meta = activity.MetaFromRecord(rec)
	return rec, nil
}

// ID returns the activity ID, empty until the trip was saved or loaded.
func (t *trip) ID() string { return t.id }

// IsNew reports whether saving creates a new activity.
func (t *trip) IsNew() bool { return t.id == "" }

// Meta returns the trip title and date.
func (t *trip) Meta() activity.Meta { return t.meta }

// SetTitle sets the trip title.
func (t *trip) SetTitle(title string) { t.meta.Title = title }

// SetDate sets the trip date. Only the day is persisted.
func (t *trip) SetDate(date time.Time) { t.meta.Date = date }

// save creates the activity when the trip is new and updates it otherwise.
func (t *trip) save(ctx context.Context, req *activity.CreateRequest) (string, error) {
	created := t.id == ""

	if created {
		id, err := t.store.Create(ctx, req)
		if err != nil {
			return "", fmt.Errorf("creating activity: %w", err)
		}
		t.id = id
	} else {
		if err := t.store.Update(ctx, &activity.UpdateRequest{ID: t.id, CreateRequest: *req}); err != nil {
			return "", fmt.Errorf("updating activity %s: %w", t.id, err)
		}
	}

	t.metrics.RecordSaved(ctx, string(t.mode), created, req.TotalEmissions)
	t.logger.Info().
		Str("activity_id", t.id).
		Bool("created", created).
		Float64("total_emissions", req.TotalEmissions).
		Msg("trip saved")

	return t.id, nil
}

// Delete deletes the saved activity.
func (t *trip) Delete(ctx context.Context) error {
	if t.id == "" {
		return activity.ErrMissingID
	}
	if err := t.store.Delete(ctx, t.id); err != nil {
		return fmt.Errorf("deleting activity %s: %w", t.id, err)
	}

	t.logger.Info().Str("activity_id", t.id).Msg("trip deleted")
	t.id = ""
	return nil
}
