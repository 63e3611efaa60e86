package session

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/emissiontracker/emissiontracker/internal/activity"
)

// Overview lists saved trips and sums up recent emissions.
type Overview struct {
	store  activity.Store
	opts   Options
	logger zerolog.Logger
}

// NewOverview creates an overview over store.
func NewOverview(store activity.Store, opts Options) *Overview {
	return &Overview{
		store:  store,
		opts:   opts,
		logger: opts.Logger.With().Str("component", "overview").Logger(),
	}
}

// List returns all trips, newest first.
func (o *Overview) List(ctx context.Context) ([]activity.ListItem, error) {
	items, err := o.store.List(ctx, activity.OverviewListOptions())
	if err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return items, nil
}

// Summary sums up the emissions of the last 12 months.
func (o *Overview) Summary(ctx context.Context) (activity.Summary, error) {
	since := activity.SummaryWindowStart(o.opts.now())

	opts := activity.ListOptions{
		TotalEmissions: true,
		Date:           true,
		TransportMode:  true,
		DateAfter:      since,
	}

	items, err := o.store.List(ctx, opts)
	if err != nil {
		return activity.Summary{}, fmt.Errorf("listing activities since %s: %w", since.Format("2006-01-02"), err)
	}

	sum := activity.Summarize(items, since)
	o.logger.Debug().
		Int("count", sum.Count).
		Float64("total_emissions", sum.TotalEmissions).
		Msg("emission summary")

	return sum, nil
}
