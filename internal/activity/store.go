package activity

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// SortDirection orders List results.
type SortDirection string

// Sort directions.
const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// SortByDate is the only sort key the store supports.
const SortByDate = "date"

// ListOptions selects the projected fields and the range of a listing.
type ListOptions struct {
	TotalEmissions bool
	Title          bool
	Date           bool
	TransportMode  bool

	// DateAfter excludes activities dated before it when non-zero.
	DateAfter     time.Time
	SortBy        string
	SortDirection SortDirection
}

// OverviewListOptions returns the options used for the trip overview:
// every projected field, newest first.
func OverviewListOptions() ListOptions {
	return ListOptions{
		TotalEmissions: true,
		Title:          true,
		Date:           true,
		TransportMode:  true,
		SortBy:         SortByDate,
		SortDirection:  SortDesc,
	}
}

// Values encodes the options as query parameters.
func (o ListOptions) Values() url.Values {
	v := url.Values{}
	if o.TotalEmissions {
		v.Set("totalEmissions", "true")
	}
	if o.Title {
		v.Set("title", "true")
	}
	if o.Date {
		v.Set("date", "true")
	}
	if o.TransportMode {
		v.Set("transportMode", "true")
	}
	if !o.DateAfter.IsZero() {
		v.Set("dateAfter", o.DateAfter.UTC().Format(DateLayout))
	}
	if o.SortBy != "" {
		v.Set("sortBy", o.SortBy)
	}
	if o.SortDirection != "" {
		v.Set("sortDirection", string(o.SortDirection))
	}
	return v
}

// ParseListOptions decodes query parameters produced by Values.
func ParseListOptions(v url.Values) (ListOptions, error) {
	opts := ListOptions{
		TotalEmissions: v.Get("totalEmissions") == "true",
		Title:          v.Get("title") == "true",
		Date:           v.Get("date") == "true",
		TransportMode:  v.Get("transportMode") == "true",
		SortBy:         v.Get("sortBy"),
		SortDirection:  SortDirection(strings.ToUpper(v.Get("sortDirection"))),
	}

	if s := v.Get("dateAfter"); s != "" {
		t, err := ParseDate(s)
		if err != nil {
			return ListOptions{}, fmt.Errorf("dateAfter: %w", err)
		}
		opts.DateAfter = t
	}

	if opts.SortBy != "" && opts.SortBy != SortByDate {
		return ListOptions{}, fmt.Errorf("unsupported sortBy %q", opts.SortBy)
	}

	switch opts.SortDirection {
	case "", SortAsc, SortDesc:
	default:
		return ListOptions{}, fmt.Errorf("unsupported sortDirection %q", opts.SortDirection)
	}

	return opts, nil
}

// Store persists transport activities.
type Store interface {
	// List returns the projected activities matching opts.
	List(ctx context.Context, opts ListOptions) ([]ListItem, error)

	// Create stores a new activity and returns its ID.
	Create(ctx context.Context, req *CreateRequest) (string, error)

	// Get retrieves an activity by ID.
	// Returns ErrNotFound if the activity doesn't exist.
	Get(ctx context.Context, id string) (*Record, error)

	// Update replaces an existing activity.
	// Returns ErrNotFound if the activity doesn't exist.
	Update(ctx context.Context, req *UpdateRequest) error

	// Delete deletes an activity by ID.
	Delete(ctx context.Context, id string) error
}
