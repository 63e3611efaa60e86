package activity

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LocalOwner is recorded as the creator of activities held in memory.
const LocalOwner = "local"

// InMemoryStore is an in-memory implementation of Store.
// This is intended for tests and dry runs.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	order   []string
	now     func() time.Time
}

// NewInMemoryStore creates a new in-memory activity store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// List returns the projected activities matching opts. Without a sort key
// activities are returned in creation order.
func (s *InMemoryStore) List(_ context.Context, opts ListOptions) ([]ListItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	type dated struct {
		rec  *Record
		date time.Time
	}

	var matches []dated
	for _, id := range s.order {
		r := s.records[id]
		date, err := ParseDate(r.Date)
		if err != nil {
			continue
		}
		if !opts.DateAfter.IsZero() && date.Before(opts.DateAfter) {
			continue
		}
		matches = append(matches, dated{rec: r, date: date})
	}

	if opts.SortBy == SortByDate {
		desc := opts.SortDirection == SortDesc
		sort.SliceStable(matches, func(i, j int) bool {
			if desc {
				return matches[i].date.After(matches[j].date)
			}
			return matches[i].date.Before(matches[j].date)
		})
	}

	items := make([]ListItem, 0, len(matches))
	for _, m := range matches {
		item := ListItem{ID: m.rec.ID}
		if opts.Title {
			item.Title = m.rec.Title
		}
		if opts.Date {
			item.Date = m.rec.Date
		}
		if opts.TotalEmissions {
			item.TotalEmissions = m.rec.TotalEmissions
		}
		if opts.TransportMode {
			item.TransportMode = m.rec.TransportMode
		}
		items = append(items, item)
	}

	return items, nil
}

// Create validates and stores a new activity.
func (s *InMemoryStore) Create(_ context.Context, req *CreateRequest) (string, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return "", &APIError{StatusCode: http.StatusBadRequest, Errors: errs}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	r := recordFromRequest(req)
	r.ID = id
	r.CreatedBy = LocalOwner
	r.CreatedAt = s.now().UTC().Format(DateLayout)

	s.records[id] = r
	s.order = append(s.order, id)
	return id, nil
}

// Get retrieves an activity by ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, ErrNotFound
	}

	return r.Clone(), nil
}

// Update replaces an existing activity, keeping its creation metadata.
func (s *InMemoryStore) Update(_ context.Context, req *UpdateRequest) error {
	if req.ID == "" {
		return ErrMissingID
	}
	if errs := req.Validate(); len(errs) > 0 {
		return &APIError{StatusCode: http.StatusBadRequest, Errors: errs}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.records[req.ID]
	if !ok {
		return ErrNotFound
	}

	r := recordFromRequest(&req.CreateRequest)
	r.ID = existing.ID
	r.CreatedBy = existing.CreatedBy
	r.CreatedAt = existing.CreatedAt
	r.UpdatedAt = s.now().UTC().Format(DateLayout)

	s.records[req.ID] = r
	return nil
}

// Delete deletes an activity by ID.
func (s *InMemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[id]; !ok {
		return ErrNotFound
	}

	delete(s.records, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Len returns the number of stored activities.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func recordFromRequest(req *CreateRequest) *Record {
	r := &Record{
		Title:                   req.Title,
		Date:                    req.Date,
		TotalEmissions:          req.TotalEmissions,
		Distance:                req.Distance,
		SpecificEmissions:       req.SpecificEmissions,
		FuelType:                req.FuelType,
		SpecificFuelConsumption: req.SpecificFuelConsumption,
		TotalFuelConsumption:    req.TotalFuelConsumption,
		CalcMode:                req.CalcMode,
		Persons:                 req.Persons,
		TrainVehicleType:        req.TrainVehicleType,
		TransportMode:           req.TransportMode,
	}
	return r.Clone()
}

// Ensure InMemoryStore implements Store interface.
var _ Store = (*InMemoryStore)(nil)
