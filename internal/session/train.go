package session

import (
	"context"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
)

// Train is the editing session of a train trip. Besides the engine state it
// tracks which values the user typed in, since those decide what is saved.
type Train struct {
	trip
	state     emission.TrainState
	overrides emission.TrainOverrides
}

// NewTrain starts a session for a new train trip titled "Train ride" and
// dated today.
func NewTrain(store activity.Store, opts Options) *Train {
	return &Train{
		trip: newTrip(store, emission.TransportTrain, opts),
	}
}

// LoadTrain starts a session editing the saved train trip id.
func LoadTrain(ctx context.Context, store activity.Store, id string, opts Options) (*Train, error) {
	t := NewTrain(store, opts)

	rec, err := t.load(ctx, id)
	if err != nil {
		return nil, err
	}

	state, overrides := activity.TrainStateFromRecord(rec)
	t.Dispatch(emission.InitializeTrain{State: state})
	t.overrides = overrides
	return t, nil
}

// Dispatch applies action to the engine state and the override flags.
func (t *Train) Dispatch(action emission.TrainAction) {
	t.overrides = t.overrides.After(action)
	t.state = emission.ApplyTrain(t.state, action)
}

// State returns the current engine state.
func (t *Train) State() emission.TrainState {
	return t.state
}

// Overrides returns the current override flags.
func (t *Train) Overrides() emission.TrainOverrides {
	return t.overrides
}

// TotalEmissions returns the trip's emissions in kg CO2.
func (t *Train) TotalEmissions() float64 {
	return t.state.TotalEmissions
}

// CreateRequest returns the request body the trip is saved with.
func (t *Train) CreateRequest() *activity.CreateRequest {
	return activity.TrainCreateRequest(t.meta, t.state, t.overrides)
}

// Save persists the trip and returns its activity ID.
func (t *Train) Save(ctx context.Context) (string, error) {
	return t.save(ctx, t.CreateRequest())
}
