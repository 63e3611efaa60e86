package session

import (
	"context"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
)

// Car is the editing session of a car trip.
type Car struct {
	trip
	state emission.CarState
}

// NewCar starts a session for a new car trip titled "Car drive" and dated
// today.
func NewCar(store activity.Store, opts Options) *Car {
	return &Car{
		trip:  newTrip(store, emission.TransportCar, opts),
		state: emission.NewCarState(),
	}
}

// LoadCar starts a session editing the saved car trip id.
func LoadCar(ctx context.Context, store activity.Store, id string, opts Options) (*Car, error) {
	c := NewCar(store, opts)

	rec, err := c.load(ctx, id)
	if err != nil {
		return nil, err
	}

	c.Dispatch(emission.InitializeCar{State: activity.CarStateFromRecord(rec)})
	return c, nil
}

// Dispatch applies action to the engine state.
func (c *Car) Dispatch(action emission.CarAction) {
	c.state = emission.ApplyCar(c.state, action)
}

// State returns the current engine state.
func (c *Car) State() emission.CarState {
	return c.state
}

// TotalEmissions returns the trip's emissions in kg CO2 per person.
func (c *Car) TotalEmissions() float64 {
	return c.state.TotalEmissions
}

// CreateRequest returns the request body the trip is saved with.
func (c *Car) CreateRequest() *activity.CreateRequest {
	return activity.CarCreateRequest(c.meta, c.state)
}

// Save persists the trip and returns its activity ID.
func (c *Car) Save(ctx context.Context) (string, error) {
	return c.save(ctx, c.CreateRequest())
}
