// Package activity defines transport activity records as exchanged with the
// activity store, and maps them to and from emission engine state.
package activity

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emissiontracker/emissiontracker/internal/emission"
)

// Store errors.
var (
	ErrNotFound     = errors.New("activity not found")
	ErrUnauthorized = errors.New("unauthorized: token refresh did not help")
	ErrMissingID    = errors.New("activity id missing")
)

// DateLayout is the wire format of activity dates.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Record is a persisted transport activity.
type Record struct {
	ID                      string                     `json:"id,omitempty"`
	Title                   string                     `json:"title"`
	Date                    string                     `json:"date"`
	TotalEmissions          float64                    `json:"totalEmissions"`
	Distance                *float64                   `json:"distance,omitempty"`
	SpecificEmissions       *float64                   `json:"specificEmissions,omitempty"`
	FuelType                *emission.FuelType         `json:"fuelType,omitempty"`
	SpecificFuelConsumption *float64                   `json:"specificFuelConsumption,omitempty"`
	TotalFuelConsumption    *float64                   `json:"totalFuelConsumption,omitempty"`
	CalcMode                *emission.CalcMode         `json:"calcMode,omitempty"`
	Persons                 *int                       `json:"persons,omitempty"`
	TrainVehicleType        *emission.TrainVehicleType `json:"trainVehicleType,omitempty"`
	TransportMode           emission.TransportMode     `json:"transportMode"`
	CreatedBy               string                     `json:"createdBy,omitempty"`
	CreatedAt               string                     `json:"createdAt,omitempty"`
	UpdatedAt               string                     `json:"updatedAt,omitempty"`
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	cpy := *r
	cpy.Distance = clonePtr(r.Distance)
	cpy.SpecificEmissions = clonePtr(r.SpecificEmissions)
	cpy.FuelType = clonePtr(r.FuelType)
	cpy.SpecificFuelConsumption = clonePtr(r.SpecificFuelConsumption)
	cpy.TotalFuelConsumption = clonePtr(r.TotalFuelConsumption)
	cpy.CalcMode = clonePtr(r.CalcMode)
	cpy.Persons = clonePtr(r.Persons)
	cpy.TrainVehicleType = clonePtr(r.TrainVehicleType)
	return &cpy
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CreateRequest is the body sent to create an activity.
type CreateRequest struct {
	Title                   string                     `json:"title"`
	Date                    string                     `json:"date"`
	TotalEmissions          float64                    `json:"totalEmissions"`
	Distance                *float64                   `json:"distance,omitempty"`
	SpecificEmissions       *float64                   `json:"specificEmissions,omitempty"`
	FuelType                *emission.FuelType         `json:"fuelType,omitempty"`
	SpecificFuelConsumption *float64                   `json:"specificFuelConsumption,omitempty"`
	TotalFuelConsumption    *float64                   `json:"totalFuelConsumption,omitempty"`
	CalcMode                *emission.CalcMode         `json:"calcMode,omitempty"`
	Persons                 *int                       `json:"persons,omitempty"`
	TrainVehicleType        *emission.TrainVehicleType `json:"trainVehicleType,omitempty"`
	TransportMode           emission.TransportMode     `json:"transportMode"`
}

// Validate checks the request the way the activity store does and returns
// one FieldError per violation.
func (r *CreateRequest) Validate() []FieldError {
	var errs []FieldError

	if strings.TrimSpace(r.Title) == "" {
		errs = append(errs, FieldError{
			InstancePath: "",
			Message:      "must have required property 'title'",
		})
	}

	if _, err := ParseDate(r.Date); err != nil {
		errs = append(errs, FieldError{
			InstancePath: "/date",
			Message:      `must match format "date-time"`,
		})
	}

	if r.TotalEmissions < 0 {
		errs = append(errs, FieldError{
			InstancePath: "/totalEmissions",
			Message:      "must be >= 0",
		})
	}

	if r.Persons != nil && *r.Persons < 1 {
		errs = append(errs, FieldError{
			InstancePath: "/persons",
			Message:      "must be >= 1",
		})
	}

	switch r.TransportMode {
	case emission.TransportCar, emission.TransportTrain:
	default:
		errs = append(errs, FieldError{
			InstancePath: "/transportMode",
			Message:      "must be equal to one of the allowed values",
		})
	}

	return errs
}

// UpdateRequest is the body sent to replace an existing activity.
// The ID travels in the URL.
type UpdateRequest struct {
	ID string `json:"-"`
	CreateRequest
}

// ListItem is the projection of a Record returned by List.
type ListItem struct {
	ID             string                 `json:"id"`
	Title          string                 `json:"title,omitempty"`
	Date           string                 `json:"date,omitempty"`
	TotalEmissions float64                `json:"totalEmissions,omitempty"`
	TransportMode  emission.TransportMode `json:"transportMode,omitempty"`
}

// FieldError is a single validation failure reported by the activity store.
type FieldError struct {
	InstancePath string `json:"instancePath"`
	Message      string `json:"message"`
}

// APIError is returned when the activity store rejects a request.
type APIError struct {
	StatusCode int
	Errors     []FieldError
}

// HTTPStatus returns the status the store answered with.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("activity store: status %d", e.StatusCode)
	}
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.InstancePath == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fe.InstancePath+" "+fe.Message)
	}
	return fmt.Sprintf("activity store: status %d: %s", e.StatusCode, strings.Join(msgs, "; "))
}

// ParseDate parses a wire date. Fractional seconds are optional.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing date %q: %w", s, err)
	}
	return t, nil
}
