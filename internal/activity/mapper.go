package activity

import (
	"slices"
	"strings"
	"time"

	"github.com/emissiontracker/emissiontracker/internal/emission"
)

// Meta holds the trip details that are not part of the engine state.
type Meta struct {
	Title string
	Date  time.Time
}

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// FormatDate formats the start of t's day as a UTC wire date.
func FormatDate(t time.Time) string {
	return StartOfDay(t).UTC().Format(DateLayout)
}

// CarCreateRequest builds the create request of a car trip. Car trips
// always carry every field.
func CarCreateRequest(meta Meta, s emission.CarState) *CreateRequest {
	fuel := s.FuelType
	mode := s.CalcMode
	persons := s.Persons

	return &CreateRequest{
		Title:                   meta.Title,
		Date:                    FormatDate(meta.Date),
		TotalEmissions:          s.TotalEmissions,
		Distance:                ptr(s.Distance),
		SpecificEmissions:       ptr(s.SpecificEmissions),
		FuelType:                &fuel,
		SpecificFuelConsumption: ptr(s.SpecificFuelConsumption),
		TotalFuelConsumption:    ptr(s.TotalFuelConsumption),
		CalcMode:                &mode,
		Persons:                 &persons,
		TransportMode:           emission.TransportCar,
	}
}

// TrainCreateRequest builds the create request of a train trip. Values
// the user overrode are sent, values they were derived from are left out:
// a custom total drops distance and specific emissions, custom specific
// emissions drop the fuel and vehicle type presets.
func TrainCreateRequest(meta Meta, s emission.TrainState, o emission.TrainOverrides) *CreateRequest {
	req := &CreateRequest{
		Title:          meta.Title,
		Date:           FormatDate(meta.Date),
		TotalEmissions: s.TotalEmissions,
		TransportMode:  emission.TransportTrain,
	}

	if !o.CustomTotalEmissions {
		req.Distance = ptr(s.Distance)
		req.SpecificEmissions = ptr(s.SpecificEmissions)
	}

	if !o.CustomSpecificEmissions {
		if s.FuelType != nil {
			req.FuelType = ptr(*s.FuelType)
		}
		if s.VehicleType != nil {
			req.TrainVehicleType = ptr(*s.VehicleType)
		}
	}

	return req
}

// CarUpdateRequest builds the update request of the car trip id.
func CarUpdateRequest(id string, meta Meta, s emission.CarState) *UpdateRequest {
	return &UpdateRequest{ID: id, CreateRequest: *CarCreateRequest(meta, s)}
}

// TrainUpdateRequest builds the update request of the train trip id.
func TrainUpdateRequest(id string, meta Meta, s emission.TrainState, o emission.TrainOverrides) *UpdateRequest {
	return &UpdateRequest{ID: id, CreateRequest: *TrainCreateRequest(meta, s, o)}
}

// MetaFromRecord returns the title and date of r. An unparsable date
// yields the zero time.
func MetaFromRecord(r *Record) Meta {
	date, _ := ParseDate(r.Date)
	return Meta{Title: r.Title, Date: date.Local()}
}

// CarStateFromRecord returns the engine state of a persisted car trip.
// The stored total is kept as-is.
func CarStateFromRecord(r *Record) emission.CarState {
	s := emission.NewCarState()
	s.Distance = deref(r.Distance)
	s.SpecificEmissions = deref(r.SpecificEmissions)
	s.SpecificFuelConsumption = deref(r.SpecificFuelConsumption)
	s.TotalFuelConsumption = deref(r.TotalFuelConsumption)
	s.TotalEmissions = r.TotalEmissions

	if r.FuelType != nil && slices.Contains(emission.CarFuelTypes, *r.FuelType) {
		s.FuelType = *r.FuelType
	}
	if r.CalcMode != nil && slices.Contains(emission.CalcModes, *r.CalcMode) {
		s.CalcMode = *r.CalcMode
	}
	if r.Persons != nil && *r.Persons >= 1 {
		s.Persons = *r.Persons
	}

	return s
}

// TrainStateFromRecord returns the engine state of a persisted train trip
// together with the override flags implied by the fields it lacks.
func TrainStateFromRecord(r *Record) (emission.TrainState, emission.TrainOverrides) {
	s := emission.TrainState{
		Distance:          deref(r.Distance),
		SpecificEmissions: deref(r.SpecificEmissions),
		TotalEmissions:    r.TotalEmissions,
	}

	if r.FuelType != nil && r.FuelType.IsTrainFuel() {
		s.FuelType = ptr(*r.FuelType)
	}
	if r.TrainVehicleType != nil && slices.Contains(emission.TrainVehicleTypes, *r.TrainVehicleType) {
		s.VehicleType = ptr(*r.TrainVehicleType)
	}

	o := emission.TrainOverrides{
		CustomSpecificEmissions: r.FuelType == nil && r.TrainVehicleType == nil,
		CustomTotalEmissions:    r.SpecificEmissions == nil,
	}

	return s, o
}

// ExtractIDFromLocation returns the last path segment of a Location header.
func ExtractIDFromLocation(location string) string {
	location = strings.TrimRight(location, "/")
	if i := strings.LastIndexByte(location, '/'); i >= 0 {
		return location[i+1:]
	}
	return location
}

func ptr[T any](v T) *T {
	return &v
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
