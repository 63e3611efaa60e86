package emission

import "math"

// TrainState is the emission state of a train trip.
type TrainState struct {
	Distance          float64 // km
	SpecificEmissions float64 // g CO2 per passenger-km
	FuelType          *FuelType
	VehicleType       *TrainVehicleType
	TotalEmissions    float64 // kg CO2
}

// TrainAction is an input event for the train engine.
type TrainAction interface {
	trainAction()
}

// InitializeTrain replaces the whole state, e.g. with a loaded trip.
type InitializeTrain struct {
	State TrainState
}

// SetTrainVehicleType selects the train vehicle type preset.
type SetTrainVehicleType struct {
	VehicleType TrainVehicleType
}

// SetTotalEmissions overrides the total emissions directly.
type SetTotalEmissions struct {
	Value float64
}

func (InitializeTrain) trainAction()      {}
func (SetDistance) trainAction()          {}
func (SetSpecificEmissions) trainAction() {}
func (SetFuelType) trainAction()          {}
func (SetTrainVehicleType) trainAction()  {}
func (SetTotalEmissions) trainAction()    {}

// ApplyTrain returns the state that results from applying action to state.
func ApplyTrain(state TrainState, action TrainAction) TrainState {
	switch a := action.(type) {
	case InitializeTrain:
		return a.State
	case SetDistance:
		state.Distance = a.Km
	case SetSpecificEmissions:
		state.SpecificEmissions = a.Value
	case SetFuelType:
		fuel := a.FuelType
		state.FuelType = &fuel
		if state.VehicleType != nil {
			state.SpecificEmissions = TrainSpecificEmissions(fuel, *state.VehicleType)
		}
	case SetTrainVehicleType:
		vehicle := a.VehicleType
		state.VehicleType = &vehicle
		if state.FuelType != nil {
			state.SpecificEmissions = TrainSpecificEmissions(*state.FuelType, vehicle)
		}
	case SetTotalEmissions:
		state.TotalEmissions = a.Value
		state.SpecificEmissions = backDeriveSpecificEmissions(a.Value, state.Distance)
		return state
	default:
		return state
	}
	state.TotalEmissions = state.SpecificEmissions / 1000 * state.Distance
	return state
}

// backDeriveSpecificEmissions converts a total in kg back into g CO2/km for
// display. Without a positive distance there is no meaningful figure and 0
// is reported.
func backDeriveSpecificEmissions(total, distance float64) float64 {
	if distance <= 0 {
		return 0
	}
	se := total / distance * 1000
	if math.IsNaN(se) || math.IsInf(se, 0) {
		return 0
	}
	return se
}

// TrainOverrides records which train values the user typed in directly
// instead of having them derived.
type TrainOverrides struct {
	// CustomSpecificEmissions is set when g CO2/km was typed rather than
	// taken from the fuel and vehicle type presets.
	CustomSpecificEmissions bool
	// CustomTotalEmissions is set when the total was typed rather than
	// derived from distance and specific emissions.
	CustomTotalEmissions bool
}

// After returns the flags that hold once action has been dispatched.
// Selecting a preset always wins over a previously typed value.
func (o TrainOverrides) After(action TrainAction) TrainOverrides {
	switch action.(type) {
	case SetDistance:
		o.CustomTotalEmissions = false
	case SetSpecificEmissions:
		o.CustomSpecificEmissions = true
		o.CustomTotalEmissions = false
	case SetFuelType, SetTrainVehicleType:
		o.CustomSpecificEmissions = false
		o.CustomTotalEmissions = false
	case SetTotalEmissions:
		o.CustomTotalEmissions = true
	}
	return o
}
