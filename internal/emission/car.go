package emission

// CalcMode selects which car inputs drive the total emissions.
type CalcMode string

// Calculation modes.
const (
	// CalcSpecificEmissions derives the total from distance and g CO2/km.
	CalcSpecificEmissions CalcMode = "SpecificEmissions"
	// CalcTotalFuel derives the total from the fuel burnt on the trip.
	CalcTotalFuel CalcMode = "TotalFuel"
	// CalcSpecificFuel derives the total from distance and fuel per 100 km.
	CalcSpecificFuel CalcMode = "SpecificFuel"
)

// CalcModes lists the selectable calculation modes.
var CalcModes = []CalcMode{CalcSpecificEmissions, CalcTotalFuel, CalcSpecificFuel}

// CarState is the emission state of a car trip.
//
// Inputs of inactive modes are retained so switching back restores them.
type CarState struct {
	Distance                float64 // km
	SpecificEmissions       float64 // g CO2/km
	FuelType                FuelType
	SpecificFuelConsumption float64 // l or kg per 100 km
	TotalFuelConsumption    float64 // l or kg
	TotalEmissions          float64 // kg CO2, per person
	CalcMode                CalcMode
	Persons                 int
}

// NewCarState returns the state of a fresh car trip.
func NewCarState() CarState {
	return CarState{
		FuelType: FuelDiesel,
		CalcMode: CalcSpecificEmissions,
		Persons:  1,
	}
}

// CarAction is an input event for the car engine.
type CarAction interface {
	carAction()
}

// InitializeCar replaces the whole state, e.g. with a loaded trip.
// The total is taken as-is.
type InitializeCar struct {
	State CarState
}

// SetCalcMode switches the active calculation mode.
type SetCalcMode struct {
	Mode CalcMode
}

// SetSpecificFuelConsumption sets the fuel burnt per 100 km.
type SetSpecificFuelConsumption struct {
	Value float64
}

// SetTotalFuelConsumption sets the fuel burnt on the whole trip.
type SetTotalFuelConsumption struct {
	Value float64
}

// SetPersons sets the number of people sharing the car.
type SetPersons struct {
	Persons int
}

func (InitializeCar) carAction()              {}
func (SetDistance) carAction()                {}
func (SetSpecificEmissions) carAction()       {}
func (SetFuelType) carAction()                {}
func (SetSpecificFuelConsumption) carAction() {}
func (SetTotalFuelConsumption) carAction()    {}
func (SetCalcMode) carAction()                {}
func (SetPersons) carAction()                 {}

// ApplyCar returns the state that results from applying action to state.
func ApplyCar(state CarState, action CarAction) CarState {
	switch a := action.(type) {
	case InitializeCar:
		return a.State
	case SetDistance:
		state.Distance = a.Km
		switch state.CalcMode {
		case CalcSpecificFuel:
			state.TotalFuelConsumption = state.SpecificFuelConsumption / 100 * a.Km
			state.TotalEmissions = CarTotalEmissions(state)
		case CalcSpecificEmissions:
			state.TotalEmissions = CarTotalEmissions(state)
		}
	case SetSpecificEmissions:
		state.SpecificEmissions = a.Value
		if state.CalcMode == CalcSpecificEmissions {
			state.TotalEmissions = CarTotalEmissions(state)
		}
	case SetFuelType:
		state.FuelType = a.FuelType
		state.TotalEmissions = CarTotalEmissions(state)
	case SetSpecificFuelConsumption:
		state.SpecificFuelConsumption = a.Value
		state.TotalEmissions = CarTotalEmissions(state)
	case SetTotalFuelConsumption:
		state.TotalFuelConsumption = a.Value
		state.TotalEmissions = CarTotalEmissions(state)
	case SetCalcMode:
		state.CalcMode = a.Mode
		state.TotalEmissions = CarTotalEmissions(state)
	case SetPersons:
		// Division by persons requires at least one.
		if a.Persons < 1 {
			return state
		}
		state.Persons = a.Persons
		state.TotalEmissions = CarTotalEmissions(state)
	}
	return state
}

// CarTotalEmissions computes the per-person kg CO2 of a car trip using the
// formula of the state's calculation mode.
func CarTotalEmissions(s CarState) float64 {
	persons := float64(s.Persons)
	if persons < 1 {
		persons = 1
	}

	switch s.CalcMode {
	case CalcSpecificEmissions:
		return s.SpecificEmissions / 1000 * s.Distance / persons
	case CalcTotalFuel:
		return s.TotalFuelConsumption * CarSpecificEmissions(s.FuelType) / persons
	case CalcSpecificFuel:
		return s.SpecificFuelConsumption / 100 * s.Distance * CarSpecificEmissions(s.FuelType) / persons
	default:
		return 0
	}
}
