// Package emission computes trip CO2 emissions from distance, fuel and
// per-vehicle emission factors.
//
// The car and train engines are pure state-transition functions: every
// input event is an action applied to the previous state, and the returned
// state always carries a total emission figure consistent with its inputs.
package emission

// FuelType identifies the fuel or energy source of a vehicle.
type FuelType string

// Fuel types. Car trips use Diesel, Gasoline, LPG and CNG; train trips use
// Electricity and Diesel.
const (
	FuelDiesel      FuelType = "Diesel"
	FuelGasoline    FuelType = "Gasoline"
	FuelLPG         FuelType = "LPG"
	FuelCNG         FuelType = "CNG"
	FuelElectricity FuelType = "Electricity"
)

// CarFuelTypes lists the fuel types selectable for car trips.
var CarFuelTypes = []FuelType{FuelDiesel, FuelGasoline, FuelLPG, FuelCNG}

// TrainFuelTypes lists the fuel types selectable for train trips.
var TrainFuelTypes = []FuelType{FuelElectricity, FuelDiesel}

// IsTrainFuel reports whether f can be selected for a train trip.
func (f FuelType) IsTrainFuel() bool {
	return f == FuelElectricity || f == FuelDiesel
}

// Unit returns the unit a car fuel is measured in, which is also the
// denominator of its CarSpecificEmissions factor. CNG is sold by mass,
// liquid fuels by volume. Fuels without a car factor have no unit.
func (f FuelType) Unit() string {
	switch f {
	case FuelCNG:
		return "kg"
	case FuelDiesel, FuelGasoline, FuelLPG:
		return "l"
	default:
		return ""
	}
}

// TrainVehicleType distinguishes local from long-distance trains.
type TrainVehicleType string

// Train vehicle types.
const (
	TrainLocal        TrainVehicleType = "Local"
	TrainLongDistance TrainVehicleType = "LongDistance"
)

// TrainVehicleTypes lists the selectable train vehicle types.
var TrainVehicleTypes = []TrainVehicleType{TrainLocal, TrainLongDistance}

// TransportMode is the kind of vehicle a trip was made with.
type TransportMode string

// Transport modes.
const (
	TransportCar   TransportMode = "Car"
	TransportTrain TransportMode = "Train"
)

// InitialTitle returns the default title for a new trip of this mode.
func (m TransportMode) InitialTitle() string {
	switch m {
	case TransportCar:
		return "Car drive"
	case TransportTrain:
		return "Train ride"
	default:
		return ""
	}
}

// carFactors holds kg CO2 per liter (per kg for CNG) of burnt fuel.
var carFactors = map[FuelType]float64{
	FuelDiesel:   2.33,
	FuelGasoline: 2.64,
	FuelLPG:      1.64,
	FuelCNG:      2.79,
}

type trainKey struct {
	fuel    FuelType
	vehicle TrainVehicleType
}

// trainFactors holds g CO2 per passenger-km.
var trainFactors = map[trainKey]float64{
	{FuelElectricity, TrainLocal}:        54.6,
	{FuelElectricity, TrainLongDistance}: 9.48,
	{FuelDiesel, TrainLocal}:             71.3,
	{FuelDiesel, TrainLongDistance}:      44.0,
}

// CarSpecificEmissions returns the CO2 emitted by burning one unit of fuel,
// in kg per liter (kg per kg for CNG). Unknown fuel types yield 0.
func CarSpecificEmissions(fuel FuelType) float64 {
	return carFactors[fuel]
}

// TrainSpecificEmissions returns the CO2 emitted per passenger-km in grams
// for the given combination. Unknown combinations yield 0.
func TrainSpecificEmissions(fuel FuelType, vehicle TrainVehicleType) float64 {
	return trainFactors[trainKey{fuel: fuel, vehicle: vehicle}]
}
