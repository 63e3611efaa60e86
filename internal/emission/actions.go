package emission

// Actions understood by both the car and the train engine.

// SetDistance sets the trip distance in km.
type SetDistance struct {
	Km float64
}

// SetSpecificEmissions sets the emissions per km in g CO2.
type SetSpecificEmissions struct {
	Value float64
}

// SetFuelType selects the fuel type.
type SetFuelType struct {
	FuelType FuelType
}
