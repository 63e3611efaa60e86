package emission_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/emissiontracker/emissiontracker/internal/emission"
)

func TestCarSpecificEmissions(t *testing.T) {
	tests := []struct {
		fuel emission.FuelType
		want float64
	}{
		{emission.FuelDiesel, 2.33},
		{emission.FuelGasoline, 2.64},
		{emission.FuelLPG, 1.64},
		{emission.FuelCNG, 2.79},
		{emission.FuelElectricity, 0},
		{emission.FuelType("Hydrogen"), 0},
	}

	for _, tt := range tests {
		t.Run(string(tt.fuel), func(t *testing.T) {
			assert.Equal(t, tt.want, emission.CarSpecificEmissions(tt.fuel))
		})
	}
}

func TestTrainSpecificEmissions(t *testing.T) {
	tests := []struct {
		name    string
		fuel    emission.FuelType
		vehicle emission.TrainVehicleType
		want    float64
	}{
		{"electric local", emission.FuelElectricity, emission.TrainLocal, 54.6},
		{"electric long distance", emission.FuelElectricity, emission.TrainLongDistance, 9.48},
		{"diesel local", emission.FuelDiesel, emission.TrainLocal, 71.3},
		{"diesel long distance", emission.FuelDiesel, emission.TrainLongDistance, 44.0},
		{"gasoline is not a train fuel", emission.FuelGasoline, emission.TrainLocal, 0},
		{"unknown vehicle", emission.FuelDiesel, emission.TrainVehicleType("Tram"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, emission.TrainSpecificEmissions(tt.fuel, tt.vehicle))
		})
	}
}

func TestFuelType_Unit(t *testing.T) {
	assert.Equal(t, "l", emission.FuelDiesel.Unit())
	assert.Equal(t, "l", emission.FuelLPG.Unit())
	assert.Equal(t, "kg", emission.FuelCNG.Unit())
	assert.Equal(t, "l", emission.FuelGasoline.Unit())
	assert.Empty(t, emission.FuelElectricity.Unit(), "train fuels have no car unit")
	assert.Empty(t, emission.FuelType("Hydrogen").Unit())
}

func TestFuelType_IsTrainFuel(t *testing.T) {
	assert.True(t, emission.FuelElectricity.IsTrainFuel())
	assert.True(t, emission.FuelDiesel.IsTrainFuel())
	assert.False(t, emission.FuelGasoline.IsTrainFuel())
	assert.False(t, emission.FuelCNG.IsTrainFuel())
}

func TestTransportMode_InitialTitle(t *testing.T) {
	assert.Equal(t, "Car drive", emission.TransportCar.InitialTitle())
	assert.Equal(t, "Train ride", emission.TransportTrain.InitialTitle())
	assert.Empty(t, emission.TransportMode("Bike").InitialTitle())
}
