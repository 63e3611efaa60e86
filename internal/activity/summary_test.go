package activity_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
)

func TestSummaryWindowStart(t *testing.T) {
	now := time.Date(2024, 6, 20, 17, 45, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC), activity.SummaryWindowStart(now))
}

func TestSummarize(t *testing.T) {
	since := time.Date(2023, 6, 20, 0, 0, 0, 0, time.UTC)
	items := []activity.ListItem{
		{ID: "1", Date: "2024-01-01T00:00:00.000Z", TotalEmissions: 30.5, TransportMode: emission.TransportCar},
		{ID: "2", Date: "2024-02-01T00:00:00.000Z", TotalEmissions: 20.06, TransportMode: emission.TransportTrain},
		{ID: "3", Date: "2022-02-01T00:00:00.000Z", TotalEmissions: 100, TransportMode: emission.TransportCar},
	}

	sum := activity.Summarize(items, since)

	assert.Equal(t, 2, sum.Count)
	assert.InDelta(t, 50.56, sum.TotalEmissions, 1e-9)
	assert.InDelta(t, 30.5, sum.ByMode[emission.TransportCar], 1e-9)
	assert.InDelta(t, 20.06, sum.ByMode[emission.TransportTrain], 1e-9)
	assert.Equal(t, "In the last 12 months you emitted 50.56 kg of CO2.", sum.String())
}

func TestSummarize_Empty(t *testing.T) {
	sum := activity.Summarize(nil, time.Time{})

	assert.Zero(t, sum.Count)
	assert.Equal(t, "In the last 12 months you emitted 0.00 kg of CO2.", sum.String())
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "2024-01-15: 1.09 kg CO2",
		activity.Describe(activity.ListItem{Date: "2024-01-15T00:00:00.000Z", TotalEmissions: 1.092}, time.UTC))
	assert.Equal(t, "3.50 kg CO2",
		activity.Describe(activity.ListItem{TotalEmissions: 3.5}, time.UTC))
}
