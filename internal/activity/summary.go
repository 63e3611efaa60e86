package activity

import (
	"fmt"
	"time"

	"github.com/emissiontracker/emissiontracker/internal/emission"
)

// SummaryWindowStart returns the start of the 12 month window ending at now.
func SummaryWindowStart(now time.Time) time.Time {
	return StartOfDay(now.AddDate(-1, 0, 0))
}

// Summary aggregates the emissions of a set of activities.
type Summary struct {
	Since          time.Time
	Count          int
	TotalEmissions float64 // kg CO2
	ByMode         map[emission.TransportMode]float64
}

// Summarize totals items. Items dated before since are ignored.
func Summarize(items []ListItem, since time.Time) Summary {
	sum := Summary{
		Since:  since,
		ByMode: make(map[emission.TransportMode]float64),
	}

	for _, item := range items {
		if item.Date != "" && !since.IsZero() {
			if date, err := ParseDate(item.Date); err == nil && date.Before(since) {
				continue
			}
		}
		sum.Count++
		sum.TotalEmissions += item.TotalEmissions
		if item.TransportMode != "" {
			sum.ByMode[item.TransportMode] += item.TotalEmissions
		}
	}

	return sum
}

func (s Summary) String() string {
	return fmt.Sprintf("In the last 12 months you emitted %.2f kg of CO2.", s.TotalEmissions)
}

// Describe renders the one-line overview description of item in loc.
func Describe(item ListItem, loc *time.Location) string {
	var date string
	if item.Date != "" {
		if t, err := ParseDate(item.Date); err == nil {
			date = t.In(loc).Format("2006-01-02")
		}
	}

	switch {
	case date != "":
		return fmt.Sprintf("%s: %.2f kg CO2", date, item.TotalEmissions)
	default:
		return fmt.Sprintf("%.2f kg CO2", item.TotalEmissions)
	}
}
