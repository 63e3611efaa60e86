package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"slices"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/emissiontracker/emissiontracker/internal/activity"
	"github.com/emissiontracker/emissiontracker/internal/emission"
	"github.com/emissiontracker/emissiontracker/internal/session"
)

var errUsage = errors.New("usage")

const usage = `usage: tripctl <command> [flags]

commands:
  car      log or edit a car trip
  train    log or edit a train trip
  list     list all trips, newest first
  show     print a trip as JSON
  delete   delete a trip
  summary  print the emissions of the last 12 months
  factors  print the emission factors
`

const dateLayout = "2006-01-02"

func (a *app) execute(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command given\n%s", errUsage, usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "car":
		return a.car(ctx, rest)
	case "train":
		return a.train(ctx, rest)
	case "list":
		return a.list(ctx)
	case "show":
		return a.show(ctx, rest)
	case "delete":
		return a.delete(ctx, rest)
	case "summary":
		return a.summary(ctx)
	case "factors":
		return a.factors()
	case "help", "-h", "-help", "--help":
		fmt.Fprint(a.out, usage)
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q\n%s", errUsage, cmd, usage)
	}
}

// tripFlags are the flags shared by car and train.
type tripFlags struct {
	id     *string
	title  *string
	date   *string
	dryRun *bool
}

func newTripFlags(fs *flag.FlagSet) tripFlags {
	return tripFlags{
		id:     fs.String("id", "", "edit the saved trip with this ID"),
		title:  fs.String("title", "", "trip title"),
		date:   fs.String("date", "", "trip date (YYYY-MM-DD, default today)"),
		dryRun: fs.Bool("dry-run", false, "print the request instead of saving"),
	}
}

// given returns the names of the flags set on the command line.
func given(fs *flag.FlagSet) map[string]bool {
	set := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

// checkQuantities rejects given float flags that are not finite and
// non-negative. strconv accepts "NaN", "Inf" and signs, the engine does
// not take them.
func checkQuantities(fs *flag.FlagSet) error {
	var err error
	fs.Visit(func(f *flag.Flag) {
		if err != nil {
			return
		}
		g, ok := f.Value.(flag.Getter)
		if !ok {
			return
		}
		v, ok := g.Get().(float64)
		if !ok {
			return
		}
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			err = fmt.Errorf("%w: -%s must be a non-negative number, got %s", errUsage, f.Name, f.Value)
		}
	})
	return err
}

func (a *app) car(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("car", flag.ContinueOnError)
	fs.SetOutput(a.out)
	common := newTripFlags(fs)
	distance := fs.Float64("distance", 0, "distance in km")
	specificEmissions := fs.Float64("specific-emissions", 0, "emissions in g CO2/km")
	fuel := fs.String("fuel", "", "fuel type: Diesel, Gasoline, LPG or CNG")
	specificFuel := fs.Float64("specific-fuel", 0, "fuel consumption per 100 km")
	totalFuel := fs.Float64("total-fuel", 0, "fuel consumed on the trip")
	mode := fs.String("mode", "", "calculation mode: SpecificEmissions, TotalFuel or SpecificFuel")
	persons := fs.Int("persons", 0, "persons sharing the car")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkQuantities(fs); err != nil {
		return err
	}
	set := given(fs)

	var actions []emission.CarAction
	if set["mode"] {
		m := emission.CalcMode(*mode)
		if !slices.Contains(emission.CalcModes, m) {
			return fmt.Errorf("%w: unknown calculation mode %q", errUsage, *mode)
		}
		actions = append(actions, emission.SetCalcMode{Mode: m})
	}
	if set["fuel"] {
		f := emission.FuelType(*fuel)
		if !slices.Contains(emission.CarFuelTypes, f) {
			return fmt.Errorf("%w: %q is not a car fuel type", errUsage, *fuel)
		}
		actions = append(actions, emission.SetFuelType{FuelType: f})
	}
	if set["specific-fuel"] {
		actions = append(actions, emission.SetSpecificFuelConsumption{Value: *specificFuel})
	}
	if set["specific-emissions"] {
		actions = append(actions, emission.SetSpecificEmissions{Value: *specificEmissions})
	}
	if set["total-fuel"] {
		actions = append(actions, emission.SetTotalFuelConsumption{Value: *totalFuel})
	}
	// Distance after specific fuel so the derived fuel total is current.
	if set["distance"] {
		actions = append(actions, emission.SetDistance{Km: *distance})
	}
	if set["persons"] {
		if *persons < 1 {
			return fmt.Errorf("%w: persons must be at least 1", errUsage)
		}
		actions = append(actions, emission.SetPersons{Persons: *persons})
	}

	s := session.NewCar(a.store, a.opts)
	if *common.id != "" {
		var err error
		if s, err = session.LoadCar(ctx, a.store, *common.id, a.opts); err != nil {
			return err
		}
	}
	for _, act := range actions {
		s.Dispatch(act)
	}

	return a.finishTrip(ctx, s, common, set)
}

func (a *app) train(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	fs.SetOutput(a.out)
	common := newTripFlags(fs)
	distance := fs.Float64("distance", 0, "distance in km")
	specificEmissions := fs.Float64("specific-emissions", 0, "emissions in g CO2 per passenger-km")
	fuel := fs.String("fuel", "", "fuel type: Electricity or Diesel")
	vehicle := fs.String("vehicle", "", "vehicle type: Local or LongDistance")
	total := fs.Float64("total", 0, "total emissions in kg CO2")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := checkQuantities(fs); err != nil {
		return err
	}
	set := given(fs)

	var actions []emission.TrainAction
	if set["fuel"] {
		f := emission.FuelType(*fuel)
		if !f.IsTrainFuel() {
			return fmt.Errorf("%w: %q is not a train fuel type", errUsage, *fuel)
		}
		actions = append(actions, emission.SetFuelType{FuelType: f})
	}
	if set["vehicle"] {
		v := emission.TrainVehicleType(*vehicle)
		if !slices.Contains(emission.TrainVehicleTypes, v) {
			return fmt.Errorf("%w: unknown vehicle type %q", errUsage, *vehicle)
		}
		actions = append(actions, emission.SetTrainVehicleType{VehicleType: v})
	}
	if set["specific-emissions"] {
		actions = append(actions, emission.SetSpecificEmissions{Value: *specificEmissions})
	}
	if set["distance"] {
		actions = append(actions, emission.SetDistance{Km: *distance})
	}
	if set["total"] {
		actions = append(actions, emission.SetTotalEmissions{Value: *total})
	}

	s := session.NewTrain(a.store, a.opts)
	if *common.id != "" {
		var err error
		if s, err = session.LoadTrain(ctx, a.store, *common.id, a.opts); err != nil {
			return err
		}
	}
	for _, act := range actions {
		s.Dispatch(act)
	}

	return a.finishTrip(ctx, s, common, set)
}

// editor is the part of a car or train session finishTrip needs.
type editor interface {
	ID() string
	SetTitle(string)
	SetDate(time.Time)
	TotalEmissions() float64
	CreateRequest() *activity.CreateRequest
	Save(ctx context.Context) (string, error)
}

func (a *app) finishTrip(ctx context.Context, s editor, common tripFlags, set map[string]bool) error {
	if set["title"] {
		s.SetTitle(*common.title)
	}
	if set["date"] {
		date, err := time.ParseInLocation(dateLayout, *common.date, time.Local)
		if err != nil {
			return fmt.Errorf("%w: date must look like %s", errUsage, dateLayout)
		}
		s.SetDate(date)
	}

	if *common.dryRun {
		return writeJSON(a.out, s.CreateRequest())
	}

	id, err := s.Save(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s: %.2f kg CO2\n", id, s.TotalEmissions())
	return nil
}

func (a *app) list(ctx context.Context) error {
	items, err := session.NewOverview(a.store, a.opts).List(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODE\tTITLE\tEMISSIONS")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", item.ID, item.TransportMode, item.Title, activity.Describe(item, time.Local))
	}
	return w.Flush()
}

func (a *app) show(ctx context.Context, args []string) error {
	id, err := singleID("show", args)
	if err != nil {
		return err
	}

	rec, err := a.store.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("loading activity %s: %w", id, err)
	}
	return writeJSON(a.out, rec)
}

func (a *app) delete(ctx context.Context, args []string) error {
	id, err := singleID("delete", args)
	if err != nil {
		return err
	}

	if err := a.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting activity %s: %w", id, err)
	}
	fmt.Fprintf(a.out, "deleted %s\n", id)
	return nil
}

func (a *app) summary(ctx context.Context) error {
	sum, err := session.NewOverview(a.store, a.opts).Summary(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, sum.String())

	modes := make([]string, 0, len(sum.ByMode))
	for m := range sum.ByMode {
		modes = append(modes, string(m))
	}
	sort.Strings(modes)
	for _, m := range modes {
		fmt.Fprintf(a.out, "  %s: %.2f kg\n", m, sum.ByMode[emission.TransportMode(m)])
	}
	return nil
}

func (a *app) factors() error {
	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)

	fmt.Fprintln(w, "CAR FUEL\tKG CO2 PER UNIT")
	for _, f := range emission.CarFuelTypes {
		fmt.Fprintf(w, "%s\t%.2f per %s\n", f, emission.CarSpecificEmissions(f), f.Unit())
	}

	fmt.Fprintln(w, "\nTRAIN\tG CO2 PER PASSENGER-KM")
	for _, f := range emission.TrainFuelTypes {
		for _, v := range emission.TrainVehicleTypes {
			fmt.Fprintf(w, "%s %s\t%.2f\n", f, v, emission.TrainSpecificEmissions(f, v))
		}
	}
	return w.Flush()
}

func singleID(cmd string, args []string) (string, error) {
	if len(args) != 1 || args[0] == "" {
		return "", fmt.Errorf("%w: tripctl %s <id>", errUsage, cmd)
	}
	return args[0], nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
