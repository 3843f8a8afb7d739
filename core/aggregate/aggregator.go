package aggregate

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Aggregator folds annotated records into a FleetSummary.
type Aggregator struct {
	now func() time.Time
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for GeneratedAt.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// New returns an Aggregator reading the system clock.
func New(opts ...Option) *Aggregator {
	a := &Aggregator{now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate computes fleet statistics. Mean speed and centroid cover valid
// records only. The result does not depend on the order of records apart from
// GeneratedAt, which is read once from the clock.
func (a *Aggregator) Aggregate(records []model.AnnotatedRecord) model.FleetSummary {
	sum := model.FleetSummary{
		TotalVehicles: len(records),
		StatusCounts:  make(map[model.Status]int, len(model.Statuses)),
	}
	for _, s := range model.Statuses {
		sum.StatusCounts[s] = 0
	}

	valid := make([]model.VehicleRecord, 0, len(records))
	for _, r := range records {
		sum.StatusCounts[r.Status]++
		if r.Valid() {
			valid = append(valid, r.VehicleRecord)
		}
	}
	sum.ValidVehicles = len(valid)

	if len(valid) > 0 {
		sortCanonical(valid)
		speeds := make([]float64, len(valid))
		lats := make([]float64, len(valid))
		lons := make([]float64, len(valid))
		for i, v := range valid {
			speeds[i] = v.Speed
			lats[i] = v.Latitude
			lons[i] = v.Longitude
		}
		sum.AverageSpeed = stat.Mean(speeds, nil)
		sum.Centroid = model.Position{Lat: stat.Mean(lats, nil), Lon: stat.Mean(lons, nil)}
	}

	sum.GeneratedAt = a.now().UTC()
	return sum
}

// sortCanonical orders records so floating point sums are reproducible
// whatever order the records arrived in.
func sortCanonical(rs []model.VehicleRecord) {
	sort.Slice(rs, func(i, j int) bool {
		a, b := rs[i], rs[j]
		if a.ID != b.ID {
			return a.ID < b.ID
		}
		if a.Speed != b.Speed {
			return a.Speed < b.Speed
		}
		if a.Latitude != b.Latitude {
			return a.Latitude < b.Latitude
		}
		return a.Longitude < b.Longitude
	})
}
