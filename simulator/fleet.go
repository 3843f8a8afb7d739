package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/telemetry"
)

// DefaultOrigin is the corner of the area generated vehicles start in.
var DefaultOrigin = model.Position{Lat: 39.8, Lon: 116.3}

// Fleet is a set of simulated vehicles. It is safe for concurrent use.
type Fleet struct {
	mu       sync.Mutex
	rng      *rand.Rand
	vehicles []*Vehicle
}

// NewFleet wraps the given vehicles. seed drives every random decision.
func NewFleet(vehicles []*Vehicle, seed int64) *Fleet {
	return &Fleet{rng: rand.New(rand.NewSource(seed)), vehicles: vehicles}
}

// GenerateFleet creates size moving vehicles with IDs veh0001..vehNNNN.
func GenerateFleet(size int, seed int64) *Fleet {
	f := NewFleet(nil, seed)
	for i := 0; i < size; i++ {
		f.vehicles = append(f.vehicles, NewVehicle(fmt.Sprintf("veh%04d", i+1), f.rng, DefaultOrigin))
	}
	return f
}

// Len returns the number of vehicles.
func (f *Fleet) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.vehicles)
}

// Step advances every vehicle by dt.
func (f *Fleet) Step(dt time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.vehicles {
		v.Step(dt, f.rng)
	}
}

// Run steps the fleet every interval until ctx is done.
func (f *Fleet) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			f.Step(interval)
		case <-ctx.Done():
			return
		}
	}
}

// Records returns the current state of every vehicle.
func (f *Fleet) Records(at time.Time) []model.VehicleRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.VehicleRecord, len(f.vehicles))
	for i, v := range f.vehicles {
		out[i] = v.Record(at)
	}
	return out
}

// Payload renders the fleet as a telemetry document, injecting faults with
// the configured probabilities.
func (f *Fleet) Payload(at time.Time, faults Faults) ([]byte, error) {
	recs := f.Records(at)

	f.mu.Lock()
	entries := make(map[string]json.RawMessage, len(recs))
	for _, r := range recs {
		if faults.NullRate > 0 && f.rng.Float64() < faults.NullRate {
			entries[r.ID] = json.RawMessage("null")
			continue
		}
		if faults.OutOfRangeRate > 0 && f.rng.Float64() < faults.OutOfRangeRate {
			corrupt(&r, f.rng)
		}
		b, err := json.Marshal(telemetry.EntryFor(r))
		if err != nil {
			f.mu.Unlock()
			return nil, fmt.Errorf("encode %s: %w", r.ID, err)
		}
		entries[r.ID] = b
	}
	f.mu.Unlock()

	return json.Marshal(map[string]any{"telemetry": entries})
}

func corrupt(r *model.VehicleRecord, rng *rand.Rand) {
	switch rng.Intn(3) {
	case 0:
		r.Speed = 301 + rng.Float64()*200
	case 1:
		r.Speed = -1 - rng.Float64()*50
	default:
		r.Latitude = 91 + rng.Float64()*10
	}
}
