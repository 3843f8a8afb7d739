package vehiclestate

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kilianp07/fleetpulse/core/model"
)

// State is the latest known reading of a vehicle.
type State struct {
	VehicleID string                `json:"vehicle_id"`
	RunID     string                `json:"run_id"`
	UpdatedAt time.Time             `json:"updated_at"`
	Record    model.AnnotatedRecord `json:"record"`
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	Status *model.Status
	Mode   string
}

// Match reports whether st passes f.
func (f Filter) Match(st State) bool {
	if f.Status != nil && st.Record.Status != *f.Status {
		return false
	}
	if f.Mode != "" && st.Record.Mode != f.Mode {
		return false
	}
	return true
}

// Store keeps the latest state per vehicle.
type Store interface {
	// Upsert replaces the state of every vehicle in recs.
	Upsert(ctx context.Context, runID string, at time.Time, recs []model.AnnotatedRecord) error
	Get(ctx context.Context, id string) (State, bool, error)
	// List returns matching states ordered by vehicle id.
	List(ctx context.Context, f Filter) ([]State, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]State{}}
}

func (s *MemoryStore) Upsert(_ context.Context, runID string, at time.Time, recs []model.AnnotatedRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range recs {
		if r.ID == "" {
			continue
		}
		s.data[r.ID] = State{VehicleID: r.ID, RunID: runID, UpdatedAt: at, Record: r}
	}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (State, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.data[id]
	return st, ok, nil
}

func (s *MemoryStore) List(_ context.Context, f Filter) ([]State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]State, 0, len(s.data))
	for _, st := range s.data {
		if f.Match(st) {
			res = append(res, st)
		}
	}
	SortByID(res)
	return res, nil
}

// SortByID orders states by vehicle id.
func SortByID(states []State) {
	sort.Slice(states, func(i, j int) bool { return states[i].VehicleID < states[j].VehicleID })
}
