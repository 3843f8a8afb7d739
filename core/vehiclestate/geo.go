package vehiclestate

import (
	"context"
	"math"
	"sort"

	"github.com/kilianp07/fleetpulse/core/model"
)

const earthRadiusKm = 6371.0088

// Locator is implemented by stores that can search vehicles by position.
type Locator interface {
	// Nearby returns the ids of valid vehicles within radiusKm of pos,
	// nearest first.
	Nearby(ctx context.Context, pos model.Position, radiusKm float64) ([]string, error)
}

var _ Locator = (*MemoryStore)(nil)

func (s *MemoryStore) Nearby(_ context.Context, pos model.Position, radiusKm float64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	type hit struct {
		id   string
		dist float64
	}
	var hits []hit
	for id, st := range s.data {
		if !st.Record.Valid() {
			continue
		}
		if d := DistanceKm(pos, st.Record.Position()); d <= radiusKm {
			hits = append(hits, hit{id: id, dist: d})
		}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].dist == hits[j].dist {
			return hits[i].id < hits[j].id
		}
		return hits[i].dist < hits[j].dist
	})
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.id
	}
	return ids, nil
}

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b model.Position) float64 {
	lat1, lat2 := a.Lat*math.Pi/180, b.Lat*math.Pi/180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
