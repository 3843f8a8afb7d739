package vehicles

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/vehiclestate"
)

// NewStateHandler returns an HTTP handler exposing the latest vehicle states
// via GET /api/fleet/vehicles and GET /api/fleet/vehicles/{id}.
func NewStateHandler(store vehiclestate.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if store == nil {
			http.Error(w, "state store disabled", http.StatusServiceUnavailable)
			return
		}
		if id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/fleet/vehicles"), "/"); id != "" {
			st, ok, err := store.Get(r.Context(), id)
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			if !ok {
				http.NotFound(w, r)
				return
			}
			writeJSON(w, st)
			return
		}
		f := vehiclestate.Filter{Mode: r.URL.Query().Get("mode")}
		if s := r.URL.Query().Get("status"); s != "" {
			st, err := model.ParseStatus(s)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			f.Status = &st
		}
		entries, err := store.List(r.Context(), f)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, entries)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

// NewNearbyHandler serves GET /api/fleet/nearby?lat=&lon=&radius_km= for
// stores implementing vehiclestate.Locator.
func NewNearbyHandler(store vehiclestate.Store) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		loc, ok := store.(vehiclestate.Locator)
		if !ok {
			http.Error(w, "position search unavailable", http.StatusNotImplemented)
			return
		}
		q := r.URL.Query()
		lat, err1 := strconv.ParseFloat(q.Get("lat"), 64)
		lon, err2 := strconv.ParseFloat(q.Get("lon"), 64)
		radius, err3 := strconv.ParseFloat(q.Get("radius_km"), 64)
		if err := errors.Join(err1, err2, err3); err != nil {
			http.Error(w, "lat, lon and radius_km must be numbers", http.StatusBadRequest)
			return
		}
		pos := model.Position{Lat: lat, Lon: lon}
		if radius <= 0 || !(model.VehicleRecord{Latitude: lat, Longitude: lon}).PositionInRange() {
			http.Error(w, "position or radius out of range", http.StatusBadRequest)
			return
		}
		ids, err := loc.Nearby(r.Context(), pos, radius)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if ids == nil {
			ids = []string{}
		}
		writeJSON(w, ids)
	})
}
