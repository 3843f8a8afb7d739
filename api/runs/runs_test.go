package runs

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fleetpulse/core/model"
	"github.com/kilianp07/fleetpulse/core/runlog"
)

func seeded(t *testing.T) runlog.Store {
	t.Helper()
	store, err := runlog.NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	res := &model.PipelineResult{Vehicles: []model.AnnotatedRecord{{VehicleRecord: model.VehicleRecord{ID: "v1"}}}}
	require.NoError(t, store.Append(context.Background(), runlog.Record{RunID: "r1", Timestamp: base, Outcome: "success", Result: res}))
	require.NoError(t, store.Append(context.Background(), runlog.Record{RunID: "r2", Timestamp: base.Add(time.Minute), Outcome: "transport_error", Error: "timeout"}))
	return store
}

func get(h http.Handler, target, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRunsHandlerAuthAndFilters(t *testing.T) {
	h := NewHandler(seeded(t), "tok")

	rr := get(h, "/api/runs?vehicle_id=v1", "tok")
	require.Equal(t, http.StatusOK, rr.Code)
	var out []runlog.Record
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r1", out[0].RunID)

	rr = get(h, "/api/runs?outcome=transport_error", "tok")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r2", out[0].RunID)

	rr = get(h, "/api/runs?limit=1", "tok")
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "r2", out[0].RunID)

	assert.Equal(t, http.StatusUnauthorized, get(h, "/api/runs", "").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/api/runs?start=yesterday", "tok").Code)
}

func TestRunsHandlerEmptyAndDisabled(t *testing.T) {
	h := NewHandler(seeded(t), "")
	rr := get(h, "/api/runs?outcome=decode_error", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "[]\n", rr.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, get(NewHandler(nil, ""), "/api/runs", "").Code)
}
