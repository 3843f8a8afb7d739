package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kilianp07/fleetpulse/core/model"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatHTML = "html"
)

// Write renders res to w in the given format.
func Write(w io.Writer, format string, res *model.PipelineResult) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return WriteJSON(w, res)
	case FormatCSV:
		return WriteCSV(w, res)
	case FormatHTML:
		return WriteHTML(w, res)
	default:
		return fmt.Errorf("unknown export format %q", format)
	}
}

// WriteJSON writes the pipeline result to w in JSON format.
func WriteJSON(w io.Writer, res *model.PipelineResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

// WriteCSV writes one row per vehicle. Entries rejected by the decoder are
// appended with an empty status and the error message as reason.
func WriteCSV(w io.Writer, res *model.PipelineResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"vehicle_id", "status", "speed", "latitude", "longitude", "reasons"}); err != nil {
		return err
	}
	known := make(map[string]struct{}, len(res.Vehicles))
	for _, v := range res.Vehicles {
		known[v.ID] = struct{}{}
		rec := []string{
			v.ID,
			v.Status.String(),
			formatFloat(v.Speed),
			formatFloat(v.Latitude),
			formatFloat(v.Longitude),
			strings.Join(v.Reasons, "; "),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	for _, e := range res.Errors {
		if _, ok := known[e.VehicleID]; ok {
			continue
		}
		if err := cw.Write([]string{e.VehicleID, "", "", "", "", e.Message}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }
