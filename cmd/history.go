package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetpulse/core/runlog"
)

var historyOpts struct {
	since     time.Duration
	vehicleID string
	outcome   string
	limit     int
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print recorded pipeline runs as JSON lines",
	RunE:  history,
}

func init() {
	f := historyCmd.Flags()
	f.DurationVar(&historyOpts.since, "since", 0, "only runs newer than this")
	f.StringVar(&historyOpts.vehicleID, "vehicle", "", "only runs mentioning this vehicle")
	f.StringVar(&historyOpts.outcome, "outcome", "", "success, transport_error or decode_error")
	f.IntVar(&historyOpts.limit, "limit", 20, "most recent runs to print, 0 for all")
	rootCmd.AddCommand(historyCmd)
}

func history(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return err
	}
	if store == nil {
		return fmt.Errorf("run log disabled: set run_log.type")
	}
	defer store.Close()

	q := runlog.Query{VehicleID: historyOpts.vehicleID, Outcome: historyOpts.outcome, Limit: historyOpts.limit}
	if historyOpts.since > 0 {
		q.Start = time.Now().Add(-historyOpts.since)
	}
	recs, err := store.Query(context.Background(), q)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	for _, rec := range recs {
		rec.Result = nil
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}
