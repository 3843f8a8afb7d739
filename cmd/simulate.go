package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetpulse/infra/logger"
	"github.com/kilianp07/fleetpulse/simulator"
)

var simOpts struct {
	address  string
	size     int
	seed     int64
	scenario string
}

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated fleet on /latest-data",
	RunE:  simulate,
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.address, "addr", "", "listen address (defaults to simulator.address)")
	f.IntVar(&simOpts.size, "vehicles", 0, "number of generated vehicles")
	f.Int64Var(&simOpts.seed, "seed", 0, "random seed")
	f.StringVar(&simOpts.scenario, "scenario", "", "yaml scenario file")
	rootCmd.AddCommand(simulateCmd)
}

func simulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sc := cfg.Simulator
	if simOpts.address != "" {
		sc.Address = simOpts.address
	}
	if simOpts.size > 0 {
		sc.FleetSize = simOpts.size
	}
	if simOpts.seed != 0 {
		sc.Seed = simOpts.seed
	}
	if simOpts.scenario != "" {
		sc.ScenarioFile = simOpts.scenario
	}
	sc.SetDefaults()
	if err := sc.Validate(); err != nil {
		return err
	}

	faults := sc.Faults
	var fleet *simulator.Fleet
	if sc.ScenarioFile != "" {
		scn, err := simulator.LoadScenario(sc.ScenarioFile)
		if err != nil {
			return err
		}
		if scn.Faults != nil {
			faults = *scn.Faults
		}
		fleet = scn.Fleet(sc.Seed)
	} else {
		fleet = simulator.GenerateFleet(sc.FleetSize, sc.Seed)
	}
	srv := simulator.NewServer(fleet, faults, logger.New("simulator"))
	return srv.ListenAndServe(ctx, sc.Address, sc.TickInterval)
}
