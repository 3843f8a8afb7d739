package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetpulse/app"
	"github.com/kilianp07/fleetpulse/config"
	"github.com/kilianp07/fleetpulse/infra/logger"
)

var (
	cfgPath string
	watch   bool
)

var rootCmd = &cobra.Command{
	Use:           "fleetpulse",
	Short:         "Fleet telemetry pipeline",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the poller and the MQTT bridge",
	RunE:  serve,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (json or yaml)")
	serveCmd.Flags().BoolVar(&watch, "watch", false, "reload log level and thresholds when the config file changes")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	if watch && cfgPath != "" {
		go func() {
			if err := config.Watch(ctx, cfgPath, logger.New("config"), svc.Reload); err != nil {
				logger.New("config").Errorf("config watch: %v", err)
			}
		}()
	}
	return svc.Run(ctx)
}
