package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fleetpulse/app"
	coremetrics "github.com/kilianp07/fleetpulse/core/metrics"
	"github.com/kilianp07/fleetpulse/core/pipeline"
	"github.com/kilianp07/fleetpulse/infra/logger"
	"github.com/kilianp07/fleetpulse/pkg/export"
)

var runOpts struct {
	url     string
	timeout time.Duration
	retries int
	format  string
	output  string
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline once and print the result",
	RunE:  runOnce,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runOpts.url, "url", "", "telemetry endpoint (defaults to source.url)")
	f.DurationVar(&runOpts.timeout, "timeout", 0, "request timeout (defaults to source.timeout_ms)")
	f.IntVar(&runOpts.retries, "retries", -1, "retries on temporary transport errors (defaults to source.retry.max_retries)")
	f.StringVarP(&runOpts.format, "format", "f", export.FormatJSON, "output format: json, csv or html")
	f.StringVarP(&runOpts.output, "output", "o", "", "output file (defaults to stdout)")
	rootCmd.AddCommand(runCmd)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runOpts.url != "" {
		cfg.Source.URL = runOpts.url
	}
	if cfg.Source.URL == "" {
		return fmt.Errorf("no telemetry url: use --url or source.url")
	}
	if runOpts.timeout > 0 {
		cfg.Source.TimeoutMS = int(runOpts.timeout / time.Millisecond)
	}
	if runOpts.retries >= 0 {
		cfg.Source.Retry.MaxRetries = runOpts.retries
	}

	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return fmt.Errorf("metrics sink: %w", err)
	}
	runner, err := app.NewRunner(cfg, nil, sink, nil, nil, logger.New("run"))
	if err != nil {
		return err
	}
	res, err := runner.Run(ctx, cfg.Source.URL, cfg.Source.Timeout())
	if err != nil {
		return fmt.Errorf("%s: %w", pipeline.ErrorKind(err), err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if runOpts.output != "" {
		f, err := os.Create(runOpts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	return export.Write(w, runOpts.format, res)
}
