package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"rasviz/backend/internal/app"
	"rasviz/backend/internal/config"
	"rasviz/backend/internal/pipeline"
)

var (
	backendDir  string
	frontendDir string
)

var rootCmd = &cobra.Command{
	Use:           "raspipe",
	Short:         "raspipe collects RAS and pro-bowl data and writes the visualization artifacts.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var jobs = []struct {
	name  string
	short string
}{
	{pipeline.JobCollect, "Scrape the pro-bowler list and enrich it from player profiles"},
	{pipeline.JobMeasurements, "Scrape detailed measurements for every listed player"},
	{pipeline.JobCombine, "Scrape Pro Football Reference combine results and accolades"},
	{pipeline.JobNormalize, "Normalize the pro-bowler table and export processed data"},
	{pipeline.JobAnalyze, "Compute descriptive statistics"},
	{pipeline.JobPositions, "Summarize players by position"},
	{pipeline.JobCorrelate, "Correlate measurements with pro-bowl success"},
	{pipeline.JobAdvanced, "Fit regressions and classifiers and write the prediction grid"},
	{pipeline.JobCheck, "Report what the measurements file contains"},
	{pipeline.JobAll, "Run every job from collection through modeling"},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendDir, "backend-dir", "", "override BACKEND_DIR")
	rootCmd.PersistentFlags().StringVar(&frontendDir, "frontend-dir", "", "override FRONTEND_DATA_DIR")

	for _, j := range jobs {
		job := j.name
		rootCmd.AddCommand(&cobra.Command{
			Use:   job,
			Short: j.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd.Context(), job)
			},
		})
	}
}

func run(ctx context.Context, job string) error {
	cfg := config.MustLoad()
	if backendDir != "" {
		cfg.BackendDir = backendDir
	}
	if frontendDir != "" {
		cfg.FrontendDataDir = frontendDir
	}
	app.SetupLogger(cfg)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	_, err = a.Pipeline.Run(ctx, job)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			log.Warn().Msg("Interrupted")
		}
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
