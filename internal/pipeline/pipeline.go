package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/artifact"
	"rasviz/backend/internal/client"
	"rasviz/backend/internal/config"
	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/metrics"
	"rasviz/backend/internal/models"
	"rasviz/backend/internal/repository"
)

// Job names accepted by Run
const (
	JobCollect      = "collect"
	JobMeasurements = "measurements"
	JobCombine      = "combine"
	JobNormalize    = "normalize"
	JobAnalyze      = "analyze"
	JobPositions    = "positions"
	JobCorrelate    = "correlate"
	JobAdvanced     = "advanced"
	JobCheck        = "check"
	JobAll          = "all"
)

// AllJobs is the order the full refresh runs in
var AllJobs = []string{
	JobCollect,
	JobMeasurements,
	JobCombine,
	JobNormalize,
	JobAnalyze,
	JobPositions,
	JobCorrelate,
	JobAdvanced,
}

// ErrUnknownJob is returned for a job name Run does not know
var ErrUnknownJob = errors.New("unknown job")

// errDisabled marks a stage turned off by configuration
var errDisabled = errors.New("disabled by configuration")

// errNoRecords marks a store stage whose producing stage was skipped
var errNoRecords = errors.New("no records to store")

// fatalError marks a stage failure that stops the job
type fatalError struct {
	err error
}

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

// statusOf maps a stage error to its result status. Missing input,
// explicit fatal errors and cancellation stop the job; anything else
// degrades the stage.
func statusOf(err error) models.StageStatus {
	var fe *fatalError
	switch {
	case err == nil:
		return models.StageSuccess
	case errors.As(err, &fe),
		errors.Is(err, ingest.ErrNoInput),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return models.StageFatal
	default:
		return models.StageSkipped
	}
}

// Pipeline runs collection and analysis jobs against one artifact store
type Pipeline struct {
	cfg     *config.Config
	store   *artifact.Store
	client  *client.Client
	aliases *ingest.Aliases
	db      *repository.Database
	out     io.Writer
}

// New creates a pipeline. db may be nil when persistence is disabled.
func New(cfg *config.Config, store *artifact.Store, c *client.Client, aliases *ingest.Aliases, db *repository.Database) *Pipeline {
	return &Pipeline{
		cfg:     cfg,
		store:   store,
		client:  c,
		aliases: aliases,
		db:      db,
		out:     os.Stdout,
	}
}

// WithOutput redirects console tables
func (p *Pipeline) WithOutput(w io.Writer) *Pipeline {
	p.out = w
	return p
}

// Run executes a job, writes the run report and returns it. The error is
// set when a stage failed fatally.
func (p *Pipeline) Run(ctx context.Context, job string) (*models.RunReport, error) {
	jobs := []string{job}
	if job == JobAll {
		jobs = AllJobs
	}
	for _, j := range jobs {
		if p.jobFunc(j) == nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownJob, j)
		}
	}

	report := models.NewRunReport(job)
	log.Info().Str("job", job).Str("run_id", report.RunID.String()).Msg("Run started")

	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		r := &runner{job: j, report: report}
		if err := p.jobFunc(j)(ctx, r); err != nil {
			log.Error().Err(err).Str("job", j).Msg("Job stopped")
		}
	}

	report.Finish()
	metrics.RecordRun(report.Fatal())
	if err := p.store.WriteJSON(artifact.RunReportJSON, report); err != nil {
		log.Error().Err(err).Msg("Failed to write run report")
	}
	printReport(p.out, report)

	log.Info().
		Str("job", job).
		Int("success", report.Count(models.StageSuccess)).
		Int("skipped", report.Count(models.StageSkipped)).
		Int("fatal", report.Count(models.StageFatal)).
		Dur("duration", report.FinishedAt.Sub(report.StartedAt)).
		Msg("Run finished")

	if report.Fatal() {
		return report, fmt.Errorf("job %s finished with fatal stages", job)
	}
	return report, nil
}

func (p *Pipeline) jobFunc(job string) func(context.Context, *runner) error {
	switch job {
	case JobCollect:
		return p.collect
	case JobMeasurements:
		return p.measurements
	case JobCombine:
		return p.combine
	case JobNormalize:
		return p.normalize
	case JobAnalyze:
		return p.analyze
	case JobPositions:
		return p.positions
	case JobCorrelate:
		return p.correlate
	case JobAdvanced:
		return p.advanced
	case JobCheck:
		return p.check
	}
	return nil
}

// output is what a stage produced
type output struct {
	artifacts []string
	rows      int
}

func produced(rows int, kinds ...artifact.Kind) output {
	out := output{rows: rows}
	for _, k := range kinds {
		out.artifacts = append(out.artifacts, k.Name)
	}
	return out
}

// runner records the stages of one job into the shared report
type runner struct {
	job    string
	report *models.RunReport
}

// stage runs fn and records its result. A fatal error is returned so the
// job can stop; other failures are logged and swallowed.
func (r *runner) stage(name string, fn func() (output, error)) error {
	start := time.Now()
	out, err := fn()
	elapsed := time.Since(start)

	result := models.StageResult{
		Stage:     r.job + "/" + name,
		Status:    statusOf(err),
		Artifacts: out.artifacts,
		Rows:      out.rows,
		Duration:  elapsed,
	}
	if err != nil {
		result.Reason = err.Error()
	}
	r.report.Add(result)
	metrics.RecordStage(r.job, name, string(result.Status), elapsed.Seconds())

	evt := log.Info()
	switch result.Status {
	case models.StageSkipped:
		evt = log.Warn().Str("reason", result.Reason)
	case models.StageFatal:
		evt = log.Error().Str("reason", result.Reason)
		metrics.RecordError(r.job, name)
	}
	evt.Str("job", r.job).
		Str("stage", name).
		Int("rows", out.rows).
		Dur("duration", elapsed).
		Msg("Stage " + string(result.Status))

	if result.Status == models.StageFatal {
		return err
	}
	return nil
}

// skip records a stage that did not run
func (r *runner) skip(name string, reason error) {
	_ = r.stage(name, func() (output, error) { return output{}, reason })
}
