package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"rasviz/backend/internal/analysis"
	"rasviz/backend/internal/artifact"
	"rasviz/backend/internal/ingest"
	"rasviz/backend/internal/metrics"
	"rasviz/backend/internal/models"
	"rasviz/backend/internal/scraper"
)

// collect scrapes the pro-bowler list and enriches each linked player
func (p *Pipeline) collect(ctx context.Context, r *runner) error {
	ras := scraper.NewRASScraper(p.client, p.cfg.ProBowlersURL, p.cfg.EnrichDelay)

	var tbl *models.Table
	if err := r.stage("scrape_list", func() (output, error) {
		raw, err := ras.ScrapeProBowlers(ctx)
		if err != nil {
			return output{}, fatal(err)
		}
		tbl = raw.Table()
		if err := p.store.WriteCells(artifact.ProBowlersBasicCSV, tbl); err != nil {
			return output{}, err
		}
		return produced(tbl.Len(), artifact.ProBowlersBasicCSV), nil
	}); err != nil {
		return err
	}

	return r.stage("enrich_profiles", func() (output, error) {
		players, err := ras.EnrichProBowlers(ctx, tbl)
		if err != nil {
			return output{}, err
		}
		if len(players) == 0 {
			return output{}, fmt.Errorf("%w: no linked player names", scraper.ErrNoLinks)
		}
		records := artifact.Flatteners(players)
		if err := p.store.WriteCSV(artifact.ProBowlersDetailedCSV, records); err != nil {
			return output{}, err
		}
		if err := p.store.WriteRecords(artifact.ProBowlersJSON, records); err != nil {
			return output{}, err
		}
		return produced(len(players), artifact.ProBowlersDetailedCSV, artifact.ProBowlersJSON), nil
	})
}

// measurements visits every player's profile for the detailed measurements
func (p *Pipeline) measurements(ctx context.Context, r *runner) error {
	return r.stage("scrape_measurements", func() (output, error) {
		tbl, _, err := p.load(artifact.ProBowlersBasicCSV)
		if err != nil {
			return output{}, err
		}
		profile, err := p.aliases.Profile(ingest.ProfileMeasurements)
		if err != nil {
			return output{}, err
		}
		schema, err := profile.Resolve(tbl.Columns)
		if err != nil {
			return output{}, err
		}

		cols := scraper.SourceColumns{
			Name:     schema[ingest.FieldPlayer],
			Position: schema[ingest.FieldPosition],
			ProBowls: schema[ingest.FieldProBowls],
			Links:    schema[ingest.FieldLinks],
		}
		ms := scraper.NewMeasurementScraper(p.client, p.cfg.RASSearchURL, p.cfg.ProfileDelay)
		profiles, err := ms.Scrape(ctx, tbl, cols)
		if errors.Is(err, scraper.ErrNoLinks) {
			return output{}, fatal(err)
		}
		if err != nil {
			return output{}, err
		}
		if len(profiles) == 0 {
			return output{}, errors.New("no measurement profiles scraped")
		}

		records := artifact.Flatteners(profiles)
		if err := p.store.WriteCSV(artifact.DetailedMeasurementsCSV, records); err != nil {
			return output{}, err
		}
		if err := p.store.WriteRecords(artifact.DetailedMeasurementJSON, records); err != nil {
			return output{}, err
		}
		return produced(len(profiles), artifact.DetailedMeasurementsCSV, artifact.DetailedMeasurementJSON), nil
	})
}

// combine scrapes the Pro Football Reference combine pages
func (p *Pipeline) combine(ctx context.Context, r *runner) error {
	var records []*models.CombineRecord
	if err := r.stage("scrape_combine", func() (output, error) {
		years, err := p.cfg.CombineYearList()
		if err != nil {
			return output{}, fatal(err)
		}
		cs := scraper.NewCombineScraper(p.client, p.cfg.PFRBaseURL)
		records, err = cs.Scrape(ctx, scraper.CombineOptions{
			Years:      years,
			SampleSize: p.cfg.CombineSampleSize,
			Seed:       p.cfg.RandomSeed,
			Accolades:  p.cfg.CombineAccolades,
			Retries:    p.cfg.AccoladeRetries,
			RetryDelay: p.cfg.AccoladeRetryDelay,
			Delay:      p.cfg.AccoladeDelay,
		})
		if err != nil {
			return output{}, fatal(err)
		}

		flat := artifact.Flatteners(records)
		if err := p.store.WriteCSV(artifact.CombineCSV, flat); err != nil {
			return output{}, err
		}
		if err := p.store.WriteRecords(artifact.CombineJSON, flat); err != nil {
			return output{}, err
		}
		return produced(len(records), artifact.CombineCSV, artifact.CombineJSON), nil
	}); err != nil {
		return err
	}

	if p.db == nil {
		r.skip("store_combine", errDisabled)
		return nil
	}
	return r.stage("store_combine", func() (output, error) {
		n, err := p.db.Combine.UpsertBatch(ctx, records)
		return output{rows: n}, err
	})
}

// normalize converts the richest available pro-bowler table to canonical
// records. A sample table stands in when no input exists.
func (p *Pipeline) normalize(ctx context.Context, r *runner) error {
	var records []models.PlayerRecord
	if err := r.stage("normalize", func() (output, error) {
		tbl, path, err := p.load(artifact.ProBowlersDetailedCSV, artifact.ProBowlersBasicCSV)
		if errors.Is(err, ingest.ErrNoInput) {
			log.Warn().Msg("No pro-bowler data found, exporting the sample table")
			tbl, path, err = ingest.SampleTable(), "sample", nil
		}
		if err != nil {
			return output{}, err
		}

		records, err = p.normalizeTable(ingest.ProfileNormalize, tbl)
		if err != nil {
			return output{}, err
		}
		log.Info().Str("source", path).Int("count", len(records)).Msg("Normalized pro bowlers")

		flat := artifact.Flatteners(records)
		if err := p.store.WriteRecords(artifact.ProBowlersJSON, flat); err != nil {
			return output{}, err
		}
		if err := p.store.WriteRecords(artifact.ProcessedDataJSON, flat); err != nil {
			return output{}, err
		}
		return produced(len(records), artifact.ProBowlersJSON, artifact.ProcessedDataJSON), nil
	}); err != nil {
		return err
	}

	if p.db == nil {
		r.skip("store_players", errDisabled)
		return nil
	}
	if records == nil {
		r.skip("store_players", errNoRecords)
		return nil
	}
	return r.stage("store_players", func() (output, error) {
		n, err := p.db.Players.UpsertBatch(ctx, records)
		return output{rows: n}, err
	})
}

// analyze computes descriptive statistics and refreshes the processed export
func (p *Pipeline) analyze(_ context.Context, r *runner) error {
	return r.stage("describe", func() (output, error) {
		records, err := p.loadRecords(ingest.ProfileAnalyze, artifact.ProBowlersDetailedCSV, artifact.ProBowlersBasicCSV)
		if err != nil {
			return output{}, err
		}

		stats := analysis.Descriptive(records)
		printDescriptive(p.out, stats)

		if err := p.store.WriteJSON(artifact.DescriptiveStatsJSON, stats); err != nil {
			return output{}, err
		}
		if err := p.store.WriteRecords(artifact.ProcessedDataJSON, artifact.Flatteners(records)); err != nil {
			return output{}, err
		}
		return produced(len(records), artifact.DescriptiveStatsJSON, artifact.ProcessedDataJSON), nil
	})
}

// positions writes the per-position summary
func (p *Pipeline) positions(_ context.Context, r *runner) error {
	return r.stage("position_summary", func() (output, error) {
		records, err := p.loadRecords(ingest.ProfileNormalize, artifact.ProBowlersBasicCSV)
		if err != nil {
			return output{}, err
		}

		stats := analysis.PositionSummary(records, p.cfg.ExcludedPositions, p.cfg.MinPositionSize)
		printPositions(p.out, stats)

		if err := p.store.WriteJSON(artifact.PositionStatsJSON, stats); err != nil {
			return output{}, err
		}
		metrics.RecordArtifact(artifact.PositionStatsJSON.Name, len(stats))
		return produced(len(stats), artifact.PositionStatsJSON), nil
	})
}

// correlate writes the measurement and success correlation matrices
func (p *Pipeline) correlate(_ context.Context, r *runner) error {
	return r.stage("correlation", func() (output, error) {
		tbl, path, err := p.load(artifact.DetailedMeasurementJSON, artifact.DetailedMeasurementsCSV, artifact.ProBowlersBasicCSV)
		if err != nil {
			return output{}, err
		}
		profile, err := p.aliases.Profile(ingest.ProfileCorrelation)
		if err != nil {
			return output{}, err
		}

		corr, err := analysis.Correlate(tbl, profile, analysis.CorrelationOptions{MinCompleteness: p.cfg.MinCompleteness})
		if err != nil {
			return output{}, err
		}
		log.Info().Str("source", path).Int("columns", len(corr.Columns)).Msg("Computed correlations")

		if err := p.store.WriteJSON(artifact.MeasurementCorrJSON, corr.Full); err != nil {
			return output{}, err
		}
		header, rows := corr.Full.CSV()
		if err := p.store.WriteTable(artifact.MeasurementCorrCSV, header, rows); err != nil {
			return output{}, err
		}
		header, rows = corr.Success.CSV()
		if err := p.store.WriteTable(artifact.SuccessCorrCSV, header, rows); err != nil {
			return output{}, err
		}
		if err := p.store.WriteJSON(artifact.SuccessCorrJSON, corr.Success.Object(analysis.DisplayName)); err != nil {
			return output{}, err
		}
		return produced(len(corr.Columns),
			artifact.MeasurementCorrJSON, artifact.MeasurementCorrCSV,
			artifact.SuccessCorrCSV, artifact.SuccessCorrJSON,
		), nil
	})
}

// advanced fits the regressions and classifiers and writes the prediction grid
func (p *Pipeline) advanced(_ context.Context, r *runner) error {
	var res *analysis.Advanced
	if err := r.stage("fit_models", func() (output, error) {
		records, err := p.loadRecords(ingest.ProfileNormalize, artifact.ProBowlersBasicCSV)
		if err != nil {
			return output{}, err
		}
		res, err = analysis.RunAdvanced(records, analysis.AdvancedOptions{
			MinRows:      p.cfg.MinRegressionRows,
			TestFraction: p.cfg.TestFraction,
			Seed:         p.cfg.RandomSeed,
			Excluded:     p.cfg.ExcludedPositions,
		})
		if err != nil {
			return output{}, err
		}
		return output{rows: res.Rows}, nil
	}); err != nil || res == nil {
		return err
	}

	_ = r.stage("basic_regression", func() (output, error) {
		return p.writeText(artifact.BasicRegressionTXT, res.Basic.Summary(), res.Rows)
	})

	_ = r.stage("advanced_regression", func() (output, error) {
		if res.MultipleErr != nil {
			return output{}, res.MultipleErr
		}
		return p.writeText(artifact.AdvancedRegressionTXT, res.Multiple.Summary(), res.Multiple.N)
	})

	c := res.Classification
	classifierErr := res.ClassifyErr
	if c != nil && c.Fallback {
		classifierErr = fmt.Errorf("refit on RAS only: %w", c.FallbackReason)
	}
	_ = r.stage("logistic_regression", func() (output, error) {
		if c == nil || c.Fallback {
			return output{}, classifierErr
		}
		return p.writeText(artifact.LogisticRegressionTXT, c.LogisticReport, res.Rows)
	})
	_ = r.stage("random_forest", func() (output, error) {
		if c == nil || c.Fallback {
			return output{}, classifierErr
		}
		return p.writeText(artifact.RandomForestTXT, c.ForestReport, res.Rows)
	})

	return r.stage("predictions", func() (output, error) {
		if c == nil {
			return output{}, res.ClassifyErr
		}
		if err := p.store.WriteJSON(artifact.MLPredictionsJSON, res.Predictions); err != nil {
			return output{}, err
		}
		metrics.RecordArtifact(artifact.MLPredictionsJSON.Name, len(res.Predictions))
		return produced(len(res.Predictions), artifact.MLPredictionsJSON), nil
	})
}

// check reports what the measurements file holds
func (p *Pipeline) check(_ context.Context, r *runner) error {
	return r.stage("check_measurements", func() (output, error) {
		tbl, path, err := p.load(artifact.DetailedMeasurementsCSV, artifact.DetailedMeasurementJSON)
		if err != nil {
			return output{}, err
		}
		check := analysis.CheckTable(path, tbl)
		printCheck(p.out, check)
		if !check.HasMeasurements() {
			log.Warn().Str("source", path).Msg("No measurement columns found; the profile scraper likely missed them")
		}
		return output{rows: check.Rows}, nil
	})
}

func (p *Pipeline) writeText(k artifact.Kind, text string, rows int) (output, error) {
	if err := p.store.WriteText(k, text); err != nil {
		return output{}, err
	}
	return produced(rows, k), nil
}

func (p *Pipeline) load(kinds ...artifact.Kind) (*models.Table, string, error) {
	paths := make([]string, len(kinds))
	for i, k := range kinds {
		paths[i] = p.store.Path(k)
	}
	return ingest.LoadFirst(paths...)
}

func (p *Pipeline) loadRecords(profile string, kinds ...artifact.Kind) ([]models.PlayerRecord, error) {
	tbl, path, err := p.load(kinds...)
	if err != nil {
		return nil, err
	}
	records, err := p.normalizeTable(profile, tbl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

func (p *Pipeline) normalizeTable(profile string, tbl *models.Table) ([]models.PlayerRecord, error) {
	aliases, err := p.aliases.Profile(profile)
	if err != nil {
		return nil, err
	}
	records, _, err := ingest.NewNormalizer(aliases).Normalize(tbl)
	return records, err
}
