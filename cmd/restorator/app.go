package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/talgya/population-restorator/internal/cohort"
	"github.com/talgya/population-restorator/internal/diag"
	"github.com/talgya/population-restorator/internal/engine"
	"github.com/talgya/population-restorator/internal/export"
	"github.com/talgya/population-restorator/internal/metrics"
	"github.com/talgya/population-restorator/internal/persistence"
)

// outputs fans produced years out to every configured destination.
type outputs struct {
	g       *globalOptions
	db      *persistence.DB
	pg      *persistence.PGStore
	metrics *metrics.Registry
	report  *diag.Report
}

func openOutputs(ctx context.Context, g *globalOptions) (*outputs, error) {
	if err := os.MkdirAll(filepath.Dir(g.dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := persistence.Open(g.dbPath)
	if err != nil {
		return nil, err
	}
	slog.Info("database opened", "path", g.dbPath)

	o := &outputs{g: g, db: db, metrics: metrics.New()}
	o.report = &diag.Report{OnIssue: o.metrics.ObserveIssue}

	if g.cfg.PostgresDSN != "" {
		pg, err := persistence.OpenPostgres(ctx, g.cfg.PostgresDSN)
		if err != nil {
			db.Close()
			return nil, err
		}
		o.pg = pg
		slog.Info("postgres mirror enabled")
	}
	return o, nil
}

func (o *outputs) options() engine.Options {
	return engine.Options{
		Seed:          o.g.seed,
		MinLivingArea: o.g.cfg.MinLivingArea,
		PersonTries:   o.g.cfg.PersonTries,
		AgeSexTries:   o.g.cfg.AgeSexTries,
	}
}

// attach records the run identity and routes every produced year to the
// stores and metrics.
func (o *outputs) attach(ctx context.Context, sim *engine.Simulation) error {
	if err := o.db.SaveMeta("run_id", sim.RunID.String()); err != nil {
		return err
	}
	if err := o.db.SaveMeta("seed", strconv.FormatUint(sim.Seed, 10)); err != nil {
		return err
	}
	sim.OnYear = func(t *cohort.Table) error {
		if err := o.db.SaveTable(t); err != nil {
			return err
		}
		if o.pg != nil {
			if err := o.pg.SaveTable(ctx, sim.RunID, t); err != nil {
				return err
			}
		}
		men, women, additional := t.Totals()
		o.metrics.SetPopulation(t.Year, men, women, additional)
		return nil
	}
	return nil
}

// finish closes the stores, writes metrics and uploads the database.
func (o *outputs) finish(ctx context.Context, sim *engine.Simulation) error {
	for _, kind := range []diag.Kind{diag.KindConstraint, diag.KindUnattainable, diag.KindRetryExhausted} {
		if n := o.report.Count(kind); n > 0 {
			slog.Warn("issues reported", "kind", kind, "count", n)
		}
	}
	if err := o.close(); err != nil {
		return err
	}
	if path := o.g.cfg.MetricsFile; path != "" {
		if err := o.metrics.WriteTextfile(path); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
		slog.Info("metrics written", "path", path)
	}
	if o.g.cfg.S3Bucket == "" || sim == nil {
		return nil
	}
	up, err := export.NewS3Uploader(ctx, export.Config{
		Bucket:    o.g.cfg.S3Bucket,
		Region:    o.g.cfg.S3Region,
		Endpoint:  o.g.cfg.S3Endpoint,
		Prefix:    o.g.cfg.S3Prefix,
		PathStyle: o.g.cfg.S3PathStyle,
	})
	if err != nil {
		return err
	}
	return up.UploadFile(ctx, up.Key(sim.RunID.String(), filepath.Base(o.g.dbPath)), o.g.dbPath)
}

func (o *outputs) close() error {
	if o.pg != nil {
		o.pg.Close()
		o.pg = nil
	}
	if o.db == nil {
		return nil
	}
	err := o.db.Close()
	o.db = nil
	return err
}
