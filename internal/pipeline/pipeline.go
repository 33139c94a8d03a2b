// Package pipeline assembles the six stage components into a run and
// executes them in order, collecting per-record outcomes into a run
// report.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/raphaelgruber/modelseed-go/internal/metrics"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

// Selection names the component type to use for each stage slot.
// Empty fields fall back to the configured defaults.
type Selection struct {
	Extractor   string
	Enricher    string
	TagMapper   string
	ModelMapper string
	Seeder      string
	Archiver    string
}

// Progress is emitted after each processed record so callers can drive
// a progress display.
type Progress struct {
	Stage string
	ID    string
	Done  int
	Total int
}

// Pipeline executes the fixed stage sequence extract, enrich,
// map-tags, map-models, seed, archive.
type Pipeline struct {
	deps    stage.Deps
	log     *slog.Logger
	stages  []stage.Stage
	metrics *metrics.Collector

	// OnProgress, when set, is called synchronously after every record.
	OnProgress func(Progress)
}

// New builds every stage up front so an unknown component type or a
// missing dependency surfaces before any record is touched.
func New(deps stage.Deps, sel Selection) (*Pipeline, error) {
	if deps.Seeded == nil {
		deps.Seeded = stage.NewSeedLog()
	}
	if deps.Staged == nil {
		deps.Staged = stage.NewStaging()
	}

	cfg := deps.Config
	slots := []struct {
		kind     stage.Kind
		typeName string
	}{
		{stage.KindExtractor, fallback(sel.Extractor, cfg.ExtractorType)},
		{stage.KindEnricher, fallback(sel.Enricher, cfg.EnricherType)},
		{stage.KindTagMapper, fallback(sel.TagMapper, cfg.TagMapperType)},
		{stage.KindModelMapper, fallback(sel.ModelMapper, cfg.ModelMapperType)},
		{stage.KindSeeder, fallback(sel.Seeder, cfg.SeederType)},
		{stage.KindArchiver, fallback(sel.Archiver, cfg.ArchiverType)},
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	p := &Pipeline{deps: deps, log: log, metrics: metrics.NewCollector()}
	for _, slot := range slots {
		st, err := stage.New(slot.kind, slot.typeName, deps)
		if err != nil {
			return nil, fmt.Errorf("build %s: %w", slot.kind, err)
		}
		p.stages = append(p.stages, st)
	}
	return p, nil
}

func fallback(value, def string) string {
	if value != "" {
		return value
	}
	return def
}

// Run executes every stage in order. Per-record failures are absorbed
// into the report; only structural faults (an unreachable source, an
// unreadable store, cancellation) abort the run. The report returned
// is valid in both cases and covers everything processed so far.
func (p *Pipeline) Run(ctx context.Context) (*models.RunReport, error) {
	report := models.NewRunReport(p.deps.DryRun)
	defer report.Finish()

	log := p.log.With("run_id", report.RunID, "dry_run", p.deps.DryRun)
	log.Info("pipeline run started")

	for _, st := range p.stages {
		if err := p.runStage(ctx, st, report); err != nil {
			log.Error("pipeline run aborted", "stage", st.Name(), "error", err)
			return report, err
		}
	}

	report.Finish()
	log.Info("pipeline run finished",
		"attempted", report.TotalAttempted(),
		"failures", len(report.Failures),
		"success", report.Success)
	for _, s := range p.metrics.Snapshot().Stages {
		log.Debug("stage timings",
			"stage", s.Stage, "records", s.Count,
			"avg_ms", s.AvgTimeMs, "max_ms", s.MaxTimeMs)
	}
	return report, nil
}

// Metrics returns a snapshot of per-stage processing times.
func (p *Pipeline) Metrics() metrics.Snapshot {
	return p.metrics.Snapshot()
}

// RunStage executes a single named stage, for targeted re-runs.
func (p *Pipeline) RunStage(ctx context.Context, name string) (*models.RunReport, error) {
	report := models.NewRunReport(p.deps.DryRun)
	defer report.Finish()

	for _, st := range p.stages {
		if st.Name() != name {
			continue
		}
		err := p.runStage(ctx, st, report)
		report.Finish()
		return report, err
	}
	return report, fmt.Errorf("unknown stage %q", name)
}

func (p *Pipeline) runStage(ctx context.Context, st stage.Stage, report *models.RunReport) error {
	ids, err := p.workload(ctx, st)
	if err != nil {
		return fmt.Errorf("stage %s: %w", st.Name(), err)
	}

	log := p.log.With("stage", st.Name())
	log.Info("stage started", "records", len(ids))

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("stage %s: %w", st.Name(), err)
		}
		start := time.Now()
		outcome := st.Process(ctx, id)
		p.metrics.RecordTiming(st.Name(), time.Since(start))
		report.Record(st.Name(), outcome)
		switch outcome.Status {
		case models.StatusFailed:
			log.Warn("record failed", "id", id, "detail", outcome.Detail)
		default:
			log.Debug("record processed", "id", id, "status", outcome.Status)
		}
		if p.OnProgress != nil {
			p.OnProgress(Progress{Stage: st.Name(), ID: id, Done: i + 1, Total: len(ids)})
		}
	}

	log.Info("stage finished", "records", len(ids))
	return nil
}

// workload enumerates the identifiers a stage will process, either by
// asking a source-driven stage to discover them or by listing the
// stage's input store.
func (p *Pipeline) workload(ctx context.Context, st stage.Stage) ([]string, error) {
	if d, ok := st.(stage.Discoverer); ok {
		return d.Discover(ctx)
	}
	in := st.Input()
	if in == nil {
		return nil, fmt.Errorf("stage has neither an input store nor a discoverer")
	}
	return in.List()
}

// SaveReport writes the report as JSON into the reports directory,
// named after the run id.
func SaveReport(dir string, report *models.RunReport) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create reports dir: %w", err)
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, report.RunID+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
