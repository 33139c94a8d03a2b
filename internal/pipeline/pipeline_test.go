package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/modelseed-go/internal/config"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/pipeline"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

// offlineSelection runs the whole pipeline without any network.
var offlineSelection = pipeline.Selection{
	Extractor:   "jsonfile",
	Enricher:    "metadata",
	TagMapper:   "simple",
	ModelMapper: "standard",
	Seeder:      "mock",
	Archiver:    "simple",
}

func newDeps(t *testing.T) stage.Deps {
	t.Helper()
	dir := t.TempDir()

	cfg := config.Config{
		DataDir:        dir,
		RawDir:         filepath.Join(dir, "raw"),
		EnrichedDir:    filepath.Join(dir, "enriched"),
		ProcessedDir:   filepath.Join(dir, "processed"),
		MappedDir:      filepath.Join(dir, "mapped"),
		ArchiveDir:     filepath.Join(dir, "archive"),
		ReportsDir:     filepath.Join(dir, "reports"),
		SourceDir:      filepath.Join(dir, "source"),
		TagMapFile:     filepath.Join(dir, "tagmap.json"),
		PlaceholderURL: "https://example.com/placeholder",
		APITimeout:     time.Second,
		RetryAttempts:  2,
		RetryBackoff:   time.Millisecond,
	}
	require.NoError(t, os.MkdirAll(cfg.SourceDir, 0o755))
	require.NoError(t, os.WriteFile(cfg.TagMapFile,
		[]byte(`{"ollama":"t1","llama":"t2","code":"t3"}`), 0o644))

	stores, err := stage.OpenStores(cfg)
	require.NoError(t, err)

	return stage.Deps{Config: cfg, Stores: stores, Seeded: stage.NewSeedLog()}
}

func writeSource(t *testing.T, deps stage.Deps, id string, doc map[string]any) {
	t.Helper()
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(deps.Config.SourceDir, id+".json"), data, 0o644))
}

func seedSources(t *testing.T, deps stage.Deps) {
	t.Helper()
	writeSource(t, deps, "m1", map[string]any{"name": "m1", "tags": []string{"ollama"}})
	writeSource(t, deps, "m2", map[string]any{"name": "m2", "tags": []string{"llama", "code"}})
}

func TestRunFullPipeline(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report.Success)
	assert.Empty(t, report.Failures)
	require.Len(t, report.Stages, 6)
	for _, s := range report.Stages {
		assert.Equal(t, 2, s.Attempted, "stage %s", s.Stage)
		assert.Equal(t, 2, s.Succeeded, "stage %s", s.Stage)
	}

	// Both records end in the archive; the mapped store drains.
	archived, err := deps.Stores.Archive.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, archived)

	mapped, err := deps.Stores.Mapped.List()
	require.NoError(t, err)
	assert.Empty(t, mapped)

	rec, err := deps.Stores.Archive.Read("m2")
	require.NoError(t, err)
	assert.Equal(t, stage.NameArchive, rec.Meta().Stage)
}

func TestRunIsolatesFailedRecords(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)
	writeSource(t, deps, "m3", map[string]any{"name": "m3", "tags": []string{"unknown-tag"}})

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	report, err := p.Run(context.Background())
	require.NoError(t, err)

	// m3 fails at tag mapping; m1 and m2 still complete end to end.
	assert.False(t, report.Success)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "m3", report.Failures[0].ID)
	assert.Equal(t, stage.NameMapTags, report.Failures[0].Stage)

	archived, err := deps.Stores.Archive.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, archived)
	assert.False(t, deps.Stores.Processed.Exists("m3"))
}

func TestRunIsRepeatable(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)
	report, err := p.Run(context.Background())
	require.NoError(t, err)
	require.True(t, report.Success)

	// A second run over the same workspace processes nothing new:
	// every identifier is already archived.
	deps.Seeded = stage.NewSeedLog()
	p2, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)
	report2, err := p2.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, report2.Success)
	for _, s := range report2.Stages {
		assert.Equal(t, 0, s.Succeeded, "stage %s", s.Stage)
		assert.Equal(t, s.Attempted, s.Skipped, "stage %s", s.Stage)
	}

	archived, err := deps.Stores.Archive.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"m1", "m2"}, archived)
}

func TestRunDryRunMatchesLiveRun(t *testing.T) {
	live := newDeps(t)
	seedSources(t, live)
	dry := newDeps(t)
	seedSources(t, dry)
	dry.DryRun = true

	pLive, err := pipeline.New(live, offlineSelection)
	require.NoError(t, err)
	liveReport, err := pLive.Run(context.Background())
	require.NoError(t, err)

	pDry, err := pipeline.New(dry, offlineSelection)
	require.NoError(t, err)
	dryReport, err := pDry.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, dryReport.DryRun)
	assert.True(t, dryReport.Success)

	// A dry run covers every stage with the same per-record outcomes.
	require.Len(t, dryReport.Stages, len(liveReport.Stages))
	for i, ls := range liveReport.Stages {
		ds := dryReport.Stages[i]
		assert.Equal(t, ls.Stage, ds.Stage)
		assert.Equal(t, ls.Attempted, ds.Attempted, "stage %s", ls.Stage)
		assert.Equal(t, ls.Succeeded, ds.Succeeded, "stage %s", ls.Stage)
		assert.Equal(t, ls.Failed, ds.Failed, "stage %s", ls.Stage)
	}

	// Working stores are written; the mapped store and archive are not.
	for name, st := range map[string]interface{ List() ([]string, error) }{
		"raw":       dry.Stores.Raw,
		"enriched":  dry.Stores.Enriched,
		"processed": dry.Stores.Processed,
	} {
		ids, err := st.List()
		require.NoError(t, err)
		assert.Equal(t, []string{"m1", "m2"}, ids, "store %s", name)
	}
	for name, st := range map[string]interface{ List() ([]string, error) }{
		"mapped":  dry.Stores.Mapped,
		"archive": dry.Stores.Archive,
	} {
		ids, err := st.List()
		require.NoError(t, err)
		assert.Empty(t, ids, "store %s", name)
	}
}

func TestRunDryRunReportsValidationFailures(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)
	writeSource(t, deps, "m3", map[string]any{"name": "m3", "tags": []string{"unknown-tag"}})
	deps.DryRun = true

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)
	report, err := p.Run(context.Background())
	require.NoError(t, err)

	// The same validation failure a live run would hit.
	assert.False(t, report.Success)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "m3", report.Failures[0].ID)
	assert.Equal(t, stage.NameMapTags, report.Failures[0].Stage)
}

func TestRunStage(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	report, err := p.RunStage(context.Background(), stage.NameExtract)
	require.NoError(t, err)

	require.Len(t, report.Stages, 1)
	assert.Equal(t, stage.NameExtract, report.Stages[0].Stage)
	assert.Equal(t, 2, report.Stages[0].Succeeded)

	// Later stores are untouched.
	enriched, err := deps.Stores.Enriched.List()
	require.NoError(t, err)
	assert.Empty(t, enriched)
}

func TestRunStageUnknownName(t *testing.T) {
	deps := newDeps(t)
	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	_, err = p.RunStage(context.Background(), "compress")
	assert.Error(t, err)
}

func TestRunAbortsOnCancellation(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	p.OnProgress = func(pipeline.Progress) { cancel() }

	report, err := p.Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	// The report still covers what ran before the abort.
	assert.NotZero(t, report.TotalAttempted())
}

func TestNewRejectsUnknownComponent(t *testing.T) {
	deps := newDeps(t)
	sel := offlineSelection
	sel.Seeder = "nonexistent"

	_, err := pipeline.New(deps, sel)
	require.Error(t, err)
	assert.ErrorIs(t, err, stage.ErrUnknownType)
}

func TestOnProgressEvents(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)

	var events []pipeline.Progress
	p.OnProgress = func(evt pipeline.Progress) { events = append(events, evt) }

	_, err = p.Run(context.Background())
	require.NoError(t, err)

	// Two records through six stages.
	require.Len(t, events, 12)
	assert.Equal(t, pipeline.Progress{Stage: stage.NameExtract, ID: "m1", Done: 1, Total: 2}, events[0])
	last := events[len(events)-1]
	assert.Equal(t, stage.NameArchive, last.Stage)
	assert.Equal(t, last.Total, last.Done)
}

func TestSaveReport(t *testing.T) {
	deps := newDeps(t)
	report := models.NewRunReport(false)
	report.Record(stage.NameExtract, models.OK("m1", ""))
	report.Finish()

	path, err := pipeline.SaveReport(deps.Config.ReportsDir, report)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(deps.Config.ReportsDir, report.RunID+".json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var loaded models.RunReport
	require.NoError(t, json.Unmarshal(data, &loaded))
	assert.Equal(t, report.RunID, loaded.RunID)
	assert.Equal(t, 1, loaded.TotalAttempted())
}

func TestMetricsSnapshot(t *testing.T) {
	deps := newDeps(t)
	seedSources(t, deps)

	p, err := pipeline.New(deps, offlineSelection)
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	require.NoError(t, err)

	snap := p.Metrics()
	require.Len(t, snap.Stages, 6)
	assert.Equal(t, stage.NameExtract, snap.Stages[0].Stage)
	assert.Equal(t, int64(2), snap.Stages[0].Count)
}
