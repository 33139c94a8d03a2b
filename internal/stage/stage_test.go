package stage_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/modelseed-go/internal/config"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

// newDeps builds stage dependencies over a throwaway data directory.
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

	stores, err := stage.OpenStores(cfg)
	require.NoError(t, err)

	return stage.Deps{
		Config: cfg,
		Stores: stores,
		Seeded: stage.NewSeedLog(),
		Staged: stage.NewStaging(),
	}
}

// writeTagMap seeds the tag map file with name to id pairs.
func writeTagMap(t *testing.T, deps stage.Deps, ids map[string]string) {
	t.Helper()
	data, err := json.Marshal(ids)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(deps.Config.TagMapFile, data, 0o644))
}
