package stage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/modelseed-go/internal/catalog"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

func TestSimpleTagMapperResolvesAll(t *testing.T) {
	deps := newDeps(t)
	writeTagMap(t, deps, map[string]string{"ollama": "t1", "llama": "t2"})
	require.NoError(t, deps.Stores.Enriched.Write("m1", models.Record{
		"name": "m1", "tags": []string{"ollama", "llama"},
	}))

	st, err := stage.New(stage.KindTagMapper, "simple", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m1")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Processed.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, rec.TagIDs())
	assert.Equal(t, stage.NameMapTags, rec.Meta().Stage)
}

func TestSimpleTagMapperUnresolvedFails(t *testing.T) {
	deps := newDeps(t)
	writeTagMap(t, deps, map[string]string{"ollama": "t1"})
	require.NoError(t, deps.Stores.Enriched.Write("m3", models.Record{
		"name": "m3", "tags": []string{"ollama", "unknown-tag"},
	}))

	st, err := stage.New(stage.KindTagMapper, "simple", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m3")
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Contains(t, outcome.Detail, "unknown-tag")

	// The record never reaches the processed store; the failure is
	// stamped on its enriched copy instead.
	assert.False(t, deps.Stores.Processed.Exists("m3"))
	rec, err := deps.Stores.Enriched.Read("m3")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, rec.Meta().Status)
}

func TestSimpleTagMapperDropUnresolved(t *testing.T) {
	deps := newDeps(t)
	deps.Config.DropUnresolved = true
	writeTagMap(t, deps, map[string]string{"ollama": "t1"})
	require.NoError(t, deps.Stores.Enriched.Write("m1", models.Record{
		"name": "m1", "tags": []string{"ollama", "unknown-tag"},
	}))

	st, err := stage.New(stage.KindTagMapper, "simple", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m1")
	require.Equal(t, models.StatusOK, outcome.Status)
	assert.Contains(t, outcome.Detail, "dropped 1 unresolved")

	rec, err := deps.Stores.Processed.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, rec.TagIDs())
}

func TestFallbackTagMapperSubstringMatch(t *testing.T) {
	deps := newDeps(t)
	writeTagMap(t, deps, map[string]string{"llama": "t2"})
	require.NoError(t, deps.Stores.Enriched.Write("m1", models.Record{
		"name": "m1", "tags": []string{"llama3-instruct"},
	}))

	st, err := stage.New(stage.KindTagMapper, "fallback", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m1")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Processed.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t2"}, rec.TagIDs())
}

func TestTagMapperAutoCreate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tags", r.URL.Path)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id":"t-new","name":"vision"}`))
	}))
	defer srv.Close()

	deps := newDeps(t)
	deps.Config.AutoCreateTags = true
	deps.Catalog = catalog.New(catalog.Options{BaseURL: srv.URL, Attempts: 1, Backoff: time.Millisecond})
	writeTagMap(t, deps, map[string]string{})
	require.NoError(t, deps.Stores.Enriched.Write("m1", models.Record{
		"name": "m1", "tags": []string{"vision"},
	}))

	st, err := stage.New(stage.KindTagMapper, "simple", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m1")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Processed.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t-new"}, rec.TagIDs())

	// The new pair is persisted for future runs.
	tm, err := stage.LoadTagMap(deps.Config.TagMapFile)
	require.NoError(t, err)
	id, ok := tm.Resolve("vision")
	assert.True(t, ok)
	assert.Equal(t, "t-new", id)
}

func TestSimpleTagMapperAutoCreateDryRun(t *testing.T) {
	deps := newDeps(t)
	deps.Config.AutoCreateTags = true
	deps.DryRun = true
	writeTagMap(t, deps, map[string]string{})
	require.NoError(t, deps.Stores.Enriched.Write("m1", models.Record{
		"name": "m1", "tags": []string{"vision"},
	}))

	st, err := stage.New(stage.KindTagMapper, "simple", deps)
	require.NoError(t, err)

	// Resolves with a placeholder id, same ok outcome as a live run,
	// without touching the catalog or the tag map file.
	outcome := st.Process(context.Background(), "m1")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Processed.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, []string{"pending-vision"}, rec.TagIDs())

	tm, err := stage.LoadTagMap(deps.Config.TagMapFile)
	require.NoError(t, err)
	_, ok := tm.Resolve("vision")
	assert.False(t, ok)
}

func TestLoadTagMapMissingFile(t *testing.T) {
	deps := newDeps(t)
	tm, err := stage.LoadTagMap(deps.Config.TagMapFile)
	require.NoError(t, err)
	assert.Empty(t, tm.Names())
}

func TestTagMapResolveCaseInsensitive(t *testing.T) {
	deps := newDeps(t)
	writeTagMap(t, deps, map[string]string{"ollama": "t1"})
	tm, err := stage.LoadTagMap(deps.Config.TagMapFile)
	require.NoError(t, err)

	id, ok := tm.Resolve("OLLAMA")
	assert.True(t, ok)
	assert.Equal(t, "t1", id)
}
