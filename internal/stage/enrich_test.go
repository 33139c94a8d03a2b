package stage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/modelseed-go/internal/hub"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/stage"
)

func TestMetadataEnricherDefaults(t *testing.T) {
	deps := newDeps(t)
	require.NoError(t, deps.Stores.Raw.Write("llama3-8b", models.Record{"name": "llama3:8b"}))

	st, err := stage.New(stage.KindEnricher, "metadata", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "llama3-8b")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Enriched.Read("llama3-8b")
	require.NoError(t, err)
	assert.Equal(t, "ollama-llama3-8b", rec.GetString("modelId"))
	assert.Equal(t, "Llama3:8b", rec.GetString("displayName"))
	assert.Equal(t, "8b", rec.GetString("version"))
	assert.Equal(t, "llm", rec.GetString("modelType"))
	assert.Equal(t, "https://example.com/placeholder", rec.GetString("referenceLink"))
	assert.NotEmpty(t, rec.GetString("description"))
	assert.Equal(t, []string{"ollama"}, rec.Tags())
	assert.Equal(t, stage.NameEnrich, rec.Meta().Stage)
}

func TestMetadataEnricherKeepsExistingValues(t *testing.T) {
	deps := newDeps(t)
	require.NoError(t, deps.Stores.Raw.Write("m1", models.Record{
		"name":        "m1",
		"description": "already described",
		"tags":        []string{"custom"},
	}))

	st, err := stage.New(stage.KindEnricher, "metadata", deps)
	require.NoError(t, err)
	require.Equal(t, models.StatusOK, st.Process(context.Background(), "m1").Status)

	rec, err := deps.Stores.Enriched.Read("m1")
	require.NoError(t, err)
	assert.Equal(t, "already described", rec.GetString("description"))
	assert.Equal(t, []string{"custom"}, rec.Tags())
	assert.Equal(t, "latest", rec.GetString("version"))
}

func TestMetadataEnricherMissingRecord(t *testing.T) {
	deps := newDeps(t)
	st, err := stage.New(stage.KindEnricher, "metadata", deps)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, st.Process(context.Background(), "absent").Status)
}

func TestHubEnricherMergesHubData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":"meta-llama/llama3","author":"meta-llama","downloads":123,"likes":7,
			"tags":["text-generation","en"],"pipeline_tag":"text-generation"}]`))
	}))
	defer srv.Close()

	deps := newDeps(t)
	deps.Hub = hub.New(srv.URL, "", time.Second)
	require.NoError(t, deps.Stores.Raw.Write("llama3", models.Record{"name": "llama3", "tags": []string{"ollama"}}))

	st, err := stage.New(stage.KindEnricher, "hub", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "llama3")
	require.Equal(t, models.StatusOK, outcome.Status, outcome.Detail)

	rec, err := deps.Stores.Enriched.Read("llama3")
	require.NoError(t, err)
	assert.Equal(t, "https://huggingface.co/meta-llama/llama3", rec.GetString("referenceLink"))
	assert.Equal(t, "meta-llama/llama3", rec.GetString("parentModel"))
	assert.Contains(t, rec.Tags(), "ollama")
	assert.Contains(t, rec.Tags(), "text-generation")

	meta, ok := rec["metadata"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "meta-llama/llama3", meta["hub_id"])
}

func TestHubEnricherNoMatchKeepsDefaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	deps := newDeps(t)
	deps.Hub = hub.New(srv.URL, "", time.Second)
	require.NoError(t, deps.Stores.Raw.Write("exotic", models.Record{"name": "exotic"}))

	st, err := stage.New(stage.KindEnricher, "hub", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "exotic")
	require.Equal(t, models.StatusOK, outcome.Status)

	rec, err := deps.Stores.Enriched.Read("exotic")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/placeholder", rec.GetString("referenceLink"))
}

func TestHubEnricherOutageFailsRecord(t *testing.T) {
	deps := newDeps(t)
	deps.Hub = hub.New("http://127.0.0.1:1", "", 100*time.Millisecond)
	require.NoError(t, deps.Stores.Raw.Write("m1", models.Record{"name": "m1"}))

	st, err := stage.New(stage.KindEnricher, "hub", deps)
	require.NoError(t, err)

	outcome := st.Process(context.Background(), "m1")
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.False(t, deps.Stores.Enriched.Exists("m1"))
}
