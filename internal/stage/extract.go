package stage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/ollama"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// ollamaExtractor pulls model metadata from a running Ollama server
// into the raw store. A model the server cannot describe is skipped so
// the rest of the listing still extracts.
type ollamaExtractor struct {
	deps   Deps
	client *ollama.Client

	// listing entries keyed by record identifier, built by Discover.
	listed map[string]ollama.Model
}

func newOllamaExtractor(deps Deps) (Stage, error) {
	if deps.Ollama == nil {
		return nil, errors.New("ollama extractor: client is required")
	}
	return &ollamaExtractor{deps: deps, client: deps.Ollama}, nil
}

func (e *ollamaExtractor) Name() string        { return NameExtract }
func (e *ollamaExtractor) Input() *store.Store { return nil }

// Discover lists the server's installed models and returns their record
// identifiers in stable order. An unreachable server is a structural
// fault: there is nothing to run the pipeline over.
func (e *ollamaExtractor) Discover(ctx context.Context) ([]string, error) {
	list, err := e.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover ollama models: %w", err)
	}
	e.listed = make(map[string]ollama.Model, len(list))
	ids := make([]string, 0, len(list))
	for _, m := range list {
		id := models.Slugify(m.Name)
		if id == "" {
			continue
		}
		e.listed[id] = m
		ids = append(ids, id)
	}
	sort.Strings(ids)
	e.deps.logger().Info("discovered models", "source", e.client.Host(), "count", len(ids))
	return ids, nil
}

func (e *ollamaExtractor) Process(ctx context.Context, id string) models.Outcome {
	if archived(e.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	m, ok := e.listed[id]
	if !ok {
		return models.Failed(id, "identifier not present in discovery listing")
	}

	show, err := e.client.Show(ctx, m.Name)
	if err != nil {
		// Partial source unavailability: leave this model for a later
		// run rather than failing the batch.
		return models.Skipped(id, fmt.Sprintf("cannot fetch details for %q: %v", m.Name, err))
	}

	rec := rawRecord(m.Name, &m, show)
	rec.Stamp(NameExtract, models.StatusOK)
	if err := e.deps.Stores.Raw.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("write raw record: %v", err))
	}
	return models.OK(id, "extracted from "+e.client.Host())
}

// rawRecord shapes one Ollama listing entry into a raw pipeline record.
func rawRecord(name string, m *ollama.Model, show *ollama.ShowResponse) models.Record {
	tags := []string{"ollama"}
	lower := strings.ToLower(name)
	for _, hint := range []string{"llama", "mistral", "gemma", "qwen", "phi"} {
		if strings.Contains(lower, hint) {
			tags = append(tags, hint)
		}
	}
	if strings.Contains(lower, "code") {
		tags = append(tags, "code")
	}
	if f := strings.ToLower(m.Details.Family); f != "" && !contains(tags, f) {
		tags = append(tags, f)
	}

	rec := models.Record{
		"name":    name,
		"modelId": "ollama-" + models.Slugify(name),
		"tags":    tags,
		"metadata": map[string]any{
			"source":      "ollama",
			"size":        m.Size,
			"digest":      m.Digest,
			"modified_at": m.ModifiedAt.Format("2006-01-02T15:04:05Z07:00"),
		},
		"parameterSize":     m.Details.ParameterSize,
		"quantizationLevel": m.Details.QuantizationLevel,
		"format":            m.Details.Format,
		"family":            m.Details.Family,
		"digest":            m.Digest,
	}
	if len(m.Details.Families) > 0 {
		rec["families"] = m.Details.Families
	}
	if m.Details.ParentModel != "" {
		rec["parentModel"] = m.Details.ParentModel
	}
	if show != nil {
		if show.License != "" {
			rec["license"] = show.License
		}
		if show.Template != "" {
			rec["template"] = show.Template
		}
		if show.Modelfile != "" {
			rec["modelFile"] = show.Modelfile
		}
	}
	return rec
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// jsonFileExtractor reads static JSON documents from a source directory
// into the raw store. Used for offline runs and replays.
type jsonFileExtractor struct {
	deps   Deps
	source *store.Store
}

func newJSONFileExtractor(deps Deps) (Stage, error) {
	dir := deps.Config.SourceDir
	if dir == "" {
		return nil, errors.New("jsonfile extractor: source directory is required")
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("jsonfile extractor: source directory not found: %s", dir)
	}
	src, err := store.New(dir)
	if err != nil {
		return nil, err
	}
	return &jsonFileExtractor{deps: deps, source: src}, nil
}

func (e *jsonFileExtractor) Name() string        { return NameExtract }
func (e *jsonFileExtractor) Input() *store.Store { return nil }

func (e *jsonFileExtractor) Discover(ctx context.Context) ([]string, error) {
	ids, err := e.source.List()
	if err != nil {
		return nil, fmt.Errorf("discover source files in %s: %w", filepath.Clean(e.source.Dir()), err)
	}
	e.deps.logger().Info("discovered source files", "dir", e.source.Dir(), "count", len(ids))
	return ids, nil
}

func (e *jsonFileExtractor) Process(_ context.Context, id string) models.Outcome {
	if archived(e.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := e.source.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read source file: %v", err))
	}
	if rec.Name() == "" {
		return models.Failed(id, "source document has no name field")
	}

	rec.Stamp(NameExtract, models.StatusOK)
	if err := e.deps.Stores.Raw.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("write raw record: %v", err))
	}
	return models.OK(id, "extracted from "+e.source.Dir())
}
