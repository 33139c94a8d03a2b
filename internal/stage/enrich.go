package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/modelseed-go/internal/hub"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// metadataEnricher fills the descriptive gaps an extracted record is
// allowed to have: display name, description, default tags and the
// placeholder link fields the destination catalog requires.
type metadataEnricher struct {
	deps Deps
}

func newMetadataEnricher(deps Deps) (Stage, error) {
	if deps.Stores.Raw == nil || deps.Stores.Enriched == nil {
		return nil, errors.New("metadata enricher: raw and enriched stores are required")
	}
	return &metadataEnricher{deps: deps}, nil
}

func (e *metadataEnricher) Name() string        { return NameEnrich }
func (e *metadataEnricher) Input() *store.Store { return e.deps.Stores.Raw }

func (e *metadataEnricher) Process(_ context.Context, id string) models.Outcome {
	if archived(e.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := e.deps.Stores.Raw.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read raw record: %v", err))
	}
	if rec.Name() == "" {
		return models.Failed(id, "record has no name field")
	}

	enrichDefaults(rec, e.deps.Config.PlaceholderURL)
	return writeEnriched(e.deps, id, rec, "enriched with metadata defaults")
}

// enrichDefaults adds derived and placeholder values without touching
// anything already present on the record.
func enrichDefaults(rec models.Record, placeholderURL string) {
	name := rec.Name()
	setIfEmpty(rec, "modelId", "ollama-"+models.Slugify(name))
	setIfEmpty(rec, "displayName", models.DisplayName(name))
	setIfEmpty(rec, "description", fmt.Sprintf("%s language model, imported from a local Ollama installation.", models.DisplayName(name)))
	setIfEmpty(rec, "version", versionOf(name))
	setIfEmpty(rec, "modelType", "llm")
	if placeholderURL != "" {
		setIfEmpty(rec, "referenceLink", placeholderURL)
		setIfEmpty(rec, "imageUrl", placeholderURL)
	}
	if len(rec.Tags()) == 0 {
		rec["tags"] = []string{"ollama"}
	}
	if _, ok := rec["metadata"]; !ok {
		rec["metadata"] = map[string]any{"source": "unknown"}
	}
}

func setIfEmpty(rec models.Record, key, value string) {
	if rec.GetString(key) == "" && value != "" {
		rec[key] = value
	}
}

// versionOf extracts the version from an Ollama-style "name:tag" pair.
// A bare name defaults to "latest".
func versionOf(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == ':' {
			return name[i+1:]
		}
	}
	return "latest"
}

func writeEnriched(deps Deps, id string, rec models.Record, detail string) models.Outcome {
	rec.Stamp(NameEnrich, models.StatusOK)
	if err := deps.Stores.Enriched.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("write enriched record: %v", err))
	}
	return models.OK(id, detail)
}

// hubEnricher extends the metadata defaults with a model-hub lookup:
// author, download counts, hub tags and a real reference link. A model
// the hub doesn't know keeps its defaults; a hub outage fails the
// record so a later run can retry it.
type hubEnricher struct {
	deps Deps
	hub  *hub.Client
}

func newHubEnricher(deps Deps) (Stage, error) {
	if deps.Stores.Raw == nil || deps.Stores.Enriched == nil {
		return nil, errors.New("hub enricher: raw and enriched stores are required")
	}
	if deps.Hub == nil {
		return nil, errors.New("hub enricher: hub client is required")
	}
	return &hubEnricher{deps: deps, hub: deps.Hub}, nil
}

func (e *hubEnricher) Name() string        { return NameEnrich }
func (e *hubEnricher) Input() *store.Store { return e.deps.Stores.Raw }

func (e *hubEnricher) Process(ctx context.Context, id string) models.Outcome {
	if archived(e.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := e.deps.Stores.Raw.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read raw record: %v", err))
	}
	name := rec.Name()
	if name == "" {
		return models.Failed(id, "record has no name field")
	}

	info, err := e.hub.FindModel(ctx, name)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("hub lookup for %q: %v", name, err))
	}

	detail := "enriched with metadata defaults, no hub match"
	if info != nil {
		mergeHubInfo(rec, info)
		detail = "enriched from hub model " + info.ID
	}
	enrichDefaults(rec, e.deps.Config.PlaceholderURL)
	return writeEnriched(e.deps, id, rec, detail)
}

// mergeHubInfo copies hub metadata onto the record. Hub tags are
// appended after the record's own tags, deduplicated.
func mergeHubInfo(rec models.Record, info *hub.ModelInfo) {
	rec["referenceLink"] = info.URL()
	setIfEmpty(rec, "parentModel", info.ID)

	meta, ok := rec["metadata"].(map[string]any)
	if !ok {
		meta = make(map[string]any)
		rec["metadata"] = meta
	}
	meta["hub_id"] = info.ID
	meta["downloads"] = info.Downloads
	meta["likes"] = info.Likes
	if info.PipelineT != "" {
		meta["pipeline_tag"] = info.PipelineT
	}

	tags := rec.Tags()
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		seen[t] = true
	}
	for _, t := range info.Tags {
		t = models.Slugify(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		tags = append(tags, t)
	}
	rec["tags"] = tags
}
