package stage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// TagMap resolves human tag names to destination catalog tag
// identifiers. It is backed by a JSON object file of name to id pairs
// and safe for concurrent use.
type TagMap struct {
	mu   sync.Mutex
	path string
	ids  map[string]string
}

// LoadTagMap reads the tag map file. A missing file yields an empty
// map so a fresh workspace still runs; a malformed file is an error.
func LoadTagMap(path string) (*TagMap, error) {
	tm := &TagMap{path: path, ids: make(map[string]string)}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return tm, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read tag map %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &tm.ids); err != nil {
		return nil, fmt.Errorf("parse tag map %s: %w", path, err)
	}
	return tm, nil
}

// Resolve looks up the identifier for a tag name (case-insensitive).
func (m *TagMap) Resolve(name string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.ids[strings.ToLower(name)]
	return id, ok
}

// Names returns all known tag names in sorted order.
func (m *TagMap) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.ids))
	for n := range m.ids {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Add registers a new name to id pair and persists the map file.
func (m *TagMap) Add(name, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids[strings.ToLower(name)] = id
	data, err := json.MarshalIndent(m.ids, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, append(data, '\n'), 0o644)
}

// simpleTagMapper replaces a record's tag names with catalog tag ids
// using exact (case-insensitive) lookups. An unresolvable tag fails
// the record unless unresolved tags are configured to be dropped.
type simpleTagMapper struct {
	deps     Deps
	tags     *TagMap
	fallback bool
}

func newSimpleTagMapper(deps Deps) (Stage, error) {
	return newTagMapper(deps, false)
}

// fallbackTagMapper additionally tries substring matching against the
// known tag names before giving up on a tag.
func newFallbackTagMapper(deps Deps) (Stage, error) {
	return newTagMapper(deps, true)
}

func newTagMapper(deps Deps, fallback bool) (Stage, error) {
	if deps.Stores.Enriched == nil || deps.Stores.Processed == nil {
		return nil, errors.New("tag mapper: enriched and processed stores are required")
	}
	tags, err := LoadTagMap(deps.Config.TagMapFile)
	if err != nil {
		return nil, err
	}
	return &simpleTagMapper{deps: deps, tags: tags, fallback: fallback}, nil
}

func (m *simpleTagMapper) Name() string        { return NameMapTags }
func (m *simpleTagMapper) Input() *store.Store { return m.deps.Stores.Enriched }

func (m *simpleTagMapper) Process(ctx context.Context, id string) models.Outcome {
	if archived(m.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := m.deps.Stores.Enriched.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read enriched record: %v", err))
	}

	var (
		tagIDs     []string
		unresolved []string
	)
	for _, name := range rec.Tags() {
		tagID, ok := m.resolve(ctx, name)
		if !ok {
			unresolved = append(unresolved, name)
			continue
		}
		tagIDs = append(tagIDs, tagID)
	}

	if len(unresolved) > 0 && !m.deps.Config.DropUnresolved {
		rec.Stamp(NameMapTags, models.StatusFailed)
		// Best effort: leave the failure visible on the input record.
		_ = m.deps.Stores.Enriched.Write(id, rec)
		return models.Failed(id, "unresolved tags: "+strings.Join(unresolved, ", "))
	}

	rec["tagIds"] = tagIDs
	detail := fmt.Sprintf("mapped %d tags", len(tagIDs))
	if len(unresolved) > 0 {
		detail += fmt.Sprintf(", dropped %d unresolved", len(unresolved))
	}
	rec.Stamp(NameMapTags, models.StatusOK)
	if err := m.deps.Stores.Processed.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("write processed record: %v", err))
	}
	return models.OK(id, detail)
}

// resolve maps one tag name to an id, optionally falling back to
// substring matching and to creating the tag in the catalog.
func (m *simpleTagMapper) resolve(ctx context.Context, name string) (string, bool) {
	if id, ok := m.tags.Resolve(name); ok {
		return id, true
	}
	if m.fallback {
		lower := strings.ToLower(name)
		for _, known := range m.tags.Names() {
			if strings.Contains(lower, known) || strings.Contains(known, lower) {
				if id, ok := m.tags.Resolve(known); ok {
					return id, true
				}
			}
		}
	}
	if m.deps.Config.AutoCreateTags {
		return m.create(ctx, name)
	}
	return "", false
}

func (m *simpleTagMapper) create(ctx context.Context, name string) (string, bool) {
	if m.deps.DryRun {
		// A live run would create this tag in the catalog; stand in a
		// placeholder id so the record resolves the same way.
		return "pending-" + models.Slugify(name), true
	}
	if m.deps.Catalog == nil {
		return "", false
	}
	tagID, err := m.deps.Catalog.CreateTag(ctx, name)
	if err != nil {
		m.deps.logger().Warn("auto-create tag failed", "tag", name, "error", err)
		return "", false
	}
	if err := m.tags.Add(name, tagID); err != nil {
		m.deps.logger().Warn("persist tag map failed", "tag", name, "error", err)
	}
	m.deps.logger().Info("created catalog tag", "tag", name, "id", tagID)
	return tagID, true
}
