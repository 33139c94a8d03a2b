// Package stage defines the pipeline stage contract and the concrete
// stage implementations: extract, enrich, tag mapping, model mapping,
// seeding and archiving.
//
// A stage transforms records from its input store into its output
// store one record at a time. Per-record faults never escape Process;
// they are converted into a failed Outcome so one bad record cannot
// abort the batch. Stages keep no per-record state between calls and
// overwrite their output idempotently.
package stage

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/raphaelgruber/modelseed-go/internal/catalog"
	"github.com/raphaelgruber/modelseed-go/internal/config"
	"github.com/raphaelgruber/modelseed-go/internal/hub"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/ollama"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// Stage names, in pipeline order.
const (
	NameExtract   = "extract"
	NameEnrich    = "enrich"
	NameMapTags   = "map-tags"
	NameMapModels = "map-models"
	NameSeed      = "seed"
	NameArchive   = "archive"
)

// Order is the fixed execution order of the pipeline.
var Order = []string{NameExtract, NameEnrich, NameMapTags, NameMapModels, NameSeed, NameArchive}

// Stage is one pipeline phase.
type Stage interface {
	// Name identifies the stage in reports and logs.
	Name() string

	// Input returns the store whose records this stage iterates.
	// The extract stage has no input store and returns nil; it
	// implements Discoverer instead.
	Input() *store.Store

	// Process handles a single record. It must not panic or return:
	// every per-record fault is absorbed into a failed Outcome.
	Process(ctx context.Context, id string) models.Outcome
}

// Discoverer is implemented by source-driven stages that enumerate
// their own work instead of scanning an input store.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// Stores bundles the five pipeline stores.
type Stores struct {
	Raw       *store.Store
	Enriched  *store.Store
	Processed *store.Store
	Mapped    *store.Store
	Archive   *store.Store
}

// OpenStores opens (and creates if missing) every configured store.
func OpenStores(cfg config.Config) (Stores, error) {
	var s Stores
	var err error
	if s.Raw, err = store.New(cfg.RawDir); err != nil {
		return s, err
	}
	if s.Enriched, err = store.New(cfg.EnrichedDir); err != nil {
		return s, err
	}
	if s.Processed, err = store.New(cfg.ProcessedDir); err != nil {
		return s, err
	}
	if s.Mapped, err = store.New(cfg.MappedDir); err != nil {
		return s, err
	}
	if s.Archive, err = store.New(cfg.ArchiveDir); err != nil {
		return s, err
	}
	return s, nil
}

// Deps carries everything a stage constructor may need. Unused fields
// stay nil; each constructor validates what it requires.
type Deps struct {
	Config  config.Config
	Logger  *slog.Logger
	Stores  Stores
	Ollama  *ollama.Client
	Hub     *hub.Client
	Catalog *catalog.Client

	// DryRun suppresses catalog submissions, mapped-store writes and
	// archive moves. The working stores (raw, enriched, processed) are
	// still written so every stage runs over the same records it would
	// in a live run.
	DryRun bool

	// Seeded is shared between the seed and archive stages of one run.
	Seeded *SeedLog

	// Staged holds payloads the model mapper validated during a dry
	// run instead of writing them to the mapped store, so the seed and
	// archive stages still enumerate them.
	Staged *Staging
}

func (d Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// SeedLog records which identifiers were successfully seeded during the
// current run. The archiver only moves records present here.
type SeedLog struct {
	mu sync.Mutex
	ok map[string]bool
}

// NewSeedLog creates an empty seed log.
func NewSeedLog() *SeedLog {
	return &SeedLog{ok: make(map[string]bool)}
}

// Mark records a successful seed for id.
func (l *SeedLog) Mark(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ok[id] = true
}

// Seeded reports whether id was successfully seeded this run.
func (l *SeedLog) Seeded(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ok[id]
}

// Staging is an in-memory stand-in for the mapped store during a dry
// run. Safe for concurrent use.
type Staging struct {
	mu   sync.Mutex
	recs map[string]models.Record
}

// NewStaging creates an empty staging area.
func NewStaging() *Staging {
	return &Staging{recs: make(map[string]models.Record)}
}

// Put stages a validated payload under id.
func (s *Staging) Put(id string, rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[id] = rec
}

// Get returns the staged payload for id, if any.
func (s *Staging) Get(id string) (models.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.recs[id]
	return rec, ok
}

// IDs returns the staged identifiers in sorted order.
func (s *Staging) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.recs))
	for id := range s.recs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// mergeIDs unions two sorted-or-not id lists into one sorted list.
func mergeIDs(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// archived reports whether a record has already reached the archive.
// Every stage skips archived identifiers, which is what makes a re-run
// over fully processed stores a no-op.
func archived(s Stores, id string) bool {
	return s.Archive != nil && s.Archive.Exists(id)
}
