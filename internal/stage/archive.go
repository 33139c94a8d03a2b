package stage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// simpleArchiver moves successfully seeded records out of the mapped
// store into the archive. Records not seeded during this run stay put,
// which keeps failed submissions available for the next run.
type simpleArchiver struct {
	deps    Deps
	sidecar bool
}

func newSimpleArchiver(deps Deps) (Stage, error) {
	return newArchiver(deps, false)
}

// metadataArchiver additionally writes an archive sidecar next to each
// moved record with when and why it was archived.
func newMetadataArchiver(deps Deps) (Stage, error) {
	return newArchiver(deps, true)
}

func newArchiver(deps Deps, sidecar bool) (Stage, error) {
	if deps.Stores.Mapped == nil || deps.Stores.Archive == nil {
		return nil, errors.New("archiver: mapped and archive stores are required")
	}
	return &simpleArchiver{deps: deps, sidecar: sidecar}, nil
}

func (a *simpleArchiver) Name() string        { return NameArchive }
func (a *simpleArchiver) Input() *store.Store { return a.deps.Stores.Mapped }

// Discover lists the mapped store plus any payloads staged during a
// dry run, matching the workload the seed stage just covered.
func (a *simpleArchiver) Discover(_ context.Context) ([]string, error) {
	return seedWorkload(a.deps)
}

func (a *simpleArchiver) Process(_ context.Context, id string) models.Outcome {
	if archived(a.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	if a.deps.Seeded == nil || !a.deps.Seeded.Seeded(id) {
		return models.Skipped(id, "not seeded this run")
	}
	if a.deps.DryRun {
		return models.OK(id, "dry-run: archive skipped")
	}

	rec, err := a.deps.Stores.Mapped.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read mapped record: %v", err))
	}

	destID := id
	if a.deps.Stores.Archive.Exists(destID) {
		destID = fmt.Sprintf("%s-%s", id, time.Now().UTC().Format("20060102T150405"))
	}
	if err := a.deps.Stores.Mapped.Move(id, destID, a.deps.Stores.Archive); err != nil {
		return models.Failed(id, fmt.Sprintf("move to archive: %v", err))
	}

	// Stamp only after the move succeeded, so a failed move never
	// leaves a mapped record claiming it was archived.
	rec.Stamp(NameArchive, models.StatusOK)
	if err := a.deps.Stores.Archive.Write(destID, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("stamp archived record: %v", err))
	}

	if a.sidecar {
		meta := map[string]any{
			"archived_at": time.Now().UTC().Format(time.RFC3339),
			"original_id": id,
			"name":        rec.Name(),
			"source":      a.deps.Stores.Mapped.Dir(),
			"seeded":      true,
		}
		if err := a.deps.Stores.Archive.WriteSidecar(destID, meta); err != nil {
			a.deps.logger().Warn("write archive sidecar failed", "id", destID, "error", err)
		}
	}
	return models.OK(id, "archived as "+destID)
}
