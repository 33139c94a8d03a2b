package stage

import (
	"context"
	"errors"
	"fmt"

	"github.com/raphaelgruber/modelseed-go/internal/catalog"
	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// apiSeeder submits mapped payloads to the destination catalog API.
// Successful submissions are logged in the run's seed log so the
// archiver knows which records may leave the mapped store.
type apiSeeder struct {
	deps   Deps
	client *catalog.Client
}

func newAPISeeder(deps Deps) (Stage, error) {
	if deps.Stores.Mapped == nil {
		return nil, errors.New("api seeder: mapped store is required")
	}
	if deps.Catalog == nil {
		return nil, errors.New("api seeder: catalog client is required")
	}
	return &apiSeeder{deps: deps, client: deps.Catalog}, nil
}

func (s *apiSeeder) Name() string        { return NameSeed }
func (s *apiSeeder) Input() *store.Store { return s.deps.Stores.Mapped }

// Discover lists the mapped store plus any payloads staged during a
// dry run, so a dry run submits over the same records a live run would.
func (s *apiSeeder) Discover(_ context.Context) ([]string, error) {
	return seedWorkload(s.deps)
}

func (s *apiSeeder) Process(ctx context.Context, id string) models.Outcome {
	if archived(s.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := seedRecord(s.deps, id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read mapped record: %v", err))
	}

	payload := map[string]any(rec.Clone())
	delete(payload, models.MetaKey)

	if s.deps.DryRun {
		if s.deps.Seeded != nil {
			s.deps.Seeded.Mark(id)
		}
		return models.OK(id, "dry-run: submission skipped")
	}

	result, err := s.client.SeedModel(ctx, payload)
	if err != nil {
		detail := fmt.Sprintf("catalog submission: %v", err)
		if catalog.IsRejected(err) {
			detail = fmt.Sprintf("rejected by catalog: %v", err)
		}
		rec.Stamp(NameSeed, models.StatusFailed)
		_ = s.deps.Stores.Mapped.Write(id, rec)
		return models.Failed(id, detail)
	}

	if s.deps.Seeded != nil {
		s.deps.Seeded.Mark(id)
	}
	rec.Stamp(NameSeed, models.StatusOK)
	if err := s.deps.Stores.Mapped.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("update mapped record: %v", err))
	}
	return models.OK(id, fmt.Sprintf("seeded (status %d, %d attempt(s))", result.StatusCode, result.Attempts))
}

// mockSeeder accepts every payload without talking to any API. Used in
// tests and for rehearsing a run against a fresh workspace.
type mockSeeder struct {
	deps Deps
}

func newMockSeeder(deps Deps) (Stage, error) {
	if deps.Stores.Mapped == nil {
		return nil, errors.New("mock seeder: mapped store is required")
	}
	return &mockSeeder{deps: deps}, nil
}

func (s *mockSeeder) Name() string        { return NameSeed }
func (s *mockSeeder) Input() *store.Store { return s.deps.Stores.Mapped }

func (s *mockSeeder) Discover(_ context.Context) ([]string, error) {
	return seedWorkload(s.deps)
}

func (s *mockSeeder) Process(_ context.Context, id string) models.Outcome {
	if archived(s.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := seedRecord(s.deps, id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read mapped record: %v", err))
	}
	if s.deps.DryRun {
		if s.deps.Seeded != nil {
			s.deps.Seeded.Mark(id)
		}
		return models.OK(id, "dry-run: submission skipped")
	}
	if s.deps.Seeded != nil {
		s.deps.Seeded.Mark(id)
	}
	rec.Stamp(NameSeed, models.StatusOK)
	if err := s.deps.Stores.Mapped.Write(id, rec); err != nil {
		return models.Failed(id, fmt.Sprintf("update mapped record: %v", err))
	}
	return models.OK(id, "seeded (mock)")
}

// seedWorkload enumerates the mapped store, merged with the dry run
// staging area when one is populated.
func seedWorkload(deps Deps) ([]string, error) {
	ids, err := deps.Stores.Mapped.List()
	if err != nil {
		return nil, fmt.Errorf("list mapped store: %w", err)
	}
	if deps.DryRun && deps.Staged != nil {
		ids = mergeIDs(ids, deps.Staged.IDs())
	}
	return ids, nil
}

// seedRecord reads the payload for id, falling back to the dry run
// staging area for records the model mapper deliberately kept out of
// the mapped store.
func seedRecord(deps Deps, id string) (models.Record, error) {
	rec, err := deps.Stores.Mapped.Read(id)
	if err == nil || !deps.DryRun || deps.Staged == nil {
		return rec, err
	}
	if staged, ok := deps.Staged.Get(id); ok {
		return staged, nil
	}
	return nil, err
}
