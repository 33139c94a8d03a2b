// Package store implements the directory-backed record stores the
// pipeline stages read from and write to. One JSON document per record,
// keyed by the record identifier.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/raphaelgruber/modelseed-go/internal/models"
)

// ErrNotFound is returned when a record is absent or its file is not
// valid JSON.
var ErrNotFound = errors.New("record not found")

// Store is a directory of per-record JSON documents.
//
// Writes are atomic (temp file + rename) so a concurrently scanning
// reader never observes a partial document. The store does no caching:
// List re-scans the directory on every call.
type Store struct {
	dir string
}

// New opens a store rooted at dir, creating the directory if needed.
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir %s: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the store's backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// List returns all record identifiers in lexicographic order. Repeated
// runs therefore process records in a stable sequence.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("scan store %s: %w", s.dir, err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		if strings.HasSuffix(e.Name(), ".meta.json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Read loads one record. Missing files and malformed JSON both report
// ErrNotFound so callers treat them uniformly as an unreadable record.
func (s *Store) Read(id string) (models.Record, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	var rec models.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("read %s: malformed JSON: %w", id, ErrNotFound)
	}
	return rec, nil
}

// Write persists a record, overwriting any previous version atomically.
func (s *Store) Write(id string, rec models.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", id, err)
	}
	return s.writeFile(s.path(id), data)
}

// WriteSidecar persists auxiliary JSON next to a record under
// <id>.meta.json. Sidecars are invisible to List.
func (s *Store) WriteSidecar(id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar %s: %w", id, err)
	}
	return s.writeFile(filepath.Join(s.dir, id+".meta.json"), data)
}

// Exists reports whether a record file is present.
func (s *Store) Exists(id string) bool {
	_, err := os.Stat(s.path(id))
	return err == nil
}

// Remove deletes a record file. Removing an absent record is not an error.
func (s *Store) Remove(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove %s: %w", id, err)
	}
	return nil
}

// Move relocates a record into another store under the given identifier.
// Rename keeps the move atomic on the same filesystem; if the stores live
// on different filesystems it degrades to copy + remove.
func (s *Store) Move(id, destID string, dest *Store) error {
	src := s.path(id)
	dst := dest.path(destID)
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	rec, err := s.Read(id)
	if err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	if err := dest.Write(destID, rec); err != nil {
		return fmt.Errorf("move %s: %w", id, err)
	}
	return s.Remove(id)
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}

func (s *Store) writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
