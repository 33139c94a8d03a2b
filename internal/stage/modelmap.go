package stage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/raphaelgruber/modelseed-go/internal/models"
	"github.com/raphaelgruber/modelseed-go/internal/store"
)

// standardModelMapper shapes a processed record into the destination
// catalog's submission payload and validates it against the catalog's
// field constraints. A record that fails validation is never partially
// written: it stays in the processed store stamped failed.
type standardModelMapper struct {
	deps Deps
}

func newStandardModelMapper(deps Deps) (Stage, error) {
	if deps.Stores.Processed == nil || deps.Stores.Mapped == nil {
		return nil, errors.New("model mapper: processed and mapped stores are required")
	}
	return &standardModelMapper{deps: deps}, nil
}

func (m *standardModelMapper) Name() string        { return NameMapModels }
func (m *standardModelMapper) Input() *store.Store { return m.deps.Stores.Processed }

func (m *standardModelMapper) Process(_ context.Context, id string) models.Outcome {
	if archived(m.deps.Stores, id) {
		return models.Skipped(id, "already archived")
	}
	rec, err := m.deps.Stores.Processed.Read(id)
	if err != nil {
		return models.Failed(id, fmt.Sprintf("read processed record: %v", err))
	}

	payload := buildPayload(rec)
	if errs := ValidatePayload(payload); len(errs) > 0 {
		rec.Stamp(NameMapModels, models.StatusFailed)
		_ = m.deps.Stores.Processed.Write(id, rec)
		return models.Failed(id, "validation: "+strings.Join(errs, "; "))
	}

	mapped := models.Record(payload)
	mapped.Stamp(NameMapModels, models.StatusOK)
	if m.deps.DryRun {
		if m.deps.Staged != nil {
			m.deps.Staged.Put(id, mapped)
		}
		return models.OK(id, "dry-run: payload validated, mapped store untouched")
	}
	if err := m.deps.Stores.Mapped.Write(id, mapped); err != nil {
		return models.Failed(id, fmt.Sprintf("write mapped record: %v", err))
	}
	return models.OK(id, "mapped to catalog payload")
}

// buildPayload assembles the catalog submission document from a
// processed record. Only known fields cross over; pipeline bookkeeping
// like the meta envelope and raw metadata stays behind.
func buildPayload(rec models.Record) map[string]any {
	payload := make(map[string]any)
	for _, key := range []string{
		"name", "displayName", "description", "version", "modelId",
		"format", "parameterSize", "quantizationLevel", "sizeLabel",
		"modelType", "license", "template", "modelFile",
		"referenceLink", "imageUrl", "digest", "parentModel",
		"family", "architecture",
	} {
		if v := rec.GetString(key); v != "" {
			payload[key] = v
		}
	}
	if v, ok := rec["size"]; ok {
		payload["size"] = v
	}
	if v, ok := rec["parameterCount"]; ok {
		payload["parameterCount"] = v
	}
	for _, key := range []string{"families", "languages"} {
		if list := stringList(rec[key]); len(list) > 0 {
			payload[key] = list
		}
	}

	var tags []map[string]any
	for _, tagID := range stringList(rec["tagIds"]) {
		tags = append(tags, map[string]any{"tagId": tagID})
	}
	payload["tags"] = tags
	return payload
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// maxLengths are the destination catalog's per-field limits.
var maxLengths = map[string]int{
	"name":              100,
	"description":       1000,
	"version":           50,
	"size":              50,
	"format":            50,
	"parameterSize":     50,
	"quantizationLevel": 50,
	"sizeLabel":         50,
	"modelType":         50,
	"license":           2000,
	"template":          2000,
	"modelFile":         2000,
	"referenceLink":     500,
	"imageUrl":          500,
	"digest":            200,
	"parentModel":       100,
	"family":            100,
	"architecture":      100,
}

// ValidatePayload checks a catalog submission payload against the
// destination schema. It returns every violation, not just the first.
func ValidatePayload(payload map[string]any) []string {
	var errs []string

	name, _ := payload["name"].(string)
	if strings.TrimSpace(name) == "" {
		errs = append(errs, "name is required")
	}

	for key, limit := range maxLengths {
		s, ok := payload[key].(string)
		if !ok {
			continue
		}
		if len(s) > limit {
			errs = append(errs, fmt.Sprintf("%s exceeds %d characters", key, limit))
		}
	}

	for _, key := range []string{"referenceLink", "imageUrl"} {
		s, ok := payload[key].(string)
		if !ok || s == "" {
			continue
		}
		if u, err := url.Parse(s); err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Sprintf("%s must be an absolute URL", key))
		}
	}

	if v, ok := payload["parameterCount"]; ok {
		if n, ok := asFloat(v); !ok || n <= 0 {
			errs = append(errs, "parameterCount must be a positive number")
		}
	}

	for _, key := range []string{"families", "languages"} {
		for i, entry := range stringList(payload[key]) {
			if strings.TrimSpace(entry) == "" {
				errs = append(errs, fmt.Sprintf("%s[%d] is empty", key, i))
			} else if len(entry) > 100 {
				errs = append(errs, fmt.Sprintf("%s[%d] exceeds 100 characters", key, i))
			}
		}
	}

	for i, tag := range tagEntries(payload["tags"]) {
		if id, _ := tag["tagId"].(string); strings.TrimSpace(id) == "" {
			errs = append(errs, fmt.Sprintf("tags[%d] has no tagId", i))
		}
	}

	return errs
}

// tagEntries normalizes the tags list, which is []map[string]any when
// freshly built and []any after a JSON round trip.
func tagEntries(v any) []map[string]any {
	switch list := v.(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}
