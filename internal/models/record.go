// Package models defines data structures shared by the modelseed pipeline stages.
package models

import (
	"time"
)

// MetaKey is the envelope key carrying stage provenance inside a record.
const MetaKey = "_meta"

// Status classifies the result of processing one record in one stage.
type Status string

const (
	StatusOK      Status = "ok"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Record is one model's metadata document at some pipeline stage.
// Domain fields are free-form JSON; the envelope lives under MetaKey.
type Record map[string]any

// Meta is the stage-provenance envelope persisted with every record.
type Meta struct {
	Stage     string `json:"stage"`
	Timestamp string `json:"timestamp"`
	Status    Status `json:"status"`
}

// Name returns the record's model name, or "" if absent.
func (r Record) Name() string {
	return r.GetString("name")
}

// GetString returns the string value of a field, or "" if absent or not a string.
func (r Record) GetString(key string) string {
	if v, ok := r[key].(string); ok {
		return v
	}
	return ""
}

// Tags returns the record's tag names. Non-string entries are dropped.
func (r Record) Tags() []string {
	raw, ok := r["tags"].([]any)
	if !ok {
		// Records built in-process may hold a []string directly.
		if s, ok := r["tags"].([]string); ok {
			return s
		}
		return nil
	}
	tags := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}

// TagIDs returns the resolved destination tag identifiers, if any.
func (r Record) TagIDs() []string {
	raw, ok := r["tagIds"].([]any)
	if !ok {
		if s, ok := r["tagIds"].([]string); ok {
			return s
		}
		return nil
	}
	ids := make([]string, 0, len(raw))
	for _, t := range raw {
		if s, ok := t.(string); ok {
			ids = append(ids, s)
		}
	}
	return ids
}

// Meta extracts the provenance envelope, or a zero Meta if missing.
func (r Record) Meta() Meta {
	m, ok := r[MetaKey].(map[string]any)
	if !ok {
		return Meta{}
	}
	meta := Meta{}
	if v, ok := m["stage"].(string); ok {
		meta.Stage = v
	}
	if v, ok := m["timestamp"].(string); ok {
		meta.Timestamp = v
	}
	if v, ok := m["status"].(string); ok {
		meta.Status = Status(v)
	}
	return meta
}

// Stamp replaces the record's envelope with the given stage and status.
// The domain fields and the record identity are untouched.
func (r Record) Stamp(stage string, status Status) {
	r[MetaKey] = map[string]any{
		"stage":     stage,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"status":    string(status),
	}
}

// Clone returns a shallow copy of the record. Stages copy before mutating
// so a failed transform never leaves a half-modified input behind.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Outcome is a stage's per-record result.
type Outcome struct {
	ID     string `json:"id"`
	Status Status `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// OK builds a successful outcome.
func OK(id, detail string) Outcome {
	return Outcome{ID: id, Status: StatusOK, Detail: detail}
}

// Failed builds a failed outcome.
func Failed(id, detail string) Outcome {
	return Outcome{ID: id, Status: StatusFailed, Detail: detail}
}

// Skipped builds a skipped outcome.
func Skipped(id, detail string) Outcome {
	return Outcome{ID: id, Status: StatusSkipped, Detail: detail}
}
