package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordTags(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
		want []string
	}{
		{name: "string slice", rec: Record{"tags": []string{"a", "b"}}, want: []string{"a", "b"}},
		{name: "any slice from json", rec: Record{"tags": []any{"a", "b"}}, want: []string{"a", "b"}},
		{name: "drops non strings", rec: Record{"tags": []any{"a", 3, "b"}}, want: []string{"a", "b"}},
		{name: "absent", rec: Record{}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.Tags())
		})
	}
}

func TestRecordStamp(t *testing.T) {
	rec := Record{"name": "llama3"}
	rec.Stamp("extract", StatusOK)

	meta := rec.Meta()
	assert.Equal(t, "extract", meta.Stage)
	assert.Equal(t, StatusOK, meta.Status)
	assert.NotEmpty(t, meta.Timestamp)

	// Re-stamping replaces the envelope, not the domain fields.
	rec.Stamp("seed", StatusFailed)
	meta = rec.Meta()
	assert.Equal(t, "seed", meta.Stage)
	assert.Equal(t, StatusFailed, meta.Status)
	assert.Equal(t, "llama3", rec.Name())
}

func TestRecordClone(t *testing.T) {
	rec := Record{"name": "llama3", "tags": []string{"a"}}
	c := rec.Clone()
	c["name"] = "other"
	assert.Equal(t, "llama3", rec.Name())
	assert.Equal(t, "other", c.Name())
}

func TestRunReportRecord(t *testing.T) {
	r := NewRunReport(false)
	require.Len(t, r.RunID, 8)

	r.Record("extract", OK("m1", ""))
	r.Record("extract", OK("m2", ""))
	r.Record("enrich", Skipped("m1", "already archived"))
	r.Record("enrich", Failed("m2", "boom"))
	r.Finish()

	require.Len(t, r.Stages, 2)
	assert.Equal(t, StageReport{Stage: "extract", Attempted: 2, Succeeded: 2}, r.Stages[0])
	assert.Equal(t, StageReport{Stage: "enrich", Attempted: 2, Skipped: 1, Failed: 1}, r.Stages[1])

	require.Len(t, r.Failures, 1)
	assert.Equal(t, Failure{ID: "m2", Stage: "enrich", Detail: "boom"}, r.Failures[0])

	assert.False(t, r.Success)
	assert.Equal(t, 4, r.TotalAttempted())
	assert.False(t, r.CompletedAt.IsZero())
}

func TestRunReportSuccess(t *testing.T) {
	r := NewRunReport(true)
	r.Record("extract", OK("m1", ""))
	r.Record("seed", Skipped("m1", "dry run"))
	r.Finish()

	assert.True(t, r.Success)
	assert.True(t, r.DryRun)
}
