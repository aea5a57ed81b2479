package record

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRecord_FieldsAreCopied(t *testing.T) {
	fields := map[string]any{"name": "Acme"}
	rec := New(uuid.New(), "accounts", fields)

	fields["name"] = "mutated"
	got, ok := rec.Field("name")
	require.True(t, ok)
	require.Equal(t, "Acme", got)

	out := rec.Fields()
	out["name"] = "mutated again"
	got, _ = rec.Field("name")
	require.Equal(t, "Acme", got)
}

func TestRecord_MergeFields(t *testing.T) {
	rec := New(uuid.New(), "contacts", map[string]any{
		"first_name": "Jane",
		"title":      "CTO",
	})

	merged := rec.MergeFields(map[string]any{
		"title":     nil,
		"last_name": "Doe",
	})

	_, hasTitle := merged.Field("title")
	require.False(t, hasTitle, "nil value removes the field")

	last, ok := merged.Field("last_name")
	require.True(t, ok)
	require.Equal(t, "Doe", last)

	// The original is untouched.
	_, stillHasTitle := rec.Field("title")
	require.True(t, stillHasTitle)
}

func TestRecord_HasTags(t *testing.T) {
	rec := New(uuid.New(), "leads", nil, WithTags([]string{"a"}))

	require.True(t, rec.HasTags(nil))
	require.True(t, rec.HasTags([]string{"a"}))
	require.False(t, rec.HasTags([]string{"a", "b"}), "selection is an intersection, not a union")
}

func TestRecord_TagNormalization(t *testing.T) {
	rec := New(uuid.New(), "leads", nil, WithTags([]string{" hot ", "hot", "", "q3"}))
	require.Equal(t, []string{"hot", "q3"}, rec.Tags())
}

func TestBucketFor(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		age  time.Duration
		want AgeBucket
	}{
		{"hours old", 3 * time.Hour, AgeWeek},
		{"exactly seven days", 7 * 24 * time.Hour, AgeWeek},
		{"two weeks", 14 * 24 * time.Hour, AgeMonth},
		{"two months", 60 * 24 * time.Hour, AgeQuarter},
		{"half a year", 180 * 24 * time.Hour, AgeOlder},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, BucketFor(now.Add(-tc.age), now))
		})
	}
}

func TestParseSort(t *testing.T) {
	require.Equal(t, Sort{Field: "name"}, ParseSort("name"))
	require.Equal(t, Sort{Field: "created_at", Descending: true}, ParseSort("-created_at"))
	require.Equal(t, "-created_at", Sort{Field: "created_at", Descending: true}.String())
}

func TestRefinement_IsZero(t *testing.T) {
	require.True(t, Refinement{}.IsZero())
	require.False(t, Refinement{Search: "x"}.IsZero())
	require.False(t, Refinement{Tags: []string{"a"}}.IsZero())
	require.False(t, Refinement{Age: AgeWeek}.IsZero())
	require.False(t, Refinement{Facets: map[string]string{"status": "new"}}.IsZero())
}
