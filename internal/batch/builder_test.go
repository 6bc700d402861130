package batch

import (
	"reflect"
	"testing"

	"github.com/fathomdata/batchsource/internal/storage"
)

func TestRegexExtractor(t *testing.T) {
	ex, err := RegexExtractor(`(?P<year>\d{4})/(?P<month>\d{2})/[^/]+\.csv`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := ex("2023/01/a.csv")
	want := map[string]string{"year": "2023", "month": "01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	if got := ex("readme.txt"); got != nil {
		t.Errorf("expected nil for non-matching path, got %v", got)
	}
}

func TestRegexExtractor_BadPattern(t *testing.T) {
	if _, err := RegexExtractor("(?P<broken"); err == nil {
		t.Fatal("expected error for bad pattern")
	}
}

func TestSegmentExtractor(t *testing.T) {
	ex := SegmentExtractor("/", map[int]string{0: "year", 1: "month"})

	got := ex("2023/01/a.csv")
	want := map[string]string{"year": "2023", "month": "01"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// out-of-range segment index is omitted, not an error
	got = ex("flat.csv")
	if len(got) != 1 || got["year"] != "flat.csv" {
		t.Errorf("got %v, want only year=flat.csv", got)
	}
}

func TestBuild_OneObjectOneBatch(t *testing.T) {
	objects := []storage.ObjectRef{
		{Bucket: "data", Key: "2023/01/a.csv", Size: 10},
		{Bucket: "data", Key: "2023/02/b.csv", Size: 20},
	}
	ex, _ := RegexExtractor(`\d{4}/(?P<month>\d{2})/[^/]+\.csv`)
	meta := map[string]any{"team": "ingest"}

	batches := Build(objects, ex, meta)
	if len(batches) != 2 {
		t.Fatalf("expected 2 batches, got %d", len(batches))
	}

	first := batches[0]
	if first.ID != "2023/01/a.csv" {
		t.Errorf("unexpected id %q", first.ID)
	}
	if first.Partitions["month"] != "01" {
		t.Errorf("unexpected partitions %v", first.Partitions)
	}
	if first.Metadata["team"] != "ingest" {
		t.Errorf("metadata not attached: %v", first.Metadata)
	}
	if first.Source != objects[0] {
		t.Errorf("source ref not preserved")
	}
}

func TestBuild_UnmatchedFieldsAbsent(t *testing.T) {
	objects := []storage.ObjectRef{{Bucket: "data", Key: "no-partitions.csv"}}
	ex, _ := RegexExtractor(`(?P<year>\d{4})/.*`)

	batches := Build(objects, ex, nil)
	if len(batches) != 1 {
		t.Fatalf("expected 1 batch, got %d", len(batches))
	}
	if _, ok := batches[0].Partitions["year"]; ok {
		t.Error("expected year to be absent")
	}
	if batches[0].Partitions == nil {
		t.Error("partitions map should be non-nil even when empty")
	}
}

func TestBuild_Deterministic(t *testing.T) {
	objects := []storage.ObjectRef{
		{Bucket: "data", Key: "2023/01/a.csv"},
		{Bucket: "data", Key: "2023/02/b.csv"},
	}
	ex, _ := RegexExtractor(`(?P<year>\d{4})/(?P<month>\d{2})/.*`)

	a := Build(objects, ex, nil)
	b := Build(objects, ex, nil)
	if !reflect.DeepEqual(a, b) {
		t.Error("identical inputs must build identical batches")
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct{ in, want string }{
		{"2023/01/a.csv", "2023/01/a.csv"},
		{"/leading/slash.csv", "leading/slash.csv"},
		{"a//b.csv", "a/b.csv"},
		{"./c.csv", "c.csv"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePath(tt.in); got != tt.want {
			t.Errorf("NormalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
