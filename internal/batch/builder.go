package batch

import (
	"path"
	"regexp"
	"strings"

	"github.com/fathomdata/batchsource/internal/storage"
)

// Extractor pulls partition-field values out of an object path. Fields that
// cannot be determined are simply omitted from the result; sorting decides
// what missing values mean.
type Extractor func(key string) map[string]string

// RegexExtractor builds an Extractor from a pattern with named capture
// groups: `(?P<year>\d{4})/(?P<month>\d{2})/.*\.csv` yields fields "year"
// and "month". A non-matching path yields no fields.
func RegexExtractor(pattern string) (Extractor, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	names := re.SubexpNames()
	return func(key string) map[string]string {
		m := re.FindStringSubmatch(key)
		if m == nil {
			return nil
		}
		fields := make(map[string]string)
		for i, name := range names {
			if i == 0 || name == "" || m[i] == "" {
				continue
			}
			fields[name] = m[i]
		}
		return fields
	}, nil
}

// SegmentExtractor builds an Extractor that maps delimiter-separated path
// segments to field names by index: {0: "year", 1: "month"} over
// "2023/01/a.csv" yields year=2023, month=01. Out-of-range indexes are
// omitted.
func SegmentExtractor(delimiter string, fields map[int]string) Extractor {
	return func(key string) map[string]string {
		segments := strings.Split(key, delimiter)
		out := make(map[string]string)
		for idx, name := range fields {
			if idx >= 0 && idx < len(segments) {
				out[name] = segments[idx]
			}
		}
		return out
	}
}

// Build maps each object to exactly one batch. Identity is the normalized
// path; the caller metadata is attached verbatim to every batch.
func Build(objects []storage.ObjectRef, extractor Extractor, metadata map[string]any) []Batch {
	batches := make([]Batch, 0, len(objects))
	for _, ref := range objects {
		b := Batch{
			ID:       NormalizePath(ref.Key),
			Metadata: metadata,
			Source:   ref,
		}
		if extractor != nil {
			if fields := extractor(ref.Key); len(fields) > 0 {
				b.Partitions = fields
			}
		}
		if b.Partitions == nil {
			b.Partitions = map[string]string{}
		}
		batches = append(batches, b)
	}
	return batches
}

// NormalizePath cleans an object key into a stable batch identifier.
func NormalizePath(key string) string {
	cleaned := path.Clean(key)
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == "." {
		return ""
	}
	return cleaned
}
