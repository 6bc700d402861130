// Package batch turns filtered storage listings into immutable, ordered
// batches that a downstream execution engine consumes.
package batch

import (
	"errors"

	"github.com/fathomdata/batchsource/internal/match"
	"github.com/fathomdata/batchsource/internal/storage"
)

// ErrUnknownSortField marks a sort field that no batch carries. It is a
// configuration error for the whole call, not a per-batch condition.
var ErrUnknownSortField = errors.New("unknown sort field")

// Spec configures a single discovery call. Read-only once handed to the
// connector.
type Spec struct {
	// Bucket is the bucket/container (or backend-specific root) to list.
	Bucket string

	// Prefix scopes the listing.
	Prefix string

	// Delimiter separates path segments, typically "/".
	Delimiter string

	// Recursive includes nested paths; when false only the immediate
	// directory level under Prefix is discovered.
	Recursive bool

	// MaxKeys bounds each listing page. Zero uses the backend default.
	MaxKeys int

	// Filter is the asset-specific name predicate (e.g. a CSV suffix).
	Filter match.Predicate

	// Extractor populates each batch's partition mapping from its path.
	Extractor Extractor

	// Metadata is attached verbatim to every produced batch. Opaque to
	// this package.
	Metadata map[string]any
}

// SortKey is one (field, direction) entry of a sort specification.
type SortKey struct {
	Field      string
	Descending bool
}

// Batch is one unit of data handed to the execution engine. Immutable after
// construction: identity is a pure function of the source path, so the same
// storage state always yields the same batch.
type Batch struct {
	// ID is the normalized source path.
	ID string

	// Partitions maps partition-field names to values extracted from the
	// path. Fields the extractor could not match are absent.
	Partitions map[string]string

	// Metadata is the caller-supplied mapping, never interpreted here.
	Metadata map[string]any

	// Source references the underlying object for the execution engine.
	Source storage.ObjectRef
}
