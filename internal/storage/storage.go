// Package storage abstracts paginated object-store listing across backends.
//
// Each backend implements the minimal surface the connector needs: list one
// page of objects for a bucket/prefix. Credential handling belongs to the
// backend SDK option structs; no custom auth logic lives here.
package storage

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidSpec marks a listing request that can never succeed:
	// missing or unresolvable bucket/container. Not retryable.
	ErrInvalidSpec = errors.New("invalid listing spec")

	// ErrStorageUnavailable marks a transport or auth failure talking to
	// the backend. The caller may retry; this package does not.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// ObjectRef is a single listed storage entry. Immutable once returned.
type ObjectRef struct {
	Bucket       string
	Key          string
	Size         int64
	LastModified time.Time
	ETag         string
}

// ListRequest scopes one page of a listing.
type ListRequest struct {
	// Bucket is the bucket or container name.
	Bucket string

	// Prefix filters results to keys starting with this value.
	Prefix string

	// Token resumes listing from a previous ListResult. Empty starts over.
	Token string

	// MaxKeys limits the number of objects per page. Zero uses the
	// backend default (typically 1000).
	MaxKeys int
}

// ListResult is one page of objects.
type ListResult struct {
	Objects []ObjectRef

	// NextToken retrieves the following page. Empty means exhausted.
	NextToken string

	// Truncated indicates more results are available.
	Truncated bool
}

// Lister lists pages of objects for a bucket/prefix. Implementations are
// safe for concurrent use; a full listing is restarted by issuing a fresh
// request with an empty token.
type Lister interface {
	// List returns one page of objects.
	List(ctx context.Context, req ListRequest) (*ListResult, error)

	// Name identifies the backend in errors and logs.
	Name() string
}

// LevelResult is one "directory level" of a hierarchy listing: the objects
// directly under the prefix plus the immediate child prefixes.
type LevelResult struct {
	Objects  []ObjectRef
	Prefixes []string
}

// DelimiterLister is implemented by backends that support delimiter-grouped
// listing. The connector uses it to fan listing out across child prefixes;
// backends without it are listed serially.
type DelimiterLister interface {
	ListLevel(ctx context.Context, req ListRequest, delimiter string) (*LevelResult, error)
}
