package storage

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MemoryLister is an in-memory Lister used in tests and local development.
// Keys are served in lexicographic order; the continuation token is a
// numeric offset into the filtered key set.
type MemoryLister struct {
	buckets map[string][]ObjectRef
}

// NewMemoryLister builds a MemoryLister holding the given keys per bucket.
// Sizes and timestamps are synthesized deterministically from the key.
func NewMemoryLister(buckets map[string][]string) *MemoryLister {
	base := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	m := &MemoryLister{buckets: make(map[string][]ObjectRef, len(buckets))}
	for bucket, keys := range buckets {
		refs := make([]ObjectRef, 0, len(keys))
		for _, key := range keys {
			refs = append(refs, ObjectRef{
				Bucket:       bucket,
				Key:          key,
				Size:         int64(len(key)),
				LastModified: base.Add(time.Duration(len(key)) * time.Minute),
			})
		}
		sort.Slice(refs, func(i, j int) bool { return refs[i].Key < refs[j].Key })
		m.buckets[bucket] = refs
	}
	return m
}

func (m *MemoryLister) Name() string { return "memory" }

func (m *MemoryLister) List(ctx context.Context, req ListRequest) (*ListResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs, ok := m.buckets[req.Bucket]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q not found", ErrInvalidSpec, req.Bucket)
	}

	var filtered []ObjectRef
	for _, ref := range refs {
		if strings.HasPrefix(ref.Key, req.Prefix) {
			filtered = append(filtered, ref)
		}
	}

	offset := 0
	if req.Token != "" {
		n, err := strconv.Atoi(req.Token)
		if err != nil || n < 0 || n > len(filtered) {
			return nil, fmt.Errorf("%w: bad continuation token %q", ErrInvalidSpec, req.Token)
		}
		offset = n
	}

	pageSize := req.MaxKeys
	if pageSize <= 0 {
		pageSize = 1000
	}

	end := offset + pageSize
	if end > len(filtered) {
		end = len(filtered)
	}

	out := &ListResult{Objects: filtered[offset:end]}
	if end < len(filtered) {
		out.NextToken = strconv.Itoa(end)
		out.Truncated = true
	}
	return out, nil
}

// ListLevel groups the flat key set by the delimiter, mirroring what the
// real backends do service-side.
func (m *MemoryLister) ListLevel(ctx context.Context, req ListRequest, delimiter string) (*LevelResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	refs, ok := m.buckets[req.Bucket]
	if !ok {
		return nil, fmt.Errorf("%w: bucket %q not found", ErrInvalidSpec, req.Bucket)
	}

	level := &LevelResult{}
	seen := make(map[string]bool)
	for _, ref := range refs {
		if !strings.HasPrefix(ref.Key, req.Prefix) {
			continue
		}
		rest := ref.Key[len(req.Prefix):]
		if delimiter == "" {
			level.Objects = append(level.Objects, ref)
			continue
		}
		if idx := strings.Index(rest, delimiter); idx >= 0 {
			prefix := req.Prefix + rest[:idx+len(delimiter)]
			if !seen[prefix] {
				seen[prefix] = true
				level.Prefixes = append(level.Prefixes, prefix)
			}
			continue
		}
		level.Objects = append(level.Objects, ref)
	}
	return level, nil
}

var (
	_ Lister          = (*MemoryLister)(nil)
	_ DelimiterLister = (*MemoryLister)(nil)
)
