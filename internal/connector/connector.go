// Package connector orchestrates listing, matching, building and sorting
// into one discovery call: the sole entry point the asset layer uses.
package connector

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fathomdata/batchsource/internal/batch"
	"github.com/fathomdata/batchsource/internal/match"
	"github.com/fathomdata/batchsource/internal/storage"
)

// phase tracks where a discovery run is. Each call owns its own run; phases
// are never reused across calls.
type phase int

const (
	phaseIdle phase = iota
	phaseListing
	phaseMatching
	phaseBuilding
	phaseSorting
	phaseReady
	phaseFailed
)

func (p phase) String() string {
	switch p {
	case phaseIdle:
		return "idle"
	case phaseListing:
		return "listing"
	case phaseMatching:
		return "matching"
	case phaseBuilding:
		return "building"
	case phaseSorting:
		return "sorting"
	case phaseReady:
		return "ready"
	case phaseFailed:
		return "failed"
	}
	return "unknown"
}

// Connector drives one storage backend. Stateless across calls and safe for
// concurrent use.
type Connector struct {
	lister      storage.Lister
	log         zerolog.Logger
	parallelism int
	timeout     time.Duration
}

// Option configures a Connector.
type Option func(*Connector)

// WithLogger injects the logger discovery runs log through.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Connector) { c.log = log }
}

// WithParallelism allows fanning listing out across up to n child prefixes
// when the backend supports delimiter listing. 1 keeps listing serial.
func WithParallelism(n int) Option {
	return func(c *Connector) {
		if n > 1 {
			c.parallelism = n
		}
	}
}

// WithTimeout bounds a whole discovery call. Per-page timeouts belong to
// the backend transport; this is the cumulative budget on top of them.
func WithTimeout(d time.Duration) Option {
	return func(c *Connector) { c.timeout = d }
}

// New creates a Connector over the given lister.
func New(lister storage.Lister, opts ...Option) *Connector {
	c := &Connector{
		lister:      lister,
		log:         zerolog.Nop(),
		parallelism: 1,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Discover lists, filters, builds and orders the batches for one spec.
// Either the complete ordered sequence is returned or the call fails; there
// is no partial result. Zero batches is a valid outcome, not an error.
func (c *Connector) Discover(ctx context.Context, spec batch.Spec, order []batch.SortKey) ([]batch.Batch, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	run := c.log.With().
		Str("backend", c.lister.Name()).
		Str("bucket", spec.Bucket).
		Str("prefix", spec.Prefix).
		Logger()

	started := time.Now()
	run.Debug().Str("phase", phaseListing.String()).Msg("discovery started")

	objects, err := c.listObjects(ctx, spec)
	if err != nil {
		return nil, c.fail(run, phaseListing, fmt.Errorf("lister %s: %w", c.lister.Name(), err))
	}

	// Canonical insertion order: lexicographic by key, independent of the
	// order listing tasks or backend pages complete.
	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })

	run.Debug().Str("phase", phaseMatching.String()).Int("objects", len(objects)).Msg("listing complete")
	matched := match.Apply(objects, match.Rules{
		Prefix:    spec.Prefix,
		Delimiter: spec.Delimiter,
		Recursive: spec.Recursive,
		Name:      spec.Filter,
	})

	run.Debug().Str("phase", phaseBuilding.String()).Int("matched", len(matched)).Msg("matching complete")
	batches := batch.Build(matched, spec.Extractor, spec.Metadata)

	run.Debug().Str("phase", phaseSorting.String()).Msg("building complete")
	ordered, err := batch.Sort(batches, order)
	if err != nil {
		return nil, c.fail(run, phaseSorting, fmt.Errorf("sorter: %w", err))
	}

	run.Info().
		Str("phase", phaseReady.String()).
		Int("batches", len(ordered)).
		Dur("elapsed", time.Since(started)).
		Msg("discovery complete")
	return ordered, nil
}

func (c *Connector) fail(run zerolog.Logger, p phase, err error) error {
	run.Error().
		Str("phase", phaseFailed.String()).
		Str("failed_in", p.String()).
		Err(err).
		Msg("discovery failed")
	return err
}

// listObjects accumulates the full listing. Cancellation is honored at page
// boundaries; partial results are discarded on any error.
func (c *Connector) listObjects(ctx context.Context, spec batch.Spec) ([]storage.ObjectRef, error) {
	if c.parallelism > 1 && spec.Recursive && spec.Delimiter != "" {
		if dl, ok := c.lister.(storage.DelimiterLister); ok {
			return c.listFanOut(ctx, dl, spec)
		}
	}
	return c.drain(ctx, spec, spec.Prefix)
}

// listFanOut lists each immediate child prefix concurrently. Every task
// appends to its own slot; the slots are merged in prefix order so the
// accumulated set never depends on completion order.
func (c *Connector) listFanOut(ctx context.Context, dl storage.DelimiterLister, spec batch.Spec) ([]storage.ObjectRef, error) {
	level, err := dl.ListLevel(ctx, storage.ListRequest{
		Bucket:  spec.Bucket,
		Prefix:  spec.Prefix,
		MaxKeys: spec.MaxKeys,
	}, spec.Delimiter)
	if err != nil {
		return nil, err
	}

	results := make([][]storage.ObjectRef, len(level.Prefixes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelism)
	for i, prefix := range level.Prefixes {
		i, prefix := i, prefix
		g.Go(func() error {
			objects, err := c.drain(gctx, spec, prefix)
			if err != nil {
				return err
			}
			results[i] = objects
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := level.Objects
	for _, objects := range results {
		merged = append(merged, objects...)
	}
	return merged, nil
}

// drain pulls every page under prefix.
func (c *Connector) drain(ctx context.Context, spec batch.Spec, prefix string) ([]storage.ObjectRef, error) {
	var objects []storage.ObjectRef
	token := ""
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := c.lister.List(ctx, storage.ListRequest{
			Bucket:  spec.Bucket,
			Prefix:  prefix,
			Token:   token,
			MaxKeys: spec.MaxKeys,
		})
		if err != nil {
			return nil, err
		}

		objects = append(objects, page.Objects...)
		if !page.Truncated || page.NextToken == "" {
			return objects, nil
		}
		token = page.NextToken
	}
}
