package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/fathomdata/batchsource/internal/batch"
	"github.com/fathomdata/batchsource/internal/cache"
	"github.com/fathomdata/batchsource/internal/catalog"
	"github.com/fathomdata/batchsource/internal/connector"
	"github.com/fathomdata/batchsource/internal/match"
	"github.com/fathomdata/batchsource/internal/storage"
)

// DiscoverRequest is the JSON body of POST /api/v1/discover.
type DiscoverRequest struct {
	Backend        string         `json:"backend"`
	Bucket         string         `json:"bucket" binding:"required"`
	Prefix         string         `json:"prefix"`
	Delimiter      string         `json:"delimiter"`
	Recursive      bool           `json:"recursive"`
	MaxKeys        int            `json:"max_keys"`
	Suffix         string         `json:"suffix"`
	PartitionRegex string         `json:"partition_regex"`
	OrderBy        []SortEntry    `json:"order_by"`
	BatchMetadata  map[string]any `json:"batch_metadata"`
}

// SortEntry is one (field, direction) pair of the order-by list.
type SortEntry struct {
	Field      string `json:"field" binding:"required"`
	Descending bool   `json:"descending"`
}

type sourceView struct {
	Bucket       string    `json:"bucket"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

type batchView struct {
	ID         string            `json:"id"`
	Partitions map[string]string `json:"partitions"`
	Metadata   map[string]any    `json:"metadata,omitempty"`
	Source     sourceView        `json:"source"`
}

type discoverResponse struct {
	RunID   string      `json:"run_id,omitempty"`
	Count   int         `json:"count"`
	Cached  bool        `json:"cached"`
	Batches []batchView `json:"batches"`
}

// DiscoverHandler exposes the connector over HTTP.
type DiscoverHandler struct {
	connectors map[string]*connector.Connector
	cache      cache.DiscoveryCache
	runs       *catalog.Repository
}

// NewDiscoverHandler builds the handler. The runs repository may be nil when
// the catalog is disabled; the cache should be a noop cache rather than nil.
func NewDiscoverHandler(connectors map[string]*connector.Connector, c cache.DiscoveryCache, runs *catalog.Repository) *DiscoverHandler {
	if c == nil {
		c = cache.NewNoopDiscoveryCache()
	}
	return &DiscoverHandler{connectors: connectors, cache: c, runs: runs}
}

// Discover handles POST /api/v1/discover.
func (h *DiscoverHandler) Discover(c *gin.Context) {
	var req DiscoverRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	backend := req.Backend
	if backend == "" {
		backend = "s3"
	}
	conn, ok := h.connectors[backend]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown backend: " + backend})
		return
	}

	spec, order, err := buildSpec(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	key, err := cache.Key(req)
	if err == nil {
		if batches, hit, cacheErr := h.cache.Get(c.Request.Context(), key); cacheErr == nil && hit {
			c.JSON(http.StatusOK, toResponse("", batches, true))
			return
		}
	}

	run := catalog.NewRun(backend, req.Bucket, req.Prefix, req.Recursive)
	h.recordStart(c, run)

	batches, err := conn.Discover(c.Request.Context(), spec, order)
	if err != nil {
		run.Fail(err)
		h.recordFinish(c, run)
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	run.Complete(len(batches))
	h.recordFinish(c, run)

	if key != "" {
		if err := h.cache.Set(c.Request.Context(), key, batches); err != nil {
			log.Warn().Err(err).Msg("failed to cache discovery result")
		}
	}

	c.JSON(http.StatusOK, toResponse(run.ID, batches, false))
}

// Runs handles GET /api/v1/runs.
func (h *DiscoverHandler) Runs(c *gin.Context) {
	if h.runs == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run catalog is disabled"})
		return
	}

	runs, err := h.runs.RecentRuns(c.Request.Context(), 20)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (h *DiscoverHandler) recordStart(c *gin.Context, run *catalog.Run) {
	if h.runs == nil {
		return
	}
	if err := h.runs.CreateRun(c.Request.Context(), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to record discovery run")
	}
}

func (h *DiscoverHandler) recordFinish(c *gin.Context, run *catalog.Run) {
	if h.runs == nil {
		return
	}
	if err := h.runs.UpdateRun(c.Request.Context(), run); err != nil {
		log.Warn().Err(err).Str("run_id", run.ID).Msg("failed to update discovery run")
	}
}

func buildSpec(req DiscoverRequest) (batch.Spec, []batch.SortKey, error) {
	spec := batch.Spec{
		Bucket:    req.Bucket,
		Prefix:    req.Prefix,
		Delimiter: req.Delimiter,
		Recursive: req.Recursive,
		MaxKeys:   req.MaxKeys,
		Metadata:  req.BatchMetadata,
	}
	if spec.Delimiter == "" {
		spec.Delimiter = "/"
	}
	if req.Suffix != "" {
		spec.Filter = match.SuffixFilter(req.Suffix)
	}
	if req.PartitionRegex != "" {
		ex, err := batch.RegexExtractor(req.PartitionRegex)
		if err != nil {
			return batch.Spec{}, nil, err
		}
		spec.Extractor = ex
	}

	order := make([]batch.SortKey, 0, len(req.OrderBy))
	for _, entry := range req.OrderBy {
		order = append(order, batch.SortKey{Field: entry.Field, Descending: entry.Descending})
	}
	return spec, order, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidSpec), errors.Is(err, batch.ErrUnknownSortField):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrStorageUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func toResponse(runID string, batches []batch.Batch, cached bool) discoverResponse {
	views := make([]batchView, 0, len(batches))
	for _, b := range batches {
		views = append(views, batchView{
			ID:         b.ID,
			Partitions: b.Partitions,
			Metadata:   b.Metadata,
			Source: sourceView{
				Bucket:       b.Source.Bucket,
				Key:          b.Source.Key,
				Size:         b.Source.Size,
				LastModified: b.Source.LastModified,
			},
		})
	}
	return discoverResponse{
		RunID:   runID,
		Count:   len(views),
		Cached:  cached,
		Batches: views,
	}
}
