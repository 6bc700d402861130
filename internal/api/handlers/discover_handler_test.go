package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/fathomdata/batchsource/internal/cache"
	"github.com/fathomdata/batchsource/internal/connector"
	"github.com/fathomdata/batchsource/internal/storage"
)

func newTestRouter(t *testing.T, keys ...string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	lister := storage.NewMemoryLister(map[string][]string{"data": keys})
	connectors := map[string]*connector.Connector{
		"memory": connector.New(lister),
	}
	h := NewDiscoverHandler(connectors, cache.NewNoopDiscoveryCache(), nil)

	router := gin.New()
	router.POST("/api/v1/discover", h.Discover)
	router.GET("/api/v1/runs", h.Runs)
	return router
}

func postDiscover(t *testing.T, router *gin.Engine, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/discover", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestDiscoverEndpoint_OrderedBatches(t *testing.T) {
	router := newTestRouter(t, "2023/02/b.csv", "2023/01/a.csv", "readme.txt")

	w := postDiscover(t, router, `{
		"backend": "memory",
		"bucket": "data",
		"recursive": true,
		"suffix": ".csv",
		"partition_regex": "\\d{4}/(?P<month>\\d{2})/[^/]+\\.csv",
		"order_by": [{"field": "month"}]
	}`)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int `json:"count"`
		Batches []struct {
			ID         string            `json:"id"`
			Partitions map[string]string `json:"partitions"`
		} `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "2023/01/a.csv", resp.Batches[0].ID)
	require.Equal(t, "01", resp.Batches[0].Partitions["month"])
	require.Equal(t, "2023/02/b.csv", resp.Batches[1].ID)
}

func TestDiscoverEndpoint_MissingBucket(t *testing.T) {
	router := newTestRouter(t)

	w := postDiscover(t, router, `{"backend": "memory"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscoverEndpoint_UnknownBackend(t *testing.T) {
	router := newTestRouter(t)

	w := postDiscover(t, router, `{"backend": "gcs", "bucket": "data"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unknown backend")
}

func TestDiscoverEndpoint_UnknownSortField(t *testing.T) {
	router := newTestRouter(t, "2023/01/a.csv")

	w := postDiscover(t, router, `{
		"backend": "memory",
		"bucket": "data",
		"recursive": true,
		"order_by": [{"field": "region"}]
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "unknown sort field")
}

func TestDiscoverEndpoint_InvalidBucket(t *testing.T) {
	router := newTestRouter(t, "a.csv")

	w := postDiscover(t, router, `{"backend": "memory", "bucket": "missing"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscoverEndpoint_BadPartitionRegex(t *testing.T) {
	router := newTestRouter(t, "a.csv")

	w := postDiscover(t, router, `{
		"backend": "memory",
		"bucket": "data",
		"partition_regex": "(?P<broken"
	}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscoverEndpoint_EmptyResultIsOK(t *testing.T) {
	router := newTestRouter(t)

	w := postDiscover(t, router, `{"backend": "memory", "bucket": "data", "recursive": true}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Count   int               `json:"count"`
		Batches []json.RawMessage `json:"batches"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Zero(t, resp.Count)
}

func TestRunsEndpoint_DisabledCatalog(t *testing.T) {
	router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusNotFound, w.Code)
}
