package audit

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"community-notifications/internal/notification"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Body   string
}

func createTestIndexer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) (*Indexer, func() []capturedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		reqs []capturedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		reqs = append(reqs, capturedRequest{r.Method, r.URL.Path, r.URL.RawQuery, string(body)})
		mu.Unlock()

		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewIndexer(client, "notification-batches"), func() []capturedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]capturedRequest(nil), reqs...)
	}
}

func createTestSummary() notification.BatchSummary {
	return notification.BatchSummary{
		BatchID:    "dues-2024-07",
		Title:      "Dues July 2024",
		Rule:       "unpaidForPeriod:July 2024",
		RuleKind:   notification.RuleUnpaidForPeriod,
		Count:      2,
		Created:    2,
		RecordedBy: "treasurer-1",
		RecordedAt: time.Date(2024, 8, 1, 9, 0, 0, 0, time.UTC),
	}
}

// ==========================
// Indexing
// ==========================

func TestIndexer_OnFanout(t *testing.T) {
	indexer, requests := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	err := indexer.OnFanout(context.Background(), createTestSummary(), []notification.RenderedMessage{
		{RecipientID: "res-a"}, {RecipientID: "res-c"},
	})
	require.NoError(t, err)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPut, reqs[0].Method)
	assert.Equal(t, "/notification-batches/_doc/dues-2024-07", reqs[0].Path)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(reqs[0].Body), &doc))
	assert.Equal(t, "dues-2024-07", doc["batchId"])
	assert.Equal(t, "unpaidForPeriod", doc["ruleKind"])
	assert.Equal(t, "treasurer-1", doc["recordedBy"])
	assert.Equal(t, []interface{}{"res-a", "res-c"}, doc["recipientIds"])
}

func TestIndexer_OnFanout_ServerError(t *testing.T) {
	indexer, _ := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"mapper_parsing_exception"}}`))
	})

	err := indexer.OnFanout(context.Background(), createTestSummary(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mapper_parsing_exception")
}

func TestIndexer_EnsureIndex(t *testing.T) {
	t.Run("creates missing index", func(t *testing.T) {
		indexer, requests := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"acknowledged":true}`))
		})

		require.NoError(t, indexer.EnsureIndex(context.Background()))
		reqs := requests()
		require.Len(t, reqs, 2)
		assert.Equal(t, http.MethodPut, reqs[1].Method)
		assert.Contains(t, reqs[1].Body, `"recordedAt"`)
	})

	t.Run("leaves existing index alone", func(t *testing.T) {
		indexer, requests := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})

		require.NoError(t, indexer.EnsureIndex(context.Background()))
		assert.Len(t, requests(), 1)
	})
}

// ==========================
// Search
// ==========================

func TestIndexer_Search(t *testing.T) {
	indexer, requests := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"took": 4,
			"hits": {
				"total": {"value": 1},
				"hits": [{"_source": {"batchId": "dues-2024-07", "title": "Dues July 2024", "count": 2, "recipientIds": ["res-a", "res-c"]}}]
			}
		}`))
	})

	from := time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	res, err := indexer.Search(context.Background(), SearchQuery{
		Text:       "dues",
		RecordedBy: "treasurer-1",
		From:       &from,
		Size:       500,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.TotalHits)
	assert.Equal(t, int64(4), res.Took)
	require.Len(t, res.Batches, 1)
	assert.Equal(t, "dues-2024-07", res.Batches[0].BatchID)
	assert.Equal(t, []string{"res-a", "res-c"}, res.Batches[0].RecipientIDs)

	reqs := requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/notification-batches/_search", reqs[0].Path)
	assert.Contains(t, reqs[0].Query, "size=100")
	assert.Contains(t, reqs[0].Query, "sort=recordedAt")
	assert.True(t, strings.Contains(reqs[0].Body, `"term":{"recordedBy":"treasurer-1"}`))
	assert.True(t, strings.Contains(reqs[0].Body, `"gte":"2024-07-01T00:00:00Z"`))
}

func TestIndexer_Search_Failure(t *testing.T) {
	indexer, _ := createTestIndexer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"}}`))
	})

	_, err := indexer.Search(context.Background(), SearchQuery{})
	assert.ErrorIs(t, err, ErrSearchQueryFailed)
}

func TestBuildSearchQuery_MatchAll(t *testing.T) {
	q := buildSearchQuery(SearchQuery{})
	assert.Equal(t, map[string]interface{}{"match_all": map[string]interface{}{}}, q["query"])
}
