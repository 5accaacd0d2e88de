package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8/esapi"
)

const (
	defaultSearchSize = 20
	maxSearchSize     = 100
)

// SearchQuery filters the batch index. Zero values match everything.
type SearchQuery struct {
	Text       string
	RecordedBy string
	RuleKind   string
	From       *time.Time
	To         *time.Time
	Size       int
}

type SearchResult struct {
	Batches   []BatchDocument
	TotalHits int64
	Took      int64
}

type searchResponse struct {
	Took int64 `json:"took"`
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source BatchDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search returns matching batches, newest first.
func (i *Indexer) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	size := q.Size
	if size <= 0 {
		size = defaultSearchSize
	}
	if size > maxSearchSize {
		size = maxSearchSize
	}

	body, err := json.Marshal(buildSearchQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchQueryFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
		Sort:  []string{"recordedAt:desc"},
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchQueryFailed, res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrSearchQueryFailed, err)
	}

	out := &SearchResult{TotalHits: sr.Hits.Total.Value, Took: sr.Took, Batches: make([]BatchDocument, 0, len(sr.Hits.Hits))}
	for _, h := range sr.Hits.Hits {
		out.Batches = append(out.Batches, h.Source)
	}
	return out, nil
}

func buildSearchQuery(q SearchQuery) map[string]interface{} {
	var must, filter []interface{}

	if q.Text != "" {
		must = append(must, map[string]interface{}{
			"match": map[string]interface{}{"title": q.Text},
		})
	}
	if q.RecordedBy != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"recordedBy": q.RecordedBy},
		})
	}
	if q.RuleKind != "" {
		filter = append(filter, map[string]interface{}{
			"term": map[string]interface{}{"ruleKind": q.RuleKind},
		})
	}
	if q.From != nil || q.To != nil {
		rng := map[string]interface{}{}
		if q.From != nil {
			rng["gte"] = q.From.UTC().Format(time.RFC3339)
		}
		if q.To != nil {
			rng["lte"] = q.To.UTC().Format(time.RFC3339)
		}
		filter = append(filter, map[string]interface{}{
			"range": map[string]interface{}{"recordedAt": rng},
		})
	}

	if len(must) == 0 && len(filter) == 0 {
		return map[string]interface{}{"query": map[string]interface{}{"match_all": map[string]interface{}{}}}
	}

	boolQuery := map[string]interface{}{}
	if len(must) > 0 {
		boolQuery["must"] = must
	}
	if len(filter) > 0 {
		boolQuery["filter"] = filter
	}
	return map[string]interface{}{"query": map[string]interface{}{"bool": boolQuery}}
}
