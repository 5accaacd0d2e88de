// Package audit keeps a searchable Elasticsearch record of every committed fan-out.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"community-notifications/internal/notification"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var (
	ErrSearchQueryFailed = errors.New("SEARCH_QUERY_FAILED")
	ErrSearchUnavailable = errors.New("SEARCH_UNAVAILABLE")
)

const indexMapping = `{
	"mappings": {
		"properties": {
			"batchId":      {"type": "keyword"},
			"title":        {"type": "text", "fields": {"raw": {"type": "keyword"}}},
			"rule":         {"type": "keyword"},
			"ruleKind":     {"type": "keyword"},
			"count":        {"type": "integer"},
			"created":      {"type": "integer"},
			"recordedBy":   {"type": "keyword"},
			"recordedAt":   {"type": "date"},
			"link":         {"type": "keyword"},
			"imageUrl":     {"type": "keyword"},
			"recipientIds": {"type": "keyword"}
		}
	}
}`

// BatchDocument is the indexed form of a send.
type BatchDocument struct {
	notification.BatchSummary
	RecipientIDs []string `json:"recipientIds"`
}

// Indexer writes one document per batch, keyed by batch ID so a re-index overwrites.
type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

func (i *Indexer) Name() string { return "audit-index" }

// EnsureIndex creates the index with its mapping when it does not exist yet.
func (i *Indexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}

	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.index, res.String())
	}
	return nil
}

func (i *Indexer) OnFanout(ctx context.Context, summary notification.BatchSummary, messages []notification.RenderedMessage) error {
	doc := BatchDocument{BatchSummary: summary, RecipientIDs: make([]string, len(messages))}
	for n, m := range messages {
		doc.RecipientIDs[n] = m.RecipientID
	}

	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode batch %s: %w", summary.BatchID, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: summary.BatchID,
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSearchUnavailable, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index batch %s: %s", summary.BatchID, res.String())
	}
	return nil
}
