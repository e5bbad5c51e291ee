// Package audit keeps a searchable history of loan lifecycle events in
// Elasticsearch.
package audit

import (
	"bytes"
	"context"
	"fmt"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoanEventMapping is the index mapping for loan events.
const LoanEventMapping = `{
  "mappings": {
    "properties": {
      "loan_id":     {"type": "keyword"},
      "item_id":     {"type": "keyword"},
      "actor_id":    {"type": "keyword"},
      "operation":   {"type": "keyword"},
      "from_status": {"type": "keyword"},
      "to_status":   {"type": "keyword"},
      "occurred_at": {"type": "date"}
    }
  }
}`

const maxHistory = 100

type Indexer struct {
	client *elasticsearch.Client
	index  string
}

func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

// Record indexes one event. The document becomes searchable on the next refresh.
func (i *Indexer) Record(ctx context.Context, ev models.LoanEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return apperrors.NewInternalError(err)
	}

	req := esapi.IndexRequest{
		Index: i.index,
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return apperrors.NewStorageError("index loan event", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return apperrors.NewStorageError("index loan event", fmt.Errorf("elasticsearch: %s", res.Status()))
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.LoanEvent `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// History returns the events of a loan, oldest first.
func (i *Indexer) History(ctx context.Context, loanID uuid.UUID) ([]models.LoanEvent, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{"loan_id": loanID.String()},
		},
		"sort": []interface{}{
			map[string]interface{}{"occurred_at": map[string]interface{}{"order": "asc"}},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	size := maxHistory
	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  bytes.NewReader(body),
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, apperrors.NewStorageError("search loan events", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewStorageError("search loan events", fmt.Errorf("elasticsearch: %s", res.Status()))
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, apperrors.NewStorageError("decode loan events", err)
	}

	events := make([]models.LoanEvent, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		events = append(events, hit.Source)
	}
	return events, nil
}
