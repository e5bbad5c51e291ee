// internal/audit/indexer_test.go
package audit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	apperrors "lending-engine/internal/common/errors"
	"lending-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeElasticsearch stores indexed documents and answers term searches on loan_id.
type fakeElasticsearch struct {
	mu   sync.Mutex
	docs []models.LoanEvent
	fail bool
}

func (f *fakeElasticsearch) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.fail {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = io.WriteString(w, `{"error":"unavailable"}`)
		return
	}

	switch {
	case strings.HasSuffix(r.URL.Path, "/_doc"):
		var ev models.LoanEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.docs = append(f.docs, ev)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	case strings.HasSuffix(r.URL.Path, "/_search"):
		var q struct {
			Query struct {
				Term struct {
					LoanID string `json:"loan_id"`
				} `json:"term"`
			} `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		type hit struct {
			Source models.LoanEvent `json:"_source"`
		}
		var resp struct {
			Hits struct {
				Hits []hit `json:"hits"`
			} `json:"hits"`
		}
		resp.Hits.Hits = []hit{}
		for _, ev := range f.docs {
			if ev.LoanID.String() == q.Query.Term.LoanID {
				resp.Hits.Hits = append(resp.Hits.Hits, hit{Source: ev})
			}
		}
		_ = json.NewEncoder(w).Encode(resp)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newTestIndexer(t *testing.T) (*Indexer, *fakeElasticsearch) {
	fake := &fakeElasticsearch{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewIndexer(client, "loan-events"), fake
}

func TestIndexer_RecordAndHistory(t *testing.T) {
	indexer, _ := newTestIndexer(t)
	ctx := context.Background()
	loanID, other := uuid.New(), uuid.New()
	at := time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)

	require.NoError(t, indexer.Record(ctx, models.LoanEvent{
		LoanID: loanID, Operation: "request", ToStatus: models.LoanStatusPending, OccurredAt: at,
	}))
	require.NoError(t, indexer.Record(ctx, models.LoanEvent{
		LoanID: other, Operation: "request", ToStatus: models.LoanStatusPending, OccurredAt: at,
	}))
	require.NoError(t, indexer.Record(ctx, models.LoanEvent{
		LoanID: loanID, Operation: "accept", FromStatus: models.LoanStatusPending,
		ToStatus: models.LoanStatusAccepted, OccurredAt: at.Add(time.Hour),
	}))

	history, err := indexer.History(ctx, loanID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "request", history[0].Operation)
	assert.Equal(t, models.LoanStatusAccepted, history[1].ToStatus)
	assert.True(t, history[1].OccurredAt.Equal(at.Add(time.Hour)))
}

func TestIndexer_ErrorsAreStorageErrors(t *testing.T) {
	indexer, fake := newTestIndexer(t)
	fake.fail = true

	err := indexer.Record(context.Background(), models.LoanEvent{LoanID: uuid.New()})
	assert.Equal(t, apperrors.ErrCodeStorage, apperrors.CodeOf(err))

	_, err = indexer.History(context.Background(), uuid.New())
	assert.Equal(t, apperrors.ErrCodeStorage, apperrors.CodeOf(err))
}
