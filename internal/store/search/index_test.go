package search

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"match-workers/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestIndexMatch(t *testing.T) {
	var gotPath string
	var gotDoc MatchDocument
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotDoc)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	})

	idx := NewIndexer(client, "matches")
	err := idx.IndexMatch(context.Background(),
		&models.MatchRecord{CandidateID: "c1", JobID: "j1", Score: 75, Criteria: []models.Criterion{{Name: "titleMatch", Matched: true}}},
		&models.JobPosting{ID: "j1", OwnerID: "o1", Title: "Chef", MatchThreshold: 60},
	)
	require.NoError(t, err)

	assert.Equal(t, "/matches/_doc/c1:j1", gotPath)
	assert.Equal(t, 75, gotDoc.Score)
	assert.True(t, gotDoc.AboveThreshold)
	assert.Equal(t, "o1", gotDoc.OwnerID)
	assert.Len(t, gotDoc.Criteria, 1)
}

func TestIndexMatch_ErrorStatus(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"unavailable"}`))
	})

	idx := NewIndexer(client, "matches")
	err := idx.IndexMatch(context.Background(), &models.MatchRecord{CandidateID: "c1", JobID: "j1"}, &models.JobPosting{ID: "j1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIndexFailed))
}

func TestTopMatches(t *testing.T) {
	var gotQuery string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotQuery = string(body)
		assert.True(t, strings.HasSuffix(r.URL.Path, "/_search"))
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_source":{"candidateId":"c2","jobId":"j1","score":100}},
			{"_source":{"candidateId":"c1","jobId":"j1","score":75}}
		]}}`))
	})

	idx := NewIndexer(client, "matches")
	docs, err := idx.TopMatches(context.Background(), "j1", 60, 10)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "c2", docs[0].CandidateID)
	assert.Equal(t, 75, docs[1].Score)
	assert.Contains(t, gotQuery, `"jobId":"j1"`)
	assert.Contains(t, gotQuery, `"gte":60`)
}
