// Package search mirrors match records into an Elasticsearch index so the
// surrounding application can list the best candidates for a job without
// querying the primary store.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"match-workers/internal/models"
)

var (
	ErrIndexFailed  = errors.New("MATCH_INDEX_FAILED")
	ErrSearchFailed = errors.New("MATCH_SEARCH_FAILED")
)

// MatchDocument is the indexed form of a match record.
type MatchDocument struct {
	CandidateID    string             `json:"candidateId"`
	JobID          string             `json:"jobId"`
	OwnerID        string             `json:"ownerId"`
	JobTitle       string             `json:"jobTitle"`
	Score          int                `json:"score"`
	Threshold      int                `json:"threshold"`
	AboveThreshold bool               `json:"aboveThreshold"`
	IsNotified     bool               `json:"isNotified"`
	Criteria       []models.Criterion `json:"criteria"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

func DocumentID(candidateID, jobID string) string {
	return candidateID + ":" + jobID
}

type Indexer struct {
	client *elasticsearch.Client
	index  string
}

// NewIndexer implements pipeline.MatchIndexer.
func NewIndexer(client *elasticsearch.Client, index string) *Indexer {
	return &Indexer{client: client, index: index}
}

func (i *Indexer) IndexMatch(ctx context.Context, record *models.MatchRecord, job *models.JobPosting) error {
	doc := MatchDocument{
		CandidateID:    record.CandidateID,
		JobID:          record.JobID,
		OwnerID:        job.OwnerID,
		JobTitle:       job.Title,
		Score:          record.Score,
		Threshold:      job.MatchThreshold,
		AboveThreshold: record.Score >= job.MatchThreshold,
		IsNotified:     record.IsNotified,
		Criteria:       record.Criteria,
		UpdatedAt:      record.UpdatedAt,
	}
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}

	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: DocumentID(record.CandidateID, record.JobID),
		Body:       bytes.NewReader(body),
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIndexFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: %s", ErrIndexFailed, res.Status())
	}
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source MatchDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// TopMatches returns the highest-scoring candidates for a job, best first.
func (i *Indexer) TopMatches(ctx context.Context, jobID string, minScore, size int) ([]MatchDocument, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{"term": map[string]interface{}{"jobId": jobID}},
					map[string]interface{}{"range": map[string]interface{}{"score": map[string]interface{}{"gte": minScore}}},
				},
			},
		},
		"sort": []interface{}{
			map[string]interface{}{"score": map[string]interface{}{"order": "desc"}},
		},
	}
	body, _ := json.Marshal(query)

	req := esapi.SearchRequest{
		Index: []string{i.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}
	res, err := req.Do(ctx, i.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var parsed searchResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	docs := make([]MatchDocument, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		docs = append(docs, h.Source)
	}
	return docs, nil
}
