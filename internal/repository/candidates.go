package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"notification-engine/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchFailed = errors.New("SEARCH_QUERY_FAILED")

// CandidateIndex reads the candidate pool from Elasticsearch.
type CandidateIndex struct {
	client *elasticsearch.Client
	index  string
	size   int
}

func NewCandidateIndex(client *elasticsearch.Client, index string, size int) *CandidateIndex {
	if size <= 0 {
		size = 1000
	}
	return &CandidateIndex{client: client, index: index, size: size}
}

type candidateDoc struct {
	UID      string `json:"uid"`
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string       `json:"_id"`
			Source candidateDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (c *CandidateIndex) ListCandidates(ctx context.Context) ([]models.Candidate, error) {
	size := c.size
	req := esapi.SearchRequest{
		Index: []string{c.index},
		Body:  strings.NewReader(`{"query":{"match_all":{}},"_source":["uid","name","full_name"]}`),
		Size:  &size,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.Status())
	}

	var body searchResponse
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrSearchFailed, err)
	}

	out := make([]models.Candidate, 0, len(body.Hits.Hits))
	for _, hit := range body.Hits.Hits {
		uid := hit.Source.UID
		if uid == "" {
			uid = hit.ID
		}
		name := hit.Source.Name
		if name == "" {
			name = hit.Source.FullName
		}
		out = append(out, models.Candidate{UID: uid, Name: name})
	}
	return out, nil
}
