package repository

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestIndex(t *testing.T, handler http.HandlerFunc) *CandidateIndex {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{server.URL}})
	require.NoError(t, err)
	return NewCandidateIndex(client, "candidates", 50)
}

func TestListCandidates(t *testing.T) {
	var gotPath, gotSize string
	idx := createTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotSize = r.URL.Query().Get("size")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hits":{"hits":[
			{"_id":"c1","_source":{"uid":"c1","name":"Asha"}},
			{"_id":"c2","_source":{"full_name":"Ravi Kumar"}}
		]}}`))
	})

	candidates, err := idx.ListCandidates(context.Background())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(gotPath, "/candidates/_search"))
	assert.Equal(t, "50", gotSize)
	require.Len(t, candidates, 2)
	assert.Equal(t, "Asha", candidates[0].Name)
	assert.Equal(t, "c2", candidates[1].UID)
	assert.Equal(t, "Ravi Kumar", candidates[1].Name)
}

func TestListCandidates_ErrorStatus(t *testing.T) {
	idx := createTestIndex(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"type":"index_not_found_exception"},"status":404}`))
	})

	_, err := idx.ListCandidates(context.Background())
	assert.ErrorIs(t, err, ErrSearchFailed)
}
