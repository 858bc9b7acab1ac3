package arena

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompare(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/v1/compare", r.URL.Path)

		var req struct {
			Prompt string   `json:"prompt"`
			Models []string `json:"models"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "What is 2+2?", req.Prompt)
		assert.Equal(t, []string{"m1", "m2"}, req.Models)

		json.NewEncoder(w).Encode(ComparisonResult{
			SessionID: "sess-1",
			ThreadID:  "sess-1-abcd1234",
			Completions: []ModelCompletion{
				{ModelID: "m1", Content: "four"},
				{ModelID: "m2", Content: "4"},
			},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	result, err := client.Compare(context.Background(), ComparisonRequest{
		Prompt: "What is 2+2?",
		Models: []string{"m1", "m2"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sess-1", result.SessionID)
	require.Len(t, result.Completions, 2)
	assert.Equal(t, "four", result.Completions[0].Content)
}

func TestResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/v1/results/sess-1", r.URL.Path)
		json.NewEncoder(w).Encode(SessionResults{
			SessionID: "sess-1",
			Threads: []ThreadResults{
				{Thread: Thread{ID: "thread-1", State: "Evaluated"}},
			},
		})
	}))
	defer server.Close()

	results, err := NewClient(server.URL).Results(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, results.Threads, 1)
	assert.Equal(t, "Evaluated", results.Threads[0].Thread.State)
}

func TestThreadResultsQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "thread-1", r.URL.Query().Get("thread_id"))
		json.NewEncoder(w).Encode(ThreadResults{
			Thread: Thread{ID: "thread-1"},
		})
	}))
	defer server.Close()

	results, err := NewClient(server.URL).ThreadResults(context.Background(), "sess-1", "thread-1")
	require.NoError(t, err)
	assert.Equal(t, "thread-1", results.Thread.ID)
}

func TestAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "session missing: not found"})
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Results(context.Background(), "missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "session missing")
}
