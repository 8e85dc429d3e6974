package newsdata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const latestBody = `{
  "status": "success",
  "totalResults": 2,
  "results": [
    {
      "article_id": "a1",
      "title": "Election results are in",
      "link": "https://example.com/a1",
      "keywords": ["politics"],
      "creator": ["Jane Doe"],
      "country": ["united states of america"],
      "category": ["politics", "top"],
      "pubDate": "2024-05-01 10:00:00",
      "source_id": "example",
      "source_priority": 1234,
      "language": "english",
      "ai_tag": "ONLY AVAILABLE IN PROFESSIONAL AND CORPORATE PLANS",
      "sentiment_stats": {"positive": 0.1, "neutral": 0.8, "negative": 0.1},
      "duplicate": false
    },
    {
      "article_id": "a2",
      "title": "No lists here",
      "keywords": null,
      "creator": null,
      "pubDate": null
    }
  ],
  "nextPage": "1714557600000"
}`

func TestFetch(t *testing.T) {
	var gotQuery map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = map[string]string{
			"apikey":   r.URL.Query().Get("apikey"),
			"language": r.URL.Query().Get("language"),
		}
		fmt.Fprint(w, latestBody)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL+"/api/1/latest", "secret", "en", time.Second)
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"apikey": "secret", "language": "en"}, gotQuery)
	require.Len(t, items, 2)

	a1 := items[0]
	assert.Equal(t, "a1", a1.ArticleID)
	assert.Equal(t, []string{"politics", "top"}, a1.Category)
	assert.Equal(t, "2024-05-01 10:00:00", a1.PubDate)
	require.NotNil(t, a1.SourcePriority)
	assert.Equal(t, int64(1234), *a1.SourcePriority)
	assert.JSONEq(t, `{"positive": 0.1, "neutral": 0.8, "negative": 0.1}`, string(a1.SentimentStats))
	assert.JSONEq(t, `"ONLY AVAILABLE IN PROFESSIONAL AND CORPORATE PLANS"`, string(a1.AITag))

	a2 := items[1]
	assert.Nil(t, a2.Keywords)
	assert.Nil(t, a2.Creator)
	assert.Empty(t, a2.PubDate)
}

func TestFetchSkipsMalformedItems(t *testing.T) {
	body := `{"status":"success","results":[
		{"article_id":"ok1","creator":["Jane"]},
		{"article_id":"bad1","creator":"Jane"},
		{"article_id":"bad2","source_priority":"high"},
		"not an object",
		{"article_id":"ok2","source_priority":12}
	]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, body)
	}))
	defer srv.Close()

	var logs bytes.Buffer
	f := NewHTTPFetcher(srv.URL, "k", "en", time.Second).
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	items, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "ok1", items[0].ArticleID)
	assert.Equal(t, "ok2", items[1].ArticleID)
	assert.Contains(t, logs.String(), "malformed=3")
}

func TestFetchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status":"success","totalResults":0,"results":[]}`)
	}))
	defer srv.Close()

	items, err := NewHTTPFetcher(srv.URL, "k", "en", time.Second).Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		upstream bool
	}{
		{"error body", http.StatusOK, `{"status":"error","results":{"message":"API key invalid","code":"Unauthorized"}}`, true},
		{"non-2xx with error body", http.StatusUnauthorized, `{"status":"error","results":{"message":"API key invalid"}}`, true},
		{"non-2xx plain text", http.StatusBadGateway, `bad gateway`, true},
		{"malformed json", http.StatusOK, `{"status":`, false},
		{"results not a list", http.StatusOK, `{"status":"success","results":{"foo":1}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			_, err := NewHTTPFetcher(srv.URL, "k", "en", time.Second).Fetch(context.Background())
			require.Error(t, err)
			assert.Equal(t, tt.upstream, errors.Is(err, ErrUpstream), "error: %v", err)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(url, "k", "en", time.Second).Fetch(context.Background())
	assert.Error(t, err)
}
