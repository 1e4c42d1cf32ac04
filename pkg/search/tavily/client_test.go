package tavily

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

func newTestClient(ts *httptest.Server) *Client {
	c := NewClient("tvly-test")
	c.baseURL = ts.URL
	c.client = ts.Client()
	return c
}

func TestAvailability(t *testing.T) {
	if !NewClient("key").IsAvailable() {
		t.Error("client with key should be available")
	}
	if NewClient("").IsAvailable() {
		t.Error("client without key should not be available")
	}
}

func TestSearchNormalization(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tvly-test" {
			t.Errorf("Authorization = %q", got)
		}
		var req searchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.SearchDepth != "basic" || req.Topic != "news" {
			t.Errorf("defaults not applied: %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"title": "T1", "url": "https://t1.com", "content": "c1", "score": 0.8, "published_date": "2026-08-30"},
				{"title": "", "url": "https://skip.com"},
				{"title": "no url", "url": " "},
			},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	results, err := c.Search(context.Background(), &search.Request{Query: "q", Topic: "news", MaxResults: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len = %d, want 1 (blank title/url skipped)", len(results))
	}
	r := results[0]
	if r.Title != "T1" || r.URL != "https://t1.com" || r.Snippet != "c1" || r.Provider != "tavily" {
		t.Errorf("result = %+v", r)
	}
	if r.Published != "2026-08-30" || r.Score != 0.8 {
		t.Errorf("published/score = %q/%v", r.Published, r.Score)
	}
}

func TestSearchAPIError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Search(context.Background(), &search.Request{Query: "q"})
	if err == nil {
		t.Fatal("want error on non-200 status")
	}
	var perr *search.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *search.ProviderError", err)
	}
	if perr.Provider != "tavily" || perr.Type != "status" {
		t.Errorf("provider error = %+v", perr)
	}
}

func TestSearchBadJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Search(context.Background(), &search.Request{Query: "q"})
	var perr *search.ProviderError
	if !errors.As(err, &perr) || perr.Type != "decode" {
		t.Errorf("error = %v, want decode ProviderError", err)
	}
}
