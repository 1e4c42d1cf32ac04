package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

func newTestClient(ts *httptest.Server) *Client {
	return &Client{
		baseURL:    ts.URL,
		token:      "tok",
		sessionKey: "main",
		client:     &http.Client{Timeout: 5 * time.Second},
	}
}

func TestWsToHTTP(t *testing.T) {
	cases := []struct{ in, want string }{
		{"ws://127.0.0.1:18789", "http://127.0.0.1:18789"},
		{"wss://gw.example.com", "https://gw.example.com"},
		{"http://already.http", "http://already.http"},
		{"https://already.https", "https://already.https"},
		{"bare-host:18789", "http://bare-host:18789"},
		{"", ""},
	}
	for _, c := range cases {
		if got := wsToHTTP(c.in); got != c.want {
			t.Errorf("wsToHTTP(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestResolveConfigEnvOverride(t *testing.T) {
	t.Setenv(envURL, "ws://127.0.0.1:9999")
	t.Setenv(envToken, "env-token")

	c := NewClient(Options{})
	if c.baseURL != "http://127.0.0.1:9999" || c.token != "env-token" {
		t.Errorf("env override not applied: base=%q token=%q", c.baseURL, c.token)
	}
	if !c.IsAvailable() {
		t.Error("client with env credentials should be available")
	}
}

func TestResolveConfigFile(t *testing.T) {
	t.Setenv(envURL, "")
	t.Setenv(envToken, "")

	path := filepath.Join(t.TempDir(), "gateway.json")
	body := `{"gateway": {"port": 12345, "bind": "0.0.0.0", "auth": {"token": "file-token"}}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	c := NewClient(Options{ConfigPath: path})
	if c.baseURL != "http://127.0.0.1:12345" {
		t.Errorf("baseURL = %q", c.baseURL)
	}
	if c.token != "file-token" {
		t.Errorf("token = %q", c.token)
	}
}

func TestUnavailableWithoutCredentials(t *testing.T) {
	t.Setenv(envURL, "")
	t.Setenv(envToken, "")

	c := NewClient(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.json")})
	if c.IsAvailable() {
		t.Error("client without credentials must not be available")
	}
}

func TestSearchDetailsShape(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tools/invoke" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		if body["tool"] != "web_search" {
			t.Errorf("tool = %v", body["tool"])
		}
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"details": map[string]any{
					"results": []map[string]any{
						{"title": "T", "url": "https://t.com", "description": "d", "published": "2026-08-30"},
						{"title": "", "url": "https://skip.com"},
					},
				},
			},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	results, err := c.Search(context.Background(), &search.Request{Query: "q", MaxResults: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len = %d, want 1", len(results))
	}
	r := results[0]
	if r.Title != "T" || r.Snippet != "d" || r.Provider != "gateway:web_search" || r.Published != "2026-08-30" {
		t.Errorf("result = %+v", r)
	}
}

func TestSearchContentTextShape(t *testing.T) {
	inner, _ := json.Marshal(map[string]any{
		"results": []map[string]any{
			{"title": "C", "url": "https://c.com", "snippet": "s", "age": "2 days ago"},
		},
	})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok": true,
			"result": map[string]any{
				"content": []map[string]any{{"type": "text", "text": string(inner)}},
			},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	results, err := c.Search(context.Background(), &search.Request{Query: "q", MaxResults: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Snippet != "s" || results[0].Published != "2 days ago" {
		t.Errorf("results = %+v", results)
	}
}

func TestSearchErrorEnvelope(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": map[string]any{"type": "auth_failed", "message": "bad token"},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Search(context.Background(), &search.Request{Query: "q"})
	var perr *search.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("error type = %T, want *search.ProviderError", err)
	}
	if perr.Type != "auth_failed" {
		t.Errorf("Type = %q, want auth_failed", perr.Type)
	}
}

func TestSearchUnparseableResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"something": "else"},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	_, err := c.Search(context.Background(), &search.Request{Query: "q"})
	// 两种响应形态都解析不出来必须报错，不允许静默降级
	var perr *search.ProviderError
	if !errors.As(err, &perr) || perr.Type != "decode" {
		t.Errorf("error = %v, want decode ProviderError", err)
	}
}

func TestSearchCountClamped(t *testing.T) {
	var gotCount float64
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Args map[string]any `json:"args"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotCount, _ = body.Args["count"].(float64)
		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"details": map[string]any{"results": []any{}}},
		})
	}))
	defer ts.Close()

	c := newTestClient(ts)
	c.Search(context.Background(), &search.Request{Query: "q", MaxResults: 50})
	if gotCount != 10 {
		t.Errorf("count = %v, want clamped to 10", gotCount)
	}
}
