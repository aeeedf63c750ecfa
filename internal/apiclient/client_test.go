package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestGetListPassesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/meals" || r.URL.Query().Get("start") != "2026-01-01T00:00:00Z" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/api/v1/", time.Second)
	defer c.Close()
	items, err := c.GetList(context.Background(), "/meals", url.Values{"start": {"2026-01-01T00:00:00Z"}})
	if err != nil {
		t.Fatalf("get list: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
}

func TestNon2xxIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).GetList(context.Background(), "/tasks", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Status != http.StatusBadGateway {
		t.Fatalf("expected StatusError 502, got %v", err)
	}
}

func TestPostSendsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		b, _ := io.ReadAll(r.Body)
		var body map[string]any
		_ = json.Unmarshal(b, &body)
		body["id"] = 9
		_ = json.NewEncoder(w).Encode(body)
	}))
	defer srv.Close()

	out, err := New(srv.URL, time.Second).Post(context.Background(), "/notes", nil, map[string]any{"title": "x"})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	var got map[string]any
	_ = json.Unmarshal(out, &got)
	if got["title"] != "x" || got["id"].(float64) != 9 {
		t.Errorf("unexpected response %v", got)
	}
}
