package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClientAppliesAuthAndHeaders(t *testing.T) {
	var gotAuth, gotAccept, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := New(&BearerAuth{Prefix: "Bot"}, "secret", WithUserAgent("driftwatch/1.0"))

	var out struct{}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err != nil {
		t.Fatalf("GetJSON failed: %v", err)
	}
	if gotAuth != "Bot secret" {
		t.Errorf("Expected 'Bot secret' Authorization, got %q", gotAuth)
	}
	if gotAccept != "application/json" {
		t.Errorf("Expected JSON Accept header, got %q", gotAccept)
	}
	if gotAgent != "driftwatch/1.0" {
		t.Errorf("Expected custom User-Agent, got %q", gotAgent)
	}
}

func TestClientPostJSONRoundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON Content-Type, got %q", ct)
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(&NoAuth{}, "")

	var out struct {
		OK bool `json:"ok"`
	}
	err := c.PostJSON(context.Background(), srv.URL, map[string]int{"page": 1}, &out)
	if err != nil {
		t.Fatalf("PostJSON failed: %v", err)
	}
	if !out.OK {
		t.Error("Expected decoded ok=true")
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":"nope"}`))
	}))
	defer srv.Close()

	c := New(&NoAuth{}, "")

	err := c.GetJSON(context.Background(), srv.URL, nil)
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("Expected HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusForbidden {
		t.Errorf("Expected status 403, got %d", httpErr.StatusCode)
	}
}

func TestClientNilTargetDiscardsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`not even json`))
	}))
	defer srv.Close()

	c := New(&NoAuth{}, "")
	if err := c.GetJSON(context.Background(), srv.URL, nil); err != nil {
		t.Fatalf("Expected nil target to skip decoding, got %v", err)
	}
}

func TestClientDecodeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{broken`))
	}))
	defer srv.Close()

	c := New(&NoAuth{}, "")

	var out struct{}
	if err := c.GetJSON(context.Background(), srv.URL, &out); err == nil {
		t.Fatal("Expected decode error for malformed body")
	}
}
