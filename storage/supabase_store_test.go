package storage

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	storagego "github.com/supabase-community/storage-go"
)

func TestSupabaseStore_List(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/storage/v1/object/list/beats" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer svc-key" || r.Header.Get("apikey") != "svc-key" {
			t.Errorf("missing auth headers")
		}
		var req storagego.ListFileRequestBody
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if req.Prefix != "lucid" || req.Limit != 100 || req.Offset != 200 || req.SortByOptions.Column != "name" || req.SortByOptions.Order != "asc" {
			t.Errorf("unexpected list request: %+v", req)
		}
		_, _ = w.Write([]byte(`[
			{"name":"extras","id":null,"metadata":null},
			{"name":"Lucid.wav","id":"1","metadata":{"mimetype":"audio/wav","size":42}}
		]`))
	}))
	defer srv.Close()

	entries, err := NewSupabaseStore(srv.URL+"/", "svc-key", "beats").List(context.Background(), "lucid", 100, 200)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if !entries[0].IsFolder() || entries[1].IsFolder() || entries[1].Size != 42 {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestSupabaseStore_SignURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() != "/storage/v1/object/sign/beats/midnight%20run/Midnight%20Run.wav" {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		var req signRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.ExpiresIn != 86400 {
			t.Errorf("expected 86400 seconds, got %d", req.ExpiresIn)
		}
		_, _ = w.Write([]byte(`{"signedURL":"/object/sign/beats/midnight%20run/Midnight%20Run.wav?token=abc"}`))
	}))
	defer srv.Close()

	url, err := NewSupabaseStore(srv.URL, "k", "beats").SignURL(context.Background(), "midnight run/Midnight Run.wav", 24*time.Hour)
	if err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
	want := srv.URL + "/storage/v1/object/sign/beats/midnight%20run/Midnight%20Run.wav?token=abc"
	if url != want {
		t.Fatalf("expected %s, got %s", want, url)
	}
}

func TestSupabaseStore_ErrorClassification(t *testing.T) {
	status := http.StatusBadRequest
	body := `{"statusCode":"404","error":"not_found","message":"Object not found"}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()
	store := NewSupabaseStore(srv.URL, "k", "beats")

	_, err := store.SignURL(context.Background(), "lucid/nope.wav", time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if IsTransient(err) {
		t.Fatalf("not found must not be transient")
	}

	status, body = http.StatusBadGateway, "upstream"
	_, err = store.List(context.Background(), "lucid", 100, 0)
	if !IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSupabaseStore_HonorsContext(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewSupabaseStore(srv.URL, "k", "beats").List(ctx, "lucid", 100, 0)
	if err == nil {
		t.Fatalf("expected an error after the context expired")
	}
	if !IsTransient(err) {
		t.Fatalf("cancelled call should be retryable, got %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("List ignored the context deadline")
	}
}
