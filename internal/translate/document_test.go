package translate

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newDocumentTestServer(t *testing.T) (*httptest.Server, *HTTPDocumentProvider) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /documents", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if r.FormValue("source_lang") != "en" || r.FormValue("target_lang") != "de" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"id": "doc-123"}`)
	})
	mux.HandleFunc("GET /documents/doc-123", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "done"}`)
	})
	mux.HandleFunc("GET /documents/doc-123/file", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("translated-bytes"))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, NewHTTPDocumentProvider(srv.URL, "test-key")
}

func TestDocumentProviderLifecycle(t *testing.T) {
	_, p := newDocumentTestServer(t)
	ctx := context.Background()

	ref, err := p.Upload(ctx, "input.docx", []byte("payload"), "en", "de")
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if ref != "doc-123" {
		t.Errorf("ref = %q", ref)
	}

	status, err := p.Poll(ctx, ref)
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if status != DocumentDone {
		t.Errorf("status = %q, want done", status)
	}

	data, err := p.Download(ctx, ref)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(data, []byte("translated-bytes")) {
		t.Errorf("downloaded %q", data)
	}
}

func TestDocumentProviderServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := NewHTTPDocumentProvider(srv.URL, "")
	_, err := p.Poll(context.Background(), "whatever")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsRetryable(err) {
		t.Errorf("503 should be retryable, got %v", err)
	}
}

func TestDocumentProviderUnknownStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"status": "exploded"}`)
	}))
	defer srv.Close()

	p := NewHTTPDocumentProvider(srv.URL, "")
	if _, err := p.Poll(context.Background(), "x"); err == nil {
		t.Fatal("expected error for unknown status")
	}
}
