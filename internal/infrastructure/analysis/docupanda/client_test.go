package docupanda

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/broker-docs/internal/core/domain"
)

func TestSubmitEncodesContent(t *testing.T) {
	var payload map[string]string
	var apiKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/document" {
			http.NotFound(w, r)
			return
		}
		apiKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&payload)
		_, _ = w.Write([]byte(`{"documentId":"doc-9","jobId":"job-9"}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, APIKey: "secret"})
	handle, err := client.Submit(context.Background(), "slip.pdf", []byte("%PDF"))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if handle.DocumentID != "doc-9" || handle.JobID != "job-9" {
		t.Fatalf("unexpected handle: %+v", handle)
	}
	if apiKey != "secret" {
		t.Fatalf("expected api key header, got %q", apiKey)
	}
	decoded, _ := base64.StdEncoding.DecodeString(payload["content"])
	if string(decoded) != "%PDF" || payload["filename"] != "slip.pdf" {
		t.Fatalf("unexpected submit payload: %v", payload)
	}
}

func TestJobStatusKeepsRawPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/job/job-1" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"status":"error","message":"unreadable"}`))
	}))
	defer server.Close()

	status, err := New(Options{BaseURL: server.URL}).JobStatus(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("JobStatus() error = %v", err)
	}
	if status.Status != domain.RemoteStatusError || !strings.Contains(status.Payload, "unreadable") {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestStandardizeRequestsFixedSchema(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v2/standardize/batch":
			_ = json.NewDecoder(r.Body).Decode(&payload)
			_, _ = w.Write([]byte(`{"standardizationIds":["std-1","std-2"]}`))
		case "/standardization/std-1":
			_, _ = w.Write([]byte(`{"documentId":"doc-9","data":{}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	id, err := client.Standardize(context.Background(), "doc-9", "mortgage_documents")
	if err != nil {
		t.Fatalf("Standardize() error = %v", err)
	}
	if id != "std-1" {
		t.Fatalf("expected first standardization id, got %q", id)
	}
	ids, _ := payload["documentIds"].([]any)
	if len(ids) != 1 || ids[0] != "doc-9" || payload["schemaId"] != "mortgage_documents" || payload["effortLevel"] != "high" {
		t.Fatalf("unexpected standardize payload: %v", payload)
	}

	raw, err := client.Standardization(context.Background(), id)
	if err != nil {
		t.Fatalf("Standardization() error = %v", err)
	}
	if !strings.Contains(string(raw), `"doc-9"`) {
		t.Fatalf("unexpected standardization body: %s", raw)
	}
}

func TestStatusErrorCarriesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid api key", http.StatusForbidden)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).Submit(context.Background(), "a.pdf", nil)
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected status error, got %v", err)
	}
	if !strings.Contains(err.Error(), "invalid api key") {
		t.Fatalf("expected body in error, got %v", err)
	}
	if domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("forbidden must not be temporary")
	}
}

func TestServerErrorIsTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := New(Options{BaseURL: server.URL}).JobStatus(context.Background(), "job-1")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
}
