package typedsign

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestSubmitSignatureSendsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/signatures" || r.Method != http.MethodPost {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		var req SignatureRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SignatureJob{ID: "job-1", Domain: req.Domain, Status: "pending"})
	}))
	defer srv.Close()

	client, err := NewClient(srv.URL, srv.Client())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	client.SetAccessToken("secret")

	job, err := client.SubmitSignature(context.Background(), SignatureRequest{
		Domain:  "ether-mail",
		Kind:    "mail",
		Key:     "cow",
		Message: json.RawMessage(`{}`),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.ID != "job-1" || job.Domain != "ether-mail" {
		t.Fatalf("unexpected job %+v", job)
	}
}

func TestWaitForSignaturePolls(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/signatures/job-7" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		status := "running"
		if calls.Add(1) >= 3 {
			status = "succeeded"
		}
		_ = json.NewEncoder(w).Encode(SignatureJob{ID: "job-7", Status: status, MaxRetries: 3})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	job, err := client.WaitForSignature(ctx, "job-7", time.Millisecond)
	if err != nil {
		t.Fatalf("wait: %v", err)
	}
	if job.Status != "succeeded" || calls.Load() != 3 {
		t.Fatalf("unexpected job %+v after %d calls", job, calls.Load())
	}
}

func TestListAndStatsEncodeFilters(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("status") != "failed,succeeded" || q.Get("domain") != "ether-mail" || q.Get("order") != "asc" || q.Get("limit") != "5" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		switch r.URL.Path {
		case "/api/v1/signatures":
			_ = json.NewEncoder(w).Encode([]SignatureJob{{ID: "a"}, {ID: "b"}})
		case "/api/v1/signatures/stats":
			_ = json.NewEncoder(w).Encode(SignatureStats{Total: 2, Failed: 1, Succeeded: 1})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	filter := ListFilter{Statuses: []string{"failed", "succeeded"}, Domain: "ether-mail", Limit: 5, Ascending: true}

	jobs, err := client.ListSignatures(context.Background(), filter)
	if err != nil || len(jobs) != 2 {
		t.Fatalf("list: %v %+v", err, jobs)
	}
	stats, err := client.Stats(context.Background(), filter)
	if err != nil || stats.Total != 2 {
		t.Fatalf("stats: %v %+v", err, stats)
	}
}

func TestHashAndRecover(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var data TypedData
		_ = json.NewDecoder(r.Body).Decode(&data)
		switch r.URL.Path {
		case "/api/v1/typed-data/hash":
			if data.Signature != "" {
				t.Errorf("hash request should not carry a signature")
			}
			_ = json.NewEncoder(w).Encode(HashPreview{PrimaryType: "Mail", Digest: "0xbe60"})
		case "/api/v1/typed-data/recover":
			_ = json.NewEncoder(w).Encode(map[string]string{"signer": "0xCD2a"})
		}
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	data := TypedData{Domain: "ether-mail", Kind: "mail", Message: json.RawMessage(`{}`), Signature: "0x01"}

	preview, err := client.Hash(context.Background(), data)
	if err != nil || preview.PrimaryType != "Mail" {
		t.Fatalf("hash: %v %+v", err, preview)
	}
	signer, err := client.Recover(context.Background(), data)
	if err != nil || signer != "0xCD2a" {
		t.Fatalf("recover: %v %q", err, signer)
	}
	data.Signature = ""
	if _, err := client.Recover(context.Background(), data); err == nil {
		t.Fatalf("expected error without signature")
	}
}

func TestGetSignatureError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "SIGNATURE_JOB_NOT_FOUND", "message": "missing"},
		})
	}))
	defer srv.Close()

	client, _ := NewClient(srv.URL, srv.Client())
	_, err := client.GetSignature(context.Background(), "job-404")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "SIGNATURE_JOB_NOT_FOUND" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}
