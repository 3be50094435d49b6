package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"TypedSign-Chain/internal/auth"
	"TypedSign-Chain/internal/config"
	"TypedSign-Chain/internal/domain"
	xerrors "TypedSign-Chain/internal/errors"
	"TypedSign-Chain/internal/keystore"
	"TypedSign-Chain/internal/message"
	"TypedSign-Chain/internal/signing"
	"TypedSign-Chain/pkg/eip712"
)

const testDomains = `
domains:
  ether-mail:
    name: Ether Mail
    version: "1"
    chain_id: 1
    verifying_contract: "0xCcCCccccCCCCcCCCCCCcCcCccCcCCCcCcccccccC"
`

const etherMail = `{
	"from": {"name": "Cow", "wallet": "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"},
	"to": {"name": "Bob", "wallet": "0xbBbBBBBbbBBBbbbBbbBbbbbBBbBbbbbBbBbbBBbB"},
	"contents": "Hello, Bob!"
}`

const (
	cowAddress   = "0xCD2a3d9F938E13CD947Ec05AbC7FE734Df8DD826"
	cowSignature = "0x4355c47d63924e8a72e509b65029052eb6c299d53a04e167c5775fd466751c9d07299936d304c153f6443dfa05f40ff007d72911b6f72307f996231605b915621c"
)

type fixture struct {
	store   *signing.MemoryStore
	service *signing.Service
	server  *Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	cat, err := domain.ParseCatalog([]byte(testDomains))
	if err != nil {
		t.Fatalf("parse domains: %v", err)
	}
	enc := eip712.NewEncoder(nil)
	domains, err := domain.NewRegistry(cat, enc)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	keys, err := keystore.Load([]config.KeyConfig{{Name: "cow", Hex: crypto.Keccak256Hash([]byte("cow")).Hex()}}, enc, nil)
	if err != nil {
		t.Fatalf("keys: %v", err)
	}
	t.Cleanup(keys.Close)

	kinds := message.NewCatalog()
	exec := signing.NewTypedDataExecutor(domains, kinds, keys, enc)
	store := signing.NewMemoryStore()
	service := signing.NewService(store, signing.NewMemoryQueue(16), exec, 3)
	base := []Option{WithTypedData(exec), WithDomains(domains), WithKinds(kinds), WithKeys(keys)}
	return &fixture{
		store:   store,
		service: service,
		server:  NewServer(":0", service, append(base, opts...)...),
	}
}

func (f *fixture) do(t *testing.T, method, target, body string, header ...string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if len(header) == 2 {
		req.Header.Set(header[0], header[1])
	}
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorDetail {
	t.Helper()

	var body errorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func submitBody(id string) string {
	return `{"id":"` + id + `","domain":"ether-mail","kind":"mail","key":"cow","message":` + etherMail + `}`
}

func TestSubmitAndFetchSignature(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/signatures", submitBody("job-1"))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var job signing.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &job); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if job.ID != "job-1" || job.Status != signing.StatusPending {
		t.Fatalf("unexpected job %+v", job)
	}

	if err := f.store.MarkSucceeded(context.Background(), "job-1", signing.Result{Signature: cowSignature, Signer: cowAddress}); err != nil {
		t.Fatalf("mark succeeded: %v", err)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/signatures/job-1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var got signing.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode job: %v", err)
	}
	if got.Result == nil || got.Result.Signature != cowSignature {
		t.Fatalf("unexpected result %+v", got.Result)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/signatures?status=succeeded&domain=ether-mail&order=asc", "")
	var list []signing.Job
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil || len(list) != 1 {
		t.Fatalf("unexpected list %s (%v)", rec.Body.String(), err)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/signatures/stats", "")
	var stats signing.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.Total != 1 || stats.Succeeded != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSubmitWaitsForCompletion(t *testing.T) {
	f := newFixture(t)

	go func() {
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			if err := f.store.MarkSucceeded(context.Background(), "waited", signing.Result{Signature: cowSignature}); err == nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	rec := f.do(t, http.MethodPost, "/api/v1/signatures?wait=2s", submitBody("waited"))
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/v1/signatures?wait=soon", submitBody("other"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request for invalid wait, got %d", rec.Code)
	}
}

func TestSignatureErrors(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{"bad json", http.MethodPost, "/api/v1/signatures", `{"domain":`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown field", http.MethodPost, "/api/v1/signatures", `{"chain":"x"}`, http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"unknown domain", http.MethodPost, "/api/v1/signatures", `{"domain":"x","kind":"mail","key":"cow","message":{}}`, http.StatusBadRequest, string(signing.CodeJobValidation)},
		{"missing job", http.MethodGet, "/api/v1/signatures/missing", "", http.StatusNotFound, string(signing.CodeJobNotFound)},
		{"missing id", http.MethodGet, "/api/v1/signatures/", "", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"detail method", http.MethodDelete, "/api/v1/signatures/job", "", http.StatusMethodNotAllowed, "INVALID_ARGUMENT"},
		{"list method", http.MethodPut, "/api/v1/signatures", "", http.StatusMethodNotAllowed, "INVALID_ARGUMENT"},
		{"bad status", http.MethodGet, "/api/v1/signatures?status=done", "", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad limit", http.MethodGet, "/api/v1/signatures?limit=-1", "", http.StatusBadRequest, "INVALID_ARGUMENT"},
		{"bad since", http.MethodGet, "/api/v1/signatures/stats?updated_since=yesterday", "", http.StatusBadRequest, "INVALID_ARGUMENT"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := f.do(t, tc.method, tc.target, tc.body)
			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tc.code {
				t.Fatalf("expected code %s, got %+v", tc.code, got)
			}
		})
	}
}

func TestTypedDataEndpoints(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/typed-data/hash", `{"domain":"ether-mail","kind":"mail","message":`+etherMail+`}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var preview signing.Preview
	if err := json.Unmarshal(rec.Body.Bytes(), &preview); err != nil {
		t.Fatalf("decode preview: %v", err)
	}
	if preview.Digest != "0xbe609aee343fb3c4b28e1df9e632fca64fcfaede20f02e86244efddf30957bd2" || preview.PrimaryType != "Mail" {
		t.Fatalf("unexpected preview %+v", preview)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/typed-data/recover",
		`{"domain":"ether-mail","kind":"mail","message":`+etherMail+`,"signature":"`+cowSignature+`"}`)
	var recovered map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &recovered); err != nil {
		t.Fatalf("decode recover: %v", err)
	}
	if recovered["signer"] != cowAddress {
		t.Fatalf("unexpected signer %v", recovered)
	}

	rec = f.do(t, http.MethodPost, "/api/v1/typed-data/recover", `{"domain":"ether-mail","kind":"mail","message":`+etherMail+`}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected bad request without signature, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodPost, "/api/v1/typed-data/hash", `{"domain":"ether-mail","kind":"ballot","message":{}}`)
	if rec.Code != http.StatusBadRequest || decodeError(t, rec).Code != string(message.CodeUnknownKind) {
		t.Fatalf("expected unknown kind, got %d %s", rec.Code, rec.Body.String())
	}
	rec = f.do(t, http.MethodPost, "/api/v1/typed-data/hash", `{"domain":"nope","kind":"mail","message":{}}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected not found for unknown domain, got %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/api/v1/typed-data/hash", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected method not allowed, got %d", rec.Code)
	}
}

func TestCatalogEndpoints(t *testing.T) {
	f := newFixture(t)

	var domains []domain.View
	rec := f.do(t, http.MethodGet, "/api/v1/domains", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &domains); err != nil || len(domains) != 1 {
		t.Fatalf("unexpected domains %s (%v)", rec.Body.String(), err)
	}
	if domains[0].Separator != "0xf2cee375fa42b42143804025fc449deafd50cc031ca257e0b194a650a912090f" {
		t.Fatalf("unexpected separator %s", domains[0].Separator)
	}

	var kinds []message.Kind
	rec = f.do(t, http.MethodGet, "/api/v1/kinds", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &kinds); err != nil || len(kinds) < 3 {
		t.Fatalf("unexpected kinds %s (%v)", rec.Body.String(), err)
	}

	rec = f.do(t, http.MethodGet, "/api/v1/keys", "")
	if !bytes.Contains(bytes.ToLower(rec.Body.Bytes()), []byte(strings.ToLower(cowAddress))) {
		t.Fatalf("expected cow address in %s", rec.Body.String())
	}

	rec = f.do(t, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected health status %d", rec.Code)
	}
	rec = f.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "typedsign_http_requests_total") {
		t.Fatalf("metrics endpoint missing http counters")
	}
}

func TestAuthProtectsAPI(t *testing.T) {
	svc, err := auth.NewService(auth.Config{
		Mode: auth.ModeToken,
		Tokens: []auth.Token{
			{Name: "reader", Secret: "r", Permissions: []string{auth.PermissionSignaturesRead}},
			{Name: "writer", Secret: "w", Permissions: []string{auth.PermissionSignaturesWrite, auth.PermissionSignaturesRead}},
		},
	})
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	f := newFixture(t, WithAuth(svc))

	if rec := f.do(t, http.MethodGet, "/api/v1/signatures", ""); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/signatures", submitBody("a"), "Authorization", "Bearer r"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden for reader, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/signatures", submitBody("a"), "Authorization", "Bearer w"); rec.Code != http.StatusAccepted {
		t.Fatalf("expected accepted for writer, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodPost, "/api/v1/typed-data/hash", `{}`, "Authorization", "Bearer w"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden without typed-data permission, got %d", rec.Code)
	}
	if rec := f.do(t, http.MethodGet, "/healthz", ""); rec.Code != http.StatusOK {
		t.Fatalf("health check should stay public, got %d", rec.Code)
	}
}

func TestStatusForCode(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		string(signing.CodeJobPublish):   http.StatusServiceUnavailable,
		string(signing.CodeJobConflict):  http.StatusConflict,
		string(keystore.CodeKeyNotFound): http.StatusNotFound,
		"TIMEOUT":                        http.StatusGatewayTimeout,
		"SOMETHING_ELSE":                 http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := statusForCode(xerrors.Code(code)); got != want {
			t.Fatalf("%s: expected %d, got %d", code, want, got)
		}
	}
}
