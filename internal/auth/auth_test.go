package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"TypedSign-Chain/internal/config"
)

func newTokenService(t *testing.T) *Service {
	t.Helper()

	svc, err := NewService(Config{
		Mode: ModeToken,
		Tokens: []Token{
			{Name: "ops", Secret: "ops-secret", Permissions: []string{PermissionAll}},
			{Name: "reader", Secret: "reader-secret", Permissions: []string{PermissionSignaturesRead}},
			{Name: "retired", Secret: "retired-secret", Permissions: []string{PermissionAll}, Disabled: true},
		},
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestAuthenticateRequest(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t)
	ctx := context.Background()

	subject, err := svc.AuthenticateRequest(ctx, "Bearer reader-secret")
	if err != nil || subject.Name != "reader" {
		t.Fatalf("expected reader subject, got %+v %v", subject, err)
	}
	if !subject.HasPermission(" SIGNATURES:READ ") || subject.HasPermission(PermissionSignaturesWrite) {
		t.Fatalf("unexpected permissions for %+v", subject)
	}

	cases := map[string]error{
		"":                       ErrMissingToken,
		"Bearer ":                ErrMissingToken,
		"Basic b3BzOnNlY3JldA==": ErrInvalidToken,
		"Bearer wrong":           ErrInvalidToken,
		"bearer retired-secret":  ErrSubjectRevoked,
	}
	for header, want := range cases {
		if _, err := svc.AuthenticateRequest(ctx, header); !errors.Is(err, want) {
			t.Fatalf("%q: expected %v, got %v", header, want, err)
		}
	}
}

func TestNewServiceRejectsBadConfig(t *testing.T) {
	t.Parallel()

	cases := map[string]Config{
		"unknown mode": {Mode: "oauth"},
		"no tokens":    {Mode: ModeToken},
		"empty secret": {Mode: ModeToken, Tokens: []Token{{Name: "a"}}},
		"duplicate":    {Mode: ModeToken, Tokens: []Token{{Name: "a", Secret: "x"}, {Name: "a", Secret: "y"}}},
	}
	for name, cfg := range cases {
		if _, err := NewService(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	svc, err := NewService(Config{})
	if err != nil || svc.Mode() != ModeDisabled {
		t.Fatalf("expected disabled service, got %v %v", svc, err)
	}
}

func TestConfigFromSettingsReadsEnvironment(t *testing.T) {
	t.Parallel()

	env := map[string]string{"OPS_TOKEN": " from-env "}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	cfg, err := ConfigFromSettings(config.AuthConfig{
		Mode: "token",
		Tokens: []config.TokenConfig{
			{Name: "ops", Env: "OPS_TOKEN", Permissions: []string{"*"}},
			{Name: "ci", Token: "inline"},
		},
	}, lookup)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if cfg.Tokens[0].Secret != "from-env" || cfg.Tokens[1].Secret != "inline" {
		t.Fatalf("unexpected tokens %+v", cfg.Tokens)
	}
	if _, err := ConfigFromSettings(config.AuthConfig{Tokens: []config.TokenConfig{{Name: "x", Env: "MISSING"}}}, lookup); err == nil {
		t.Fatalf("expected error for missing env")
	}
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	svc := newTokenService(t)
	var seen *Subject
	handler := svc.Middleware(MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodPost: {PermissionSignaturesWrite},
			"*":             {PermissionSignaturesRead},
		},
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SubjectFromContext(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}))

	cases := []struct {
		method string
		token  string
		want   int
	}{
		{http.MethodGet, "", http.StatusUnauthorized},
		{http.MethodGet, "Bearer retired-secret", http.StatusForbidden},
		{http.MethodPost, "Bearer reader-secret", http.StatusForbidden},
		{http.MethodGet, "Bearer reader-secret", http.StatusAccepted},
		{http.MethodPost, "Bearer ops-secret", http.StatusAccepted},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, "/api/v1/signatures", nil)
		if tc.token != "" {
			req.Header.Set("Authorization", tc.token)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tc.want {
			t.Fatalf("%s %q: expected %d, got %d", tc.method, tc.token, tc.want, rec.Code)
		}
	}
	if seen == nil || seen.Name != "ops" {
		t.Fatalf("expected subject in context, got %+v", seen)
	}

	var disabled *Service
	rec := httptest.NewRecorder()
	disabled.Middleware(MiddlewareConfig{})(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("nil service should pass through, got %d", rec.Code)
	}
}
