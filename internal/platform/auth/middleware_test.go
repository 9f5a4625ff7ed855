package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func expectStatus(t *testing.T, err error, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with status %d", code)
	}
	httpErr, ok := err.(*echo.HTTPError)
	if !ok {
		t.Fatalf("expected echo.HTTPError, got %T", err)
	}
	if httpErr.Code != code {
		t.Errorf("expected %d, got %d", code, httpErr.Code)
	}
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	err := JWTMiddleware(NewIssuer(testSecret, "carebridge", time.Hour), nil, nil)(okHandler)(c)
	expectStatus(t, err, http.StatusUnauthorized)
}

func TestJWTMiddleware_InvalidFormat(t *testing.T) {
	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "Token abc123"},
		{"missing token", "Bearer"},
		{"empty value", "Bearer "},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not.a.jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.Header.Set("Authorization", tt.header)
			c := e.NewContext(req, httptest.NewRecorder())

			err := JWTMiddleware(NewIssuer(testSecret, "carebridge", time.Hour), nil, nil)(okHandler)(c)
			expectStatus(t, err, http.StatusUnauthorized)
		})
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	iss := NewIssuer(testSecret, "carebridge", time.Hour)
	profile := uuid.New()
	tok, err := iss.Issue(uuid.New(), profile, RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var seen uuid.UUID
	var role string
	h := JWTMiddleware(iss, nil, nil)(func(c echo.Context) error {
		seen = ProfileIDFromContext(c.Request().Context())
		role = RoleFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})
	if err := h(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != profile {
		t.Errorf("expected profile %s, got %s", profile, seen)
	}
	if role != RolePatient {
		t.Errorf("expected patient role, got %q", role)
	}
}

func TestJWTMiddleware_RevokedToken(t *testing.T) {
	iss := NewIssuer(testSecret, "carebridge", time.Hour)
	tok, err := iss.Issue(uuid.New(), uuid.New(), RolePatient)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	store := NewTokenRevocationStore(time.Hour)
	defer store.Close()
	store.Revoke(tok.ID, tok.ExpiresAt)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Value)
	c := e.NewContext(req, httptest.NewRecorder())

	expectStatus(t, JWTMiddleware(iss, store, nil)(okHandler)(c), http.StatusUnauthorized)
}

func TestJWTMiddleware_WebSocketQueryToken(t *testing.T) {
	iss := NewIssuer(testSecret, "carebridge", time.Hour)
	tok, err := iss.Issue(uuid.New(), uuid.New(), RoleDoctor)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/realtime/ws?access_token="+tok.Value, nil)
	req.Header.Set("Connection", "Upgrade")
	req.Header.Set("Upgrade", "websocket")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if err := JWTMiddleware(iss, nil, nil)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestJWTMiddleware_QueryTokenIgnoredOutsideWebSocket(t *testing.T) {
	iss := NewIssuer(testSecret, "carebridge", time.Hour)
	tok, _ := iss.Issue(uuid.New(), uuid.New(), RoleDoctor)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me?access_token="+tok.Value, nil)
	c := e.NewContext(req, httptest.NewRecorder())

	expectStatus(t, JWTMiddleware(iss, nil, nil)(okHandler)(c), http.StatusUnauthorized)
}

func TestJWTMiddleware_Skipper(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	if err := JWTMiddleware(NewIssuer(testSecret, "carebridge", time.Hour), nil, AuthSkipper)(okHandler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestIsPublicPath(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/api/v1/auth/login", true},
		{"/api/v1/auth/register", true},
		{"/storage/:bucket/*", true},
		{"/api/v1/auth/logout", false},
		{"/api/v1/me", false},
	}
	for _, tt := range tests {
		if got := IsPublicPath(tt.path); got != tt.want {
			t.Errorf("IsPublicPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
