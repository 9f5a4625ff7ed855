package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
)

func newTestHandler(t *testing.T) (*Handler, *testEnv, *echo.Echo) {
	env := newTestEnv(t)
	return NewHandler(env.svc), env, echo.New()
}

func expectHTTPStatus(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Fatalf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func jsonRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func TestHandler_RegisterAndLogin(t *testing.T) {
	h, _, e := newTestHandler(t)

	body := `{"user_type":"doctor","full_name":"Dr Who","email":"who@example.com","password":"tardis1","confirm_password":"tardis1","specialty":"General","license_number":"MD-1"}`
	rec := httptest.NewRecorder()
	if err := h.Register(e.NewContext(jsonRequest(http.MethodPost, body), rec)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	err := h.Login(e.NewContext(jsonRequest(http.MethodPost, `{"email":"who@example.com","password":"tardis1"}`), rec))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var sess Session
	if err := json.Unmarshal(rec.Body.Bytes(), &sess); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sess.Landing != "/doctor" || sess.AccessToken == "" {
		t.Errorf("unexpected session %+v", sess)
	}
}

func TestHandler_Register_Invalid(t *testing.T) {
	h, _, e := newTestHandler(t)
	err := h.Register(e.NewContext(jsonRequest(http.MethodPost, `{"full_name":"x"}`), httptest.NewRecorder()))
	expectHTTPStatus(t, err, http.StatusBadRequest)
}

func TestHandler_Login_BadPassword(t *testing.T) {
	h, env, e := newTestHandler(t)
	if _, err := env.svc.Register(context.Background(), patientInput()); err != nil {
		t.Fatalf("register: %v", err)
	}
	err := h.Login(e.NewContext(jsonRequest(http.MethodPost, `{"email":"ada@example.com","password":"nope"}`), httptest.NewRecorder()))
	expectHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestHandler_Me_Unauthenticated(t *testing.T) {
	h, _, e := newTestHandler(t)
	err := h.Me(e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder()))
	expectHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestHandler_GetProfile(t *testing.T) {
	h, env, e := newTestHandler(t)
	p, _ := env.svc.Register(context.Background(), patientInput())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{ProfileID: uuid.New(), Role: auth.RoleDoctor}))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(p.ID.String())
	if err := h.GetProfile(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues(uuid.New().String())
	expectHTTPStatus(t, h.GetProfile(c), http.StatusNotFound)

	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
	c.SetParamNames("id")
	c.SetParamValues("not-a-uuid")
	expectHTTPStatus(t, h.GetProfile(c), http.StatusBadRequest)
}

func TestRoutes_UnknownPathIsNotFound(t *testing.T) {
	h, _, e := newTestHandler(t)
	h.RegisterRoutes(e.Group("/api/v1"))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/nothing-here", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated /me: expected 401, got %d", rec.Code)
	}
}
