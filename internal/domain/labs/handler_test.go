package labs

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/carebridge/carebridge/internal/platform/auth"
	"github.com/carebridge/carebridge/internal/platform/completion"
)

func uploadRequest(t *testing.T, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="scan.png"`)
	hdr.Set("Content-Type", contentType)
	part, err := w.CreatePart(hdr)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	part.Write(data)
	w.Close()

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set(echo.HeaderContentType, w.FormDataContentType())
	id := &auth.Identity{ProfileID: uuid.New(), Role: auth.RoleLab}
	return req.WithContext(auth.WithIdentity(req.Context(), id))
}

func TestHandler_Upload(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(uploadRequest(t, "image/png", pngHeader), rec)

	if err := h.Upload(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201, got %d", rec.Code)
	}
}

func TestHandler_Upload_Errors(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		describeErr error
		code        int
	}{
		{"not an image", "text/plain", nil, http.StatusBadRequest},
		{"provider down", "image/png", completion.ErrUnavailable, http.StatusServiceUnavailable},
		{"bad key", "image/png", completion.ErrUnauthorized, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.desc.err = tt.describeErr
			h := NewHandler(env.svc)
			data := pngHeader
			if tt.contentType == "text/plain" {
				data = []byte("hello")
			}
			err := h.Upload(echo.New().NewContext(uploadRequest(t, tt.contentType, data), httptest.NewRecorder()))
			var he *echo.HTTPError
			if !errors.As(err, &he) || he.Code != tt.code {
				t.Fatalf("expected %d, got %v", tt.code, err)
			}
		})
	}
}

func TestHandler_Upload_MissingFile(t *testing.T) {
	env := newTestEnv()
	h := NewHandler(env.svc)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	err := h.Upload(echo.New().NewContext(req, httptest.NewRecorder()))
	var he *echo.HTTPError
	if !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}
