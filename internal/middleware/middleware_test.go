package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestResponseWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := newResponseWriter(rec)

	rw.WriteHeader(http.StatusNotFound)
	rw.WriteHeader(http.StatusOK) // second call is ignored
	rw.Write([]byte("gone"))

	if rw.statusCode != http.StatusNotFound {
		t.Errorf("statusCode = %d, want 404", rw.statusCode)
	}
	if rw.bytesWritten != 4 {
		t.Errorf("bytesWritten = %d, want 4", rw.bytesWritten)
	}
	if rec.Code != http.StatusNotFound {
		t.Errorf("recorded code = %d, want 404", rec.Code)
	}
}

func TestResponseWriterDefaultsToOK(t *testing.T) {
	rw := newResponseWriter(httptest.NewRecorder())
	rw.Write([]byte("hi"))
	if rw.statusCode != http.StatusOK {
		t.Errorf("statusCode = %d, want 200", rw.statusCode)
	}
}

func TestMiddlewarePassThrough(t *testing.T) {
	handler := Logging(Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/videos", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want 418", rec.Code)
	}
	if rec.Body.String() != "short and stout" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"/api/videos", "/api/videos"},
		{"/api/videos/abc123", "/api/videos/{id}"},
		{"/api/thumbnail/abc123", "/api/thumbnail/{id}"},
		{"/healthz", "/healthz"},
	}
	for _, tt := range tests {
		if got := normalizePath(tt.in); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeLogField(t *testing.T) {
	if got := sanitizeLogField("/a\nb\x1b[31mc"); got != "/a b[31mc" {
		t.Errorf("sanitizeLogField = %q", got)
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if got := clientIP(req); got != "10.0.0.1" {
		t.Errorf("clientIP = %q, want 10.0.0.1", got)
	}

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientIP(req); got != "203.0.113.9" {
		t.Errorf("clientIP = %q, want first forwarded address", got)
	}
}
