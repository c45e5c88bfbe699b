package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func securityRouter(opt SecurityOptions) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), SecurityHeaders(opt))
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	r := securityRouter(SecurityOptions{EnablePolicy: true, NoStore: true})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %v", h)
	}
	if h.Get("Permissions-Policy") == "" {
		t.Error("policy headers missing")
	}
	if h.Get("Cache-Control") != "no-store" {
		t.Error("no-store missing")
	}
	if !strings.Contains(h.Get("Access-Control-Expose-Headers"), "X-Request-ID") {
		t.Error("X-Request-ID not exposed")
	}
	if h.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS emitted without opt-in")
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	r := securityRouter(SecurityOptions{EnableHSTS: true, HSTSMaxAge: 24 * time.Hour})

	// Plain HTTP: no HSTS.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS emitted on plain HTTP")
	}

	// Proxied HTTPS: HSTS with configured max-age.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	r.ServeHTTP(w, req)
	got := w.Header().Get("Strict-Transport-Security")
	if !strings.Contains(got, "max-age=86400") {
		t.Errorf("HSTS = %q", got)
	}
}
