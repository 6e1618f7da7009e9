package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pratik1719/landinglens-segmentation-CV/utils"
)

func newEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID(), Logger(), CORS())
	r.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(RequestIDKey))
	})
	return r
}

func TestRequestIDGenerated(t *testing.T) {
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	id := rec.Header().Get(utils.RequestIDHeader)
	if id == "" {
		t.Fatalf("expected generated request id")
	}
	if rec.Body.String() != id {
		t.Fatalf("context id %q != header id %q", rec.Body.String(), id)
	}
}

func TestRequestIDPropagated(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(utils.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, req)

	if got := rec.Header().Get(utils.RequestIDHeader); got != "abc-123" {
		t.Fatalf("unexpected request id %q", got)
	}
}

func TestCORSHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("unexpected allow origin %q", got)
	}
}

func TestCORSExposesDownloadHeaders(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	newEngine().ServeHTTP(rec, req)

	exposed := strings.ToLower(rec.Header().Get("Access-Control-Expose-Headers"))
	for _, h := range []string{PredictionCountHeader, "Content-Disposition", utils.RequestIDHeader} {
		if !strings.Contains(exposed, strings.ToLower(h)) {
			t.Fatalf("%s not exposed: %q", h, exposed)
		}
	}
}
