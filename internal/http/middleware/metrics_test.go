package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_RequestInstrumentation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())

	// JSON-ish body, so the size histogram observes a positive value
	r.GET("/checks/stats", func(c *gin.Context) {
		c.String(http.StatusOK, `{"pending":0}`)
	})

	// status-only response leaves size at -1, which the middleware skips
	r.POST("/telegram/webhook", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	// baselines, since collectors are package-global across tests
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/checks/stats", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/checks/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /checks/stats -> %d", w.Code)
	}

	// unmatched route falls back to the raw URL path label
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/telegram/webhook", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("POST /telegram/webhook -> %d", w.Code)
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/checks/stats", "200")); got != baseOK+1 {
		t.Fatalf("stats counter = %v; want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != base404+1 {
		t.Fatalf("404 fallback counter = %v; want %v", got, base404+1)
	}

	// all requests above have completed
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
