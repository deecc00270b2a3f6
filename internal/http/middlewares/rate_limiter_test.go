package middlewares

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	now := time.Unix(0, 0)
	rl.now = func() time.Time { return now }

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("burst not honoured")
	}
	if rl.Allow("a") {
		t.Fatal("third request inside burst window allowed")
	}
	if !rl.Allow("b") {
		t.Fatal("buckets are per key")
	}

	// 10/s refills one token every 100ms, including partial seconds
	now = now.Add(100 * time.Millisecond)
	if !rl.Allow("a") {
		t.Fatal("token not refilled after 100ms")
	}
	if rl.Allow("a") {
		t.Fatal("refill exceeded elapsed time")
	}

	now = now.Add(time.Hour)
	for i := 0; i < 2; i++ {
		if !rl.Allow("a") {
			t.Fatalf("request %d after idle hour rejected", i)
		}
	}
	if rl.Allow("a") {
		t.Fatal("bucket grew past burst")
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRateLimiter(1, 1).RateLimitMiddleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 2)
	for i := range codes {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes[i] = w.Code
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
