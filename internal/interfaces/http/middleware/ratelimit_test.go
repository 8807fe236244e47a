package middleware

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	fiscalapp "github.com/kwanza/fiscal/internal/application/fiscal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }

	ok, left := limiter.Allow("tenant-a")
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	ok, _ = limiter.Allow("tenant-a")
	assert.True(t, ok)
	ok, left = limiter.Allow("tenant-a")
	assert.False(t, ok)
	assert.Equal(t, 0, left)

	ok, _ = limiter.Allow("tenant-b")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(time.Minute)
	ok, _ = limiter.Allow("tenant-a")
	assert.True(t, ok, "a new window restores the budget")
}

func TestRateLimiter_SweepsIdleKeys(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(1, time.Minute)
	limiter.now = func() time.Time { return now }

	limiter.Allow("a")
	limiter.Allow("b")
	now = now.Add(2 * time.Minute)
	limiter.Allow("c")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Len(t, limiter.clients, 1)
}

func TestRateLimiter_Concurrent(t *testing.T) {
	limiter := NewRateLimiter(50, time.Hour)
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := limiter.Allow("tenant"); ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestRateLimitByTenant(t *testing.T) {
	tenantA := fiscalapp.Principal{TenantID: uuid.New(), UserID: uuid.New()}
	tenantB := fiscalapp.Principal{TenantID: uuid.New(), UserID: uuid.New()}

	router := gin.New()
	router.Use(RequestID())
	router.Use(func(c *gin.Context) {
		if c.GetHeader("X-Test-Tenant") == "b" {
			c.Set(PrincipalKey, tenantB)
		} else {
			c.Set(PrincipalKey, tenantA)
		}
		c.Next()
	})
	router.GET("/saft", RateLimitByTenant(NewRateLimiter(1, time.Minute)), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	call := func(tenant string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/saft", nil)
		req.Header.Set("X-Test-Tenant", tenant)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	require.Equal(t, http.StatusOK, call("a").Code)
	w := call("a")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"RATE_LIMITED"`)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, http.StatusOK, call("b").Code)
}
