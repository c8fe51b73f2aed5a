package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestCache(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/levels", Cache(cache.New(time.Minute, time.Minute), time.Minute, CatalogKey), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls, "lang": Language(c)})
	})

	get := func(target string, header http.Header) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, target, nil)
		for k, v := range header {
			req.Header[k] = v
		}
		r.ServeHTTP(w, req)
		return w
	}

	first := get("/levels", nil)
	assert.Equal(t, "MISS", first.Header().Get(CacheHeader))
	assert.Equal(t, "public, max-age=60", first.Header().Get("Cache-Control"))
	second := get("/levels?utm=x", nil)
	assert.Equal(t, "HIT", second.Header().Get(CacheHeader), "unrelated query shares the entry")
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json; charset=utf-8", second.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=60", second.Header().Get("Cache-Control"))
	assert.Equal(t, 1, calls)

	english := get("/levels", http.Header{"Accept-Language": {"en-US,en;q=0.9"}})
	assert.Equal(t, "MISS", english.Header().Get(CacheHeader))
	assert.JSONEq(t, `{"calls":2,"lang":"en"}`, english.Body.String())
	assert.Equal(t, "HIT", get("/levels?lang=en", nil).Header().Get(CacheHeader))
	assert.Equal(t, 2, calls)

	authed := get("/levels", http.Header{"Authorization": {"Bearer token"}})
	assert.Empty(t, authed.Header().Get(CacheHeader))
	assert.Equal(t, 3, calls)

	french := get("/levels?lang=fr", nil)
	assert.Equal(t, "HIT", french.Header().Get(CacheHeader), "unknown languages fall back to zh")
	assert.JSONEq(t, first.Body.String(), french.Body.String())
}

func TestCache_SkipsNonJSON(t *testing.T) {
	calls := 0
	r := gin.New()
	r.GET("/text", Cache(cache.New(time.Minute, time.Minute), time.Minute, CatalogKey), func(c *gin.Context) {
		calls++
		c.String(http.StatusOK, "levels")
	})
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/text", nil))
		assert.Equal(t, "MISS", w.Header().Get(CacheHeader))
	}
	assert.Equal(t, 2, calls)
}

func TestLanguage(t *testing.T) {
	tests := []struct {
		target, accept, want string
	}{
		{"/", "", "zh"},
		{"/?lang=en", "", "en"},
		{"/?lang=zh", "en-GB", "zh"},
		{"/", "EN", "en"},
		{"/", "fr-FR,fr", "zh"},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request = httptest.NewRequest(http.MethodGet, tt.target, nil)
		if tt.accept != "" {
			c.Request.Header.Set("Accept-Language", tt.accept)
		}
		assert.Equal(t, tt.want, Language(c), "%s %s", tt.target, tt.accept)
	}
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(rate.Limit(1), 2, ClientKey("X-Real-IP")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func(ip string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Real-IP", ip)
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit("10.0.0.1").Code)
	limited := hit("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded"}`, limited.Body.String())

	assert.Equal(t, http.StatusOK, hit("10.0.0.2").Code, "limits are per client")
}

func TestRateLimiter_Disabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimiter(0, 0, ClientKey("")))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
