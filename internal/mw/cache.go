package mw

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
)

// CacheHeader reports whether a response was served from the cache.
const CacheHeader = "X-Cache"

// KeyFunc derives the cache key of a request. Requests for which it reports
// false bypass the cache.
type KeyFunc func(c *gin.Context) (string, bool)

// Language picks the catalog language of a request: the lang query
// parameter, then Accept-Language. Anything but English is served in
// Chinese.
func Language(c *gin.Context) string {
	lang := c.Query("lang")
	if lang == "" {
		lang = c.GetHeader("Accept-Language")
	}
	if strings.HasPrefix(strings.ToLower(strings.TrimSpace(lang)), "en") {
		return "en"
	}
	return "zh"
}

// CatalogKey keys anonymous catalog reads on the route and the language,
// so unrelated query parameters share one entry.
func CatalogKey(c *gin.Context) (string, bool) {
	if c.Request.Method != http.MethodGet || c.GetHeader("Authorization") != "" {
		return "", false
	}
	return c.FullPath() + "|" + Language(c), true
}

type cachedResponse struct {
	contentType string
	body        []byte
}

type bodyCacheWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w bodyCacheWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w bodyCacheWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Cache serves repeated catalog reads from store. Only 200 JSON responses
// are kept. Clients are told they may reuse a response for ttl.
func Cache(store *cache.Cache, ttl time.Duration, key KeyFunc) gin.HandlerFunc {
	cacheControl := fmt.Sprintf("public, max-age=%d", int(ttl.Seconds()))
	return func(c *gin.Context) {
		k, ok := key(c)
		if !ok {
			c.Next()
			return
		}

		h := c.Writer.Header()
		h.Set("Cache-Control", cacheControl)
		h.Set("Vary", "Accept-Language")
		if v, found := store.Get(k); found {
			cached := v.(cachedResponse)
			h.Set("Content-Type", cached.contentType)
			h.Set(CacheHeader, "HIT")
			c.Writer.WriteHeader(http.StatusOK)
			c.Writer.Write(cached.body)
			c.Abort()
			return
		}

		h.Set(CacheHeader, "MISS")
		w := &bodyCacheWriter{body: bytes.NewBuffer(nil), ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		contentType := w.Header().Get("Content-Type")
		if w.Status() == http.StatusOK && strings.HasPrefix(contentType, gin.MIMEJSON) {
			store.Set(k, cachedResponse{contentType: contentType, body: w.body.Bytes()}, ttl)
		}
	}
}
