package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"roast-tracker/internal/mw"
)

// RouterConfig holds the middleware settings of the router.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	RequestIPHeader string
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	if h.metrics != nil {
		r.Use(h.metrics.Middleware())
		r.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst, mw.ClientKey(cfg.RequestIPHeader))

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	caching := mw.Cache(cache.New(cacheTTL, 2*cacheTTL), cacheTTL, mw.CatalogKey)

	authGroup := r.Group("/auth")
	authGroup.Use(rateLimiter, h.Authenticate)
	{
		authGroup.POST("/signup", h.SignUp)
		authGroup.POST("/signin", h.SignIn)
		authGroup.POST("/signout", h.SignOut)
		authGroup.GET("/user", h.CurrentUser)
	}

	rest := r.Group("/rest")
	rest.Use(rateLimiter, h.Authenticate)
	{
		rest.GET("/detection_records", h.ListDetectionRecords)
		rest.POST("/detection_records", h.CreateDetectionRecord)
		rest.DELETE("/detection_records/:id", h.DeleteDetectionRecord)

		rest.GET("/monitor_sessions", h.ListMonitorSessions)
		rest.POST("/monitor_sessions", h.CreateMonitorSession)
		rest.PATCH("/monitor_sessions/:id", h.UpdateMonitorSession)
		rest.GET("/monitor_sessions/:id/snapshots", h.ListMonitorSnapshots)
		rest.POST("/monitor_snapshots", h.CreateMonitorSnapshot)

		rest.GET("/user_profiles/:id", h.GetUserProfile)
		rest.PATCH("/user_profiles/:id", h.UpdateUserProfile)
	}

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/roast_levels", caching, h.GetRoastLevels)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		subs := api.Group("/subscriptions", h.Authenticate)
		subs.GET("", h.GetSubscription)
		subs.PUT("", h.PutSubscription)
		subs.DELETE("", h.DeleteSubscription)
	}

	return r
}
