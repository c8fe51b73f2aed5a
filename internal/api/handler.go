package api

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"

	"roast-tracker/internal/auth"
	"roast-tracker/internal/errs"
	"roast-tracker/internal/metrics"
	"roast-tracker/internal/notification"
	"roast-tracker/internal/store"
)

const (
	principalKey = "principal"
	tokenKey     = "token"
)

// Notifier queues near-target events for push delivery.
type Notifier interface {
	Dispatch(ev notification.NearTargetEvent) bool
}

// Options carries the optional dependencies of a Handler.
type Options struct {
	Webpush  *webpush.Options
	Notifier Notifier
	Metrics  *metrics.Metrics
	// AllowAnonymous lets callers without a token use rows that have no owner.
	AllowAnonymous bool
	// NearTargetDelta is the largest |index - target| that triggers a push.
	NearTargetDelta float64
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store           store.Store
	auth            *auth.Service
	webpush         *webpush.Options
	notifier        Notifier
	metrics         *metrics.Metrics
	allowAnonymous  bool
	nearTargetDelta float64
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, authSvc *auth.Service, opts Options) *Handler {
	return &Handler{
		store:           s,
		auth:            authSvc,
		webpush:         opts.Webpush,
		notifier:        opts.Notifier,
		metrics:         opts.Metrics,
		allowAnonymous:  opts.AllowAnonymous,
		nearTargetDelta: opts.NearTargetDelta,
	}
}

// Authenticate resolves an optional bearer token. A request without one
// passes through anonymously; a request with a bad one is rejected.
func (h *Handler) Authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "malformed authorization header"})
		return
	}
	p, err := h.auth.Resolve(token)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}
	c.Set(principalKey, p)
	c.Set(tokenKey, token)
	c.Next()
}

func principal(c *gin.Context) (auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	return v.(auth.Principal), true
}

// resolveScope decides whose rows a list request may see.
func (h *Handler) resolveScope(c *gin.Context) (store.Scope, error) {
	p, authed := principal(c)
	if owner := c.Query("owner_id"); owner != "" {
		if !authed {
			return store.Scope{}, errs.ErrUnauthorized
		}
		if owner != p.UserID {
			return store.Scope{}, errs.ErrForbidden
		}
		return store.Owner(owner), nil
	}
	if authed {
		return store.Owner(p.UserID), nil
	}
	if !h.allowAnonymous {
		return store.Scope{}, errs.ErrUnauthorized
	}
	return store.Scope{}, nil
}

// resolveOwner checks the owner a write claims and fills it in for
// authenticated callers that left it empty.
func (h *Handler) resolveOwner(c *gin.Context, claimed *string) (*string, error) {
	p, authed := principal(c)
	switch {
	case claimed != nil && !authed:
		return nil, errs.ErrUnauthorized
	case claimed != nil && *claimed != p.UserID:
		return nil, errs.ErrForbidden
	case claimed != nil:
		return claimed, nil
	case authed:
		id := p.UserID
		return &id, nil
	case h.allowAnonymous:
		return nil, nil
	default:
		return nil, errs.ErrUnauthorized
	}
}

// authorizeRow checks that the caller may touch a row owned by owner.
func (h *Handler) authorizeRow(c *gin.Context, owner *string) error {
	p, authed := principal(c)
	if owner == nil {
		if h.allowAnonymous || authed {
			return nil
		}
		return errs.ErrUnauthorized
	}
	if !authed {
		return errs.ErrUnauthorized
	}
	if *owner != p.UserID {
		return errs.ErrForbidden
	}
	return nil
}

// renderError maps err onto a status code and a JSON error body.
func renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errs.IsValidation(err):
		status = http.StatusBadRequest
	case errors.Is(err, errs.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, errs.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, errs.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, errs.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
