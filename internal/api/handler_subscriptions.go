package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription handles the creation or replacement of the caller's
// subscription.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, ok := principal(c)
	if !ok {
		renderError(c, errs.ErrUnauthorized)
		return
	}

	subscription := model.PushSubscription{
		Endpoint: req.Endpoint,
		OwnerID:  p.UserID,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.UpsertPushSubscription(c.Request.Context(), subscription); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription. Deleting an
// unknown endpoint succeeds.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	p, ok := principal(c)
	if !ok {
		renderError(c, errs.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	sub, err := h.store.GetPushSubscription(ctx, req.Endpoint)
	if errors.Is(err, errs.ErrNotFound) {
		c.Status(http.StatusNoContent)
		return
	}
	if err != nil {
		renderError(c, err)
		return
	}
	if sub.OwnerID != p.UserID {
		renderError(c, errs.ErrForbidden)
		return
	}
	if err := h.store.DeletePushSubscription(ctx, req.Endpoint); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// rawQueryParam returns a query value without URL decoding; push endpoints
// are URLs themselves and are stored as the browser reported them.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription handles the retrieval of one of the caller's subscriptions.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "endpoint is required"})
		return
	}
	p, authed := principal(c)
	if !authed {
		renderError(c, errs.ErrUnauthorized)
		return
	}

	sub, err := h.store.GetPushSubscription(c.Request.Context(), raw)
	if err != nil {
		renderError(c, err)
		return
	}
	if sub.OwnerID != p.UserID {
		renderError(c, errs.ErrForbidden)
		return
	}
	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "created_at": sub.CreatedAt})
}
