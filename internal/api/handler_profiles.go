package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/errs"
	"roast-tracker/internal/model"
)

// requireSelf rejects requests for another user's profile.
func requireSelf(c *gin.Context) (string, error) {
	p, ok := principal(c)
	if !ok {
		return "", errs.ErrUnauthorized
	}
	if c.Param("id") != p.UserID {
		return "", errs.ErrForbidden
	}
	return p.UserID, nil
}

// GetUserProfile handles GET /rest/user_profiles/:id.
func (h *Handler) GetUserProfile(c *gin.Context) {
	id, err := requireSelf(c)
	if err != nil {
		renderError(c, err)
		return
	}
	profile, err := h.store.GetUserProfile(c.Request.Context(), id)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateUserProfile handles PATCH /rest/user_profiles/:id.
func (h *Handler) UpdateUserProfile(c *gin.Context) {
	id, err := requireSelf(c)
	if err != nil {
		renderError(c, err)
		return
	}
	var patch model.ProfilePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if patch.Preferences != nil {
		if err := patch.Preferences.Validate(); err != nil {
			renderError(c, err)
			return
		}
	}
	profile, err := h.store.UpdateUserProfile(c.Request.Context(), id, patch)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
