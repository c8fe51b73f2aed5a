package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/errs"
)

type signUpRequest struct {
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Name     *string `json:"name"`
}

type signInRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// SignUp handles POST /auth/signup.
func (h *Handler) SignUp(c *gin.Context) {
	var req signUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.auth.SignUp(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

// SignIn handles POST /auth/signin.
func (h *Handler) SignIn(c *gin.Context) {
	var req signInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := h.auth.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

// SignOut handles POST /auth/signout. Signing out without a token succeeds.
func (h *Handler) SignOut(c *gin.Context) {
	if token := c.GetString(tokenKey); token != "" {
		h.auth.SignOut(token)
	}
	c.Status(http.StatusNoContent)
}

// CurrentUser handles GET /auth/user.
func (h *Handler) CurrentUser(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		renderError(c, errs.ErrUnauthorized)
		return
	}
	profile, err := h.store.GetUserProfile(c.Request.Context(), p.UserID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
