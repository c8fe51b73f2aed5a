package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/model"
	"roast-tracker/internal/notification"
	"roast-tracker/internal/roast"
)

// ListMonitorSessions handles GET /rest/monitor_sessions.
func (h *Handler) ListMonitorSessions(c *gin.Context) {
	scope, err := h.resolveScope(c)
	if err != nil {
		renderError(c, err)
		return
	}
	sessions, err := h.store.ListMonitorSessions(c.Request.Context(), scope)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// CreateMonitorSession handles POST /rest/monitor_sessions.
func (h *Handler) CreateMonitorSession(c *gin.Context) {
	var in model.SessionInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	owner, err := h.resolveOwner(c, in.OwnerID)
	if err != nil {
		renderError(c, err)
		return
	}
	in.OwnerID = owner

	session, err := h.store.CreateMonitorSession(c.Request.Context(), in)
	if err != nil {
		renderError(c, err)
		return
	}
	h.metrics.SessionCreated()
	c.JSON(http.StatusCreated, session)
}

// UpdateMonitorSession handles PATCH /rest/monitor_sessions/:id.
func (h *Handler) UpdateMonitorSession(c *gin.Context) {
	var patch model.SessionPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	session, err := h.store.GetMonitorSession(ctx, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.authorizeRow(c, session.OwnerID); err != nil {
		renderError(c, err)
		return
	}
	updated, err := h.store.UpdateMonitorSession(ctx, session.ID, patch)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// ListMonitorSnapshots handles GET /rest/monitor_sessions/:id/snapshots.
func (h *Handler) ListMonitorSnapshots(c *gin.Context) {
	ctx := c.Request.Context()
	session, err := h.store.GetMonitorSession(ctx, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.authorizeRow(c, session.OwnerID); err != nil {
		renderError(c, err)
		return
	}
	snapshots, err := h.store.ListMonitorSnapshots(ctx, session.ID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshots)
}

// CreateMonitorSnapshot handles POST /rest/monitor_snapshots. A snapshot
// close to its session's target queues a push notification for the owner.
func (h *Handler) CreateMonitorSnapshot(c *gin.Context) {
	var in model.SnapshotInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx := c.Request.Context()
	session, err := h.store.GetMonitorSession(ctx, in.SessionID)
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.authorizeRow(c, session.OwnerID); err != nil {
		renderError(c, err)
		return
	}

	snapshot, err := h.store.CreateMonitorSnapshot(ctx, in)
	if err != nil {
		renderError(c, err)
		return
	}

	near := roast.NearTarget(snapshot.RoastIndex, session.TargetRoastIndex, h.nearTargetDelta)
	h.metrics.SnapshotCreated(near)
	if near && session.OwnerID != nil && h.notifier != nil {
		h.notifier.Dispatch(notification.NearTargetEvent{
			OwnerID:     *session.OwnerID,
			SessionID:   session.ID,
			SessionName: session.Name,
			RoastIndex:  snapshot.RoastIndex,
			RoastLabel:  snapshot.RoastLabel,
			TargetIndex: session.TargetRoastIndex,
			TargetLabel: session.TargetRoastLabel,
		})
	}
	c.JSON(http.StatusCreated, snapshot)
}
