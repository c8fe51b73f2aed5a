package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/model"
)

// ListDetectionRecords handles GET /rest/detection_records.
func (h *Handler) ListDetectionRecords(c *gin.Context) {
	scope, err := h.resolveScope(c)
	if err != nil {
		renderError(c, err)
		return
	}
	records, err := h.store.ListDetectionRecords(c.Request.Context(), scope)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// CreateDetectionRecord handles POST /rest/detection_records.
func (h *Handler) CreateDetectionRecord(c *gin.Context) {
	var in model.DetectionInput
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

	record, err := h.store.CreateDetectionRecord(c.Request.Context(), in)
	if err != nil {
		renderError(c, err)
		return
	}
	h.metrics.RecordCreated()
	c.JSON(http.StatusCreated, record)
}

// DeleteDetectionRecord handles DELETE /rest/detection_records/:id.
func (h *Handler) DeleteDetectionRecord(c *gin.Context) {
	ctx := c.Request.Context()
	record, err := h.store.GetDetectionRecord(ctx, c.Param("id"))
	if err != nil {
		renderError(c, err)
		return
	}
	if err := h.authorizeRow(c, record.OwnerID); err != nil {
		renderError(c, err)
		return
	}
	if err := h.store.DeleteDetectionRecord(ctx, record.ID); err != nil {
		renderError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
