package api

import (
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"roast-tracker/internal/mw"
	"roast-tracker/internal/roast"
)

// GetVAPIDPublicKey returns the VAPID public key to the client.
func (h *Handler) GetVAPIDPublicKey(c *gin.Context) {
	if h.webpush == nil || h.webpush.VAPIDPublicKey == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vapid keys are not configured"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"public_key": h.webpush.VAPIDPublicKey})
}

type roastLevelResponse struct {
	Label roast.Label `json:"label"`
	Name  string      `json:"name"`
	Slug  string      `json:"slug"`
	Rank  int         `json:"rank"`
	// MinIndex is absent for the darkest level, which has no floor.
	MinIndex *float64 `json:"min_index,omitempty"`
}

// GetRoastLevels returns the roast levels, lightest first, named in the
// requested language.
func (h *Handler) GetRoastLevels(c *gin.Context) {
	lang := mw.Language(c)
	labels := roast.Labels()
	levels := make([]roastLevelResponse, 0, len(labels))
	for _, l := range labels {
		resp := roastLevelResponse{Label: l, Name: l.Name(lang), Slug: l.Slug(), Rank: l.Rank()}
		if m := l.MinIndex(); !math.IsInf(m, 0) {
			resp.MinIndex = &m
		}
		levels = append(levels, resp)
	}
	c.JSON(http.StatusOK, levels)
}
