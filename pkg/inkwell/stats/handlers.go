package stats

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
)

// Handler serves the statistics report
type Handler struct {
	agg *Aggregator
}

// NewHandler creates a new stats handler
func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

// Get returns the current statistics report
func (h *Handler) Get(c *gin.Context) {
	report, err := h.agg.Compute(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "stats": report})
}

// RegisterRoutes registers stats routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stats", auth.AuthMiddleware(h.agg.db), h.Get)
}
