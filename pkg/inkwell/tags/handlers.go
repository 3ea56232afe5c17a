package tags

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles tag-related requests
type Handler struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewHandler creates a new tags handler
func NewHandler(db *gorm.DB, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, log: log.Named("tags")}
}

// TagResponse represents a tag in API responses
type TagResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	PostCount int    `json:"post_count"`
}

// List returns every tag used by at least one published post with its usage
// count, most used first
func (h *Handler) List(c *gin.Context) {
	var results []TagResponse
	err := h.db.WithContext(c.Request.Context()).Table("tags").
		Select("tags.id, tags.name, COUNT(DISTINCT posts.id) AS post_count").
		Joins("INNER JOIN post_tags ON tags.id = post_tags.tag_id").
		Joins("INNER JOIN posts ON post_tags.post_id = posts.id AND posts.status = ?", models.PostStatusPublished).
		Group("tags.id, tags.name").
		Order("post_count DESC").
		Order("tags.name ASC").
		Scan(&results).Error
	if err != nil {
		h.log.Error("listing tags", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch tags"})
		return
	}
	if results == nil {
		results = []TagResponse{}
	}

	c.JSON(http.StatusOK, results)
}

// RegisterRoutes registers tag routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/tags", h.List)
}
