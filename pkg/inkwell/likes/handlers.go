package likes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles like-related requests
type Handler struct {
	store Store
	db    *gorm.DB
	log   *zap.Logger
}

// NewHandler creates a new likes handler. db resolves the caller of
// authenticated routes.
func NewHandler(store Store, db *gorm.DB, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, db: db, log: log.Named("likes")}
}

// ToggleRequest represents the request to toggle a like. Liked defaults to
// true.
type ToggleRequest struct {
	PostID int64 `json:"post_id" binding:"required,gt=0"`
	Liked  *bool `json:"liked"`
}

func parseID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return id, true
}

// Toggle flips the requester's like on a post
func (h *Handler) Toggle(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}

	var req ToggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	liked := true
	if req.Liked != nil {
		liked = *req.Liked
	}

	present, err := h.store.Toggle(c.Request.Context(), int64(userID), req.PostID, liked)
	if err != nil {
		h.log.Error("toggling like",
			zap.Uint("user_id", userID), zap.Int64("post_id", req.PostID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update like"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user_id": userID, "post_id": req.PostID, "liked": present})
}

// ByUser returns the posts a user likes
func (h *Handler) ByUser(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  userID,
		"post_ids": h.store.LikedPostIDs(c.Request.Context(), userID),
	})
}

// ByPost returns the users who like a post
func (h *Handler) ByPost(c *gin.Context) {
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	users := UsersForPost(c.Request.Context(), h.store, postID)
	c.JSON(http.StatusOK, gin.H{
		"post_id":  postID,
		"likes":    len(users),
		"user_ids": users,
	})
}

// Check reports whether a user likes a post
func (h *Handler) Check(c *gin.Context) {
	userID, ok := parseID(c, "user_id")
	if !ok {
		return
	}
	postID, ok := parseID(c, "post_id")
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"post_id": postID,
		"liked":   IsLiked(c.Request.Context(), h.store, userID, postID),
	})
}

// RegisterRoutes registers like routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/likes/toggle", auth.AuthMiddleware(h.db), h.Toggle)
	rg.GET("/likes/user/:user_id", h.ByUser)
	rg.GET("/likes/user/:user_id/post/:post_id", h.Check)
	rg.GET("/likes/post/:post_id", h.ByPost)
}
