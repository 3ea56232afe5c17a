package posts

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/likes"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"go.uber.org/zap"
)

// Handler handles post-related requests
type Handler struct {
	store *Store
	likes likes.Store
	log   *zap.Logger
}

// NewHandler creates a new posts handler
func NewHandler(store *Store, likeStore likes.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{store: store, likes: likeStore, log: log.Named("posts")}
}

// CreatePostRequest represents the request to create a post
type CreatePostRequest struct {
	Title            string   `json:"title" binding:"required,max=200"`
	Content          string   `json:"content"`
	ShortDescription string   `json:"short_description"`
	Status           string   `json:"status" binding:"omitempty,oneof=draft published"`
	Tags             []string `json:"tags"`
}

// UpdatePostRequest represents the request to edit a post. The tag list
// replaces the current tags.
type UpdatePostRequest struct {
	Title            string   `json:"title" binding:"required,max=200"`
	Content          string   `json:"content"`
	ShortDescription string   `json:"short_description"`
	Tags             []string `json:"tags"`
}

// SetStatusRequest represents the request to change a post's status
type SetStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// PostResponse represents a post in API responses
type PostResponse struct {
	ID               uint     `json:"id"`
	Title            string   `json:"title"`
	ShortDescription string   `json:"short_description"`
	Content          string   `json:"content"`
	Status           string   `json:"status"`
	AuthorID         uint     `json:"author_id"`
	AuthorName       string   `json:"author_name"`
	Tags             []string `json:"tags"`
	CreatedAt        string   `json:"created_at"`
	UpdatedAt        string   `json:"updated_at"`
}

// PageResponse represents a page of posts in API responses
type PageResponse struct {
	Page       int            `json:"page"`
	TotalPages int            `json:"total_pages"`
	TotalCount int64          `json:"total_count"`
	Items      []PostResponse `json:"items"`
}

// NewPostResponse converts a post with preloaded author and tags
func NewPostResponse(post models.Post) PostResponse {
	tagNames := make([]string, len(post.Tags))
	for i, t := range post.Tags {
		tagNames[i] = t.Name
	}
	return PostResponse{
		ID:               post.ID,
		Title:            post.Title,
		ShortDescription: post.ShortDescription,
		Content:          post.Content,
		Status:           string(post.Status),
		AuthorID:         post.AuthorID,
		AuthorName:       post.Author.FullName(),
		Tags:             tagNames,
		CreatedAt:        post.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:        post.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// NewPageResponse converts a listing page
func NewPageResponse(p *Page) PageResponse {
	items := make([]PostResponse, len(p.Items))
	for i, post := range p.Items {
		items[i] = NewPostResponse(post)
	}
	return PageResponse{
		Page:       p.Page,
		TotalPages: p.TotalPages,
		TotalCount: p.TotalCount,
		Items:      items,
	}
}

// writeResult maps a Result onto an HTTP response
func writeResult(c *gin.Context, res Result, successCode int) {
	switch res.Outcome {
	case OutcomeSuccess:
		c.JSON(successCode, gin.H{
			"status":      "success",
			"message":     res.Message,
			"post_id":     res.PostID,
			"post_status": res.Status,
		})
	case OutcomeNoOp:
		c.JSON(http.StatusOK, gin.H{
			"status":      "info",
			"message":     res.Message,
			"post_id":     res.PostID,
			"post_status": res.Status,
		})
	default:
		c.JSON(httpStatus(res.Outcome), gin.H{"status": "error", "error": res.Message})
	}
}

func httpStatus(o Outcome) int {
	switch o {
	case OutcomeSuccess, OutcomeNoOp:
		return http.StatusOK
	case OutcomeInvalidInput:
		return http.StatusBadRequest
	case OutcomeNotFound:
		return http.StatusNotFound
	case OutcomePermissionDenied:
		return http.StatusForbidden
	case OutcomeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func parsePostID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return 0, false
	}
	return uint(id), true
}

// queryInt reads an integer query parameter, falling back to def when absent
// or malformed
func queryInt(c *gin.Context, key string, def int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func pagination(c *gin.Context) (int, int) {
	return queryInt(c, "page", 1), queryInt(c, "page_size", DefaultPageSize)
}

// List returns published posts
func (h *Handler) List(c *gin.Context) {
	filter := ListFilter{
		Tag:    c.Query("tag"),
		Search: c.Query("search"),
	}
	if filter.Search == "" {
		filter.Search = c.Query("q")
	}
	if authorID := c.Query("author_id"); authorID != "" {
		parsed, err := strconv.ParseUint(authorID, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid author ID"})
			return
		}
		filter.AuthorID = uint(parsed)
	}

	page, pageSize := pagination(c)
	result, err := h.store.ListPublished(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	c.JSON(http.StatusOK, NewPageResponse(result))
}

// ListDrafts returns the requester's drafts. Privileged users may pass
// author_id to see another author's drafts or all=true for every draft.
func (h *Handler) ListDrafts(c *gin.Context) {
	requester := auth.GetRequester(c)
	authorID := requester.UserID

	if requester.IsPrivileged() {
		if c.Query("all") == "true" {
			authorID = 0
		} else if v := c.Query("author_id"); v != "" {
			parsed, err := strconv.ParseUint(v, 10, 32)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid author ID"})
				return
			}
			authorID = uint(parsed)
		}
	} else if v := c.Query("author_id"); v != "" && v != strconv.FormatUint(uint64(requester.UserID), 10) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You may only list your own drafts"})
		return
	}

	page, pageSize := pagination(c)
	result, err := h.store.ListDrafts(c.Request.Context(), authorID, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch drafts"})
		return
	}
	c.JSON(http.StatusOK, NewPageResponse(result))
}

// ListLiked returns the published posts the requester likes
func (h *Handler) ListLiked(c *gin.Context) {
	requester := auth.GetRequester(c)

	liked := h.likes.LikedPostIDs(c.Request.Context(), int64(requester.UserID))
	ids := make([]uint, 0, len(liked))
	for _, id := range liked {
		if id > 0 {
			ids = append(ids, uint(id))
		}
	}

	page, pageSize := pagination(c)
	result, err := h.store.ListByIDs(c.Request.Context(), ids, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch liked posts"})
		return
	}
	c.JSON(http.StatusOK, NewPageResponse(result))
}

// Get returns a single post if the requester may read it
func (h *Handler) Get(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	post, err := h.store.GetVisible(c.Request.Context(), postID, auth.GetRequester(c))
	if err != nil {
		var visErr *VisibilityError
		if errors.As(err, &visErr) {
			c.JSON(http.StatusNotFound, gin.H{"error": visErr.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	c.JSON(http.StatusOK, NewPostResponse(*post))
}

// Create creates a post authored by the requester
func (h *Handler) Create(c *gin.Context) {
	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.store.Create(c.Request.Context(), CreateInput{
		Title:            req.Title,
		Content:          req.Content,
		ShortDescription: req.ShortDescription,
		Status:           req.Status,
		Tags:             req.Tags,
	}, auth.GetRequester(c))
	writeResult(c, res, http.StatusCreated)
}

// Update replaces a post's fields and tags
func (h *Handler) Update(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	var req UpdatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.store.Edit(c.Request.Context(), postID, EditInput{
		Title:            req.Title,
		Content:          req.Content,
		ShortDescription: req.ShortDescription,
		Tags:             req.Tags,
	}, auth.GetRequester(c))
	writeResult(c, res, http.StatusOK)
}

// SetStatus moves a post between draft and published
func (h *Handler) SetStatus(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	var req SetStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.store.SetStatus(c.Request.Context(), postID, req.Status, auth.GetRequester(c))
	writeResult(c, res, http.StatusOK)
}

// Delete deletes a post
func (h *Handler) Delete(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	res := h.store.Delete(c.Request.Context(), postID, auth.GetRequester(c))
	writeResult(c, res, http.StatusOK)
}

// RegisterRoutes registers post routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	required := auth.AuthMiddleware(h.store.db)
	optional := auth.OptionalAuthMiddleware(h.store.db)

	rg.GET("/posts", optional, h.List)
	rg.GET("/posts/drafts", required, h.ListDrafts)
	rg.GET("/posts/liked", required, h.ListLiked)
	rg.GET("/posts/:id", optional, h.Get)

	rg.POST("/posts", required, h.Create)
	rg.PUT("/posts/:id", required, h.Update)
	rg.PATCH("/posts/:id/status", required, h.SetStatus)
	rg.DELETE("/posts/:id", required, h.Delete)
}
