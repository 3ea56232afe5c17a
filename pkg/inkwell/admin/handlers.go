package admin

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/posts"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles admin requests
type Handler struct {
	db    *gorm.DB
	store *posts.Store
	log   *zap.Logger
}

// NewHandler creates a new admin handler
func NewHandler(db *gorm.DB, store *posts.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{db: db, store: store, log: log.Named("admin")}
}

// UserResponse represents user data in admin responses
type UserResponse struct {
	ID        uint          `json:"id"`
	Email     string        `json:"email"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	RoleID    models.RoleID `json:"role_id"`
	RoleName  string        `json:"role_name"`
	CreatedAt string        `json:"created_at"`
	PostCount int64         `json:"post_count"`
}

// UpdateRoleRequest represents the request to change a user's role
type UpdateRoleRequest struct {
	RoleID models.RoleID `json:"role_id" binding:"required"`
}

func toUserResponse(u models.User, postCount int64) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		RoleID:    u.RoleID,
		RoleName:  u.Role.Name,
		CreatedAt: u.CreatedAt.Format("2006-01-02T15:04:05Z"),
		PostCount: postCount,
	}
}

// postCounts returns the number of posts per author for the given users
func (h *Handler) postCounts(c *gin.Context, userIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(userIDs))
	if len(userIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		AuthorID uint
		Total    int64
	}
	err := h.db.WithContext(c.Request.Context()).Model(&models.Post{}).
		Select("author_id, COUNT(id) AS total").
		Where("author_id IN ?", userIDs).
		Group("author_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		counts[r.AuthorID] = r.Total
	}
	return counts, nil
}

func parseUserID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return 0, false
	}
	return uint(id), true
}

// ListUsers returns all users (admin only)
func (h *Handler) ListUsers(c *gin.Context) {
	var users []models.User

	query := h.db.WithContext(c.Request.Context()).Preload("Role").Order("created_at DESC").Order("id DESC")

	// Optional search by email or name
	if search := strings.ToLower(strings.TrimSpace(c.Query("q"))); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("lower(email) LIKE ? OR lower(first_name) LIKE ? OR lower(last_name) LIKE ?", pattern, pattern, pattern)
	}

	// Optional filter by role ordinal
	if role := c.Query("role"); role != "" {
		parsed, err := strconv.ParseUint(role, 10, 32)
		if err != nil || !models.RoleID(parsed).Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
			return
		}
		query = query.Where("role_id = ?", parsed)
	}

	if err := query.Find(&users).Error; err != nil {
		h.log.Error("listing users", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	counts, err := h.postCounts(c, ids)
	if err != nil {
		h.log.Error("counting posts per user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch users"})
		return
	}

	responses := make([]UserResponse, len(users))
	for i, user := range users {
		responses[i] = toUserResponse(user, counts[user.ID])
	}

	c.JSON(http.StatusOK, responses)
}

// GetUser returns a single user by ID (admin only)
func (h *Handler) GetUser(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var user models.User
	if err := h.db.WithContext(c.Request.Context()).Preload("Role").First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	counts, err := h.postCounts(c, []uint{user.ID})
	if err != nil {
		h.log.Error("counting posts per user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user, counts[user.ID]))
}

// UpdateRole changes a user's role. It applies to the user's next request.
func (h *Handler) UpdateRole(c *gin.Context) {
	id, ok := parseUserID(c)
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.RoleID.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role"})
		return
	}

	requester := auth.GetRequester(c)

	// Prevent admin from demoting themselves
	if id == requester.UserID && !req.RoleID.IsPrivileged() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cannot demote yourself"})
		return
	}

	ctx := c.Request.Context()
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	// Only a super admin may grant or revoke super admin
	if (req.RoleID == models.RoleSuperAdmin || user.RoleID == models.RoleSuperAdmin) &&
		requester.Role != models.RoleSuperAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "Super admin access required"})
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Update("role_id", req.RoleID).Error; err != nil {
		h.log.Error("updating role", zap.Uint("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update user"})
		return
	}
	h.log.Info("role changed",
		zap.Uint("user_id", id),
		zap.Uint("role_id", uint(req.RoleID)),
		zap.Uint("by", requester.UserID),
	)

	if err := h.db.WithContext(ctx).Preload("Role").First(&user, id).Error; err != nil {
		h.log.Error("reloading user", zap.Uint("user_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	counts, err := h.postCounts(c, []uint{user.ID})
	if err != nil {
		h.log.Error("counting posts per user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user"})
		return
	}
	c.JSON(http.StatusOK, toUserResponse(user, counts[user.ID]))
}

// ListDrafts returns every author's drafts (admin only)
func (h *Handler) ListDrafts(c *gin.Context) {
	page, pageSize := 1, posts.DefaultPageSize
	if v, err := strconv.Atoi(c.Query("page")); err == nil {
		page = v
	}
	if v, err := strconv.Atoi(c.Query("page_size")); err == nil {
		pageSize = v
	}

	result, err := h.store.ListDrafts(c.Request.Context(), 0, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch drafts"})
		return
	}
	c.JSON(http.StatusOK, posts.NewPageResponse(result))
}

// RegisterRoutes registers admin routes on the given router group
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	admin := rg.Group("/admin")
	admin.Use(auth.AuthMiddleware(h.db), auth.RequirePrivileged())
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id/role", h.UpdateRole)
		admin.GET("/drafts", h.ListDrafts)
	}
}
