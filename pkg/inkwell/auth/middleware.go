package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/access"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
)

const (
	// ContextKeyUserID is the key for user ID in gin context
	ContextKeyUserID = "user_id"
	// ContextKeyEmail is the key for email in gin context
	ContextKeyEmail = "email"
	// ContextKeyRole is the key for the role ordinal in gin context
	ContextKeyRole = "role"

	// CookieName is the cookie browsers send the access token in
	CookieName = "users_access_token"
)

var (
	errNoToken   = errors.New("no token")
	errBadHeader = errors.New("invalid authorization header format")
)

// tokenFromRequest reads the bearer token, falling back to the access cookie
func tokenFromRequest(c *gin.Context) (string, error) {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		// Expect "Bearer <token>"
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" || parts[1] == "" {
			return "", errBadHeader
		}
		return parts[1], nil
	}
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie, nil
	}
	return "", errNoToken
}

// loadUser resolves the token subject to its current user row. Soft-deleted
// users are not found.
func loadUser(c *gin.Context, db *gorm.DB, claims *Claims) (*models.User, error) {
	var user models.User
	if err := db.WithContext(c.Request.Context()).First(&user, claims.UserID).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// setUser stores the caller's identity. The role comes from the database so
// role changes apply to tokens already issued.
func setUser(c *gin.Context, user *models.User) {
	c.Set(ContextKeyUserID, user.ID)
	c.Set(ContextKeyEmail, user.Email)
	c.Set(ContextKeyRole, user.RoleID)
}

// AuthMiddleware validates JWT tokens, loads the token's user and sets user
// info in context
func AuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := tokenFromRequest(c)
		if err != nil {
			msg := "Authorization header required"
			if errors.Is(err, errBadHeader) {
				msg = "Invalid authorization header format"
			}
			c.JSON(http.StatusUnauthorized, gin.H{"error": msg})
			c.Abort()
			return
		}

		claims, err := ValidateToken(tokenString)
		if err != nil {
			if errors.Is(err, ErrExpiredToken) {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has expired"})
			} else {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			}
			c.Abort()
			return
		}

		user, err := loadUser(c, db, claims)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User no longer exists"})
			c.Abort()
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			c.Abort()
			return
		}

		setUser(c, user)
		c.Next()
	}
}

// OptionalAuthMiddleware sets user info when a valid token for an existing
// user is present and otherwise lets the request through as anonymous
func OptionalAuthMiddleware(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenString, err := tokenFromRequest(c); err == nil {
			if claims, err := ValidateToken(tokenString); err == nil {
				if user, err := loadUser(c, db, claims); err == nil {
					setUser(c, user)
				}
			}
		}
		c.Next()
	}
}

// RequirePrivileged middleware checks if the user has an admin-tier role
func RequirePrivileged() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetRole(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		if !role.IsPrivileged() {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetUserID returns the user ID from the gin context
func GetUserID(c *gin.Context) (uint, bool) {
	userID, exists := c.Get(ContextKeyUserID)
	if !exists {
		return 0, false
	}
	return userID.(uint), true
}

// GetEmail returns the email from the gin context
func GetEmail(c *gin.Context) (string, bool) {
	email, exists := c.Get(ContextKeyEmail)
	if !exists {
		return "", false
	}
	return email.(string), true
}

// GetRole returns the role ordinal from the gin context
func GetRole(c *gin.Context) (models.RoleID, bool) {
	role, exists := c.Get(ContextKeyRole)
	if !exists {
		return 0, false
	}
	return role.(models.RoleID), true
}

// GetRequester builds the access requester for the current request;
// unauthenticated requests yield an anonymous requester
func GetRequester(c *gin.Context) access.Requester {
	userID, ok := GetUserID(c)
	if !ok {
		return access.Anonymous()
	}
	role, _ := GetRole(c)
	return access.Requester{UserID: userID, Role: role}
}
