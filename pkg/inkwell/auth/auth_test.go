package auth

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/access"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/database"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := database.Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate failed: %v", err)
	}
	return db
}

func setupTestRouter(db *gorm.DB) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := NewHandler(db, nil)
	handler.RegisterRoutes(r.Group("/auth"))
	return r
}

func postJSON(router *gin.Engine, path string, body interface{}) *httptest.ResponseRecorder {
	jsonBody, _ := json.Marshal(body)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func registerTestUser(t *testing.T, router *gin.Engine) AuthResponse {
	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email:     "test@example.com",
		Password:  "password123",
		FirstName: "Test",
		LastName:  "User",
	})
	if resp.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	return response
}

func TestPasswordHashing(t *testing.T) {
	password := "testpassword123"

	hash, err := HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}

	if hash == password {
		t.Error("Hash should not equal plain password")
	}

	if !CheckPassword(password, hash) {
		t.Error("CheckPassword should return true for correct password")
	}

	if CheckPassword("wrongpassword", hash) {
		t.Error("CheckPassword should return false for incorrect password")
	}
}

func TestJWTToken(t *testing.T) {
	token, err := GenerateToken(1, "test@example.com", models.RoleAdmin)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	claims, err := ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}

	if claims.UserID != 1 {
		t.Errorf("Expected UserID 1, got %d", claims.UserID)
	}
	if claims.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", claims.Email)
	}
	if claims.Role != models.RoleAdmin {
		t.Errorf("Expected role %d, got %d", models.RoleAdmin, claims.Role)
	}
}

func TestInvalidToken(t *testing.T) {
	_, err := ValidateToken("invalid-token")
	if err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	defer Configure("", 0)

	// Configure rejects non-positive lifetimes.
	settingsMu.Lock()
	tokenTTL = -time.Minute
	settingsMu.Unlock()

	token, err := GenerateToken(1, "test@example.com", models.RoleUser)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	if _, err := ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("Expected ErrExpiredToken, got %v", err)
	}
}

func TestConfigureChangesSecret(t *testing.T) {
	token, _ := GenerateToken(1, "test@example.com", models.RoleUser)

	Configure("another-secret-that-is-long-enough-0123", time.Hour)
	defer Configure("", 0)

	if _, err := ValidateToken(token); err != ErrInvalidToken {
		t.Errorf("Expected token signed with old secret to be rejected, got %v", err)
	}
}

func TestRegister(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	response := registerTestUser(t, router)

	if response.Token == "" {
		t.Error("Expected token in response")
	}
	if response.User.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", response.User.Email)
	}
	if response.User.RoleID != models.RoleUser {
		t.Errorf("Expected new users to get role %d, got %d", models.RoleUser, response.User.RoleID)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	registerTestUser(t, router)

	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email:     "TEST@example.com",
		Password:  "password123",
		FirstName: "Other",
	})
	if resp.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", resp.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	resp := postJSON(router, "/auth/register", RegisterRequest{
		Email:     "test@example.com",
		Password:  "short",
		FirstName: "Test",
	})
	if resp.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.Code)
	}
}

func TestLogin(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	registerTestUser(t, router)

	resp := postJSON(router, "/auth/login", LoginRequest{
		Email:    "test@example.com",
		Password: "password123",
	})
	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var response AuthResponse
	json.Unmarshal(resp.Body.Bytes(), &response)
	if response.Token == "" {
		t.Error("Expected token in response")
	}

	found := false
	for _, cookie := range resp.Result().Cookies() {
		if cookie.Name == CookieName && cookie.Value == response.Token {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected %s cookie carrying the token", CookieName)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	registerTestUser(t, router)

	resp := postJSON(router, "/auth/login", LoginRequest{
		Email:    "test@example.com",
		Password: "wrongpassword",
	})
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestMe(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	authResponse := registerTestUser(t, router)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+authResponse.Token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var userResponse UserResponse
	json.Unmarshal(resp.Body.Bytes(), &userResponse)
	if userResponse.Email != "test@example.com" {
		t.Errorf("Expected email test@example.com, got %s", userResponse.Email)
	}
}

func TestMeWithCookie(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	authResponse := registerTestUser(t, router)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: authResponse.Token})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestMeWithoutAuth(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func TestMalformedAuthorizationHeader(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)

	req, _ := http.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Token abc")
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", resp.Code)
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email string, role models.RoleID) models.User {
	user := models.User{Email: email, PasswordHash: "x", FirstName: "Test", RoleID: role}
	if err := db.Omit("Role").Create(&user).Error; err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}
	return user
}

func getWithToken(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req, _ := http.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestOptionalAuthAndRequester(t *testing.T) {
	db := setupTestDB(t)
	admin := createTestUser(t, db, "admin@example.com", models.RoleSuperAdmin)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got access.Requester
	r.GET("/whoami", OptionalAuthMiddleware(db), func(c *gin.Context) {
		got = GetRequester(c)
		c.Status(http.StatusOK)
	})

	// Anonymous
	resp := getWithToken(r, "/whoami", "")
	if resp.Code != http.StatusOK || !got.IsAnonymous() {
		t.Errorf("Expected anonymous requester, got %+v (status %d)", got, resp.Code)
	}

	// Invalid token is treated as anonymous
	resp = getWithToken(r, "/whoami", "nope")
	if resp.Code != http.StatusOK || !got.IsAnonymous() {
		t.Errorf("Expected anonymous requester for bad token, got %+v", got)
	}

	// Valid token
	token, _ := GenerateToken(admin.ID, admin.Email, admin.RoleID)
	getWithToken(r, "/whoami", token)
	if got.UserID != admin.ID || got.Role != models.RoleSuperAdmin {
		t.Errorf("Expected requester %d/SuperAdmin, got %+v", admin.ID, got)
	}

	// Token for a user that does not exist is treated as anonymous
	ghost, _ := GenerateToken(999, "ghost@example.com", models.RoleSuperAdmin)
	resp = getWithToken(r, "/whoami", ghost)
	if resp.Code != http.StatusOK || !got.IsAnonymous() {
		t.Errorf("Expected anonymous requester for unknown user, got %+v", got)
	}
}

func TestRequirePrivileged(t *testing.T) {
	db := setupTestDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin", AuthMiddleware(db), RequirePrivileged(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	cases := []struct {
		role models.RoleID
		want int
	}{
		{models.RoleUser, http.StatusForbidden},
		{models.RoleModerator, http.StatusForbidden},
		{models.RoleAdmin, http.StatusOK},
		{models.RoleSuperAdmin, http.StatusOK},
	}
	for i, tc := range cases {
		user := createTestUser(t, db, fmt.Sprintf("user%d@example.com", i), tc.role)
		token, _ := GenerateToken(user.ID, user.Email, tc.role)
		resp := getWithToken(r, "/admin", token)
		if resp.Code != tc.want {
			t.Errorf("role %d: expected %d, got %d", tc.role, tc.want, resp.Code)
		}
	}
}

func TestRoleIsReadFromDatabase(t *testing.T) {
	db := setupTestDB(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	var got access.Requester
	r.GET("/admin", AuthMiddleware(db), func(c *gin.Context) {
		got = GetRequester(c)
		c.Next()
	}, RequirePrivileged(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	admin := createTestUser(t, db, "admin@example.com", models.RoleAdmin)
	token, _ := GenerateToken(admin.ID, admin.Email, models.RoleAdmin)
	if resp := getWithToken(r, "/admin", token); resp.Code != http.StatusOK {
		t.Fatalf("Expected status 200 before demotion, got %d", resp.Code)
	}

	if err := db.Model(&models.User{}).Where("id = ?", admin.ID).Update("role_id", models.RoleUser).Error; err != nil {
		t.Fatalf("Failed to demote user: %v", err)
	}
	if resp := getWithToken(r, "/admin", token); resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 for demoted user's old token, got %d", resp.Code)
	}
	if got.Role != models.RoleUser {
		t.Errorf("Expected requester role %d from database, got %d", models.RoleUser, got.Role)
	}

	// A token minted with a higher role than stored does not elevate
	user := createTestUser(t, db, "user@example.com", models.RoleUser)
	forged, _ := GenerateToken(user.ID, user.Email, models.RoleSuperAdmin)
	if resp := getWithToken(r, "/admin", forged); resp.Code != http.StatusForbidden {
		t.Errorf("Expected status 403 when claim outranks stored role, got %d", resp.Code)
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	db := setupTestDB(t)
	router := setupTestRouter(db)
	authResponse := registerTestUser(t, router)

	if err := db.Delete(&models.User{}, authResponse.User.ID).Error; err != nil {
		t.Fatalf("Failed to delete user: %v", err)
	}

	resp := getWithToken(router, "/auth/me", authResponse.Token)
	if resp.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401 for deleted user, got %d", resp.Code)
	}
}
