package tags

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/database"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	user := models.User{Email: email, PasswordHash: "x", FirstName: "Test", LastName: "User"}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestPost(t *testing.T, db *gorm.DB, authorID uint, title string, status models.PostStatus) models.Post {
	post := models.Post{Title: title, Content: "body", AuthorID: authorID, Status: status}
	require.NoError(t, db.Omit("Author", "Tags").Create(&post).Error)
	return post
}

func countTags(t *testing.T, db *gorm.DB) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Tag{}).Count(&n).Error)
	return n
}

func TestEnsureTagsIsCaseInsensitive(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(db, nil)

	ids, err := reg.EnsureTags(context.Background(), []string{"Python", "python", "PYTHON"})
	require.NoError(t, err)
	require.Len(t, ids, 3)
	assert.Equal(t, ids[0], ids[1])
	assert.Equal(t, ids[0], ids[2])
	assert.EqualValues(t, 1, countTags(t, db))

	var tag models.Tag
	require.NoError(t, db.First(&tag, ids[0]).Error)
	assert.Equal(t, "python", tag.Name)
}

func TestEnsureTagsPreservesOrderAndIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(db, nil)
	ctx := context.Background()

	first, err := reg.EnsureTags(ctx, []string{"go", "rust", "go", "zig"})
	require.NoError(t, err)
	require.Len(t, first, 4)
	assert.Equal(t, first[0], first[2])
	assert.NotEqual(t, first[0], first[1])
	assert.NotEqual(t, first[1], first[3])

	second, err := reg.EnsureTags(ctx, []string{"zig", "GO", "Rust"})
	require.NoError(t, err)
	assert.Equal(t, []uint{first[3], first[0], first[1]}, second)
	assert.EqualValues(t, 3, countTags(t, db))
}

func TestEnsureTagsOneIDPerName(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(db, nil)

	names := []string{"go", " Python", "python", "Go"}
	ids, err := reg.EnsureTags(context.Background(), names)
	require.NoError(t, err)
	require.Len(t, ids, len(names))
	assert.Equal(t, ids[0], ids[3])
	assert.NotEqual(t, ids[1], ids[2], "only case is folded")

	var padded models.Tag
	require.NoError(t, db.First(&padded, ids[1]).Error)
	assert.Equal(t, " python", padded.Name)

	ids, err = reg.EnsureTags(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestEnsureTagsRejectsBlankNames(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(db, nil)

	for _, names := range [][]string{{"go", "", "rust"}, {"  "}} {
		ids, err := reg.EnsureTags(context.Background(), names)
		assert.ErrorIs(t, err, ErrBlankName)
		assert.Nil(t, ids)
	}
	assert.EqualValues(t, 0, countTags(t, db), "nothing is written for a rejected batch")
}

func TestCleanNames(t *testing.T) {
	assert.Equal(t, []string{"web", "Go"}, CleanNames([]string{"", "  ", " web ", "Go"}))
	assert.Empty(t, CleanNames(nil))
}

func TestEnsureTagsRollsBackOnFailure(t *testing.T) {
	db := setupTestDB(t)
	errBoom := errors.New("boom")
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_boom", func(tx *gorm.DB) {
		if tag, ok := tx.Statement.Dest.(*models.Tag); ok && tag.Name == "boom" {
			tx.AddError(errBoom)
		}
	})
	require.NoError(t, err)

	reg := NewRegistry(db, nil)
	ids, err := reg.EnsureTags(context.Background(), []string{"alpha", "boom"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Nil(t, ids)
	assert.EqualValues(t, 0, countTags(t, db), "alpha should have been rolled back")
}

func TestEnsureTagsNestedInTransaction(t *testing.T) {
	db := setupTestDB(t)
	reg := NewRegistry(db, nil)
	ctx := context.Background()

	err := db.Transaction(func(tx *gorm.DB) error {
		ids, err := reg.WithTx(tx).EnsureTags(ctx, []string{"nested"})
		if err != nil {
			return err
		}
		assert.Len(t, ids, 1)
		return errors.New("abort outer")
	})
	require.Error(t, err)
	assert.EqualValues(t, 0, countTags(t, db))
}

func TestSyncLinks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")
	post := createTestPost(t, db, user.ID, "Hello", models.PostStatusPublished)

	ids, err := NewRegistry(db, nil).EnsureTags(ctx, []string{"a", "b"})
	require.NoError(t, err)

	links := NewLinkManager(db, nil)
	require.NoError(t, links.SyncLinks(ctx, post.ID, ids))
	// Idempotent, including a repeated id and a zero id in the batch
	require.NoError(t, links.SyncLinks(ctx, post.ID, []uint{ids[0], ids[0], 0, ids[1]}))

	var n int64
	db.Model(&models.PostTag{}).Where("post_id = ?", post.ID).Count(&n)
	assert.EqualValues(t, 2, n)

	var loaded models.Post
	require.NoError(t, db.Preload("Tags").First(&loaded, post.ID).Error)
	assert.Len(t, loaded.Tags, 2)
}

func TestSyncLinksEmptyBatchIsNoOp(t *testing.T) {
	db := setupTestDB(t)
	links := NewLinkManager(db, nil)

	assert.NoError(t, links.SyncLinks(context.Background(), 1, nil))
	assert.NoError(t, links.SyncLinks(context.Background(), 0, []uint{1, 2}))
	assert.NoError(t, links.SyncLinks(context.Background(), 1, []uint{0}))
}

func TestSyncLinksReportsStorageFailure(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")
	post := createTestPost(t, db, user.ID, "Hello", models.PostStatusPublished)
	ids, err := NewRegistry(db, nil).EnsureTags(ctx, []string{"a", "b"})
	require.NoError(t, err)

	errBoom := errors.New("boom")
	err = db.Callback().Create().Before("gorm:create").Register("test:fail_links", func(tx *gorm.DB) {
		if _, ok := tx.Statement.Dest.(*[]models.PostTag); ok {
			tx.AddError(errBoom)
		}
	})
	require.NoError(t, err)

	err = NewLinkManager(db, nil).SyncLinks(ctx, post.ID, ids)
	assert.ErrorIs(t, err, errBoom)

	var n int64
	db.Model(&models.PostTag{}).Count(&n)
	assert.EqualValues(t, 0, n)
}

func TestClearLinks(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")
	p1 := createTestPost(t, db, user.ID, "One", models.PostStatusPublished)
	p2 := createTestPost(t, db, user.ID, "Two", models.PostStatusPublished)

	ids, _ := NewRegistry(db, nil).EnsureTags(ctx, []string{"x", "y"})
	links := NewLinkManager(db, nil)
	require.NoError(t, links.SyncLinks(ctx, p1.ID, ids))
	require.NoError(t, links.SyncLinks(ctx, p2.ID, ids))

	require.NoError(t, links.ClearLinks(ctx, p1.ID))

	var n int64
	db.Model(&models.PostTag{}).Where("post_id = ?", p1.ID).Count(&n)
	assert.EqualValues(t, 0, n)
	db.Model(&models.PostTag{}).Where("post_id = ?", p2.ID).Count(&n)
	assert.EqualValues(t, 2, n)
	assert.EqualValues(t, 2, countTags(t, db), "tags survive link removal")
}

func TestListTags(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "a@example.com")
	pub1 := createTestPost(t, db, user.ID, "Pub 1", models.PostStatusPublished)
	pub2 := createTestPost(t, db, user.ID, "Pub 2", models.PostStatusPublished)
	draft := createTestPost(t, db, user.ID, "Draft", models.PostStatusDraft)

	reg := NewRegistry(db, nil)
	links := NewLinkManager(db, nil)
	goID, _ := reg.EnsureTags(ctx, []string{"go"})
	webID, _ := reg.EnsureTags(ctx, []string{"web"})
	secretID, _ := reg.EnsureTags(ctx, []string{"secret"})
	require.NoError(t, links.SyncLinks(ctx, pub1.ID, append(goID, webID...)))
	require.NoError(t, links.SyncLinks(ctx, pub2.ID, goID))
	require.NoError(t, links.SyncLinks(ctx, draft.ID, secretID))

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(db, nil).RegisterRoutes(r.Group("/api"))

	req, _ := http.NewRequest("GET", "/api/tags", nil)
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var tags []TagResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &tags))
	require.Len(t, tags, 2, "draft-only tags are not listed")
	assert.Equal(t, "go", tags[0].Name)
	assert.Equal(t, 2, tags[0].PostCount)
	assert.Equal(t, "web", tags[1].Name)
	assert.Equal(t, 1, tags[1].PostCount)
}
