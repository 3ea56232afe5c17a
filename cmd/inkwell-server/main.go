package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/auth"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/config"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/database"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/likes"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/logging"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/models"
	"github.com/inkwell-blog/inkwell/pkg/inkwell/server"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	cliApp := &cli.App{
		Name:  "inkwell-server",
		Usage: "blog publishing service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "migrate the database and start the http server",
				Action: serve,
			},
			{
				Name:   "migrate",
				Usage:  "migrate the database and exit",
				Action: migrate,
			},
		},
	}
	if err := cliApp.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "inkwell-server: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, builds the logger and opens a migrated database
func setup() (*config.Config, *zap.Logger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}

	log, err := logging.New(cfg.LogLevel, cfg.IsDevelopment())
	if err != nil {
		return nil, nil, nil, err
	}

	db, err := database.Open(cfg.DBPath, log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Run auto-migrations
	if err := models.AutoMigrate(db); err != nil {
		database.Close(db)
		return nil, nil, nil, fmt.Errorf("running migrations: %w", err)
	}
	log.Info("database migrations completed", zap.String("path", cfg.DBPath))

	return cfg, log, db, nil
}

func migrate(_ *cli.Context) error {
	_, log, db, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	return database.Close(db)
}

func serve(c *cli.Context) error {
	cfg, log, db, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()
	defer database.Close(db)

	auth.Configure(cfg.JWTSecret, cfg.TokenTTL)

	// Create default admin user if no admin exists
	if err := ensureAdminExists(db, cfg.AdminEmail, cfg.AdminPassword, log); err != nil {
		return fmt.Errorf("ensuring admin user exists: %w", err)
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	likeStore, err := newLikesStore(ctx, cfg, log)
	if err != nil {
		return err
	}

	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := server.NewRouter(server.Deps{
		DB:        db,
		Likes:     likeStore,
		Log:       log,
		StatsTopN: cfg.StatsTopN,
	})

	return server.Run(ctx, cfg.ServerAddr(), router, log)
}

// newLikesStore picks the likes ledger backend from configuration
func newLikesStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (likes.Store, error) {
	if !cfg.UseRedisLikes() {
		log.Info("likes ledger on file", zap.String("path", cfg.LikesFile))
		return likes.NewFileStore(cfg.LikesFile, log), nil
	}
	client, err := likes.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	log.Info("likes ledger on redis", zap.String("prefix", cfg.RedisPrefix))
	return likes.NewRedisStore(client, cfg.RedisPrefix, log), nil
}

// ensureAdminExists creates a super admin account if no privileged user
// exists in the database
func ensureAdminExists(db *gorm.DB, email, password string, log *zap.Logger) error {
	// Check if any privileged user exists
	var count int64
	err := db.Model(&models.User{}).
		Where("role_id IN ?", []models.RoleID{models.RoleAdmin, models.RoleSuperAdmin}).
		Count(&count).Error
	if err != nil {
		return err
	}

	if count > 0 {
		return nil // Admin already exists
	}

	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return err
	}

	adminUser := models.User{
		Email:        email,
		FirstName:    "Admin",
		PasswordHash: hashedPassword,
		RoleID:       models.RoleSuperAdmin,
	}
	if err := db.Omit("Role").Create(&adminUser).Error; err != nil {
		return err
	}

	log.Warn("created default admin user; change its password", zap.String("email", email))
	return nil
}
