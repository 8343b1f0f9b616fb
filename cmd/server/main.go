package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-users"
	"github.com/goliatone/go-users/admin"
	"github.com/goliatone/go-users/config"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

const tokenIssuer = "go-users"

func main() {
	createSuperuser := flag.Bool("create-superuser", false, "create a superuser account and exit")
	flag.Parse()

	logger := users.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	logger.Info("starting",
		"environment", cfg.Environment,
		"database", config.Snippet(cfg.DatabaseURL),
		"redis", config.Snippet(cfg.RedisURL),
	)

	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		logger.Error("database error", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	repo := users.NewRepositoryManager(db)
	repo.MustValidate()

	store := repo.Users()
	hasher := users.NewPasswordHasher(users.DefaultHashCost)
	policy := users.DefaultPasswordPolicy()

	if *createSuperuser {
		if err := bootstrapSuperuser(context.Background(), store, policy, hasher, logger); err != nil {
			logger.Error("superuser bootstrap failed", "error", err)
			os.Exit(1)
		}
		return
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Error("redis url error", "error", err)
		os.Exit(1)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()

	tokens := users.NewTokenService(cfg.TokenSecret, cfg.TokenLifetime, tokenIssuer, logger)
	activity := users.ActivitySinkFunc(func(ctx context.Context, event users.ActivityEvent) error {
		logger.Info("activity", "event", event.EventType, "user_id", event.UserID)
		return nil
	})

	auther := users.NewAuthenticator(store, hasher, tokens).
		WithLogger(logger).
		WithActivitySink(activity)

	register := users.NewRegisterUserHandler(store, policy, hasher).
		WithActivitySink(activity).
		WithLogger(logger)
	resetInit := users.NewInitializePasswordResetHandler(store, tokens).
		WithActivitySink(activity).
		WithLogger(logger)
	resetFinalize := users.NewFinalizePasswordResetHandler(store, tokens, policy, hasher).
		WithActivitySink(activity).
		WithLogger(logger)
	verification := users.NewVerificationHandler(store, tokens).
		WithActivitySink(activity).
		WithLogger(logger)
	profile := users.NewUpdateProfileHandler(store, policy, hasher).
		WithActivitySink(activity).
		WithLogger(logger)

	api := users.NewAPIController(
		users.WithControllerDebug(cfg.IsDevelopment()),
		users.WithControllerLogger(logger),
		users.WithAuther(auther),
		users.WithLifecycleHandlers(register, resetInit, resetFinalize, verification, profile),
		users.WithCache(users.NewRedisCache(redisClient)),
		users.WithTaskDispatcher(users.NewRedisDispatcher(redisClient, users.DefaultTaskQueue)),
	)

	adminAuth := admin.New(admin.Config{
		Secret:   cfg.SessionSecret,
		Lifetime: cfg.SessionLifetime,
	}, store, hasher, nil).WithLogger(logger)

	app := fiber.New(fiber.Config{
		AppName: "go-users",
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
		AllowCredentials: true,
	}))

	users.RegisterAPIRoutes(app.Group("/api/v1"), api)

	adminGroup := app.Group("/admin", encryptcookie.New(encryptcookie.Config{
		Key: cfg.SessionSecret.CookieEncryptionKey(),
	}))
	admin.RegisterRoutes(adminGroup, admin.NewController(adminAuth, store))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		logger.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}()

	if err := app.Listen(cfg.HTTPAddr); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func openDatabase(dsn string) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "database unreachable")
	}

	return db, nil
}

// bootstrapSuperuser reads credentials from stdin and provisions an account
// with full privileges. An already registered email is treated as done, not
// as an error, so deploy scripts can run this unconditionally.
func bootstrapSuperuser(ctx context.Context, store users.UserStore, policy *users.PasswordPolicy, hasher *users.PasswordHasher, logger users.Logger) error {
	reader := bufio.NewReader(os.Stdin)

	fmt.Print("Email: ")
	email, err := reader.ReadString('\n')
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not read email")
	}
	email = users.NormalizeEmail(email)

	fmt.Print("Password: ")
	password, err := reader.ReadString('\n')
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "could not read password")
	}
	password = strings.TrimRight(password, "\r\n")

	if err := policy.Validate(password, email); err != nil {
		return err
	}

	hash, err := hasher.Hash(password)
	if err != nil {
		return err
	}

	created, err := store.Create(ctx, &users.User{
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
		IsSuperuser:  true,
		IsVerified:   true,
	})
	if err != nil {
		if users.IsConflict(err) {
			logger.Info("superuser already exists", "email", email)
			return nil
		}
		return err
	}

	logger.Info("superuser created", "user_id", created.ID)
	return nil
}
