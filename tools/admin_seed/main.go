package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"confreg/internal/auth"
	"confreg/internal/notify"
	"confreg/internal/platform/logger"
	userapp "confreg/internal/users/application"
	usermemory "confreg/internal/users/infrastructure/memory"
	userrepo "confreg/internal/users/infrastructure/postgres"
)

type config struct {
	dsn      string
	name     string
	email    string
	password string
}

func parseConfig() config {
	var cfg config
	flag.StringVar(&cfg.dsn, "db", getenvDefault("DATABASE_URL", os.Getenv("PG_DSN")), "Postgres DSN")
	flag.StringVar(&cfg.name, "name", getenvDefault("ADMIN_NAME", "Administrator"), "admin display name")
	flag.StringVar(&cfg.email, "email", os.Getenv("ADMIN_EMAIL"), "admin email")
	flag.StringVar(&cfg.password, "password", os.Getenv("ADMIN_PASSWORD"), "admin password")
	flag.Parse()
	return cfg
}

func main() {
	cfg := parseConfig()
	log, err := logger.New(true)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if cfg.dsn == "" {
		log.Fatal("PG_DSN or DATABASE_URL is required")
	}
	if cfg.email == "" || cfg.password == "" {
		log.Fatal("email and password are required")
	}

	db, err := sql.Open("pgx", cfg.dsn)
	if err != nil {
		log.Fatal("open db", zap.Error(err))
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// No sessions are issued here, so the signing key only has to be valid.
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		log.Fatal("generate secret", zap.Error(err))
	}
	issuer, err := auth.NewIssuer(secret, time.Minute)
	if err != nil {
		log.Fatal("issuer", zap.Error(err))
	}
	service, err := userapp.NewService(userrepo.NewUserRepository(db), usermemory.NewResetTokenStore(), issuer, nil,
		notify.NewLogMailer(log), "", userapp.WithLogger(log))
	if err != nil {
		log.Fatal("users service", zap.Error(err))
	}

	user, err := service.EnsureAdmin(ctx, cfg.name, cfg.email, cfg.password)
	if err != nil {
		log.Fatal("ensure admin", zap.Error(err))
	}
	log.Info("admin ready", zap.String("id", user.ID), zap.String("email", user.Email), zap.String("role", string(user.Role)))
}

func getenvDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
