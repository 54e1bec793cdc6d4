package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"confreg/internal/audit"
	"confreg/internal/auth"
	"confreg/internal/eventing"
	eventingrepo "confreg/internal/eventing/infrastructure/postgres"
	fees "confreg/internal/fees/domain"
	"confreg/internal/fees/infrastructure/pricing"
	"confreg/internal/notify"
	"confreg/internal/observability/metrics"
	"confreg/internal/platform/config"
	"confreg/internal/platform/httpx"
	"confreg/internal/platform/logger"
	platformredis "confreg/internal/platform/redis"
	"confreg/internal/ratelimit"
	regapp "confreg/internal/registration/application"
	regrepo "confreg/internal/registration/infrastructure/postgres"
	reginterfaces "confreg/internal/registration/interfaces"
	"confreg/internal/storage"
	userapp "confreg/internal/users/application"
	users "confreg/internal/users/domain"
	usermemory "confreg/internal/users/infrastructure/memory"
	userrepo "confreg/internal/users/infrastructure/postgres"
	userredis "confreg/internal/users/infrastructure/redis"
	userhttp "confreg/internal/users/interfaces/http"
)

const (
	shutdownTimeout  = 15 * time.Second
	outboxPollPeriod = 2 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config error", zap.Error(err))
	}
	log, err := logger.New(cfg.IsDevelopment())
	if err != nil {
		zap.NewExample().Fatal("logger error", zap.Error(err))
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	metrics.Init(db, log)

	rdb, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	var (
		revoked     auth.RevocationList
		resetTokens users.ResetTokenStore
		limitStore  ratelimit.Store
	)
	if rdb != nil {
		defer rdb.Close()
		revoked = auth.NewRedisRevocationList(rdb.Client)
		resetTokens = userredis.NewResetTokenStore(rdb.Client)
		limitStore = ratelimit.NewRedisStore(rdb.Client)
		log.Info("redis enabled")
	} else {
		revoked = auth.NewMemoryRevocationList()
		resetTokens = usermemory.NewResetTokenStore()
		limitStore = ratelimit.NewMemoryStore()
		log.Info("redis disabled, using in-process stores")
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}

	table, err := pricing.LoadRateTable(cfg.FeesConfig)
	if err != nil {
		return err
	}
	engine, err := fees.NewEngine(table)
	if err != nil {
		return err
	}
	log.Info("fee table loaded",
		zap.String("source", cfg.FeesConfig),
		zap.Time("early_bird_deadline", table.EarlyBirdDeadline()),
		zap.String("fx_rate", table.FXRate().String()),
	)

	mailer, err := newMailer(cfg, log)
	if err != nil {
		return err
	}
	mailNotifier, err := notify.NewMailNotifier(mailer)
	if err != nil {
		return err
	}
	registry := eventing.NewRegistry()
	if err := registry.Subscribe(regapp.EventRegistrationSubmitted, "mail", regapp.NoticeHandler(mailNotifier)); err != nil {
		return err
	}
	if cfg.RegistrationWebhookURL != "" {
		webhook := notify.NewWebhookNotifier(cfg.RegistrationWebhookURL)
		if err := registry.Subscribe(regapp.EventRegistrationSubmitted, "webhook", regapp.NoticeHandler(webhook)); err != nil {
			return err
		}
	}
	outbox := eventingrepo.NewOutboxStore(db)
	dispatcher, err := eventing.NewDispatcher(outbox, registry, eventingrepo.NewProcessedStore(db), eventing.WithLogger(log))
	if err != nil {
		return err
	}
	publisher, err := eventing.NewPublisher(outbox, dispatcher)
	if err != nil {
		return err
	}

	auditRepo := audit.NewRepository(db)

	issuer, err := auth.NewIssuer([]byte(cfg.JWTSecret), cfg.SessionTTL)
	if err != nil {
		return err
	}
	userService, err := userapp.NewService(userrepo.NewUserRepository(db), resetTokens, issuer, revoked, mailer, cfg.BaseURL,
		userapp.WithLogger(log))
	if err != nil {
		return err
	}
	userHandler, err := userhttp.NewHandler(userService, auditRepo, log, cfg.CookieSecure)
	if err != nil {
		return err
	}

	registrationService, err := regapp.NewService(regrepo.NewRegistrationRepository(db), engine, store, reginterfaces.BuildReceiptPDF,
		regapp.WithPublisher(publisher),
		regapp.WithLogger(log),
		regapp.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return err
	}
	registrationHandler, err := reginterfaces.NewRegistrationHandler(registrationService, auditRepo, log)
	if err != nil {
		return err
	}

	policy := auth.NewDefaultPolicy([]string{"/", "/healthz", "/metrics"}, []string{"/auth/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy, revoked)
	limiter := ratelimit.NewMiddleware(limitStore, cfg.RateLimitMax, cfg.RateLimitWindow, log, "/healthz", "/metrics")

	mux := http.NewServeMux()
	mux.Handle("/auth/", userHandler)
	mux.Handle("/admin/login", userHandler)
	mux.Handle("/admin/logout", userHandler)
	mux.Handle("/register/", registrationHandler)
	mux.Handle("/user/", registrationHandler)
	mux.Handle("/admin/registrations", registrationHandler)
	mux.Handle("/admin/registrations/", registrationHandler)
	mux.Handle("/admin/dashboard", registrationHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		if rdb != nil {
			if err := rdb.Health(r.Context()); err != nil {
				httpx.WriteError(w, http.StatusServiceUnavailable, "redis unavailable")
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			httpx.WriteError(w, http.StatusNotFound, "not found")
			return
		}
		httpx.WriteJSON(w, http.StatusOK, map[string]any{
			"service":             "confreg",
			"early_bird_deadline": table.EarlyBirdDeadline(),
			"phase":               engine.ComputePhase(time.Now()),
		})
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(limiter.Wrap(authMiddleware.Wrap(mux)), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return dispatcher.Run(gctx, outboxPollPeriod)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newStore(cfg config.Config) (storage.Store, error) {
	if cfg.StorageBackend == "memory" {
		return storage.NewMemoryStore(), nil
	}
	return storage.NewLocalStore(cfg.StorageRoot)
}

func newMailer(cfg config.Config, log *zap.Logger) (notify.Mailer, error) {
	if cfg.SMTPAddr == "" {
		return notify.NewLogMailer(log), nil
	}
	return notify.NewSMTPMailer(cfg.SMTPAddr, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
}

func loggingMiddleware(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		log.Info("http",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", resp.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
