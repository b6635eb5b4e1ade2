package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/mridulmalani2/wandernest/internal/guides"
	"github.com/mridulmalani2/wandernest/internal/http/handlers"
	imw "github.com/mridulmalani2/wandernest/internal/http/middleware"
	"github.com/mridulmalani2/wandernest/internal/matching"
	"github.com/mridulmalani2/wandernest/internal/platform/mailer"
	"github.com/mridulmalani2/wandernest/internal/platform/token"
	"github.com/mridulmalani2/wandernest/internal/repo/postgres"
	"github.com/mridulmalani2/wandernest/pkg/config"
	"github.com/mridulmalani2/wandernest/pkg/database"
	"github.com/mridulmalani2/wandernest/pkg/events"
	"github.com/mridulmalani2/wandernest/pkg/logger"
	mw "github.com/mridulmalani2/wandernest/pkg/middleware"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	rdb := newRedisClient(cfg.Redis)

	eventBus, err := events.NewNATSEventBus(cfg.NATS.URL)
	if err != nil {
		logger.Error("Failed to connect to NATS", "error", err)
		os.Exit(1)
	}
	defer eventBus.Close()

	bookingRepo := postgres.NewBookingRepo(pool)
	guideRepo := postgres.NewGuideRepo(pool)
	invitationRepo := postgres.NewInvitationRepo(pool)
	allocationRepo := postgres.NewAllocationRepo(pool)

	guidePool := guides.NewCachedPool(guideRepo, rdb, cfg.Matching.PoolCacheTTL)
	codec := token.NewCodec(cfg.Matching.TokenSecret, cfg.Matching.TokenTTL)
	notifier := mailer.NewNotifier(newMailService(cfg.Email))

	dispatcher := matching.NewDispatcher(
		guidePool, bookingRepo, invitationRepo, notifier, codec, eventBus,
		cfg.Matching.InviteLimit, cfg.Server.BaseURL,
	)
	resolver := matching.NewResolver(
		bookingRepo, guideRepo, invitationRepo, allocationRepo, codec, notifier, eventBus,
	)

	h := handlers.NewMatchingHandler(dispatcher, resolver)

	respondLimiter := imw.NewRateLimiter(rdb, imw.RateLimitConfig{
		Requests: 30,
		Window:   time.Minute,
	})

	r := chi.NewRouter()
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("matching"))
	r.Use(mw.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Post("/bookings/{id}/match", h.Dispatch)
	r.With(respondLimiter.Middleware()).Get("/respond", h.Respond)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Matching service listening", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		logger.Warn("Invalid REDIS_URL, running without cache", "error", err)
		return nil
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	return redis.NewClient(opts)
}

func newMailService(cfg config.EmailConfig) mailer.Service {
	if cfg.DevMode {
		return mailer.NewDevMailer()
	}
	if cfg.MailerSendKey != "" {
		return mailer.NewMailer(cfg.MailerSendKey, cfg.FromName, cfg.FromEmail)
	}
	return mailer.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPUseTLS)
}
