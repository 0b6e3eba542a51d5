package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/learnquest/backend/internal/attempts"
	"github.com/learnquest/backend/internal/config"
	"github.com/learnquest/backend/internal/database"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/middleware"
	"github.com/learnquest/backend/internal/notify"
	"github.com/learnquest/backend/internal/observability"
	"github.com/learnquest/backend/internal/scoring"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logg, err := logger.New(cfg.LogMode)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer logg.Sync()
	if !cfg.DotEnvLoaded {
		logg.Info("No .env file found, using environment variables")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing := observability.InitTracing(ctx, logg, cfg.OtelEnabled, "learnquest-backend")

	// Initialize database
	db, err := database.Connect(cfg)
	if err != nil {
		logg.Fatal("Failed to connect to database", "error", err)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		logg.Fatal("Failed to run migrations", "error", err)
	}

	// Notification sink
	var sink notify.Sink = notify.NewLogSink(logg)
	if cfg.RedisAddr != "" {
		rs, err := notify.NewRedisSink(ctx, cfg.RedisAddr, cfg.RedisChannel)
		if err != nil {
			logg.Warn("Redis unavailable, logging notifications instead", "error", err)
		} else {
			defer rs.Close()
			sink = rs
		}
	}
	dispatcher := notify.NewDispatcher(sink, logg, 3*time.Second)

	// Initialize services
	rewardsService := gamification.NewService(gamification.NewStore(db), logg, cfg.StreakLocation)
	attemptsService := attempts.NewService(
		attempts.NewStore(db),
		rewardsService,
		scoring.NewEvaluator(cfg.LenientTextMatch),
		dispatcher,
		logg,
	)

	attemptsHandler := attempts.NewHandler(attemptsService, logg)
	gamificationHandler := gamification.NewHandler(rewardsService, logg)

	// Setup router
	r := mux.NewRouter()
	r.Use(middleware.RequestLogger(logg))
	api := r.PathPrefix("/api/v1").Subrouter()

	// Protected routes
	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.Auth([]byte(cfg.JWTSecret)))
	attemptsHandler.Routes(protected)
	protected.HandleFunc("/me/progress", gamificationHandler.GetProgress).Methods("GET")
	protected.HandleFunc("/me/mastery", gamificationHandler.GetMastery).Methods("GET")

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           c.Handler(r),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logg.Info("Server starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Fatal("Server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logg.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logg.Error("HTTP shutdown failed", "error", err)
	}
	dispatcher.Wait()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logg.Error("Tracing shutdown failed", "error", err)
	}
}
