package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"agrosense/internal/alert"
	"agrosense/internal/config"
	"agrosense/internal/httpapi"
	"agrosense/internal/ingest"
	"agrosense/internal/irrigation"
	"agrosense/internal/mqtt"
	"agrosense/internal/notify"
	"agrosense/internal/store"
	"agrosense/internal/weather"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)

	db, err := store.OpenPostgres(cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.DBName, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.SSLMode)
	if err != nil {
		slog.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	repo, err := store.New(db)
	if err != nil {
		slog.Error("database migration failed", "error", err)
		os.Exit(1)
	}

	if cfg.SeedSerial != "" {
		if _, err := repo.ProvisionProbe(context.Background(), cfg.SeedSerial, nil); err != nil {
			slog.Error("probe provisioning failed", "serial", cfg.SeedSerial, "error", err)
			os.Exit(1)
		}
		slog.Info("probe provisioned", "serial", cfg.SeedSerial)
	}

	notifier := notify.NewSMTPNotifier(notify.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.FromEmail,
		FromName: cfg.FromName,
		To:       cfg.AlertRecipients,
	})

	var throttle alert.ThrottleStore = alert.NewMemoryThrottle(cfg.AlertCooldown)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		throttle = alert.NewRedisThrottle(rdb, "", cfg.AlertCooldown)
	}

	alerts := alert.NewService(throttle, notifier, cfg.AlertCooldown)
	ingestSvc := ingest.NewService(repo, alerts)

	weatherClient := weather.New(cfg.OpenWeatherAPIKey)
	weatherCache := weather.NewCache(cfg.WeatherCacheTTL)
	predictor := irrigation.NewHTTPPredictor(cfg.PredictorURL)
	irrigationSvc := irrigation.NewService(repo, weatherClient, weatherCache, predictor, cfg.DefaultCity)

	srv := httpapi.NewServer(ingestSvc, irrigationSvc, alerts, repo)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		srv.RegisterRoutes(r)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MQTTBrokerURL != "" {
		mq, err := mqtt.Connect(cfg.MQTTBrokerURL, cfg.MQTTClientID)
		if err != nil {
			slog.Error("mqtt connection failed", "error", err)
			os.Exit(1)
		}
		defer mq.Close()

		consumer := &mqtt.Consumer{Client: mq, Ingest: ingestSvc, TopicPrefix: cfg.MQTTTopicPrefix}
		if err := consumer.Start(ctx); err != nil {
			slog.Error("mqtt subscribe failed", "error", err)
			os.Exit(1)
		}
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("agrosense started", "port", cfg.Port)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	slog.Info("shutting down")
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
