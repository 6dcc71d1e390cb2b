package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"example.com/tierrun/internal/api"
	"example.com/tierrun/internal/auth"
	"example.com/tierrun/internal/config"
	"example.com/tierrun/internal/domain"
	"example.com/tierrun/internal/notify"
	"example.com/tierrun/internal/outbox"
	"example.com/tierrun/internal/persistence/store"
	httptransport "example.com/tierrun/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, err := store.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer backend.Close()

	var dispatcher *outbox.Dispatcher
	if backend.Pool != nil && cfg.OutboxEnabled {
		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
		dispatcher = outbox.NewDispatcher(backend.Pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)
		go dispatcher.Start(ctx)
	}

	hub := notify.NewHub(notify.WithOriginCheck(originAllowed(cfg.CORSAllowedOrigins)))
	notifiers := notify.Fanout{hub, notify.NewLogger(nil)}
	if cfg.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(cfg.WebhookURL, cfg.WebhookToken, cfg.WebhookTimeout))
	}
	service := domain.NewService(backend.Repository,
		domain.WithNotifier(notifiers),
		domain.WithLogger(log.New(os.Stderr, "[domain] ", log.LstdFlags)),
	)
	handler := api.NewHandler(service, api.WithFeeds(hub))

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer})
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware.Handler)
	r.Use(authMiddleware.Wrap)

	r.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(r)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, r)

	log.Printf("tierrun api listening on %s (store=%s)", cfg.HTTPAddress, cfg.StoreDriver)
	if err := server.Run(ctx); err != nil {
		log.Printf("server error: %v", err)
	}
	stop()

	if dispatcher != nil {
		dispatcher.Wait()
	}
}

// originAllowed mirrors the CORS allow list for websocket upgrades.
func originAllowed(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
