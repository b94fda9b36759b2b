package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"mestre7c-backend/internal/config"
	"mestre7c-backend/internal/database"
	"mestre7c-backend/internal/handlers"
	"mestre7c-backend/internal/logger"
	"mestre7c-backend/internal/metrics"
	"mestre7c-backend/internal/middleware"
	"mestre7c-backend/internal/router"
	"mestre7c-backend/internal/services"
	"mestre7c-backend/internal/session"
	"mestre7c-backend/internal/websocket"
	"mestre7c-backend/internal/worker"
)

const sessionTokenTTL = 24 * time.Hour

func main() {
	// ──── Step 1: Load Environment Variables ────
	cfg := config.Load()

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.IsDevelopment(),
	})
	log.Info().Str("env", cfg.Env).Msg("starting Mestre Virtual 7 Cordas backend")

	// ──── Step 2: Initialize Redis Clients (optional) ────
	var (
		credentials services.CredentialStore = services.NewMemoryCredentialStore()
		pubsub      *redis.Client
	)
	if cfg.RedisURL != "" {
		redisClients, err := database.NewRedisClients(context.Background(), cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisClients.Close()

		credentials = services.NewRedisCredentialStore(redisClients.Store, cfg.CredentialSecret, cfg.SessionIdleTimeout)
		pubsub = redisClients.PubSub
		log.Info().Msg("redis connected, credentials sealed in redis")
	} else {
		log.Info().Msg("no REDIS_URL, credentials kept in memory")
	}

	// ──── Step 3: Initialize Metrics ────
	m := metrics.New()

	// ──── Step 4: Initialize Gemini Pipeline ────
	generator := services.NewGeminiGenerator(cfg.GeminiModel, logger.Component(log, "gemini"))
	insight := services.NewInsightService(generator, services.InsightOptions{
		Window:      cfg.HistoryWindow,
		Temperature: cfg.GeminiTemperature,
		TopP:        cfg.GeminiTopP,
		Timeout:     cfg.GeminiTimeout,
	}, m, logger.Component(log, "insight"))
	if cfg.GeminiAPIKey == "" {
		log.Warn().Msg("GEMINI_API_KEY not set, sessions must link their own key")
	}
	log.Info().Str("model", cfg.GeminiModel).Int("history_window", insight.Window()).Msg("gemini pipeline initialized")

	// ──── Step 5: Start WebSocket Hub and Sessions ────
	jwtAuth := middleware.NewJWTAuth(cfg.SessionSecret, sessionTokenTTL)
	wsHub := websocket.NewHub(pubsub, jwtAuth, logger.Component(log, "websocket"))

	sessions := session.NewManager(insight, credentials, wsHub, jwtAuth, m, session.Options{
		DefaultAPIKey: cfg.GeminiAPIKey,
		Window:        insight.Window(),
		Lang:          services.RecognitionLang,
		TokenTTL:      sessionTokenTTL,
	}, logger.Component(log, "session"))
	wsHub.OnMessage(sessions.HandleClientMessage)

	janitor := worker.NewJanitor(sessions, cfg.SessionIdleTimeout, 0, logger.Component(log, "janitor"))
	janitor.Start()

	// ──── Step 6: Start HTTP Server ────
	r := router.New(
		log,
		jwtAuth,
		handlers.NewAppHandler(services.AppInfo(cfg.WhatsAppNumber)),
		handlers.NewSessionHandler(sessions),
		handlers.NewCredentialHandler(sessions),
		handlers.NewConversationHandler(sessions),
		handlers.NewSpeechHandler(sessions),
		wsHub,
		m.Handler(),
		cfg.TurnsPerMinute,
		cfg.FrontendURL,
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GeminiTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		janitor.Stop()
		r.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Info().
		Str("api", fmt.Sprintf("http://localhost:%s/api/v1", cfg.Port)).
		Str("ws", fmt.Sprintf("ws://localhost:%s/api/v1/ws", cfg.Port)).
		Msg("backend ready")

	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server error")
	}
}
