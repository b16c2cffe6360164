package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/mroshb/trivia_arena/internal/config"
	"github.com/mroshb/trivia_arena/internal/database"
	"github.com/mroshb/trivia_arena/internal/distributor"
	"github.com/mroshb/trivia_arena/internal/game"
	"github.com/mroshb/trivia_arena/internal/handlers"
	"github.com/mroshb/trivia_arena/internal/middleware"
	"github.com/mroshb/trivia_arena/internal/relay"
	"github.com/mroshb/trivia_arena/internal/repositories"
	"github.com/mroshb/trivia_arena/internal/transport/telegram"
	"github.com/mroshb/trivia_arena/internal/transport/ws"
	"github.com/mroshb/trivia_arena/pkg/logger"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment")
	}

	logger.Init()
	defer logger.Sync()

	logger.Info("Starting trivia server...")

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", err)
	}
	if err := cfg.ValidateProductionSecurity(); err != nil {
		logger.Fatal("Production security validation failed", err)
	}

	stores, err := openStores(cfg)
	if err != nil {
		logger.Fatal("Failed to open storage", err)
	}

	// Event distribution
	var (
		opts    []distributor.Option
		journal *relay.Journal
	)
	switch cfg.RelayDriver {
	case "amqp":
		r, err := relay.DialAMQP(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			logger.Fatal("Failed to connect to AMQP relay", err)
		}
		opts = append(opts, distributor.WithRelay(r))
	case "badger":
		journal, err = relay.OpenJournal(cfg.BadgerPath, cfg.RelayTTL)
		if err != nil {
			logger.Fatal("Failed to open event journal", err)
		}
		opts = append(opts, distributor.WithRelay(journal))
	}

	hub := ws.NewHub()
	opts = append(opts, distributor.WithSinks(hub))
	var spectator *telegram.Spectator
	if cfg.TelegramEnabled() {
		spectator, err = telegram.Connect(cfg.TelegramBotToken, cfg.TelegramChatID, cfg.AppEnv == "development")
		if err != nil {
			logger.Warn("Telegram spectator feed disabled", "error", err)
			spectator = nil
		} else {
			opts = append(opts, distributor.WithSinks(spectator))
		}
	}
	dist := distributor.New(cfg.SinkTimeout, cfg.DedupWindow, opts...)

	// Game services
	orch := game.NewOrchestrator(stores, dist, game.OrchestratorConfig{
		InterQuestionDelay: cfg.InterQuestionDelay,
		TimeUnit:           time.Second,
	})
	rooms := game.NewRoomService(stores, orch, dist, game.RoomDefaults{
		TimerSeconds: cfg.DefaultTimerSeconds,
		MaxPlayers:   cfg.DefaultMaxPlayers,
	})
	answers := game.NewAnswerService(stores, orch, dist, cfg.EarlyEndOnAllAnswered)

	// HTTP
	limiter := middleware.NewRateLimiter(cfg.RateLimitPerPlayer, cfg.RateLimitPerIP, cfg.RateLimitWindow)
	defer limiter.Stop()

	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	deps := handlers.RouterDeps{
		Rooms: handlers.NewRoomHandler(rooms, answers, limiter, cfg.JWTSecret, cfg.TicketTTL),
		Websocket: ws.NewHandler(hub, rooms, cfg.JWTSecret, ws.Options{
			OriginPatterns: cfg.OriginPatterns(),
			PingInterval:   cfg.WSPingInterval,
			SendBuffer:     cfg.WSSendBuffer,
		}),
		Limiter: limiter,
	}
	if journal != nil {
		deps.Events = handlers.NewEventHandler(journal)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           handlers.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if spectator != nil {
		go spectator.Run(ctx)
	}
	go func() {
		if err := dist.Run(ctx); err != nil {
			logger.Error("Relay consumer stopped", "error", err)
		}
	}()

	go func() {
		logger.Info("Server listening", "addr", srv.Addr, "env", cfg.AppEnv, "storage", cfg.StorageDriver, "relay", cfg.RelayDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown failed", "error", err)
	}
	hub.CloseAll()
	orch.Shutdown()
	if err := dist.Close(); err != nil {
		logger.Error("Failed to close relay", "error", err)
	}
	logger.Info("Server stopped")
}

func openStores(cfg *config.Config) (game.Stores, error) {
	if cfg.StorageDriver == "memory" {
		logger.Warn("Using in-memory storage, state is lost on restart")
		store := repositories.NewMemoryStore()
		return game.Stores{Rooms: store, Players: store, Questions: store, Answers: store, Categories: store}, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return game.Stores{}, err
	}
	if err := database.AutoMigrate(db); err != nil {
		return game.Stores{}, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := database.SeedQuestions(ctx, db); err != nil {
		logger.Warn("Failed to seed questions", "error", err)
	}

	return game.Stores{
		Rooms:      repositories.NewRoomRepository(db),
		Players:    repositories.NewPlayerRepository(db),
		Questions:  repositories.NewQuestionRepository(db),
		Answers:    repositories.NewAnswerRepository(db),
		Categories: repositories.NewCategoryRepository(db),
	}, nil
}
