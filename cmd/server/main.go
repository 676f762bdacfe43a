// Meme Coin Sphinx - riddle game server
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/memecoinsphinx/sphinx/internal/agent"
	"github.com/memecoinsphinx/sphinx/internal/api"
	"github.com/memecoinsphinx/sphinx/internal/config"
	"github.com/memecoinsphinx/sphinx/internal/events"
	"github.com/memecoinsphinx/sphinx/internal/game"
	"github.com/memecoinsphinx/sphinx/internal/identity"
	"github.com/memecoinsphinx/sphinx/internal/messenger"
	"github.com/memecoinsphinx/sphinx/internal/middleware"
	"github.com/memecoinsphinx/sphinx/internal/reward"
	"github.com/memecoinsphinx/sphinx/internal/riddle"
	"github.com/memecoinsphinx/sphinx/internal/session"
	"github.com/memecoinsphinx/sphinx/internal/telegram"
	"github.com/memecoinsphinx/sphinx/internal/webchat"
	"github.com/memecoinsphinx/sphinx/web"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment(),
		"telegram", cfg.Telegram.Enabled, "webchat", cfg.WebChat.Enabled)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Riddles.
	catalog, err := loadCatalog(cfg.Catalog)
	if err != nil {
		slog.Error("Failed to load riddle catalog", "error", err, "source", cfg.Catalog.Source)
		os.Exit(1)
	}
	slog.Info("Riddle catalog loaded", "source", cfg.Catalog.Source, "subjects", catalog.Len())

	riddles := riddle.NewDatabase(catalog, nil)
	store := session.NewStore(riddles, session.Options{
		MaxAttempts: cfg.Game.MaxAttempts,
		Logger:      logger,
	})

	if cfg.Game.SessionTTL > 0 {
		session.StartJanitor(ctx, store, cfg.Game.SessionTTL, session.DefaultJanitorInterval, func(userID string) {
			slog.Debug("Session evicted", "user_id", userID)
		})
	}

	// Responder.
	responder, err := newResponder(ctx, cfg.Responder, logger)
	if err != nil {
		slog.Error("Failed to initialize responder", "error", err, "kind", cfg.Responder.Kind)
		os.Exit(1)
	}

	conversationLogger, err := agent.NewConversationLogger(agent.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := conversationLogger.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	svc := agent.NewService(responder, cfg.Responder.Timeout, conversationLogger, logger)
	defer svc.Close()
	slog.Info("Responder initialized", "kind", cfg.Responder.Kind)

	// Rewards.
	dispatcher, closeDispatcher, err := newDispatcher(ctx, cfg.Reward, logger)
	if err != nil {
		slog.Error("Failed to initialize reward dispatcher", "error", err, "mode", cfg.Reward.Mode)
		os.Exit(1)
	}
	defer closeDispatcher()
	slog.Info("Reward dispatcher initialized", "mode", cfg.Reward.Mode)

	// Outcome events.
	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Events.RabbitMQURL != "" {
		amqpPublisher, err := events.NewAMQPPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange, logger)
		if err != nil {
			slog.Warn("Failed to connect to RabbitMQ, outcome events disabled", "error", err)
		} else {
			publisher = amqpPublisher
			slog.Info("Publishing outcome events", "exchange", cfg.Events.Exchange)
		}
	}
	defer func() {
		if closeErr := publisher.Close(); closeErr != nil {
			slog.Error("Failed to close event publisher", "error", closeErr)
		}
	}()

	orchestrator := game.New(store, svc, dispatcher, game.Options{
		Cooldown:  cfg.Game.Cooldown,
		Publisher: publisher,
		Logger:    logger,
	})
	images := messenger.ImageSet{Dir: cfg.ImageDir}

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(middleware.CORS(allowedOrigins(cfg)))
	r.Use(identity.Middleware(cfg.IsDevelopment()))

	sm := webchat.NewSessionManager("/images/")
	apiHandler := api.NewHandler(store, orchestrator, api.Settings{
		MaxAttempts:     cfg.Game.MaxAttempts,
		Cooldown:        cfg.Game.Cooldown,
		TelegramEnabled: cfg.Telegram.Enabled,
		WebChatEnabled:  cfg.WebChat.Enabled,
	}, sm.Len)
	apiHandler.RegisterRoutes(r)
	api.RegisterImages(r, images.Dir)

	if cfg.WebChat.Enabled {
		limiter := webchat.NewRateLimiter(cfg.WebChat.RequestsPerWindow, cfg.WebChat.WindowDuration)
		defer limiter.Stop()
		wsHandler := webchat.NewHandler(orchestrator, sm, limiter, allowedOrigins(cfg), cfg.IsDevelopment())
		r.Get("/ws/play", wsHandler.ServeHTTP)
	}

	// Serve embedded chat page (SPA catch-all).
	r.Handle("/*", web.ChatPage())

	// WebSocket connections are long-lived, so no WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	var wg sync.WaitGroup

	if cfg.Telegram.Enabled {
		botAPI, err := telegram.Dial(cfg.Telegram.Token)
		if err != nil {
			slog.Error("Failed to initialize Telegram bot", "error", err)
			os.Exit(1)
		}
		slog.Info("Telegram bot authorized", "username", botAPI.Self.UserName)

		bot := telegram.New(botAPI, orchestrator, images, telegram.Options{Logger: logger})
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(ctx); err != nil {
				slog.Error("Telegram bot stopped", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sm.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	wg.Wait()

	slog.Info("Server stopped successfully")
}

func loadCatalog(cfg config.CatalogConfig) (*riddle.Catalog, error) {
	switch cfg.Source {
	case "file":
		return riddle.LoadFile(cfg.Path)
	case "supabase":
		return riddle.LoadSupabase(cfg.SupabaseURL, cfg.SupabaseKey, cfg.SupabaseTable)
	default:
		return riddle.DefaultCatalog(), nil
	}
}

func newResponder(ctx context.Context, cfg config.ResponderConfig, logger *slog.Logger) (agent.Responder, error) {
	switch cfg.Kind {
	case "gemini":
		acfg := agent.DefaultConfig()
		acfg.Provider = cfg.Kind
		acfg.APIKey = cfg.APIKey
		acfg.ModelName = cfg.ModelName
		acfg.Temperature = cfg.Temperature
		acfg.Timeout = cfg.Timeout
		return agent.NewGeminiResponder(ctx, acfg, logger)
	case "grpc":
		slog.Info("Connecting to agent service via gRPC", "address", cfg.AgentAddr)
		return agent.NewGrpcResponder(cfg.AgentAddr, logger)
	default:
		return agent.NewScriptedResponder(nil), nil
	}
}

func newDispatcher(ctx context.Context, cfg config.RewardConfig, logger *slog.Logger) (reward.Dispatcher, func(), error) {
	switch cfg.Mode {
	case "chain":
		d, err := reward.NewChainDispatcher(ctx, reward.ChainConfig{
			RPCURL:         cfg.RPCURL,
			PrivateKey:     cfg.PrivateKey,
			ManagerAddress: cfg.ManagerAddress,
			ReceiptTimeout: cfg.ReceiptTimeout,
		}, logger)
		if err != nil {
			return nil, nil, err
		}
		return d, d.Close, nil
	case "http":
		return reward.NewHTTPDispatcher(cfg.ServerURL, cfg.Amount, nil, logger), func() {}, nil
	case "dryrun":
		return reward.NewDryRunDispatcher(logger), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown reward mode %q", cfg.Mode)
	}
}

// allowedOrigins lists the origins allowed to call the API and open chat
// sockets. Development accepts any origin.
func allowedOrigins(cfg *config.Config) []string {
	if cfg.IsDevelopment() {
		return []string{"*"}
	}
	return middleware.Origins(cfg.FrontendURL)
}
