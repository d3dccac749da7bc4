package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/thraizz/crowd-server-go/internal/config"
	"github.com/thraizz/crowd-server-go/internal/game"
	"github.com/thraizz/crowd-server-go/internal/repository"
	"github.com/thraizz/crowd-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	// .env is optional; its values feed the CROWD_* overrides.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting crowd server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	if cfg.Auth.AdminPasswordHash == "" {
		logger.Warn("admin password not configured; admin RPC access disabled")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	opts, err := cfg.GameOptions()
	if err != nil {
		logger.Fatal("invalid game options", zap.Error(err))
	}

	engine := game.NewEngine(logger, opts)
	engine.SetMaxGames(cfg.Server.MaxSessions)

	if cfg.Database.Enabled {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if err := repository.EnsureSchema(ctx, db); err != nil {
			logger.Fatal("failed to prepare database schema", zap.Error(err))
		}

		catalog, err := repository.NewCardRepository(db).LoadCatalog(ctx)
		switch {
		case err != nil:
			logger.Warn("failed to load card catalog from database; using configured catalog", zap.Error(err))
		case catalog != nil:
			engine.SetCatalog(catalog)
			logger.Info("card catalog loaded from database", zap.Int("definitions", catalog.Len()))
		default:
			logger.Info("card table is empty; using configured catalog")
		}

		engine.SetSummaryStore(repository.NewSummaryRepository(db))

		stats := db.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	}

	if cfg.Replay.Enabled {
		engine.SetReplayRecorder(game.NewReplayRecorder(logger, cfg.Replay.Directory))
		logger.Info("replay recording enabled", zap.String("directory", cfg.Replay.Directory))
	}

	hub := server.NewHub(engine, logger)
	engine.SetNotificationHandler(hub.HandleNotification)
	go hub.Run(ctx)

	go func() {
		if runErr := engine.Run(ctx, cfg.Server.TickInterval); runErr != nil {
			logger.Error("engine tick loop stopped", zap.Error(runErr))
		}
	}()

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
			server.AdminInterceptor(cfg.Auth.AdminPasswordHash, logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)

	server.RegisterCrowdGameServer(grpcServer, server.NewGameServer(engine, version, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	go func() {
		if wsErr := server.StartWebSocketServer(ctx, cfg.Server.WebSocket, hub, logger); wsErr != nil {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("crowd server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Duration("tick_interval", cfg.Server.TickInterval),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	cancel()

	grpcServer.GracefulStop()

	// End what is still running so replays and summaries are written.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	for _, info := range engine.ListGames() {
		if _, err := engine.EndGame(shutdownCtx, info.GameID); err != nil {
			logger.Warn("failed to end game on shutdown", zap.String("game_id", info.GameID), zap.Error(err))
		}
	}

	logger.Info("crowd server stopped")
}

// initLogger initializes the zap logger based on configuration
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
