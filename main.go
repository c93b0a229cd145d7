package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-chat/internal/config"
	"social-chat/internal/db"
	"social-chat/internal/fanout"
	grpcserver "social-chat/internal/grpc"
	"social-chat/internal/handlers"
	"social-chat/internal/middleware"
	"social-chat/internal/observability"
	"social-chat/internal/rabbitmq"
	"social-chat/internal/repositories"
	"social-chat/internal/services"
	"social-chat/internal/telemetry"
	"social-chat/internal/ws"
)

type storage struct {
	chats    repositories.ChatRepository
	messages repositories.DirectMessageRepository
	users    repositories.UserDirectory
	pinger   interface {
		PingContext(ctx context.Context) error
	}
	close func() error
}

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("service stopped", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Environment)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
		shutdownTracing = func(context.Context) error { return nil }
	}

	store, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	auditor := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Environment)
	logger.Info("event publisher ready", "mode", rabbitmq.PublisherMode(publisher), "noop_reason", rabbitmq.PublisherNoopReason(publisher))

	hub := ws.NewHub()
	broker, closeBroker, err := openBroker(ctx, cfg, hub, logger)
	if err != nil {
		return err
	}
	defer closeBroker()
	gateway := fanout.NewGateway(broker, cfg.FanoutBuffer, logger)
	gateway.Start()

	chatService := services.NewChatService(store.chats, store.users, gateway, auditor, logger)
	dmService := services.NewDirectMessageService(store.messages, store.users, auditor, cfg.RecentDMWindow)

	router := gin.New()
	router.Use(gin.Recovery(), gin.Logger())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", observability.MetricsHandler())
	router.GET("/healthz", handlers.Health(store.pinger))
	handlers.RegisterDebugRoutes(router, auditor, cfg.DebugRoutes)

	verifier := middleware.NewTokenVerifier(cfg.JWTSecret)
	api := router.Group("/", middleware.AuthMiddleware(verifier))
	handlers.NewChatHandler(chatService).Register(api)
	handlers.NewDirectMessageHandler(dmService).Register(api)

	chatWS := ws.NewChatWebSocketHandler(hub, chatService)
	router.GET("/ws/chats/:chat_id", middleware.WSAuthMiddleware(verifier), chatWS.Handle)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcSrv := grpcserver.NewServer(store.pinger, logger)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return err
	}
	go grpcSrv.Watch(ctx, 15*time.Second)

	errCh := make(chan error, 2)
	go func() {
		if err := grpcSrv.Serve(lis); err != nil {
			errCh <- err
		}
	}()
	go func() {
		logger.Info("http listening", "port", cfg.Port, "storage", cfg.StorageDriver, "broker", cfg.FanoutBroker)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case serveErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "err", err)
	}
	grpcSrv.Stop()
	if err := gateway.Close(shutdownCtx); err != nil {
		logger.Warn("fanout shutdown", "err", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", "err", err)
	}
	return serveErr
}

func openStorage(ctx context.Context, cfg *config.Config) (storage, error) {
	if cfg.StorageDriver == config.StorageMemory {
		return storage{
			chats:    repositories.NewMemoryChatRepo(nil),
			messages: repositories.NewMemoryDirectMessageRepo(nil),
			users:    repositories.NewMemoryUserDirectory(),
			close:    func() error { return nil },
		}, nil
	}

	database, err := db.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return storage{}, err
	}
	return storage{
		chats:    repositories.NewChatRepo(database),
		messages: repositories.NewDirectMessageRepo(database),
		users:    repositories.NewUserRepo(database),
		pinger:   database,
		close:    database.Close,
	}, nil
}

// openBroker picks in-process delivery or Redis pub/sub. With Redis every
// instance runs a relay, so a subscriber on any instance receives the event.
func openBroker(ctx context.Context, cfg *config.Config, hub *ws.Hub, logger *slog.Logger) (fanout.Broker, func() error, error) {
	if cfg.FanoutBroker != config.BrokerRedis {
		return fanout.NewLocalBroker(hub), func() error { return nil }, nil
	}

	client, err := fanout.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	relay := fanout.NewRedisRelay(client, cfg.FanoutChannelPrefix, hub, logger)
	go func() {
		if err := relay.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("redis relay stopped", "err", err)
		}
	}()
	return fanout.NewRedisBroker(client, cfg.FanoutChannelPrefix), client.Close, nil
}
