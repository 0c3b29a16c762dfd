package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"church-portal/internal/celebrations"
	"church-portal/internal/chat"
	"church-portal/internal/config"
	"church-portal/internal/db"
	"church-portal/internal/digest"
	"church-portal/internal/handlers"
	"church-portal/internal/logging"
	"church-portal/internal/middleware"
	"church-portal/internal/observability"
	"church-portal/internal/rabbitmq"
	"church-portal/internal/realtime"
	"church-portal/internal/repositories"
	"church-portal/internal/telemetry"
	"church-portal/internal/ws"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logging.Setup(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	week, err := cfg.WeekConfig()
	if err != nil {
		return err
	}

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("tracing shutdown", logging.Err(err))
		}
	}()

	database, err := db.Connect(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, log)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	log.Info("event publisher ready",
		slog.String("mode", rabbitmq.PublisherMode(publisher)),
		slog.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)),
	)
	audit := telemetry.NewAuditEmitter(publisher, cfg.AMQP.AuditRoutingKey, cfg.Tracing.ServiceName, cfg.Env, log)

	hub := ws.NewHub(log)
	var broadcast chat.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		client, err := db.ConnectRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return err
		}
		defer client.Close()

		broker := realtime.NewBroker(client, cfg.Redis.Channel, log)
		broadcast = broker
		go func() {
			if err := broker.Run(ctx, hub); err != nil {
				log.Error("realtime broker stopped", logging.Err(err))
			}
		}()
	}

	chats := chat.NewService(repositories.NewSessionRepo(database), broadcast, audit, log)

	var digests *digest.Service
	if cfg.Mongo.Enabled {
		client, err := db.ConnectMongo(ctx, cfg.Mongo.URI)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())

		directory := repositories.NewDirectoryRepo(client, cfg.Mongo.Database)
		if digests, err = digest.NewService(directory, directory, week, nil, log); err != nil {
			return err
		}
	} else {
		log.Info("member directory disabled, celebration routes not mounted")
	}

	router := newRouter(cfg, log, routes{
		chats:    handlers.NewChatHandler(chats),
		streams:  ws.NewStreamHandler(hub, chats, log),
		digests:  digests,
		week:     week,
		audit:    audit,
		database: database,
	})

	srv := &http.Server{Addr: ":" + cfg.HTTP.Port, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type routes struct {
	chats    *handlers.ChatHandler
	streams  *ws.StreamHandler
	digests  *digest.Service
	week     celebrations.WeekConfig
	audit    *telemetry.AuditEmitter
	database handlers.Pinger
}

func newRouter(cfg *config.Config, log *slog.Logger, r routes) *gin.Engine {
	if cfg.Env != "local" && cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	router.Use(middleware.RequestID(log))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", handlers.Health(r.database))
	handlers.RegisterDebugRoutes(router, r.audit, cfg.Debug)

	visitor := router.Group("/chat/sessions")
	visitor.POST("", r.chats.StartSession)
	visitor.GET("/:id", r.chats.GetSession)
	visitor.GET("/:id/messages", r.chats.ListMessages)
	visitor.POST("/:id/messages", r.chats.PostVisitorMessage)
	visitor.POST("/:id/read", r.chats.MarkVisitorRead)
	visitor.POST("/:id/close", r.chats.CloseSession)

	adminAuth := middleware.AdminAuth(cfg.Admins)
	admin := router.Group("/admin", adminAuth)
	admin.GET("/chat/sessions", r.chats.ListQueue)
	admin.POST("/chat/sessions/:id/join", r.chats.JoinSession)
	admin.POST("/chat/sessions/:id/messages", r.chats.PostAdminMessage)
	admin.POST("/chat/sessions/:id/read", r.chats.MarkAdminRead)
	admin.POST("/chat/sessions/:id/close", r.chats.CloseSession)

	if r.digests != nil {
		celebrationHandler := handlers.NewCelebrationHandler(r.digests, r.week)
		admin.GET("/celebrations", celebrationHandler.Weekly)
		admin.GET("/celebrations/digest", celebrationHandler.Digest)
	}

	router.GET("/ws/admin/sessions", adminAuth, r.streams.HandleQueue)
	router.GET("/ws/chat/sessions/:id", r.streams.HandleSession)

	return router
}
