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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"chat-app/internal/auth"
	"chat-app/internal/config"
	"chat-app/internal/db"
	"chat-app/internal/handlers"
	"chat-app/internal/middleware"
	"chat-app/internal/observability"
	"chat-app/internal/rabbitmq"
	"chat-app/internal/repositories"
	"chat-app/internal/telemetry"
	"chat-app/internal/uploads"
	"chat-app/internal/ws"
)

const maxBodyBytes = 4 << 20 // image payloads arrive base64-encoded in JSON

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("zap.NewProduction: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	cfg, err := config.Load()
	if err != nil {
		sugar.Fatalf("cannot parse config: %v", err)
	}

	ctx := context.Background()

	shutdownTracing, err := telemetry.SetupTracing(ctx, cfg.OTLPEndpoint, cfg.Environment)
	if err != nil {
		sugar.Fatalf("cannot set up tracing: %v", err)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			sugar.Warnw("tracing shutdown failed", "error", err)
		}
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		sugar.Fatalf("cannot connect to db: %v", err)
	}
	defer database.Close()

	publisher := rabbitmq.NewPublisher(sugar, cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	observability.SetPublisher(publisher)

	audit := telemetry.NewAuditEmitter(publisher, sugar, "audit.chat", "chat-app", cfg.Environment)

	uploader, err := uploads.New(ctx, uploads.Config{
		Endpoint:  cfg.S3Endpoint,
		Region:    cfg.S3Region,
		Bucket:    cfg.S3Bucket,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		PublicURL: cfg.S3PublicURL,
	})
	if err != nil {
		sugar.Fatalf("cannot set up uploads: %v", err)
	}

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	tokens := auth.NewTokenService(cfg.JWTSecret)

	registry := ws.NewRegistry(sugar)
	wsHandler := ws.NewHandler(registry, tokens, sugar)

	authHandler := handlers.NewAuthHandler(userRepo, tokens, uploader, audit, sugar)
	messageHandler := handlers.NewMessageHandler(userRepo, messageRepo, uploader, registry, audit, sugar)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("chat-app"))
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
		c.Next()
	})

	authRequired := middleware.Auth(tokens, userRepo)

	router.GET("/api/status", func(c *gin.Context) {
		c.String(http.StatusOK, "Server is live")
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRoutes := router.Group("/api/auth")
	{
		authRoutes.POST("/signup", authHandler.Signup)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.GET("/check", authRequired, authHandler.Check)
		authRoutes.PUT("/update-profile", authRequired, authHandler.UpdateProfile)
	}

	messageRoutes := router.Group("/api/messages", authRequired)
	{
		messageRoutes.GET("/users", messageHandler.ListUsers)
		messageRoutes.GET("/:id", messageHandler.GetConversation)
		messageRoutes.PUT("/mark/:id", messageHandler.MarkSeen)
		messageRoutes.POST("/send/:id", messageHandler.Send)
	}

	router.GET("/ws", wsHandler.Handle)

	handlers.RegisterDebugRoutes(router, audit, cfg.DebugRoutes)

	server := &http.Server{
		Addr:    cfg.Host + ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		sugar.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			sugar.Errorw("server shutdown failed", "error", err)
		}
	}()

	sugar.Infow("starting HTTP server", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Fatalf("server error: %v", err)
	}
}
