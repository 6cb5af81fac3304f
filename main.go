package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"presence-chat/internal/authclient"
	"presence-chat/internal/db"
	"presence-chat/internal/handlers"
	"presence-chat/internal/middleware"
	"presence-chat/internal/observability"
	"presence-chat/internal/rabbitmq"
	"presence-chat/internal/repositories"
	"presence-chat/internal/telemetry"
	"presence-chat/internal/ws"
)

func main() {
	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, "chat-service", getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""))
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	database, err := db.Connect()
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	amqpURL := getEnv("AMQP_URL", "")

	eventPublisher, err := observability.NewAMQPPublisher(amqpURL, getEnv("AMQP_EVENTS_EXCHANGE", "chat_events"))
	if err != nil {
		log.Printf("event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(eventPublisher)
		defer eventPublisher.Close()
	}

	auditPublisher := rabbitmq.NewPublisher(amqpURL, getEnv("AMQP_AUDIT_EXCHANGE", "chat_audit"))
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s", rabbitmq.PublisherMode(auditPublisher))

	audit := telemetry.NewAuditEmitter(auditPublisher, "audit.chat", "chat-service", getEnv("ENVIRONMENT", "dev"))

	authClient := authclient.New(getEnv("AUTH_URL", "http://localhost:8084"))

	userRepo := repositories.NewUserRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)

	hub := ws.NewHub()
	gateway := ws.NewGateway(hub, groupRepo)

	messageHandler := handlers.NewMessageHandler(userRepo, messageRepo, gateway, audit)
	groupHandler := handlers.NewGroupHandler(groupRepo, messageRepo, userRepo, gateway, audit)

	var socketAuth middleware.TokenValidator
	if getEnv("WS_AUTH", "false") == "true" {
		socketAuth = authClient
	}
	socketHandler := ws.NewSocketHandler(hub, socketAuth)

	router := gin.Default()

	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{getEnv("CORS_ORIGIN", "http://localhost:3000")},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
	}))
	router.Use(otelgin.Middleware("chat-service"))
	router.Use(observability.HTTPMetricsMiddleware())

	authMiddleware := middleware.AuthMiddleware(authClient)

	router.GET("/messages/users", authMiddleware, messageHandler.ListUsers)
	router.GET("/messages/user/:id", authMiddleware, messageHandler.GetDirectMessages)
	router.GET("/messages/search", authMiddleware, messageHandler.SearchMessages)
	router.POST("/messages/send/:id", authMiddleware, messageHandler.SendMessage)
	router.POST("/messages/reaction/:messageId", authMiddleware, messageHandler.AddReaction)
	router.PUT("/messages/edit/:messageId", authMiddleware, messageHandler.EditMessage)
	router.DELETE("/messages/delete/:messageId", authMiddleware, messageHandler.DeleteMessage)

	router.POST("/groups", authMiddleware, groupHandler.CreateGroup)
	router.GET("/groups", authMiddleware, groupHandler.ListGroups)
	router.POST("/groups/:groupId/members", authMiddleware, groupHandler.AddMembers)
	router.GET("/groups/:groupId/messages", authMiddleware, groupHandler.GetGroupMessages)
	router.POST("/groups/:groupId/messages", authMiddleware, groupHandler.PostGroupMessage)

	router.GET("/ws", socketHandler.Handle)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(router, audit, getEnv("AUDIT_DEBUG", "false") == "true")

	port := getEnv("PORT", "8083")
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
