package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"groupchat-service/internal/config"
	"groupchat-service/internal/db"
	"groupchat-service/internal/handlers"
	"groupchat-service/internal/identity"
	"groupchat-service/internal/middleware"
	"groupchat-service/internal/observability"
	"groupchat-service/internal/quizgen"
	"groupchat-service/internal/rabbitmq"
	"groupchat-service/internal/repositories"
	"groupchat-service/internal/telemetry"
)

const serviceName = "groupchat-service"

func main() {
	cfg := config.Load()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	shutdownTracing, err := telemetry.SetupTracing(context.Background(), cfg.OTLPEndpoint, serviceName, cfg.Environment)
	if err != nil {
		log.Fatalf("failed to set up tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(ctx); err != nil {
			log.Printf("tracing shutdown: %v", err)
		}
	}()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AuditExchange)
	defer publisher.Close()
	audit := telemetry.NewAuditEmitter(publisher, "audit.groupchat", serviceName, cfg.Environment)

	users := identity.NewClient(cfg.IdentityURL)
	quizzes := quizgen.NewClient(cfg.QuizGenURL, cfg.QuizGenAPIKey)

	groupRepo := repositories.NewGroupRepo(database)
	chatRepo := repositories.NewChatRepo(database)
	pollRepo := repositories.NewPollRepo(database)
	reactionRepo := repositories.NewReactionRepo(database)

	groupHandler := handlers.NewGroupHandler(groupRepo, audit)
	chatHandler := handlers.NewChatHandler(chatRepo, reactionRepo, users, audit)
	pollHandler := handlers.NewPollHandler(chatRepo, groupRepo, pollRepo, audit)
	quizHandler := handlers.NewQuizHandler(chatRepo, quizzes, audit)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	authRequired := middleware.AuthRequired(cfg.JWTSecret)
	authOptional := middleware.AuthOptional(cfg.JWTSecret)

	chat := router.Group("/chat")
	{
		chat.POST("/groups", authRequired, groupHandler.CreateGroup)
		chat.GET("/groups", authOptional, groupHandler.ListGroups)
		chat.POST("/groups/:group_id/join", authRequired, groupHandler.JoinGroup)
		chat.POST("/groups/:group_id/leave", authRequired, groupHandler.LeaveGroup)

		chat.GET("/:chat_id/messages", authRequired, chatHandler.GetMessages)
		chat.POST("/:chat_id/messages", authRequired, chatHandler.PostMessage)
		chat.DELETE("/:chat_id/messages/:message_id", authRequired, chatHandler.DeleteMessage)
		chat.POST("/:chat_id/messages/:message_id/reactions", authRequired, chatHandler.AddReaction)

		chat.POST("/:chat_id/polls", authRequired, pollHandler.CreatePoll)
		chat.POST("/:chat_id/messages/:message_id/vote", authRequired, pollHandler.Vote)
		chat.DELETE("/:chat_id/messages/:message_id/vote", authRequired, pollHandler.RetractVote)

		chat.POST("/:chat_id/quiz", authRequired, quizHandler.ShareQuiz)
	}

	if cfg.DebugRoutes {
		router.POST("/debug/audit-test", authRequired, func(c *gin.Context) {
			audit.Emit(c.Request.Context(), "INFO", "audit test", observability.RequestIDFromRequest(c.Request), observability.IPFromRequest(c.Request), nil)
			c.JSON(200, gin.H{"status": "sent"})
		})
	}

	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
