package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	appsvc "gopherai-docqa/internal/app"
	"gopherai-docqa/internal/config"
	"gopherai-docqa/internal/transport/http/handler"
	"gopherai-docqa/internal/transport/http/middleware"
)

type Services struct {
	Auth   *appsvc.AuthService
	Chats  *appsvc.ChatService
	Ingest *appsvc.IngestService
	Health *handler.HealthHandler
}

func NewRouter(cfg *config.Config, svc Services, log *slog.Logger) *gin.Engine {
	gin.SetMode(cfg.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(log), gin.Recovery())

	maxUpload := int64(cfg.Ingest.MaxUploadMB) << 20
	router.MaxMultipartMemory = maxUpload

	if svc.Health != nil {
		router.GET("/healthz", svc.Health.Check)
	}

	authHandler := handler.NewAuthHandler(svc.Auth)
	chatHandler := handler.NewChatHandler(svc.Chats)
	documentHandler := handler.NewDocumentHandler(svc.Ingest, maxUpload)
	requireAuth := middleware.AuthJWT(cfg.Auth.JWTSecret)

	v1 := router.Group("/api/v1")
	authGroup := v1.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", requireAuth, authHandler.Me)

	v1.POST("/documents", requireAuth, documentHandler.Upload)

	chats := v1.Group("/chats")
	chats.Use(requireAuth)
	chats.GET("", chatHandler.ListChats)
	chats.POST("", chatHandler.CreateChat)
	chats.DELETE("/:chat_id", chatHandler.DeleteChat)
	chats.GET("/:chat_id/messages", chatHandler.GetMessages)
	chats.POST("/:chat_id/messages", chatHandler.Ask)
	chats.GET("/:chat_id/documents", documentHandler.List)
	chats.POST("/:chat_id/documents", documentHandler.Upload)
	chats.DELETE("/:chat_id/documents", documentHandler.Delete)
	chats.POST("/:chat_id/documents/:document_id/retry", documentHandler.Retry)

	return router
}
