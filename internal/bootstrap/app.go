package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"gopherai-docqa/internal/ai"
	"gopherai-docqa/internal/app"
	"gopherai-docqa/internal/cache"
	"gopherai-docqa/internal/chunker"
	"gopherai-docqa/internal/config"
	"gopherai-docqa/internal/embedding"
	"gopherai-docqa/internal/logger"
	"gopherai-docqa/internal/model"
	"gopherai-docqa/internal/pkg/tokens"
	mysqlClient "gopherai-docqa/internal/platform/mysql"
	postgresClient "gopherai-docqa/internal/platform/postgres"
	rabbitmqClient "gopherai-docqa/internal/platform/rabbitmq"
	redisClient "gopherai-docqa/internal/platform/redis"
	"gopherai-docqa/internal/repository"
	"gopherai-docqa/internal/worker"
)

type App struct {
	Config        *config.Config
	Log           *slog.Logger
	DB            *gorm.DB
	Redis         *redis.Client
	MQConn        *amqp.Connection
	Publisher     *rabbitmqClient.MessagePublisher
	MessageWorker *worker.MessagePersistWorker

	Auth   *app.AuthService
	Chats  *app.ChatService
	Ingest *app.IngestService

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}
	log := logger.New(cfg.Log).With("app", cfg.App.Name, "env", cfg.App.Env)

	a := &App{Config: cfg, Log: log, StartedAt: time.Now()}
	if err := a.init(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.Config

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	a.DB = db
	if err := db.AutoMigrate(
		&model.User{},
		&model.Chat{},
		&model.Document{},
		&model.Chunk{},
		&model.Embedding{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate tables failed: %w", err)
	}

	a.Redis, err = redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}

	a.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MessagePersistQueue)
	if err != nil {
		return err
	}
	a.Publisher = rabbitmqClient.NewMessagePublisher(a.MQConn, cfg.RabbitMQ.MessagePersistQueue)

	userRepo := repository.NewUserRepository(db)
	chatRepo := repository.NewChatRepository(db)
	docRepo := repository.NewDocumentRepository(db)
	chunkRepo := repository.NewChunkRepository(db)
	embeddingRepo := repository.NewEmbeddingRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	a.MessageWorker = worker.NewMessagePersistWorker(a.MQConn, messageRepo, cfg.RabbitMQ.MessagePersistQueue, a.Log)
	if err := a.MessageWorker.Start(ctx); err != nil {
		return fmt.Errorf("start message worker failed: %w", err)
	}

	counter, err := tokens.NewTiktoken(tokens.DefaultEncoding)
	if err != nil {
		return err
	}

	client := ai.NewOpenAICompatibleClientWithHTTP(&http.Client{
		Timeout: max(cfg.GenerationTimeout(), cfg.EmbeddingTimeout()) + 10*time.Second,
	})
	embedder := ai.NewEmbedder(client, ai.EmbeddingConfig{
		BaseURL:    cfg.LLM.BaseURL,
		APIKey:     cfg.LLM.APIKey,
		Model:      cfg.LLM.EmbeddingModel,
		Dimensions: cfg.LLM.EmbeddingDimensions,
	})
	generator := ai.NewGenerator(client, ai.ChatConfig{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
	})

	batcher := embedding.NewBatcher(embedder, counter,
		embedding.WithTokenLimit(cfg.Ingest.EmbeddingTokenLimit),
		embedding.WithConcurrency(cfg.Ingest.EmbeddingConcurrency),
		embedding.WithCallTimeout(cfg.EmbeddingTimeout()),
		embedding.WithLogger(a.Log),
	)

	policy := app.ContinueOnError
	if cfg.Ingest.AbortOnError {
		policy = app.AbortOnError
	}
	a.Ingest = app.NewIngestService(
		chatRepo,
		docRepo,
		chunkRepo,
		embeddingRepo,
		chunker.New(counter),
		batcher,
		app.IngestOptions{
			MaxDocuments: cfg.Ingest.MaxDocuments,
			MaxPages:     cfg.Ingest.MaxPages,
			Policy:       policy,
			Logger:       a.Log,
		},
	)

	rag := app.NewRAGService(embedder, embeddingRepo, chunkRepo, generator, app.RAGOptions{
		RetrievalLimit:    cfg.Ingest.RetrievalLimit,
		GenerationTimeout: cfg.GenerationTimeout(),
		Logger:            a.Log,
	})

	historyCache := cache.NewHistoryCache(
		a.Redis,
		time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	a.Chats = app.NewChatService(
		chatRepo,
		docRepo,
		messageRepo,
		a.Publisher,
		historyCache,
		rag,
		generator,
		app.ChatOptions{
			MessageLimit: cfg.Chat.MessageLimit,
			PageSize:     cfg.Chat.PageSize,
			Logger:       a.Log,
		},
	)
	a.Auth = app.NewAuthService(
		userRepo,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
	)
	return nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.App.Env == "dev" {
		level = gormlogger.Info
	}
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		return mysqlClient.New(ctx, cfg.MySQLDSN(), level)
	default:
		return postgresClient.New(ctx, cfg.PostgresDSN(), level)
	}
}

// HealthChecks reports the reachability of every backing service by name.
func (a *App) HealthChecks() map[string]func(context.Context) error {
	return map[string]func(context.Context) error{
		"database": func(ctx context.Context) error {
			sqlDB, err := a.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		},
		"rabbitmq": func(context.Context) error {
			if a.MQConn == nil || a.MQConn.IsClosed() {
				return errors.New("connection closed")
			}
			return nil
		},
	}
}

func (a *App) Close() error {
	var errs []error
	if a.MessageWorker != nil {
		a.MessageWorker.Close()
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
