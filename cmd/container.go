// container.go
package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/verso-labs/companion/pkg/ai/llm"
	aiopenai "github.com/verso-labs/companion/pkg/ai/providers/openai"
	"github.com/verso-labs/companion/pkg/chat/chatapi"
	"github.com/verso-labs/companion/pkg/chat/chatsrv"
	"github.com/verso-labs/companion/pkg/companion/companioninfra"
	"github.com/verso-labs/companion/pkg/config"
	"github.com/verso-labs/companion/pkg/iam/auth"
	"github.com/verso-labs/companion/pkg/logx"
	"github.com/verso-labs/companion/pkg/memory"
	"github.com/verso-labs/companion/pkg/memory/memoryinfra"
	"github.com/verso-labs/companion/pkg/ratelimit"
	"github.com/verso-labs/companion/pkg/ratelimit/ratelimitinfra"
)

// Container holds all application dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	DB          *sqlx.DB
	Redis       *redis.Client
	VectorIndex *memoryinfra.ChromemVectorIndex

	// AI Clients
	LLMClient *llm.Client
	Provider  *aiopenai.OpenAIProvider

	// Domain Services
	MemoryManager *memory.Manager
	ChatService   *chatsrv.Service
	TokenService  auth.TokenService
	Limiter       ratelimit.Limiter

	// API Handlers
	ChatHandlers *chatapi.ChatHandlers

	// Middleware
	AuthMiddleware *auth.TokenMiddleware
}

// NewContainer initializes the dependency injection container
func NewContainer(cfg *config.Config) *Container {
	logx.Info("🔧 Initializing dependency container...")

	c := &Container{
		Config: cfg,
	}

	c.initInfrastructure()
	c.initServices()

	logx.Info("✅ Container initialized successfully")
	return c
}

func (c *Container) initInfrastructure() {
	logx.Info("🏗️ Initializing infrastructure...")

	// 1. Database Connection
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Config.Database.Host,
		c.Config.Database.Port,
		c.Config.Database.User,
		c.Config.Database.Password,
		c.Config.Database.Name,
		c.Config.Database.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		logx.Fatalf("Failed to connect to database: %v", err)
	}
	db.SetMaxOpenConns(c.Config.Database.MaxOpenConns)
	db.SetMaxIdleConns(c.Config.Database.MaxIdleConns)
	db.SetConnMaxLifetime(c.Config.Database.ConnMaxLifetime)
	c.DB = db
	logx.Info("✅ Database connected")

	// 2. Redis Connection (conversation history + rate limiting)
	c.Redis = redis.NewClient(&redis.Options{
		Addr:     c.Config.Redis.Address(),
		Password: c.Config.Redis.Password,
		DB:       c.Config.Redis.DB,
	})
	if _, err := c.Redis.Ping(context.Background()).Result(); err != nil {
		logx.Fatalf("Failed to connect to Redis: %v (Redis is required for conversation memory)", err)
	} else {
		logx.Info("✅ Redis connected")
	}

	// 3. Vector Index (embedded, persisted on local disk)
	index, err := memoryinfra.NewChromemVectorIndex(c.Config.AI.VectorIndexPath)
	if err != nil {
		logx.Fatalf("Failed to open vector index: %v", err)
	}
	c.VectorIndex = index
	logx.Infof("✅ Vector index opened (path: %s)", c.Config.AI.VectorIndexPath)

	logx.Info("✅ Infrastructure initialized")
}

func (c *Container) initServices() {
	logx.Info("🗄️  Initializing repositories and services...")

	// --- Repositories ---
	companionRepo := companioninfra.NewPostgresCompanionRepository(c.DB)
	messageRepo := companioninfra.NewPostgresMessageRepository(c.DB)

	// --- AI Clients ---
	// One provider serves both completions and embeddings
	c.Provider = aiopenai.NewOpenAIProvider(c.Config.AI.OpenAIAPIKey)
	c.LLMClient = llm.NewClient(c.Provider)
	logx.Infof("✅ OpenAI provider configured (chat: %s, embeddings: %s)",
		c.Config.AI.ChatModel, c.Config.AI.EmbeddingModel)

	// --- Token Service ---
	c.TokenService = auth.NewJWTServiceFromConfig(&c.Config.Auth.JWT)

	// --- Rate Limiter ---
	c.Limiter = ratelimitinfra.NewRedisLimiter(
		c.Redis,
		c.Config.RateLimit.Requests,
		c.Config.RateLimit.Window,
	)
	logx.Infof("✅ Rate limiter configured (%d per %s)",
		c.Config.RateLimit.Requests, c.Config.RateLimit.Window)

	// --- Memory Manager ---
	c.MemoryManager = memory.NewManager(
		memoryinfra.NewRedisHistoryStore(c.Redis),
		c.VectorIndex,
		c.Provider,
		c.Config.AI.RetrievalTopK,
		memory.WithEmbeddingModel(c.Config.AI.EmbeddingModel),
	)

	// --- Chat Service ---
	c.ChatService = chatsrv.NewService(
		companionRepo,
		messageRepo,
		c.MemoryManager,
		c.LLMClient,
		c.Limiter,
		&c.Config.AI,
	)

	// --- API Handlers ---
	c.ChatHandlers = chatapi.NewChatHandlers(c.ChatService, messageRepo)

	// --- Middleware ---
	c.AuthMiddleware = auth.NewTokenMiddleware(c.TokenService)

	logx.Info("✅ All services and handlers initialized")
}

// Cleanup closes all connections
func (c *Container) Cleanup() {
	logx.Info("🧹 Cleaning up resources...")

	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			logx.Errorf("Error closing database: %v", err)
		} else {
			logx.Info("✅ Database connection closed")
		}
	}

	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logx.Errorf("Error closing Redis: %v", err)
		} else {
			logx.Info("✅ Redis connection closed")
		}
	}

	logx.Info("✅ Cleanup completed")
}
