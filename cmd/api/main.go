package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/api/handlers"
	"github.com/medgraph/backend/internal/api/middleware/ratelimit"
	"github.com/medgraph/backend/internal/cache/redis"
	"github.com/medgraph/backend/internal/ingestion"
	"github.com/medgraph/backend/internal/kg/builder"
	"github.com/medgraph/backend/internal/kg/neo4j"
	"github.com/medgraph/backend/internal/llm"
	"github.com/medgraph/backend/internal/metrics"
	"github.com/medgraph/backend/internal/rag/parser"
	"github.com/medgraph/backend/internal/rag/pipeline"
	"github.com/medgraph/backend/internal/rag/retriever"
	"github.com/medgraph/backend/internal/storage/sqlite"
	"github.com/medgraph/backend/internal/vector/milvus"
	"github.com/medgraph/backend/pkg/config"
	appLogger "github.com/medgraph/backend/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting medical graph RAG API server")
	metrics.Init()

	sqliteClient, err := sqlite.NewClient(cfg.SQLite.Path)
	if err != nil {
		appLogger.Fatal("Failed to create SQLite client", zap.Error(err))
	}
	defer sqliteClient.Close()

	if err := sqliteClient.InitSchema(); err != nil {
		appLogger.Fatal("Failed to initialize schema", zap.Error(err))
	}

	neo4jClient, err := neo4j.NewClient(
		cfg.Neo4j.URI,
		cfg.Neo4j.Username,
		cfg.Neo4j.Password,
		cfg.Neo4j.Database,
	)
	if err != nil {
		appLogger.Fatal("Failed to create Neo4j client", zap.Error(err))
	}
	defer neo4jClient.Close(context.Background())

	var milvusClient *milvus.Client
	if cfg.Milvus.Enabled {
		milvusClient, err = milvus.NewClient(
			cfg.Milvus.Endpoint,
			cfg.Milvus.CollectionName,
			cfg.Milvus.VectorDim,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Milvus client", zap.Error(err))
		}
		defer milvusClient.Close()

		if err := milvusClient.EnsureCollection(context.Background()); err != nil {
			appLogger.Fatal("Failed to ensure collection", zap.Error(err))
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.NewClient(
			cfg.Redis.Host,
			cfg.Redis.Port,
			cfg.Redis.Password,
			cfg.Redis.DB,
			time.Duration(cfg.Redis.CacheTTL)*time.Second,
		)
		if err != nil {
			appLogger.Fatal("Failed to create Redis client", zap.Error(err))
		}
		defer redisClient.Close()
	}

	llmClient := llm.NewClient(llm.Config{
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		EmbeddingModel: cfg.LLM.EmbeddingModel,
		Temperature:    cfg.LLM.Temperature,
		MaxTokens:      cfg.LLM.MaxTokens,
		TimeoutSec:     cfg.LLM.TimeoutSec,
	})

	kgBuilder := builder.NewBuilder(
		builder.NewExtractor(llmClient),
		neo4jClient,
		cfg.RAG.ParagraphSize,
	)
	queryParser := parser.NewParser(llmClient)
	graphRetriever := retriever.NewRetriever(neo4jClient)

	var chunkStore pipeline.ChunkStore
	if milvusClient != nil {
		chunkStore = milvusClient
	}
	ragPipeline := pipeline.NewPipeline(
		queryParser,
		graphRetriever,
		neo4jClient,
		llmClient,
		llmClient,
		chunkStore,
		pipeline.Config{
			TopK:             cfg.RAG.VectorTopK,
			MaxGraphDepth:    cfg.RAG.MaxGraphDepth,
			MaxContextLength: cfg.RAG.MaxContextLength,
		},
	)

	processor := ingestion.NewProcessor(
		sqliteClient,
		milvusClient,
		llmClient,
		kgBuilder,
		cfg.RAG.ParagraphSize,
	)

	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    cfg.Server.BodyLimit,
	})

	app.Use(recover.New())
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	queryHandler := handlers.NewQueryHandler(ragPipeline, redisClient, sqliteClient)
	documentHandler := handlers.NewDocumentHandler(processor, sqliteClient, redisClient)
	graphHandler := handlers.NewGraphHandler(graphRetriever, neo4jClient)
	wsHandler := handlers.NewWebSocketHandler(ragPipeline)

	limiter := ratelimit.New(cfg.Server.RateLimitPerMinute)
	defer limiter.Stop()

	api := app.Group("/api/v1", limiter.Middleware())

	api.Post("/query", queryHandler.HandleQuery)
	api.Get("/query/history", queryHandler.GetQueryHistory)

	api.Post("/documents", documentHandler.HandleIngest)
	api.Post("/documents/batch", documentHandler.HandleBatchIngest)
	api.Get("/documents", documentHandler.HandleListDocuments)

	api.Get("/graph/subgraph", graphHandler.HandleSubgraph)
	api.Get("/graph/data", graphHandler.HandleGraphData)
	api.Get("/graph/stats", graphHandler.HandleStats)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/query", websocket.New(wsHandler.HandleConnection))

	app.Get("/metrics", metrics.MetricsHandler())

	api.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Unix(),
		})
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	app.Shutdown()
	appLogger.Info("Server stopped")
}
