package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fyerfyer/corpus-QA-engine/api"
	"github.com/fyerfyer/corpus-QA-engine/api/handler"
	"github.com/fyerfyer/corpus-QA-engine/api/middleware"
	appconfig "github.com/fyerfyer/corpus-QA-engine/config"
	"github.com/fyerfyer/corpus-QA-engine/internal/cache"
	"github.com/fyerfyer/corpus-QA-engine/internal/database"
	"github.com/fyerfyer/corpus-QA-engine/internal/document"
	"github.com/fyerfyer/corpus-QA-engine/internal/embedding"
	"github.com/fyerfyer/corpus-QA-engine/internal/llm"
	"github.com/fyerfyer/corpus-QA-engine/internal/repository"
	"github.com/fyerfyer/corpus-QA-engine/internal/retriever"
	"github.com/fyerfyer/corpus-QA-engine/internal/services"
	"github.com/fyerfyer/corpus-QA-engine/internal/vectordb"
	"github.com/fyerfyer/corpus-QA-engine/pkg/storage"
)

// 命令行参数
type flags struct {
	ConfigFile   string // 配置文件路径
	Mode         string // 运行模式 (debug/release)
	Port         int    // 服务端口，覆盖配置文件
	ForceRebuild bool   // 强制清空并重建向量索引
}

func main() {
	opts := parseFlags()

	// .env文件存在时加载，主要用于本地开发
	_ = godotenv.Load()

	cfg, err := appconfig.Load(opts.ConfigFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if opts.Port > 0 {
		cfg.Server.Port = opts.Port
	}

	gin.SetMode(opts.Mode)

	logger := setupLogger(cfg.Log)
	logger.Info("Starting corpus QA engine...")

	// 数据库与摄取台账
	if err := database.Setup(&database.Config{
		Type: cfg.Database.Type,
		DSN:  cfg.Database.DSN,
	}, logger); err != nil {
		logger.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	ledger := repository.NewDocumentRepository()
	chatLogs := repository.NewChatLogRepository()

	// 语料来源
	source, err := setupSource(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize corpus source: %v", err)
	}

	// 向量存储
	vectorDB, err := setupVectorDB(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize vector store: %v", err)
	}
	defer vectorDB.Close()

	// 嵌入客户端
	embedder, err := embedding.NewClient(cfg.Embed.Provider,
		embedding.WithBaseURL(cfg.Embed.Endpoint),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithBatchSize(cfg.Embed.BatchSize),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	// 大语言模型客户端与RAG服务
	llmClient, err := llm.NewClient(cfg.LLM.Provider,
		llm.WithBaseURL(cfg.LLM.Endpoint),
		llm.WithModel(cfg.LLM.Model),
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithMaxTokens(cfg.LLM.MaxTokens),
		llm.WithTemperature(cfg.LLM.Temperature),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	ragService := llm.NewRAG(llmClient,
		llm.WithRAGMaxTokens(cfg.LLM.MaxTokens),
		llm.WithRAGTemperature(cfg.LLM.Temperature),
		llm.WithQueryRefine(cfg.LLM.RefineQuery),
	)

	// 摄取编排：启动时同步执行一次，完成后检索才就绪
	ingest, err := services.NewIngestService(source, embedder, vectorDB,
		services.WithChunkerConfig(document.ChunkerConfig{
			ChunkSize:    cfg.Document.ChunkSize,
			ChunkOverlap: cfg.Document.ChunkOverlap,
		}),
		services.WithBatchProcessor(cfg.Embed.BatchSize, cfg.Embed.MaxWorkers),
		services.WithRetrieverConfig(retriever.Config{
			TopK:   cfg.Retriever.TopK,
			Fusion: retriever.FusionMode(cfg.Retriever.Fusion),
		}),
		services.WithForceRebuild(opts.ForceRebuild),
		services.WithLedger(ledger),
		services.WithIngestLogger(logger),
	)
	if err != nil {
		logger.Fatalf("Failed to initialize ingest service: %v", err)
	}

	if err := ingest.Run(context.Background()); err != nil {
		// 摄取失败不退出：服务以未就绪状态对外回答
		logger.WithError(err).Error("Ingestion pass failed, serving in degraded mode")
	}

	engine, err := services.NewRetrievalEngine(ingest, cfg.Retriever.PoolSize, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize retrieval engine: %v", err)
	}
	defer engine.Close()

	// 回答缓存
	answerCache, err := setupCache(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize cache: %v", err)
	}

	qaService := services.NewQAService(engine, ragService, answerCache,
		services.WithCacheTTL(time.Duration(cfg.Cache.TTL)*time.Second),
		services.WithChatLogs(chatLogs),
		services.WithQALogger(logger),
	)

	// 路由与HTTP服务器
	router := api.SetupRouter(
		handler.NewChatHandler(qaService),
		handler.NewStatusHandler(engine, ledger),
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // 生成回答可能较慢
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	opts := flags{}

	flag.StringVar(&opts.ConfigFile, "config", "", "Path to config file")
	flag.StringVar(&opts.Mode, "mode", "release", "Run mode (debug/release)")
	flag.IntVar(&opts.Port, "port", 0, "Server port (overrides config file)")
	flag.BoolVar(&opts.ForceRebuild, "force-rebuild", false, "Reset the vector index and re-ingest the whole corpus")

	flag.Parse()
	return opts
}

// setupLogger 设置日志系统
// 配置了日志文件时同时输出到stdout和带轮转的文件
func setupLogger(cfg appconfig.LogConfig) *logrus.Logger {
	logger := middleware.GetLogger()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		logger.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return logger
}

// setupSource 设置语料来源
func setupSource(cfg *appconfig.Config) (storage.Source, error) {
	switch cfg.Corpus.Type {
	case "minio":
		return storage.NewMinioSource(storage.MinioConfig{
			Endpoint:   cfg.Corpus.Endpoint,
			AccessKey:  cfg.Corpus.AccessKey,
			SecretKey:  cfg.Corpus.SecretKey,
			UseSSL:     cfg.Corpus.UseSSL,
			Bucket:     cfg.Corpus.Bucket,
			StagingDir: cfg.Corpus.StagingDir,
			Extensions: cfg.Corpus.Extensions,
		})
	case "local", "":
		if err := os.MkdirAll(cfg.Corpus.Path, 0755); err != nil {
			return nil, fmt.Errorf("failed to create corpus directory: %v", err)
		}
		return storage.NewLocalSource(storage.LocalConfig{
			Path:       cfg.Corpus.Path,
			Extensions: cfg.Corpus.Extensions,
		})
	default:
		return nil, fmt.Errorf("unsupported corpus source type: %s", cfg.Corpus.Type)
	}
}

// setupVectorDB 设置向量存储
// FAISS初始化失败时回退到内存实现，索引内容在重启后丢失
func setupVectorDB(cfg *appconfig.Config, logger *logrus.Logger) (vectordb.Repository, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.VectorDB.Path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create vector store directory: %v", err)
	}

	repo, err := vectordb.NewRepository(vectordb.Config{
		Type:              cfg.VectorDB.Type,
		Path:              cfg.VectorDB.Path,
		Dimension:         cfg.VectorDB.Dim,
		DistanceType:      vectordb.DistanceType(cfg.VectorDB.Distance),
		CreateIfNotExists: true,
	})
	if err != nil {
		logger.WithError(err).Warn("Failed to initialize vector store, falling back to in-memory")
		return vectordb.NewRepository(vectordb.Config{
			Type:         "memory",
			Dimension:    cfg.VectorDB.Dim,
			DistanceType: vectordb.DistanceType(cfg.VectorDB.Distance),
		})
	}
	return repo, nil
}

// setupCache 设置回答缓存
// 缓存被禁用时返回nil，问答服务对nil缓存直接跳过读写
func setupCache(cfg *appconfig.Config) (cache.Cache, error) {
	if !cfg.Cache.Enable {
		return nil, nil
	}

	cacheConfig := cache.Config{
		Type:            cfg.Cache.Type,
		DefaultTTL:      time.Duration(cfg.Cache.TTL) * time.Second,
		CleanupInterval: 10 * time.Minute,
	}
	if cfg.Cache.Type == "redis" {
		cacheConfig.RedisAddr = cfg.Cache.Address
		cacheConfig.RedisPassword = cfg.Cache.Password
		cacheConfig.RedisDB = cfg.Cache.DB
	}

	return cache.NewCache(cacheConfig)
}
