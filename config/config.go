package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config 应用程序配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Corpus    CorpusConfig    `mapstructure:"corpus"`
	VectorDB  VectorDBConfig  `mapstructure:"vectordb"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Embed     EmbedConfig     `mapstructure:"embed"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Document  DocumentConfig  `mapstructure:"document"`
	Retriever RetrieverConfig `mapstructure:"retriever"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host string `mapstructure:"host"` // 服务器主机
	Port int    `mapstructure:"port"` // 服务器端口
}

// CorpusConfig 语料来源配置
type CorpusConfig struct {
	Type       string   `mapstructure:"type"`        // 来源类型：local 或 minio
	Path       string   `mapstructure:"path"`        // 本地语料目录
	Bucket     string   `mapstructure:"bucket"`      // MinIO桶名称
	Endpoint   string   `mapstructure:"endpoint"`    // MinIO端点
	AccessKey  string   `mapstructure:"access_key"`  // MinIO访问密钥
	SecretKey  string   `mapstructure:"secret_key"`  // MinIO私钥
	UseSSL     bool     `mapstructure:"use_ssl"`     // 是否使用SSL
	StagingDir string   `mapstructure:"staging_dir"` // 远端文件的本地暂存目录
	Extensions []string `mapstructure:"extensions"`  // 允许摄取的扩展名
}

// VectorDBConfig 向量存储配置
type VectorDBConfig struct {
	Type     string `mapstructure:"type"`     // 存储类型：faiss 或 memory
	Path     string `mapstructure:"path"`     // 索引文件路径
	Dim      int    `mapstructure:"dim"`      // 向量维度
	Distance string `mapstructure:"distance"` // 距离度量方式：cosine, l2, dot
}

// LLMConfig 大语言模型配置
type LLMConfig struct {
	Provider    string  `mapstructure:"provider"`     // 提供商：openai 或 ollama
	Model       string  `mapstructure:"model"`        // 模型名称
	APIKey      string  `mapstructure:"api_key"`      // API密钥
	Endpoint    string  `mapstructure:"endpoint"`     // API端点
	MaxTokens   int     `mapstructure:"max_tokens"`   // 最大生成token数量
	Temperature float32 `mapstructure:"temperature"`  // 采样温度
	RefineQuery bool    `mapstructure:"refine_query"` // 是否改写用户查询
}

// EmbedConfig 向量嵌入模型配置
type EmbedConfig struct {
	Provider   string `mapstructure:"provider"`    // 提供商：openai 或 ollama
	Model      string `mapstructure:"model"`       // 模型名称
	APIKey     string `mapstructure:"api_key"`     // API密钥（本地服务可为占位值）
	Endpoint   string `mapstructure:"endpoint"`    // API端点
	BatchSize  int    `mapstructure:"batch_size"`  // 批处理大小
	MaxWorkers int    `mapstructure:"max_workers"` // 并行批处理工作数
	Dimensions int    `mapstructure:"dimensions"`  // 向量维度
}

// CacheConfig 缓存配置
type CacheConfig struct {
	Enable   bool   `mapstructure:"enable"`   // 是否启用回答缓存
	Type     string `mapstructure:"type"`     // 缓存类型：memory 或 redis
	Address  string `mapstructure:"address"`  // Redis地址
	Password string `mapstructure:"password"` // Redis密码
	DB       int    `mapstructure:"db"`       // Redis数据库
	TTL      int    `mapstructure:"ttl"`      // 缓存TTL（秒）
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Type string `mapstructure:"type"` // 数据库类型，目前仅sqlite
	DSN  string `mapstructure:"dsn"`  // 数据源名称
}

// DocumentConfig 文档处理配置
type DocumentConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`    // 分块大小（字符数）
	ChunkOverlap int `mapstructure:"chunk_overlap"` // 分块重叠大小（字符数）
}

// RetrieverConfig 混合检索配置
type RetrieverConfig struct {
	TopK     int    `mapstructure:"top_k"`     // 每种检索策略返回的结果数
	Fusion   string `mapstructure:"fusion"`    // 合并策略：concat 或 rrf
	PoolSize int    `mapstructure:"pool_size"` // 检索工作池大小
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string `mapstructure:"level"`        // 日志级别
	File       string `mapstructure:"file"`         // 日志文件路径，为空时只输出到stdout
	MaxSizeMB  int    `mapstructure:"max_size_mb"`  // 单个日志文件大小上限
	MaxBackups int    `mapstructure:"max_backups"`  // 保留的轮转文件数量
	MaxAgeDays int    `mapstructure:"max_age_days"` // 日志保留天数
}

// Load 从文件和环境变量加载配置
func Load(configPath string) (*Config, error) {
	var config Config

	if configPath == "" {
		configPath = "config.yaml"
	}

	v := viper.New()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		// 找不到配置文件时使用默认值并写出一份
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			log.Printf("Warning: Config file not found at %s, using defaults", configPath)
			setDefaults(v)
			dir := filepath.Dir(configPath)
			if err := os.MkdirAll(dir, 0755); err == nil {
				if err := v.WriteConfigAs(configPath); err != nil {
					log.Printf("Warning: Could not write default config to %s: %v", configPath, err)
				}
			}
		} else {
			return nil, fmt.Errorf("failed to read config file: %v", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	setDefaults(v)

	// 支持环境变量覆盖，如 SERVER_PORT=9090
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %v", err)
	}

	expandEnvironmentVariables(&config)

	return &config, nil
}

// expandEnvironmentVariables 展开形如${ENV_VAR}的配置值
func expandEnvironmentVariables(cfg *Config) {
	cfg.Embed.APIKey = expandEnv(cfg.Embed.APIKey)
	cfg.LLM.APIKey = expandEnv(cfg.LLM.APIKey)
	cfg.Corpus.AccessKey = expandEnv(cfg.Corpus.AccessKey)
	cfg.Corpus.SecretKey = expandEnv(cfg.Corpus.SecretKey)
	cfg.Cache.Password = expandEnv(cfg.Cache.Password)
}

func expandEnv(value string) string {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		envVar := value[2 : len(value)-1]
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal
		}
	}
	return value
}

// setDefaults 设置配置的默认值
func setDefaults(v *viper.Viper) {
	// 服务器默认配置
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// 语料来源默认配置
	v.SetDefault("corpus.type", "local")
	v.SetDefault("corpus.path", "./corpus")
	v.SetDefault("corpus.bucket", "corpus")
	v.SetDefault("corpus.use_ssl", false)
	v.SetDefault("corpus.extensions", []string{".pdf", ".md", ".markdown", ".txt"})

	// 向量存储默认配置
	v.SetDefault("vectordb.type", "faiss")
	v.SetDefault("vectordb.path", "./data/vectors")
	v.SetDefault("vectordb.dim", 768) // nomic-embed-text的输出维度
	v.SetDefault("vectordb.distance", "cosine")

	// LLM默认配置，指向本地Ollama的OpenAI兼容端点
	v.SetDefault("llm.provider", "ollama")
	v.SetDefault("llm.model", "llama3")
	v.SetDefault("llm.endpoint", "http://127.0.0.1:11434/v1")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)
	v.SetDefault("llm.refine_query", true)

	// Embedding默认配置
	v.SetDefault("embed.provider", "ollama")
	v.SetDefault("embed.model", "nomic-embed-text")
	v.SetDefault("embed.endpoint", "http://127.0.0.1:11434/v1")
	v.SetDefault("embed.batch_size", 16)
	v.SetDefault("embed.max_workers", 4)
	v.SetDefault("embed.dimensions", 768)

	// 缓存默认配置
	v.SetDefault("cache.enable", true)
	v.SetDefault("cache.type", "memory")
	v.SetDefault("cache.ttl", 3600) // 1小时

	// 数据库默认配置
	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "data/corpus.db")

	// 文档处理默认配置
	v.SetDefault("document.chunk_size", 1000)
	v.SetDefault("document.chunk_overlap", 200)

	// 混合检索默认配置
	v.SetDefault("retriever.top_k", 5)
	v.SetDefault("retriever.fusion", "concat")
	v.SetDefault("retriever.pool_size", 8)

	// 日志默认配置
	v.SetDefault("log.level", "info")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}
