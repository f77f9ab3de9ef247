// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Log       LogConfig       `mapstructure:"log"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Index     IndexConfig     `mapstructure:"index"`
	Cache     CacheConfig     `mapstructure:"cache"`
	AI        AIConfig        `mapstructure:"ai"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
}

// LLMGenerationConfig 配置生成相关参数（可选）。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// IndexConfig 存储向量索引相关的配置。
type IndexConfig struct {
	// Dir 是持久化索引产物所在的目录（vectors.bin / metadata.json / config.json）。
	Dir string `mapstructure:"dir"`
	// TopK 是检索上下文时的默认返回条数。
	TopK int `mapstructure:"top_k"`
	// ChunkMaxWords / ChunkOverlapWords 控制构建索引时的文本分块。
	ChunkMaxWords     int `mapstructure:"chunk_max_words"`
	ChunkOverlapWords int `mapstructure:"chunk_overlap_words"`
}

// CacheConfig 存储语义缓存相关的配置。
type CacheConfig struct {
	// Threshold 是命中缓存所需的最低余弦相似度。
	Threshold float64 `mapstructure:"threshold"`
}

// AIConfig 存储提示词相关的配置。
type AIConfig struct {
	Prompt AIPromptConfig `mapstructure:"prompt"`
}

// AIPromptConfig 配置系统提示与上下文包裹格式。
type AIPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	Disclaimer   string `mapstructure:"disclaimer"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults()
}

// applyDefaults 补齐未配置项的默认值。
func applyDefaults() {
	if Conf.Index.TopK <= 0 {
		Conf.Index.TopK = 5
	}
	if Conf.Index.ChunkMaxWords <= 0 {
		Conf.Index.ChunkMaxWords = 400
	}
	if Conf.Index.ChunkOverlapWords <= 0 {
		Conf.Index.ChunkOverlapWords = 50
	}
	if Conf.Cache.Threshold <= 0 {
		Conf.Cache.Threshold = 0.90
	}
}
