package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config 项目配置结构体
type Config struct {
	LLM         LLMConfig         `yaml:"llm"`
	Search      SearchConfig      `yaml:"search"`
	Cache       CacheConfig       `yaml:"cache"`
	Pipeline    PipelineConfig    `yaml:"pipeline"`
	Log         LogConfig         `yaml:"log"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
}

// LLMConfig LLM 相关配置
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// SearchConfig 检索 Provider 相关配置
type SearchConfig struct {
	Tavily  TavilyConfig  `yaml:"tavily"`
	Gateway GatewayConfig `yaml:"gateway"`
	Finnhub FinnhubConfig `yaml:"finnhub"`
}

// TavilyConfig Tavily 配置
type TavilyConfig struct {
	APIKey string `yaml:"api_key"`
}

// GatewayConfig 网关 web_search 工具配置。
// URL/Token 为空时会回退到本地网关配置文件。
type GatewayConfig struct {
	URL        string `yaml:"url"`
	Token      string `yaml:"token"`
	ConfigPath string `yaml:"config_path"`
	SessionKey string `yaml:"session_key"`
}

// FinnhubConfig Finnhub 公司新闻配置
type FinnhubConfig struct {
	APIKey string `yaml:"api_key"`
}

// CacheConfig 检索结果缓存配置
type CacheConfig struct {
	// Backend 可选 file（默认）或 redis
	Backend    string `yaml:"backend"`
	Dir        string `yaml:"dir"`
	TTLSeconds int    `yaml:"ttl_seconds"`
	Redis      struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
}

// PipelineConfig 结构化新闻流水线配置
type PipelineConfig struct {
	HitsPerDimension   int  `yaml:"hits_per_dimension"`
	ItemsPerDimension  int  `yaml:"items_per_dimension"`
	LowResultThreshold int  `yaml:"low_result_threshold"`
	MaxItems           int  `yaml:"max_items"`
	HardTimeoutSeconds int  `yaml:"hard_timeout_seconds"`
	EnrichSnippets     bool `yaml:"enrich_snippets"`
	SnippetMinChars    int  `yaml:"snippet_min_chars"`
}

// LogConfig 日志相关配置
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ConcurrencyConfig LLM 限流配置
type ConcurrencyConfig struct {
	QPS int `yaml:"qps"`
	RPM int `yaml:"rpm"`
}

// LoadConfig 从指定路径加载配置，环境变量优先于文件内容
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// 允许无配置文件，全部走环境变量与默认值
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TAVILY_API_KEY"); v != "" {
		cfg.Search.Tavily.APIKey = v
	}
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Search.Finnhub.APIKey = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" && cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = v
	}
	if v := os.Getenv("INVEST_RADAR_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Cache.Dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		cfg.Cache.Dir = filepath.Join(home, ".invest-radar", "cache", "search")
	}
	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "file"
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 6 * 3600
	}
	if cfg.Pipeline.HitsPerDimension <= 0 {
		cfg.Pipeline.HitsPerDimension = 8
	}
	if cfg.Pipeline.ItemsPerDimension <= 0 {
		cfg.Pipeline.ItemsPerDimension = 5
	}
	if cfg.Pipeline.LowResultThreshold <= 0 {
		cfg.Pipeline.LowResultThreshold = 10
	}
	if cfg.Pipeline.MaxItems <= 0 {
		cfg.Pipeline.MaxItems = 20
	}
	if cfg.Pipeline.HardTimeoutSeconds <= 0 {
		cfg.Pipeline.HardTimeoutSeconds = 20
	}
	if cfg.Pipeline.SnippetMinChars <= 0 {
		cfg.Pipeline.SnippetMinChars = 200
	}
	if cfg.Concurrency.QPS <= 0 {
		cfg.Concurrency.QPS = 1
	}
	if cfg.Concurrency.RPM <= 0 {
		cfg.Concurrency.RPM = 30
	}
}
