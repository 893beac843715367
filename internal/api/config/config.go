package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cfg 全局可访问的配置实例
var Cfg *Config

// LoadConfig 从文件加载配置并填充到 Cfg
func LoadConfig() error {
	cfg, err := Load(viper.New(), "./configs")
	if err != nil {
		return err
	}
	Cfg = cfg
	return nil
}

// Load 读取指定目录下的 config.yaml，缺失时使用默认值，环境变量 CONCIERGE_* 覆盖
func Load(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	v.SetEnvPrefix("concierge")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default 仅由默认值构成的配置
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// SetDefaults 默认参数
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "concierge-dev-secret")
	v.SetDefault("server.use_redis", false)

	v.SetDefault("backend.base_url", "http://localhost:8080/api")
	v.SetDefault("backend.ws_url", "ws://localhost:8080/ws")
	v.SetDefault("backend.timeout", 10*time.Second)
	v.SetDefault("backend.message_page_size", 20)
	v.SetDefault("backend.conversation_page_size", 15)

	v.SetDefault("chat.reconnect_delay", 5*time.Second)
	v.SetDefault("chat.heartbeat_interval", 10*time.Second)
	v.SetDefault("chat.typing_idle_timeout", 3*time.Second)
	v.SetDefault("chat.typing_reassert", 2*time.Second)
	v.SetDefault("chat.typing_expiry", 5*time.Second)
	v.SetDefault("chat.search_debounce", 300*time.Millisecond)
	v.SetDefault("chat.near_bottom_threshold", 100)
	v.SetDefault("chat.near_top_threshold", 50)
	v.SetDefault("chat.viewport_height", 480)
	v.SetDefault("chat.list_refresh_spec", "@every 30s")
	v.SetDefault("chat.session_remember_hours", 72)

	v.SetDefault("attachment.max_size", 10<<20)
	v.SetDefault("attachment.allowed_prefixes", []string{"image/", "application/pdf", "text/plain"})
	v.SetDefault("attachment.max_dimension", 1920)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("minio.bucket", "chat-attachments")

	v.SetDefault("logstash.index", "logstash-concierge")
	v.SetDefault("logstash.level", "info")
}
