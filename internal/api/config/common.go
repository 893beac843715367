package config

import "time"

// Config 配置主体
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Backend    BackendConfig    `mapstructure:"backend"`
	Chat       ChatConfig       `mapstructure:"chat"`
	Attachment AttachmentConfig `mapstructure:"attachment"`
	Redis      RedisConfig      `mapstructure:"redis"`
	MinIO      MinIOConfig      `mapstructure:"minio"`
	Logstash   LogstashConfig   `mapstructure:"logstash"`
	Guest      GuestConfig      `mapstructure:"guest"`
	Admin      AdminConfig      `mapstructure:"admin"`
}

// ServerConfig 开发用后端桩配置
type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	JWTSecret string `mapstructure:"jwt_secret"`
	UseRedis  bool   `mapstructure:"use_redis"`
}

// BackendConfig 远端 REST 与实时通道地址
type BackendConfig struct {
	BaseURL          string        `mapstructure:"base_url"`
	WSURL            string        `mapstructure:"ws_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	MessagePageSize  int           `mapstructure:"message_page_size"`
	ConversationSize int           `mapstructure:"conversation_page_size"`
}

// ChatConfig 聊天核心参数
type ChatConfig struct {
	ReconnectDelay       time.Duration `mapstructure:"reconnect_delay"`
	HeartbeatInterval    time.Duration `mapstructure:"heartbeat_interval"`
	TypingIdleTimeout    time.Duration `mapstructure:"typing_idle_timeout"`
	TypingReassert       time.Duration `mapstructure:"typing_reassert"`
	TypingExpiry         time.Duration `mapstructure:"typing_expiry"`
	SearchDebounce       time.Duration `mapstructure:"search_debounce"`
	NearBottomThreshold  float64       `mapstructure:"near_bottom_threshold"`
	NearTopThreshold     float64       `mapstructure:"near_top_threshold"`
	ViewportHeight       float64       `mapstructure:"viewport_height"`
	ListRefreshSpec      string        `mapstructure:"list_refresh_spec"`
	SessionRememberHours int           `mapstructure:"session_remember_hours"`
}

// AttachmentConfig 附件校验
type AttachmentConfig struct {
	MaxSize         int64    `mapstructure:"max_size"`
	AllowedPrefixes []string `mapstructure:"allowed_prefixes"`
	MaxDimension    int      `mapstructure:"max_dimension"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// MinIOConfig MinIO配置
type MinIOConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	PublicEndpoint string `mapstructure:"public_endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	Bucket         string `mapstructure:"bucket"`
	UseSSL         bool   `mapstructure:"use_ssl"`
}

// LogstashConfig 远程日志
type LogstashConfig struct {
	Address string `mapstructure:"address"`
	Index   string `mapstructure:"index"`
	Token   string `mapstructure:"token"`
	Level   string `mapstructure:"level"`
}

// GuestConfig 访客端身份
type GuestConfig struct {
	Name   string `mapstructure:"name"`
	Email  string `mapstructure:"email"`
	RoomID string `mapstructure:"room_id"`
	Token  string `mapstructure:"token"`
}

// AdminConfig 管理端身份
type AdminConfig struct {
	Token string `mapstructure:"token"`
}
