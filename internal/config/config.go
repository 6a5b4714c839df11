// Package config resolves all tunables once at startup. Nothing
// reads viper ad hoc mid-logic; constructors receive typed sections.
package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/RickEth137/ClawStream/pkg/config"
	"github.com/RickEth137/ClawStream/pkg/database"
	"github.com/RickEth137/ClawStream/pkg/log"
	"github.com/RickEth137/ClawStream/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Engine    EngineConfig
	Auth      AuthConfig
	TTS       TTSConfig
	Media     MediaConfig
	Storage   storage.Config
	Redis     RedisConfig
	Database  database.Config
	Kafka     KafkaConfig
	Log       log.Config
}

type ServerConfig struct {
	Host string
	Port int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type EngineConfig struct {
	TickInterval     time.Duration `mapstructure:"tick_interval"`
	ChatHistoryLimit int           `mapstructure:"chat_history_limit"`
	MaxSentenceWords int           `mapstructure:"max_sentence_words"`
	MaxClauseWords   int           `mapstructure:"max_clause_words"`
	HardSplitWords   int           `mapstructure:"hard_split_words"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

type TTSConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Voice   string        `mapstructure:"voice"`
	Format  string        `mapstructure:"format"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type MediaConfig struct {
	GiphyAPIKey string        `mapstructure:"giphy_api_key"`
	Rating      string        `mapstructure:"rating"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8090)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("engine.tick_interval", "50ms")
	v.SetDefault("engine.chat_history_limit", 100)
	v.SetDefault("engine.max_sentence_words", 10)
	v.SetDefault("engine.max_clause_words", 12)
	v.SetDefault("engine.hard_split_words", 8)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "clawstream")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("tts.base_url", "")
	v.SetDefault("tts.model", "tts-1")
	v.SetDefault("tts.voice", "alloy")
	v.SetDefault("tts.format", "mp3")
	v.SetDefault("tts.timeout", "15s")
	v.SetDefault("media.rating", "pg-13")
	v.SetDefault("media.timeout", "5s")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/clips")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.prefix", "clawstream")
	v.SetDefault("database.driver", "")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "stream-chat")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.service_name", "clawstream")

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("auth.jwt_secret", "JWT_SECRET")
	v.BindEnv("tts.base_url", "TTS_BASE_URL")
	v.BindEnv("tts.api_key", "TTS_API_KEY")
	v.BindEnv("media.giphy_api_key", "GIPHY_API_KEY")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Parse durations
	cfg.WebSocket.PingInterval = parseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = parseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = parseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Engine.TickInterval = parseDuration(v, "engine.tick_interval", 50*time.Millisecond)
	cfg.Auth.TokenTTL = parseDuration(v, "auth.token_ttl", 24*time.Hour)
	cfg.TTS.Timeout = parseDuration(v, "tts.timeout", 15*time.Second)
	cfg.Media.Timeout = parseDuration(v, "media.timeout", 5*time.Second)

	return &cfg, nil
}

func parseDuration(v *viper.Viper, key string, defaultVal time.Duration) time.Duration {
	str := v.GetString(key)
	d, err := time.ParseDuration(str)
	if err != nil {
		return defaultVal
	}
	return d
}
