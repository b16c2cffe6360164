package config

import (
	"fmt"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

type Config struct {
	// Application
	AppEnv   string `env:"APP_ENV,default=development"`
	AppPort  string `env:"APP_PORT,default=8080"`
	LogLevel string `env:"LOG_LEVEL,default=info"`

	// Storage
	StorageDriver string `env:"STORAGE_DRIVER,default=postgres"`
	DBHost        string `env:"DB_HOST,default=localhost"`
	DBPort        string `env:"DB_PORT,default=5432"`
	DBUser        string `env:"DB_USER,default=trivia"`
	DBPassword    string `env:"DB_PASSWORD"`
	DBName        string `env:"DB_NAME,default=trivia_db"`
	DBSSLMode     string `env:"DB_SSLMODE,default=disable"`

	// Security
	JWTSecret string        `env:"JWT_SECRET_KEY"`
	TicketTTL time.Duration `env:"TICKET_TTL,default=6h"`

	// Game
	DefaultTimerSeconds   int           `env:"DEFAULT_TIMER_SECONDS,default=15"`
	DefaultMaxPlayers     int           `env:"DEFAULT_MAX_PLAYERS,default=100"`
	InterQuestionDelay    time.Duration `env:"INTER_QUESTION_DELAY,default=5s"`
	EarlyEndOnAllAnswered bool          `env:"EARLY_END_ON_ALL_ANSWERED,default=true"`

	// Event distribution
	SinkTimeout  time.Duration `env:"SINK_TIMEOUT,default=2s"`
	DedupWindow  int           `env:"DEDUP_WINDOW,default=4096"`
	RelayDriver  string        `env:"RELAY_DRIVER,default=none"`
	AMQPURL      string        `env:"AMQP_URL"`
	AMQPExchange string        `env:"AMQP_EXCHANGE,default=trivia.events"`
	BadgerPath   string        `env:"BADGER_PATH,default=./data/relay"`
	RelayTTL     time.Duration `env:"RELAY_TTL,default=10m"`

	// Websocket
	WSAllowedOrigins string        `env:"WS_ALLOWED_ORIGINS,default=*"`
	WSPingInterval   time.Duration `env:"WS_PING_INTERVAL,default=25s"`
	WSSendBuffer     int           `env:"WS_SEND_BUFFER,default=64"`

	// Rate Limiting
	RateLimitPerPlayer int           `env:"RATE_LIMIT_PER_PLAYER,default=20"`
	RateLimitPerIP     int           `env:"RATE_LIMIT_PER_IP,default=100"`
	RateLimitWindow    time.Duration `env:"RATE_LIMIT_WINDOW,default=1m"`

	// Telegram spectator feed
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN"`
	TelegramChatID   int64  `env:"TELEGRAM_SPECTATOR_CHAT_ID"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if _, err := env.UnmarshalFromEnviron(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.StorageDriver {
	case "postgres":
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required")
		}
	case "memory":
	default:
		return fmt.Errorf("STORAGE_DRIVER must be 'postgres' or 'memory', got %q", c.StorageDriver)
	}

	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if len(c.JWTSecret) < 32 {
		return fmt.Errorf("JWT_SECRET_KEY must be at least 32 characters")
	}
	if c.DefaultTimerSeconds <= 0 {
		return fmt.Errorf("DEFAULT_TIMER_SECONDS must be positive")
	}
	if c.DefaultMaxPlayers <= 0 {
		return fmt.Errorf("DEFAULT_MAX_PLAYERS must be positive")
	}
	if c.InterQuestionDelay < 0 {
		return fmt.Errorf("INTER_QUESTION_DELAY must not be negative")
	}

	switch c.RelayDriver {
	case "none", "badger":
	case "amqp":
		if c.AMQPURL == "" {
			return fmt.Errorf("AMQP_URL is required when RELAY_DRIVER=amqp")
		}
	default:
		return fmt.Errorf("RELAY_DRIVER must be one of none, amqp, badger, got %q", c.RelayDriver)
	}

	return nil
}

func (c *Config) ValidateProductionSecurity() error {
	if c.AppEnv != "production" {
		return nil
	}

	if c.StorageDriver != "postgres" {
		return fmt.Errorf("STORAGE_DRIVER must be 'postgres' in production")
	}
	if c.DBSSLMode != "require" {
		return fmt.Errorf("DB_SSLMODE must be 'require' in production")
	}
	if c.JWTSecret == "your_jwt_secret_minimum_32_chars_here_change_this" {
		return fmt.Errorf("JWT_SECRET_KEY must be changed from default in production")
	}

	return nil
}

func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode,
	)
}

// OriginPatterns splits WS_ALLOWED_ORIGINS into host patterns.
func (c *Config) OriginPatterns() []string {
	var patterns []string
	for _, p := range strings.Split(c.WSAllowedOrigins, ",") {
		if p = strings.TrimSpace(p); p != "" {
			patterns = append(patterns, p)
		}
	}
	return patterns
}

// TelegramEnabled reports whether the spectator feed should be started.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}
