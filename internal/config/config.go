package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries every externally-provided setting. It is loaded once in
// main and passed explicitly to each constructor; nothing else reads the
// environment at request time.
type Config struct {
	Environment string `mapstructure:"ENVIRONMENT"`
	Port        string `mapstructure:"PORT"`

	PostgresHost     string `mapstructure:"POSTGRES_HOST"`
	PostgresPort     string `mapstructure:"POSTGRES_PORT"`
	PostgresUser     string `mapstructure:"POSTGRES_USER"`
	PostgresPassword string `mapstructure:"POSTGRES_PASSWORD"`
	PostgresName     string `mapstructure:"POSTGRES_NAME"`

	// Empty RedisAddr disables the cache layer entirely.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	JWTAccessSecret   string `mapstructure:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret  string `mapstructure:"JWT_REFRESH_SECRET"`
	AccessTTLMinutes  int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`
	RefreshTTLMinutes int    `mapstructure:"REFRESH_TOKEN_EXPIRE_MINUTES"`

	GenAIAPIKey         string `mapstructure:"GENAI_API_KEY"`
	GenAIBaseURL        string `mapstructure:"GENAI_BASE_URL"`
	GenAIModel          string `mapstructure:"GENAI_MODEL"`
	GenAITimeoutSeconds int    `mapstructure:"GENAI_TIMEOUT_SECONDS"`

	QlooAPIKey         string `mapstructure:"QLOO_API_KEY"`
	QlooAPIURL         string `mapstructure:"QLOO_API_URL"`
	QlooTimeoutSeconds int    `mapstructure:"QLOO_TIMEOUT_SECONDS"`

	CORSAllowOrigins string `mapstructure:"CORS_ALLOW_ORIGINS"`
}

// Load reads configuration from a .env file at path (optional) and the
// process environment, with environment taking precedence.
func Load(path string) (Config, error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	// Defaults double as key registration: AutomaticEnv only surfaces keys
	// viper already knows about when unmarshaling into a struct.
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("POSTGRES_HOST", "localhost")
	v.SetDefault("POSTGRES_PORT", "5432")
	v.SetDefault("POSTGRES_USER", "postgres")
	v.SetDefault("POSTGRES_NAME", "sanctuary")
	v.SetDefault("POSTGRES_PASSWORD", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_SECRET", "")
	v.SetDefault("JWT_REFRESH_SECRET", "")
	v.SetDefault("ACCESS_TOKEN_EXPIRE_MINUTES", 60)
	v.SetDefault("REFRESH_TOKEN_EXPIRE_MINUTES", 60*24*7)
	v.SetDefault("GENAI_API_KEY", "")
	v.SetDefault("GENAI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GENAI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GENAI_TIMEOUT_SECONDS", 30)
	v.SetDefault("QLOO_API_KEY", "")
	v.SetDefault("QLOO_API_URL", "https://api.qloo.com/recommendations")
	v.SetDefault("QLOO_TIMEOUT_SECONDS", 10)
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.PostgresUser, c.PostgresPassword, c.PostgresHost, c.PostgresPort, c.PostgresName)
}

func (c Config) AccessTTL() time.Duration {
	return time.Duration(c.AccessTTLMinutes) * time.Minute
}

func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLMinutes) * time.Minute
}
