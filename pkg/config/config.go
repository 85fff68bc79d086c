package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	SQLite    SQLiteConfig
	Redis     RedisConfig
	Cache     CacheConfig
	Matcher   MatcherConfig
	Breaker   BreakerConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
	// Environment "development" drops HSTS.
	Environment string
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CacheConfig struct {
	TTLHours        int
	BuildTimeoutSec int
}

type MatcherConfig struct {
	// Used for alpha/beta when the coefficient is configured nowhere.
	CoefficientFallback float64
	BetaNormalization   float64
	ScoringWorkers      int
}

type BreakerConfig struct {
	MaxRequests      uint32
	IntervalSec      int
	TimeoutSec       int
	FailureThreshold uint32
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/bywebapp")

	viper.SetEnvPrefix("BYWEBAPP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Cache.TTLHours <= 0 {
		return fmt.Errorf("cache.ttlHours must be positive, got %d", c.Cache.TTLHours)
	}
	if c.Matcher.BetaNormalization <= 0 {
		return fmt.Errorf("matcher.betaNormalization must be positive, got %v", c.Matcher.BetaNormalization)
	}
	if c.Matcher.ScoringWorkers <= 0 {
		return fmt.Errorf("matcher.scoringWorkers must be positive, got %d", c.Matcher.ScoringWorkers)
	}
	return nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 1048576)
	viper.SetDefault("server.environment", "production")

	viper.SetDefault("sqlite.path", "./data/bywebapp.db")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("cache.ttlHours", 24)
	viper.SetDefault("cache.buildTimeoutSec", 10)

	viper.SetDefault("matcher.coefficientFallback", 1.0)
	viper.SetDefault("matcher.betaNormalization", 78.75)
	viper.SetDefault("matcher.scoringWorkers", 8)

	viper.SetDefault("breaker.maxRequests", 3)
	viper.SetDefault("breaker.intervalSec", 60)
	viper.SetDefault("breaker.timeoutSec", 30)
	viper.SetDefault("breaker.failureThreshold", 5)

	viper.SetDefault("rateLimit.requestsPerMinute", 600)
	viper.SetDefault("rateLimit.burst", 50)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
