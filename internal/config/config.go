/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the wallet-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort            string `mapstructure:"SERVER_PORT"`
	DatabaseURL           string `mapstructure:"DATABASE_URL"`
	RedisURL              string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix  string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL           string `mapstructure:"RABBITMQ_URL"`
	JWTSecret             string `mapstructure:"JWT_SECRET"`
	QRTokenSecret         string `mapstructure:"QR_TOKEN_SECRET"`
	QRTokenTTLMinutes     int    `mapstructure:"QR_TOKEN_TTL_MINUTES"`
	AllowedOrigins        string `mapstructure:"ALLOWED_ORIGINS"`
	CardEmissionFeeCents  int64  `mapstructure:"CARD_EMISSION_FEE_CENTS"`
	TapRateLimitPerMinute int    `mapstructure:"TAP_RATE_LIMIT_PER_MINUTE"`
	StaleReviewHours      int    `mapstructure:"STALE_REVIEW_HOURS"`
	StaleReviewSweepCron  string `mapstructure:"STALE_REVIEW_SWEEP_CRON"`
	StaleReviewBatchSize  int    `mapstructure:"STALE_REVIEW_BATCH_SIZE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "suba:rate_limit")
	viper.SetDefault("QR_TOKEN_TTL_MINUTES", 15)
	viper.SetDefault("ALLOWED_ORIGINS", "*")
	viper.SetDefault("CARD_EMISSION_FEE_CENTS", 50000)
	viper.SetDefault("TAP_RATE_LIMIT_PER_MINUTE", 12)
	viper.SetDefault("STALE_REVIEW_HOURS", 24)
	viper.SetDefault("STALE_REVIEW_SWEEP_CRON", "0 * * * *")
	viper.SetDefault("STALE_REVIEW_BATCH_SIZE", 200)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "WALLET_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("QR_TOKEN_SECRET", "QR_TOKEN_SECRET", "JWT_SECRET")
	_ = viper.BindEnv("QR_TOKEN_TTL_MINUTES")
	_ = viper.BindEnv("ALLOWED_ORIGINS")
	_ = viper.BindEnv("CARD_EMISSION_FEE_CENTS")
	_ = viper.BindEnv("CARD_EMISSION_FEE")
	_ = viper.BindEnv("TAP_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("STALE_REVIEW_HOURS")
	_ = viper.BindEnv("STALE_REVIEW_SWEEP_CRON")
	_ = viper.BindEnv("STALE_REVIEW_BATCH_SIZE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "suba:rate_limit"
	}
	config.QRTokenSecret = strings.TrimSpace(config.QRTokenSecret)
	if config.QRTokenSecret == "" {
		config.QRTokenSecret = strings.TrimSpace(config.JWTSecret)
	}

	// Allow specifying the emission fee in whole currency units via CARD_EMISSION_FEE.
	if viper.IsSet("CARD_EMISSION_FEE") {
		feeStr := strings.TrimSpace(viper.GetString("CARD_EMISSION_FEE"))
		if feeStr != "" {
			feeValue, parseErr := strconv.ParseFloat(feeStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid CARD_EMISSION_FEE\" value=%q err=%v", feeStr, parseErr)
			} else {
				config.CardEmissionFeeCents = int64(math.Round(feeValue * 100))
			}
		}
	}

	if config.CardEmissionFeeCents < 0 {
		log.Printf("level=warn component=config msg=\"negative emission fee configured; coercing to zero\" fee_cents=%d", config.CardEmissionFeeCents)
		config.CardEmissionFeeCents = 0
	}

	if config.QRTokenTTLMinutes <= 0 || config.QRTokenTTLMinutes > 15 {
		log.Printf("level=warn component=config msg=\"qr token ttl out of range; capping at 15 minutes\" ttl_minutes=%d", config.QRTokenTTLMinutes)
		config.QRTokenTTLMinutes = 15
	}
	if config.TapRateLimitPerMinute <= 0 {
		config.TapRateLimitPerMinute = 12
	}
	if config.StaleReviewHours <= 0 {
		config.StaleReviewHours = 24
	}
	if strings.TrimSpace(config.StaleReviewSweepCron) == "" {
		config.StaleReviewSweepCron = "0 * * * *"
	}
	if config.StaleReviewBatchSize <= 0 {
		config.StaleReviewBatchSize = 200
	}

	return
}

// Origins splits the configured ALLOWED_ORIGINS into a slice for the CORS layer.
func (c Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		out = []string{"*"}
	}
	return out
}
