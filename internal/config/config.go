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

// Config holds all the configuration variables for the banking-service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DatabaseURL                string `mapstructure:"DATABASE_URL"`
	RedisURL                   string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix       string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	SecurityAlertExchange      string `mapstructure:"SECURITY_ALERT_EXCHANGE"`
	AuthJWKSURL                string `mapstructure:"AUTH_JWKS_URL"`
	DailyTransferLimitCents    int64  `mapstructure:"DAILY_TRANSFER_LIMIT_CENTS"`
	WeeklyTransferLimitCents   int64  `mapstructure:"WEEKLY_TRANSFER_LIMIT_CENTS"`
	TransferRateLimitPerMinute int    `mapstructure:"TRANSFER_RATE_LIMIT_PER_MINUTE"`
	TwoFactorMaxAttempts       int    `mapstructure:"TWO_FACTOR_MAX_ATTEMPTS"`
	TwoFactorLockoutSeconds    int    `mapstructure:"TWO_FACTOR_LOCKOUT_SECONDS"`
	TOTPIssuer                 string `mapstructure:"TOTP_ISSUER"`
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
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "transpareo:rate_limit")
	viper.SetDefault("SECURITY_ALERT_EXCHANGE", "security_events")
	viper.SetDefault("DAILY_TRANSFER_LIMIT_CENTS", 200_000)
	viper.SetDefault("WEEKLY_TRANSFER_LIMIT_CENTS", 1_000_000)
	viper.SetDefault("TRANSFER_RATE_LIMIT_PER_MINUTE", 30)
	viper.SetDefault("TWO_FACTOR_MAX_ATTEMPTS", 5)
	viper.SetDefault("TWO_FACTOR_LOCKOUT_SECONDS", 600)
	viper.SetDefault("TOTP_ISSUER", "Transpareo")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "BANKING_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("SECURITY_ALERT_EXCHANGE")
	_ = viper.BindEnv("AUTH_JWKS_URL")
	_ = viper.BindEnv("DAILY_TRANSFER_LIMIT_CENTS")
	_ = viper.BindEnv("DAILY_TRANSFER_LIMIT_EUR")
	_ = viper.BindEnv("WEEKLY_TRANSFER_LIMIT_CENTS")
	_ = viper.BindEnv("WEEKLY_TRANSFER_LIMIT_EUR")
	_ = viper.BindEnv("TRANSFER_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("TWO_FACTOR_MAX_ATTEMPTS")
	_ = viper.BindEnv("TWO_FACTOR_LOCKOUT_SECONDS")
	_ = viper.BindEnv("TOTP_ISSUER")

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
		config.RedisRateLimitPrefix = "transpareo:rate_limit"
	}
	config.SecurityAlertExchange = strings.TrimSpace(config.SecurityAlertExchange)
	if config.SecurityAlertExchange == "" {
		config.SecurityAlertExchange = "security_events"
	}

	// Allow specifying limits in whole euros via *_EUR variants.
	if viper.IsSet("DAILY_TRANSFER_LIMIT_EUR") {
		limitStr := strings.TrimSpace(viper.GetString("DAILY_TRANSFER_LIMIT_EUR"))
		if limitStr != "" {
			limitValue, parseErr := strconv.ParseFloat(limitStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid DAILY_TRANSFER_LIMIT_EUR\" value=%q err=%v", limitStr, parseErr)
			} else {
				config.DailyTransferLimitCents = int64(math.Round(limitValue * 100))
			}
		}
	}
	if viper.IsSet("WEEKLY_TRANSFER_LIMIT_EUR") {
		limitStr := strings.TrimSpace(viper.GetString("WEEKLY_TRANSFER_LIMIT_EUR"))
		if limitStr != "" {
			limitValue, parseErr := strconv.ParseFloat(limitStr, 64)
			if parseErr != nil {
				log.Printf("level=warn component=config msg=\"invalid WEEKLY_TRANSFER_LIMIT_EUR\" value=%q err=%v", limitStr, parseErr)
			} else {
				config.WeeklyTransferLimitCents = int64(math.Round(limitValue * 100))
			}
		}
	}

	if config.DailyTransferLimitCents <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive daily transfer limit configured; using default\" limit_cents=%d", config.DailyTransferLimitCents)
		config.DailyTransferLimitCents = 200_000
	}
	if config.WeeklyTransferLimitCents <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive weekly transfer limit configured; using default\" limit_cents=%d", config.WeeklyTransferLimitCents)
		config.WeeklyTransferLimitCents = 1_000_000
	}
	if config.WeeklyTransferLimitCents < config.DailyTransferLimitCents {
		log.Printf("level=warn component=config msg=\"weekly transfer limit below daily limit; raising to match\" daily_cents=%d weekly_cents=%d", config.DailyTransferLimitCents, config.WeeklyTransferLimitCents)
		config.WeeklyTransferLimitCents = config.DailyTransferLimitCents
	}

	if config.TransferRateLimitPerMinute <= 0 {
		config.TransferRateLimitPerMinute = 30
	}
	if config.TwoFactorMaxAttempts <= 0 {
		config.TwoFactorMaxAttempts = 5
	}
	if config.TwoFactorLockoutSeconds <= 0 {
		config.TwoFactorLockoutSeconds = 600
	}
	if strings.TrimSpace(config.TOTPIssuer) == "" {
		config.TOTPIssuer = "Transpareo"
	}

	return
}
