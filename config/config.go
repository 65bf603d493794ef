package config

import (
	"log"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	TokenTTLHours     int    `mapstructure:"TOKEN_TTL_HOURS"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB  int    `mapstructure:"REDIS_CACHE_DB"`
	RedisAuthDB   int    `mapstructure:"REDIS_AUTH_DB"`
	RedisOTPDB    int    `mapstructure:"REDIS_OTP_DB"`
	RedisQueueDB  int    `mapstructure:"REDIS_QUEUE_DB"`

	// Google services.
	GeminiAPIKey             string `mapstructure:"GEMINI_API_KEY"`
	GeminiModel              string `mapstructure:"GEMINI_MODEL"`
	GoogleServiceAccountFile string `mapstructure:"GOOGLE_SERVICE_ACCOUNT_FILE"`
	FirebaseCredentialsFile  string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`

	// Media and payments.
	CloudinaryURL       string `mapstructure:"CLOUDINARY_URL"`
	StripeSecretKey     string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	PackageCatalogFile  string `mapstructure:"PACKAGE_CATALOG_FILE"`

	// Quotas and matching.
	FreeDiagnosesPerDriver int     `mapstructure:"FREE_DIAGNOSES_PER_DRIVER"`
	GuestFreeDiagnoses     int     `mapstructure:"GUEST_FREE_DIAGNOSES"`
	FreeLeadsPerExpert     int     `mapstructure:"FREE_LEADS_PER_EXPERT"`
	MaxLeadsPerDiagnosis   int     `mapstructure:"MAX_LEADS_PER_DIAGNOSIS"`
	MatchRadiusKm          float64 `mapstructure:"MATCH_RADIUS_KM"`
	LeadTTLHours           int     `mapstructure:"LEAD_TTL_HOURS"`
}

var AppConfig Config

func setDefaults() {
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 100)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "autodiag")
	viper.SetDefault("JWT_SECRET", "")
	viper.SetDefault("TOKEN_TTL_HOURS", 24*30)
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_AUTH_DB", 1)
	viper.SetDefault("REDIS_OTP_DB", 2)
	viper.SetDefault("REDIS_QUEUE_DB", 3)
	viper.SetDefault("GEMINI_API_KEY", "")
	viper.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	viper.SetDefault("GOOGLE_SERVICE_ACCOUNT_FILE", "")
	viper.SetDefault("FIREBASE_CREDENTIALS_FILE", "")
	viper.SetDefault("CLOUDINARY_URL", "")
	viper.SetDefault("STRIPE_SECRET_KEY", "")
	viper.SetDefault("STRIPE_WEBHOOK_SECRET", "")
	viper.SetDefault("PACKAGE_CATALOG_FILE", "config/packages.yaml")
	viper.SetDefault("FREE_DIAGNOSES_PER_DRIVER", 3)
	viper.SetDefault("GUEST_FREE_DIAGNOSES", 1)
	viper.SetDefault("FREE_LEADS_PER_EXPERT", 5)
	viper.SetDefault("MAX_LEADS_PER_DIAGNOSIS", 3)
	viper.SetDefault("MATCH_RADIUS_KM", 25.0)
	viper.SetDefault("LEAD_TTL_HOURS", 72)
}

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if AppConfig.JWTSecret == "" {
		if IsProduction() {
			log.Fatal("JWT_SECRET must be set in production")
		}
		AppConfig.JWTSecret = "autodiag-dev-secret"
	}
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}

// TokenTTL returns how long issued auth tokens stay valid.
func TokenTTL() time.Duration {
	if AppConfig.TokenTTLHours <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(AppConfig.TokenTTLHours) * time.Hour
}

// LeadTTL returns how long an untouched lead stays open.
func LeadTTL() time.Duration {
	if AppConfig.LeadTTLHours <= 0 {
		return 72 * time.Hour
	}
	return time.Duration(AppConfig.LeadTTLHours) * time.Hour
}
