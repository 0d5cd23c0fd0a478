package config

import (
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	API       APIConfig
	Maps      MapsConfig
	Scheduler SchedulerConfig
}

type ServerConfig struct {
	Port int
	Env  string // "development", "production"
}

type DatabaseConfig struct {
	Host    string
	Port    string
	Name    string
	User    string
	Pass    string
	Charset string
}

type RedisConfig struct {
	Addr string
	Pass string
	DB   int
}

type APIConfig struct {
	Key string
}

type MapsConfig struct {
	APIKey  string
	Timeout time.Duration
}

type SchedulerConfig struct {
	MinInterval     time.Duration
	GeocodeCacheTTL time.Duration
	PreviewCacheTTL time.Duration
	PreviewWindow   time.Duration
}

// Load reads configuration from .env file and environment variables.
func Load() (*Config, error) {
	// Load .env file (ignore error if missing)
	_ = godotenv.Load()

	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("APP_PORT", 8080)
	viper.SetDefault("APP_ENV", "production")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "3306")
	viper.SetDefault("DB_CHARSET", "utf8mb4")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_DB", 0)
	viper.SetDefault("MAPS_TIMEOUT", "30s")
	viper.SetDefault("SCHEDULER_MIN_INTERVAL_SECONDS", 300)
	viper.SetDefault("GEOCODE_CACHE_TTL", "24h")
	viper.SetDefault("PREVIEW_CACHE_TTL", "5m")
	viper.SetDefault("PREVIEW_THROTTLE_WINDOW", "10s")

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetInt("APP_PORT"),
			Env:  viper.GetString("APP_ENV"),
		},
		Database: DatabaseConfig{
			Host:    viper.GetString("DB_HOST"),
			Port:    viper.GetString("DB_PORT"),
			Name:    viper.GetString("DB_NAME"),
			User:    viper.GetString("DB_USER"),
			Pass:    viper.GetString("DB_PASS"),
			Charset: viper.GetString("DB_CHARSET"),
		},
		Redis: RedisConfig{
			Addr: viper.GetString("REDIS_ADDR"),
			Pass: viper.GetString("REDIS_PASS"),
			DB:   viper.GetInt("REDIS_DB"),
		},
		API: APIConfig{
			Key: viper.GetString("API_KEY"),
		},
		Maps: MapsConfig{
			APIKey:  viper.GetString("GOOGLE_MAPS_API_KEY"),
			Timeout: durationOr("MAPS_TIMEOUT", 30*time.Second),
		},
		Scheduler: SchedulerConfig{
			MinInterval:     time.Duration(viper.GetInt("SCHEDULER_MIN_INTERVAL_SECONDS")) * time.Second,
			GeocodeCacheTTL: durationOr("GEOCODE_CACHE_TTL", 24*time.Hour),
			PreviewCacheTTL: durationOr("PREVIEW_CACHE_TTL", 5*time.Minute),
			PreviewWindow:   durationOr("PREVIEW_THROTTLE_WINDOW", 10*time.Second),
		},
	}

	if cfg.Database.Name == "" {
		log.Println("WARNING: DB_NAME is not set")
	}
	if cfg.Maps.APIKey == "" {
		log.Println("WARNING: GOOGLE_MAPS_API_KEY is not set")
	}

	return cfg, nil
}

func durationOr(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(viper.GetString(key))
	if err != nil {
		return fallback
	}
	return d
}

// DSN returns the MySQL DSN string for GORM.
func (d *DatabaseConfig) DSN() string {
	return d.User + ":" + d.Pass + "@tcp(" + d.Host + ":" + d.Port + ")/" + d.Name + "?charset=" + d.Charset + "&parseTime=True&loc=Local"
}
