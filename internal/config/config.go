package config

import (
	"sync"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	S3        S3Config
	Azure     AzureConfig
	Drive     DriveConfig
	Catalog   CatalogConfig
	Cache     CacheConfig
	Discovery DiscoveryConfig
}

type ServerConfig struct {
	Port           string
	Mode           string
	ReadTimeout    int
	WriteTimeout   int
	AllowedOrigins []string
}

// S3Config covers any S3-compatible endpoint (AWS, MinIO, Sevalla, ...).
type S3Config struct {
	Endpoint           string
	AccessKey          string
	SecretKey          string
	Region             string
	UseSSL             bool
	PageTimeoutSeconds int
}

type AzureConfig struct {
	ConnectionString   string
	PageTimeoutSeconds int
}

type DriveConfig struct {
	CredentialsJSON    string
	PageTimeoutSeconds int
}

type CatalogConfig struct {
	Enabled  bool
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type CacheConfig struct {
	Enabled       bool
	RedisURL      string
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	TTLSeconds    int
}

// DiscoveryConfig holds defaults applied when a request does not specify them.
type DiscoveryConfig struct {
	MaxKeys        int
	Parallelism    int
	TimeoutSeconds int
}

var (
	once     sync.Once
	instance *Config
)

func Load() *Config {
	once.Do(func() {
		// Load .env file if it exists
		_ = godotenv.Load()

		// Set default values
		viper.SetDefault("SERVER_PORT", "8080")
		viper.SetDefault("SERVER_MODE", "debug")
		viper.SetDefault("SERVER_READ_TIMEOUT", 15)
		viper.SetDefault("SERVER_WRITE_TIMEOUT", 30)
		viper.SetDefault("SERVER_ALLOWED_ORIGINS", []string{"*"})
		viper.SetDefault("S3_ENDPOINT", "")
		viper.SetDefault("S3_ACCESS_KEY", "")
		viper.SetDefault("S3_SECRET_KEY", "")
		viper.SetDefault("S3_REGION", "us-east-1")
		viper.SetDefault("S3_USE_SSL", true)
		viper.SetDefault("S3_PAGE_TIMEOUT_SECONDS", 30)
		viper.SetDefault("AZURE_STORAGE_CONNECTION_STRING", "")
		viper.SetDefault("AZURE_PAGE_TIMEOUT_SECONDS", 30)
		viper.SetDefault("GOOGLE_DRIVE_CREDENTIALS_JSON", "")
		viper.SetDefault("GOOGLE_DRIVE_PAGE_TIMEOUT_SECONDS", 30)
		viper.SetDefault("CATALOG_ENABLED", false)
		viper.SetDefault("CATALOG_DB_HOST", "localhost")
		viper.SetDefault("CATALOG_DB_PORT", "5432")
		viper.SetDefault("CATALOG_DB_USER", "postgres")
		viper.SetDefault("CATALOG_DB_PASSWORD", "postgres")
		viper.SetDefault("CATALOG_DB_NAME", "batchsource")
		viper.SetDefault("CATALOG_DB_SSLMODE", "disable")
		viper.SetDefault("CACHE_ENABLED", false)
		viper.SetDefault("REDIS_URL", "")
		viper.SetDefault("REDIS_HOST", "127.0.0.1")
		viper.SetDefault("REDIS_PORT", "6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("CACHE_DISCOVERY_TTL_SECONDS", 60)
		viper.SetDefault("DISCOVERY_MAX_KEYS", 1000)
		viper.SetDefault("DISCOVERY_PARALLELISM", 1)
		viper.SetDefault("DISCOVERY_TIMEOUT_SECONDS", 120)

		// Read from environment variables
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Port:           viper.GetString("SERVER_PORT"),
				Mode:           viper.GetString("SERVER_MODE"),
				ReadTimeout:    viper.GetInt("SERVER_READ_TIMEOUT"),
				WriteTimeout:   viper.GetInt("SERVER_WRITE_TIMEOUT"),
				AllowedOrigins: viper.GetStringSlice("SERVER_ALLOWED_ORIGINS"),
			},
			S3: S3Config{
				Endpoint:           viper.GetString("S3_ENDPOINT"),
				AccessKey:          viper.GetString("S3_ACCESS_KEY"),
				SecretKey:          viper.GetString("S3_SECRET_KEY"),
				Region:             viper.GetString("S3_REGION"),
				UseSSL:             viper.GetBool("S3_USE_SSL"),
				PageTimeoutSeconds: viper.GetInt("S3_PAGE_TIMEOUT_SECONDS"),
			},
			Azure: AzureConfig{
				ConnectionString:   viper.GetString("AZURE_STORAGE_CONNECTION_STRING"),
				PageTimeoutSeconds: viper.GetInt("AZURE_PAGE_TIMEOUT_SECONDS"),
			},
			Drive: DriveConfig{
				CredentialsJSON:    viper.GetString("GOOGLE_DRIVE_CREDENTIALS_JSON"),
				PageTimeoutSeconds: viper.GetInt("GOOGLE_DRIVE_PAGE_TIMEOUT_SECONDS"),
			},
			Catalog: CatalogConfig{
				Enabled:  viper.GetBool("CATALOG_ENABLED"),
				Host:     viper.GetString("CATALOG_DB_HOST"),
				Port:     viper.GetString("CATALOG_DB_PORT"),
				User:     viper.GetString("CATALOG_DB_USER"),
				Password: viper.GetString("CATALOG_DB_PASSWORD"),
				DBName:   viper.GetString("CATALOG_DB_NAME"),
				SSLMode:  viper.GetString("CATALOG_DB_SSLMODE"),
			},
			Cache: CacheConfig{
				Enabled:       viper.GetBool("CACHE_ENABLED"),
				RedisURL:      viper.GetString("REDIS_URL"),
				RedisHost:     viper.GetString("REDIS_HOST"),
				RedisPort:     viper.GetString("REDIS_PORT"),
				RedisPassword: viper.GetString("REDIS_PASSWORD"),
				RedisDB:       viper.GetInt("REDIS_DB"),
				TTLSeconds:    viper.GetInt("CACHE_DISCOVERY_TTL_SECONDS"),
			},
			Discovery: DiscoveryConfig{
				MaxKeys:        viper.GetInt("DISCOVERY_MAX_KEYS"),
				Parallelism:    viper.GetInt("DISCOVERY_PARALLELISM"),
				TimeoutSeconds: viper.GetInt("DISCOVERY_TIMEOUT_SECONDS"),
			},
		}
	})

	return instance
}
