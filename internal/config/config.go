package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/makeasinger/midiconv/internal/model"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	R2         R2Config
	Zitadel    ZitadelConfig
	Inference  InferenceConfig
	Storage    StorageConfig
	Worker     WorkerConfig
	Gateway    GatewayConfig
	Conversion ConversionConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	SeparatePerHour int
	ConvertPerHour  int
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
	URLExpiry       int // minutes
}

type ZitadelConfig struct {
	Domain   string
	ClientID string
	Issuer   string
}

// InferenceConfig points at the separation/transcription model service
type InferenceConfig struct {
	ServiceURL string
	Timeout    int // seconds
	Device     string
	// Separator is "ai" for the model service or "none" for a single mix stem
	Separator string
}

type StorageConfig struct {
	Root          string
	RetainUploads bool
	RetainStems   bool
	MaxUploadMB   int
	// JobStore is redis, postgres or memory
	JobStore    string
	PostgresDSN string
	// JobTTLHours expires Redis job records; 0 keeps them until deleted
	JobTTLHours int
}

type WorkerConfig struct {
	Concurrency    int
	SeparateWeight int
	ConvertWeight  int
}

type GatewayConfig struct {
	Enabled bool
}

// ConversionConfig holds service-wide conversion defaults
type ConversionConfig struct {
	QuantizationGrid string
	DetectTempo      bool
	MinConfidence    float64
	MinDuration      float64
	MaxDuration      float64
	UseAI            bool
	DefaultTempo     float64
}

// Defaults returns the configured conversion defaults as a model config
func (c ConversionConfig) Defaults() model.ConversionConfig {
	cfg := model.DefaultConversionConfig()
	if c.QuantizationGrid != "" {
		cfg.QuantizationGrid = model.Grid(c.QuantizationGrid)
	}
	cfg.DetectTempo = c.DetectTempo
	cfg.MinConfidence = c.MinConfidence
	cfg.MinDuration = c.MinDuration
	cfg.MaxDuration = c.MaxDuration
	cfg.UseAI = c.UseAI
	if c.DefaultTempo > 0 {
		cfg.DefaultTempo = c.DefaultTempo
	}
	return cfg
}

func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("JWT_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")
	readSecret("ZITADEL_CLIENT_ID")
	readSecret("POSTGRES_DSN")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("jwt.secret", "JWT_SECRET")
	_ = viper.BindEnv("jwt.expiration", "JWT_EXPIRATION")
	_ = viper.BindEnv("ratelimit.separate_per_hour", "RATELIMIT_SEPARATE_PER_HOUR")
	_ = viper.BindEnv("ratelimit.convert_per_hour", "RATELIMIT_CONVERT_PER_HOUR")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("r2.url_expiry", "R2_URL_EXPIRY_MINUTES")
	_ = viper.BindEnv("zitadel.domain", "ZITADEL_DOMAIN")
	_ = viper.BindEnv("zitadel.client_id", "ZITADEL_CLIENT_ID")
	_ = viper.BindEnv("zitadel.issuer", "ZITADEL_ISSUER")
	_ = viper.BindEnv("inference.service_url", "INFERENCE_SERVICE_URL")
	_ = viper.BindEnv("inference.timeout", "INFERENCE_TIMEOUT")
	_ = viper.BindEnv("inference.device", "INFERENCE_DEVICE")
	_ = viper.BindEnv("inference.separator", "SEPARATOR")
	_ = viper.BindEnv("storage.root", "STORAGE_ROOT")
	_ = viper.BindEnv("storage.retain_uploads", "RETAIN_UPLOADS")
	_ = viper.BindEnv("storage.retain_stems", "RETAIN_STEMS")
	_ = viper.BindEnv("storage.max_upload_mb", "MAX_UPLOAD_SIZE_MB")
	_ = viper.BindEnv("storage.job_store", "JOB_STORE")
	_ = viper.BindEnv("storage.postgres_dsn", "POSTGRES_DSN")
	_ = viper.BindEnv("storage.job_ttl_hours", "JOB_TTL_HOURS")
	_ = viper.BindEnv("worker.concurrency", "WORKER_CONCURRENCY")
	_ = viper.BindEnv("worker.separate_weight", "WORKER_SEPARATE_WEIGHT")
	_ = viper.BindEnv("worker.convert_weight", "WORKER_CONVERT_WEIGHT")
	_ = viper.BindEnv("gateway.enabled", "GATEWAY_ENABLED")
	_ = viper.BindEnv("conversion.quantization_grid", "QUANTIZATION_GRID")
	_ = viper.BindEnv("conversion.detect_tempo", "DETECT_TEMPO")
	_ = viper.BindEnv("conversion.min_confidence", "MIN_CONFIDENCE")
	_ = viper.BindEnv("conversion.min_duration", "MIN_NOTE_DURATION")
	_ = viper.BindEnv("conversion.max_duration", "MAX_NOTE_DURATION")
	_ = viper.BindEnv("conversion.use_ai", "USE_AI")
	_ = viper.BindEnv("conversion.default_tempo", "DEFAULT_TEMPO")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("jwt.secret", "change-me-in-production")
	viper.SetDefault("jwt.expiration", 24)
	viper.SetDefault("ratelimit.separate_per_hour", 10)
	viper.SetDefault("ratelimit.convert_per_hour", 30)
	viper.SetDefault("r2.url_expiry", 60)

	// Inference defaults
	viper.SetDefault("inference.service_url", "http://localhost:8084")
	viper.SetDefault("inference.timeout", 600)
	viper.SetDefault("inference.device", "cpu")
	viper.SetDefault("inference.separator", "ai")

	// Storage defaults
	viper.SetDefault("storage.root", "./data")
	viper.SetDefault("storage.retain_uploads", true)
	viper.SetDefault("storage.retain_stems", true)
	viper.SetDefault("storage.max_upload_mb", 100)
	viper.SetDefault("storage.job_store", "redis")
	viper.SetDefault("storage.job_ttl_hours", 0)

	// Worker defaults
	viper.SetDefault("worker.concurrency", 2)
	viper.SetDefault("worker.separate_weight", 3)
	viper.SetDefault("worker.convert_weight", 5)

	viper.SetDefault("gateway.enabled", false)

	// Conversion defaults
	viper.SetDefault("conversion.quantization_grid", "none")
	viper.SetDefault("conversion.detect_tempo", true)
	viper.SetDefault("conversion.min_confidence", 0.3)
	viper.SetDefault("conversion.min_duration", 0.05)
	viper.SetDefault("conversion.max_duration", 0)
	viper.SetDefault("conversion.use_ai", false)
	viper.SetDefault("conversion.default_tempo", 120)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     viper.GetString("jwt.secret"),
			Expiration: viper.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			SeparatePerHour: viper.GetInt("ratelimit.separate_per_hour"),
			ConvertPerHour:  viper.GetInt("ratelimit.convert_per_hour"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
			URLExpiry:       viper.GetInt("r2.url_expiry"),
		},
		Zitadel: ZitadelConfig{
			Domain:   viper.GetString("zitadel.domain"),
			ClientID: viper.GetString("zitadel.client_id"),
			Issuer:   viper.GetString("zitadel.issuer"),
		},
		Inference: InferenceConfig{
			ServiceURL: viper.GetString("inference.service_url"),
			Timeout:    viper.GetInt("inference.timeout"),
			Device:     viper.GetString("inference.device"),
			Separator:  viper.GetString("inference.separator"),
		},
		Storage: StorageConfig{
			Root:          viper.GetString("storage.root"),
			RetainUploads: viper.GetBool("storage.retain_uploads"),
			RetainStems:   viper.GetBool("storage.retain_stems"),
			MaxUploadMB:   viper.GetInt("storage.max_upload_mb"),
			JobStore:      viper.GetString("storage.job_store"),
			PostgresDSN:   viper.GetString("storage.postgres_dsn"),
			JobTTLHours:   viper.GetInt("storage.job_ttl_hours"),
		},
		Worker: WorkerConfig{
			Concurrency:    viper.GetInt("worker.concurrency"),
			SeparateWeight: viper.GetInt("worker.separate_weight"),
			ConvertWeight:  viper.GetInt("worker.convert_weight"),
		},
		Gateway: GatewayConfig{
			Enabled: viper.GetBool("gateway.enabled"),
		},
		Conversion: ConversionConfig{
			QuantizationGrid: viper.GetString("conversion.quantization_grid"),
			DetectTempo:      viper.GetBool("conversion.detect_tempo"),
			MinConfidence:    viper.GetFloat64("conversion.min_confidence"),
			MinDuration:      viper.GetFloat64("conversion.min_duration"),
			MaxDuration:      viper.GetFloat64("conversion.max_duration"),
			UseAI:            viper.GetBool("conversion.use_ai"),
			DefaultTempo:     viper.GetFloat64("conversion.default_tempo"),
		},
	}

	return cfg, nil
}
