package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"bananaslides/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	DB         DBConfig
	S3         S3Config
	Redis      RedisConfig
	Log        LogConfig
	CORS       CORSConfig
	Queue      QueueConfig
	Conversion ConversionConfig
	Providers  ProvidersConfig
	Notify     NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxOpen  int    `mapstructure:"max_open"`
	MaxIdle  int    `mapstructure:"max_idle"`
}

// DSN returns the PostgreSQL connection string.
func (d *DBConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// S3Config holds object storage settings for page images and artifacts.
type S3Config struct {
	Region         string `mapstructure:"region"`
	PageBucket     string `mapstructure:"page_bucket"`
	ArtifactBucket string `mapstructure:"artifact_bucket"`
	Endpoint       string `mapstructure:"endpoint"`
	AccessKey      string `mapstructure:"access_key"`
	SecretKey      string `mapstructure:"secret_key"`
	PresignExpiry  int64  `mapstructure:"presign_expiry"`
}

// RedisConfig holds the status mirror connection. An empty Addr disables it.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// QueueConfig bounds how much conversion work runs at once.
type QueueConfig struct {
	MaxTasks        int           `mapstructure:"max_tasks"`
	PageConcurrency int           `mapstructure:"page_concurrency"`
	Backlog         int           `mapstructure:"backlog"`
	Retention       time.Duration `mapstructure:"retention"`
}

// ConversionConfig is the read-only settings store consulted when a request omits a choice.
type ConversionConfig struct {
	ExtractorMethod  string        `mapstructure:"extractor_method"`
	InpaintMethod    string        `mapstructure:"inpaint_method"`
	TextStyleMode    string        `mapstructure:"text_style_mode"`
	OutputResolution string        `mapstructure:"output_resolution"`
	ImageFormat      string        `mapstructure:"image_format"`
	PreferOffline    bool          `mapstructure:"prefer_offline"`
	PageDeadline     time.Duration `mapstructure:"page_deadline"`
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryBaseDelay   time.Duration `mapstructure:"retry_base_delay"`
	MaskPadding      int           `mapstructure:"mask_padding"`
	MaxDepth         int           `mapstructure:"max_depth"`
	MinImageSize     int           `mapstructure:"min_image_size"`
	MinImageArea     int           `mapstructure:"min_image_area"`
}

// Defaults returns the configured default settings, with network-backed methods
// replaced by their local equivalents when PreferOffline is set.
func (c *ConversionConfig) Defaults() domain.ConversionSettings {
	s := domain.ConversionSettings{
		ExtractorMethod:  domain.ExtractorMethod(c.ExtractorMethod),
		InpaintMethod:    domain.InpaintMethod(c.InpaintMethod),
		TextStyleMode:    domain.TextStyleMode(c.TextStyleMode),
		OutputResolution: domain.OutputResolution(c.OutputResolution),
		ImageFormat:      domain.ImageFormat(c.ImageFormat),
	}
	depth := c.MaxDepth
	s.MaxDepth = &depth
	if c.PreferOffline {
		s.ExtractorMethod = domain.ExtractorOffline
		if s.InpaintMethod.NeedsNetwork() {
			s.InpaintMethod = domain.InpaintOffline
		}
		if s.TextStyleMode == domain.StyleInferredAI {
			s.TextStyleMode = domain.StyleInferredVisual
		}
	}
	return s
}

// EndpointConfig describes one HTTP provider.
type EndpointConfig struct {
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"api_key"`
	Model       string `mapstructure:"model"`
	TimeoutSecs int    `mapstructure:"timeout_secs"`
}

// Configured reports whether the provider has an endpoint.
func (e *EndpointConfig) Configured() bool {
	return e.URL != ""
}

// Timeout returns the per-request timeout.
func (e *EndpointConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSecs) * time.Second
}

// ProvidersConfig holds the extraction, inpaint and style backends.
type ProvidersConfig struct {
	Layout        EndpointConfig `mapstructure:"layout"`
	OCR           EndpointConfig `mapstructure:"ocr"`
	Generative    EndpointConfig `mapstructure:"generative"`
	LocalOCR      EndpointConfig `mapstructure:"local_ocr"`
	LocalInpaint  EndpointConfig `mapstructure:"local_inpaint"`
	Style         EndpointConfig `mapstructure:"style"`
	TesseractLang string         `mapstructure:"tesseract_lang"`
	LowConfidence float64        `mapstructure:"low_confidence"`
}

// NotifyConfig holds terminal-state email settings.
type NotifyConfig struct {
	Provider    string `mapstructure:"provider"`
	Region      string `mapstructure:"region"`
	FromAddress string `mapstructure:"from_address"`
	FromName    string `mapstructure:"from_name"`
}

// Load reads configuration from an optional .env file and environment variables with the BANANA_ prefix.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("BANANA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Server defaults
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "60s")
	v.SetDefault("server.environment", "development")

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "bananaslides")
	v.SetDefault("db.password", "bananaslides_secret")
	v.SetDefault("db.name", "bananaslides")
	v.SetDefault("db.sslmode", "disable")
	v.SetDefault("db.max_open", 25)
	v.SetDefault("db.max_idle", 10)

	// S3 defaults
	v.SetDefault("s3.region", "us-east-1")
	v.SetDefault("s3.page_bucket", "bananaslides-pages")
	v.SetDefault("s3.artifact_bucket", "bananaslides-artifacts")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.presign_expiry", 3600)

	// Redis defaults (disabled)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "banana:")
	v.SetDefault("redis.ttl", "24h")

	// Log defaults
	v.SetDefault("log.level", "debug")
	v.SetDefault("log.format", "console")

	v.SetDefault("cors.allowed_origins", "http://localhost:3000,http://127.0.0.1:3000")

	// Queue defaults
	v.SetDefault("queue.max_tasks", 4)
	v.SetDefault("queue.page_concurrency", 3)
	v.SetDefault("queue.backlog", 64)
	v.SetDefault("queue.retention", "15m")

	// Conversion defaults
	v.SetDefault("conversion.extractor_method", string(domain.ExtractorHybrid))
	v.SetDefault("conversion.inpaint_method", string(domain.InpaintHybrid))
	v.SetDefault("conversion.text_style_mode", string(domain.StyleInferredVisual))
	v.SetDefault("conversion.output_resolution", string(domain.Resolution2K))
	v.SetDefault("conversion.image_format", string(domain.ImageFormatPNG))
	v.SetDefault("conversion.prefer_offline", false)
	v.SetDefault("conversion.page_deadline", "3m")
	v.SetDefault("conversion.max_attempts", 3)
	v.SetDefault("conversion.retry_base_delay", "2s")
	v.SetDefault("conversion.mask_padding", 5)
	v.SetDefault("conversion.max_depth", 1)
	v.SetDefault("conversion.min_image_size", 200)
	v.SetDefault("conversion.min_image_area", 40000)

	// Provider defaults
	for _, p := range []string{"layout", "ocr", "generative", "local_ocr", "local_inpaint", "style"} {
		v.SetDefault("providers."+p+".url", "")
		v.SetDefault("providers."+p+".timeout_secs", 120)
	}
	v.SetDefault("providers.generative.model", "gemini-2.5-flash-image")
	v.SetDefault("providers.style.model", "gemini-2.5-flash")
	v.SetDefault("providers.tesseract_lang", "eng")
	v.SetDefault("providers.low_confidence", 0.6)

	// Notify defaults
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("notify.region", "us-east-1")
	v.SetDefault("notify.from_address", "noreply@bananaslides.dev")
	v.SetDefault("notify.from_name", "Banana Slides")

	// Bind environment variables explicitly for nested keys
	envBindings := map[string]string{
		"server.port":                          "BANANA_SERVER_PORT",
		"server.read_timeout":                  "BANANA_SERVER_READ_TIMEOUT",
		"server.write_timeout":                 "BANANA_SERVER_WRITE_TIMEOUT",
		"server.environment":                   "BANANA_SERVER_ENVIRONMENT",
		"db.host":                              "BANANA_DB_HOST",
		"db.port":                              "BANANA_DB_PORT",
		"db.user":                              "BANANA_DB_USER",
		"db.password":                          "BANANA_DB_PASSWORD",
		"db.name":                              "BANANA_DB_NAME",
		"db.sslmode":                           "BANANA_DB_SSLMODE",
		"db.max_open":                          "BANANA_DB_MAX_OPEN",
		"db.max_idle":                          "BANANA_DB_MAX_IDLE",
		"s3.region":                            "BANANA_S3_REGION",
		"s3.page_bucket":                       "BANANA_S3_PAGE_BUCKET",
		"s3.artifact_bucket":                   "BANANA_S3_ARTIFACT_BUCKET",
		"s3.endpoint":                          "BANANA_S3_ENDPOINT",
		"s3.access_key":                        "BANANA_S3_ACCESS_KEY",
		"s3.secret_key":                        "BANANA_S3_SECRET_KEY",
		"s3.presign_expiry":                    "BANANA_S3_PRESIGN_EXPIRY",
		"redis.addr":                           "BANANA_REDIS_ADDR",
		"redis.password":                       "BANANA_REDIS_PASSWORD",
		"redis.db":                             "BANANA_REDIS_DB",
		"redis.prefix":                         "BANANA_REDIS_PREFIX",
		"redis.ttl":                            "BANANA_REDIS_TTL",
		"log.level":                            "BANANA_LOG_LEVEL",
		"log.format":                           "BANANA_LOG_FORMAT",
		"cors.allowed_origins":                 "BANANA_CORS_ALLOWED_ORIGINS",
		"queue.max_tasks":                      "BANANA_QUEUE_MAX_TASKS",
		"queue.page_concurrency":               "BANANA_QUEUE_PAGE_CONCURRENCY",
		"queue.backlog":                        "BANANA_QUEUE_BACKLOG",
		"queue.retention":                      "BANANA_QUEUE_RETENTION",
		"conversion.extractor_method":          "BANANA_CONVERSION_EXTRACTOR_METHOD",
		"conversion.inpaint_method":            "BANANA_CONVERSION_INPAINT_METHOD",
		"conversion.text_style_mode":           "BANANA_CONVERSION_TEXT_STYLE_MODE",
		"conversion.output_resolution":         "BANANA_CONVERSION_OUTPUT_RESOLUTION",
		"conversion.image_format":              "BANANA_CONVERSION_IMAGE_FORMAT",
		"conversion.prefer_offline":            "BANANA_CONVERSION_PREFER_OFFLINE",
		"conversion.page_deadline":             "BANANA_CONVERSION_PAGE_DEADLINE",
		"conversion.max_attempts":              "BANANA_CONVERSION_MAX_ATTEMPTS",
		"conversion.retry_base_delay":          "BANANA_CONVERSION_RETRY_BASE_DELAY",
		"conversion.mask_padding":              "BANANA_CONVERSION_MASK_PADDING",
		"conversion.max_depth":                 "BANANA_CONVERSION_MAX_DEPTH",
		"conversion.min_image_size":            "BANANA_CONVERSION_MIN_IMAGE_SIZE",
		"conversion.min_image_area":            "BANANA_CONVERSION_MIN_IMAGE_AREA",
		"providers.layout.url":                 "BANANA_PROVIDERS_LAYOUT_URL",
		"providers.layout.api_key":             "BANANA_PROVIDERS_LAYOUT_API_KEY",
		"providers.layout.timeout_secs":        "BANANA_PROVIDERS_LAYOUT_TIMEOUT_SECS",
		"providers.ocr.url":                    "BANANA_PROVIDERS_OCR_URL",
		"providers.ocr.api_key":                "BANANA_PROVIDERS_OCR_API_KEY",
		"providers.ocr.timeout_secs":           "BANANA_PROVIDERS_OCR_TIMEOUT_SECS",
		"providers.generative.url":             "BANANA_PROVIDERS_GENERATIVE_URL",
		"providers.generative.api_key":         "BANANA_PROVIDERS_GENERATIVE_API_KEY",
		"providers.generative.model":           "BANANA_PROVIDERS_GENERATIVE_MODEL",
		"providers.generative.timeout_secs":    "BANANA_PROVIDERS_GENERATIVE_TIMEOUT_SECS",
		"providers.local_ocr.url":              "BANANA_PROVIDERS_LOCAL_OCR_URL",
		"providers.local_ocr.timeout_secs":     "BANANA_PROVIDERS_LOCAL_OCR_TIMEOUT_SECS",
		"providers.local_inpaint.url":          "BANANA_PROVIDERS_LOCAL_INPAINT_URL",
		"providers.local_inpaint.timeout_secs": "BANANA_PROVIDERS_LOCAL_INPAINT_TIMEOUT_SECS",
		"providers.style.url":                  "BANANA_PROVIDERS_STYLE_URL",
		"providers.style.api_key":              "BANANA_PROVIDERS_STYLE_API_KEY",
		"providers.style.model":                "BANANA_PROVIDERS_STYLE_MODEL",
		"providers.style.timeout_secs":         "BANANA_PROVIDERS_STYLE_TIMEOUT_SECS",
		"providers.tesseract_lang":             "BANANA_PROVIDERS_TESSERACT_LANG",
		"providers.low_confidence":             "BANANA_PROVIDERS_LOW_CONFIDENCE",
		"notify.provider":                      "BANANA_NOTIFY_PROVIDER",
		"notify.region":                        "BANANA_NOTIFY_REGION",
		"notify.from_address":                  "BANANA_NOTIFY_FROM_ADDRESS",
		"notify.from_name":                     "BANANA_NOTIFY_FROM_NAME",
	}
	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	cfg := &Config{}

	// Platforms that inject PORT win unless BANANA_SERVER_PORT is set.
	serverPort := v.GetString("server.port")
	if port := os.Getenv("PORT"); port != "" && os.Getenv("BANANA_SERVER_PORT") == "" {
		serverPort = ":" + port
	}

	cfg.Server = ServerConfig{
		Port:         serverPort,
		ReadTimeout:  v.GetDuration("server.read_timeout"),
		WriteTimeout: v.GetDuration("server.write_timeout"),
		Environment:  v.GetString("server.environment"),
	}
	cfg.DB = DBConfig{
		Host:     v.GetString("db.host"),
		Port:     v.GetInt("db.port"),
		User:     v.GetString("db.user"),
		Password: v.GetString("db.password"),
		Name:     v.GetString("db.name"),
		SSLMode:  v.GetString("db.sslmode"),
		MaxOpen:  v.GetInt("db.max_open"),
		MaxIdle:  v.GetInt("db.max_idle"),
	}
	cfg.S3 = S3Config{
		Region:         v.GetString("s3.region"),
		PageBucket:     v.GetString("s3.page_bucket"),
		ArtifactBucket: v.GetString("s3.artifact_bucket"),
		Endpoint:       v.GetString("s3.endpoint"),
		AccessKey:      v.GetString("s3.access_key"),
		SecretKey:      v.GetString("s3.secret_key"),
		PresignExpiry:  v.GetInt64("s3.presign_expiry"),
	}
	cfg.Redis = RedisConfig{
		Addr:     v.GetString("redis.addr"),
		Password: v.GetString("redis.password"),
		DB:       v.GetInt("redis.db"),
		Prefix:   v.GetString("redis.prefix"),
		TTL:      v.GetDuration("redis.ttl"),
	}
	cfg.Log = LogConfig{
		Level:  v.GetString("log.level"),
		Format: v.GetString("log.format"),
	}

	var corsOrigins []string
	for _, o := range strings.Split(v.GetString("cors.allowed_origins"), ",") {
		o = strings.TrimSpace(o)
		if o != "" {
			corsOrigins = append(corsOrigins, o)
		}
	}
	cfg.CORS = CORSConfig{AllowedOrigins: corsOrigins}

	cfg.Queue = QueueConfig{
		MaxTasks:        v.GetInt("queue.max_tasks"),
		PageConcurrency: v.GetInt("queue.page_concurrency"),
		Backlog:         v.GetInt("queue.backlog"),
		Retention:       v.GetDuration("queue.retention"),
	}
	cfg.Conversion = ConversionConfig{
		ExtractorMethod:  v.GetString("conversion.extractor_method"),
		InpaintMethod:    v.GetString("conversion.inpaint_method"),
		TextStyleMode:    v.GetString("conversion.text_style_mode"),
		OutputResolution: v.GetString("conversion.output_resolution"),
		ImageFormat:      v.GetString("conversion.image_format"),
		PreferOffline:    v.GetBool("conversion.prefer_offline"),
		PageDeadline:     v.GetDuration("conversion.page_deadline"),
		MaxAttempts:      v.GetInt("conversion.max_attempts"),
		RetryBaseDelay:   v.GetDuration("conversion.retry_base_delay"),
		MaskPadding:      v.GetInt("conversion.mask_padding"),
		MaxDepth:         v.GetInt("conversion.max_depth"),
		MinImageSize:     v.GetInt("conversion.min_image_size"),
		MinImageArea:     v.GetInt("conversion.min_image_area"),
	}

	endpoint := func(name string) EndpointConfig {
		return EndpointConfig{
			URL:         v.GetString("providers." + name + ".url"),
			APIKey:      v.GetString("providers." + name + ".api_key"),
			Model:       v.GetString("providers." + name + ".model"),
			TimeoutSecs: v.GetInt("providers." + name + ".timeout_secs"),
		}
	}
	cfg.Providers = ProvidersConfig{
		Layout:        endpoint("layout"),
		OCR:           endpoint("ocr"),
		Generative:    endpoint("generative"),
		LocalOCR:      endpoint("local_ocr"),
		LocalInpaint:  endpoint("local_inpaint"),
		Style:         endpoint("style"),
		TesseractLang: v.GetString("providers.tesseract_lang"),
		LowConfidence: v.GetFloat64("providers.low_confidence"),
	}

	cfg.Notify = NotifyConfig{
		Provider:    v.GetString("notify.provider"),
		Region:      v.GetString("notify.region"),
		FromAddress: v.GetString("notify.from_address"),
		FromName:    v.GetString("notify.from_name"),
	}

	if err := cfg.Conversion.Defaults().Validate(); err != nil {
		return nil, fmt.Errorf("conversion defaults: %w", err)
	}
	return cfg, nil
}
