package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

var (
	serverOnce   sync.Once
	serverConfig *ServerConfig
	serverErr    error
)

// Storage backends
const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageS3    = "s3"
)

type ServerConfig struct {
	Addr              string        `yaml:"addr"`
	UploadDir         string        `yaml:"uploadDir"`
	OutputDir         string        `yaml:"outputDir"`
	MaxUploadMB       int           `yaml:"maxUploadMB"`
	RenderDPI         float64       `yaml:"renderDPI"`
	MaxImageDimension int           `yaml:"maxImageDimension"`
	Workers           int           `yaml:"workers"`
	BaseURL           string        `yaml:"baseURL"`
	Storage           string        `yaml:"storage"`
	Async             bool          `yaml:"async"`
	Retention         time.Duration `yaml:"retention"`
	LogLevel          string        `yaml:"logLevel"`
	LogEncoding       string        `yaml:"logEncoding"`
	LogFile           string        `yaml:"logFile"`
}

// MaxUploadBytes 请求体大小上限
func (c *ServerConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) << 20
}

func defaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Addr:        ":8080",
		UploadDir:   "uploads",
		OutputDir:   "outputs",
		MaxUploadMB: 50,
		RenderDPI:   72,
		Workers:     4,
		BaseURL:     "http://localhost:8080",
		Storage:     StorageLocal,
		LogLevel:    "info",
		LogEncoding: "json",
		LogFile:     "logs/app.log",
	}
}

// GetServerConfig 返回进程级服务配置
func GetServerConfig() (*ServerConfig, error) {
	serverOnce.Do(func() {
		loadEnv()
		serverConfig, serverErr = LoadServerConfig(os.Getenv("PDFKIT_CONFIG"))
	})
	return serverConfig, serverErr
}

// LoadServerConfig builds the config from defaults, then the optional YAML
// file at path, then PDFKIT_* environment variables.
func LoadServerConfig(path string) (*ServerConfig, error) {
	cfg := defaultServerConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.Addr = getString("PDFKIT_ADDR", cfg.Addr)
	cfg.UploadDir = getString("PDFKIT_UPLOAD_DIR", cfg.UploadDir)
	cfg.OutputDir = getString("PDFKIT_OUTPUT_DIR", cfg.OutputDir)
	cfg.MaxUploadMB = getInt("PDFKIT_MAX_UPLOAD_MB", cfg.MaxUploadMB)
	cfg.RenderDPI = getFloat("PDFKIT_RENDER_DPI", cfg.RenderDPI)
	cfg.MaxImageDimension = getInt("PDFKIT_MAX_IMAGE_DIMENSION", cfg.MaxImageDimension)
	cfg.Workers = getInt("PDFKIT_WORKERS", cfg.Workers)
	cfg.BaseURL = strings.TrimRight(getString("PDFKIT_BASE_URL", cfg.BaseURL), "/")
	cfg.Storage = strings.ToLower(getString("PDFKIT_STORAGE", cfg.Storage))
	cfg.Async = getBool("PDFKIT_ASYNC", cfg.Async)
	cfg.Retention = getDuration("PDFKIT_RETENTION", cfg.Retention)
	cfg.LogLevel = getString("LOG_LEVEL", cfg.LogLevel)
	cfg.LogEncoding = getString("LOG_ENCODING", cfg.LogEncoding)
	cfg.LogFile = getString("LOG_FILE", cfg.LogFile)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查配置合法性
func (c *ServerConfig) Validate() error {
	switch c.Storage {
	case StorageLocal, StorageMinio, StorageS3:
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max upload size must be positive, got %d MB", c.MaxUploadMB)
	}
	if c.RenderDPI <= 0 {
		return fmt.Errorf("render dpi must be positive, got %v", c.RenderDPI)
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Retention < 0 {
		return fmt.Errorf("retention must not be negative, got %s", c.Retention)
	}
	return nil
}
