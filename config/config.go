package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Upload    UploadConfig    `mapstructure:"upload"`
	LandingAI LandingAIConfig `mapstructure:"landingai"`
	Overlay   OverlayConfig   `mapstructure:"overlay"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type UploadConfig struct {
	MaxSize      int64    `mapstructure:"max_size"`
	AllowedTypes []string `mapstructure:"allowed_types"`
}

// LandingAIConfig 推理服务连接参数，APIKey 与 EndpointID 通常来自环境变量
type LandingAIConfig struct {
	APIKey        string        `mapstructure:"api_key"`
	EndpointID    string        `mapstructure:"endpoint_id"`
	BaseURL       string        `mapstructure:"base_url"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  int           `mapstructure:"queue_timeout"`
}

type OverlayConfig struct {
	Alpha            float64           `mapstructure:"alpha"`
	DefaultThreshold float64           `mapstructure:"default_threshold"`
	DisplayWidth     int               `mapstructure:"display_width"`
	MinDisplayWidth  int               `mapstructure:"min_display_width"`
	MaxDisplayWidth  int               `mapstructure:"max_display_width"`
	Colors           map[string]string `mapstructure:"colors"`
	DefaultColor     string            `mapstructure:"default_color"`
}

// HasCredentials 两项凭据是否都已配置
func (c LandingAIConfig) HasCredentials() bool {
	return c.APIKey != "" && c.EndpointID != ""
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// New 使用默认配置路径加载配置，本地 .env 中的凭据会先写入环境变量
func New() *Config {
	_ = godotenv.Load()

	cfg, err := Load("config.yaml")
	if err != nil {
		// 如果加载失败，返回默认配置（凭据仍从环境变量读取）
		return FromEnv()
	}
	return cfg
}

// FromEnv 不读取配置文件，仅使用默认值与环境变量
func FromEnv() *Config {
	v := newViper()
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return getDefaultConfig()
	}
	return &cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)

	_ = v.BindEnv("landingai.api_key", "LANDINGAI_API_KEY")
	_ = v.BindEnv("landingai.endpoint_id", "LANDINGAI_ENDPOINT_ID")
	_ = v.BindEnv("server.mode", "GIN_MODE")
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)

	v.SetDefault("upload.max_size", 10*1024*1024)
	v.SetDefault("upload.allowed_types", []string{"image/jpeg", "image/png", "image/jpg"})

	v.SetDefault("landingai.api_key", "")
	v.SetDefault("landingai.endpoint_id", "")
	v.SetDefault("landingai.base_url", "https://predict.app.landing.ai")
	v.SetDefault("landingai.timeout", 30*time.Second)
	v.SetDefault("landingai.max_concurrent", 4)
	v.SetDefault("landingai.queue_timeout", 30)

	v.SetDefault("overlay.alpha", 0.45)
	v.SetDefault("overlay.default_threshold", 0.50)
	v.SetDefault("overlay.display_width", 700)
	v.SetDefault("overlay.min_display_width", 300)
	v.SetDefault("overlay.max_display_width", 1200)
	v.SetDefault("overlay.colors", map[string]string{})
	v.SetDefault("overlay.default_color", "")
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         ":8080",
			Mode:         "debug",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Upload: UploadConfig{
			MaxSize:      10 * 1024 * 1024,
			AllowedTypes: []string{"image/jpeg", "image/png", "image/jpg"},
		},
		LandingAI: LandingAIConfig{
			BaseURL:       "https://predict.app.landing.ai",
			Timeout:       30 * time.Second,
			MaxConcurrent: 4,
			QueueTimeout:  30,
		},
		Overlay: OverlayConfig{
			Alpha:            0.45,
			DefaultThreshold: 0.50,
			DisplayWidth:     700,
			MinDisplayWidth:  300,
			MaxDisplayWidth:  1200,
			Colors:           map[string]string{},
		},
	}
}
