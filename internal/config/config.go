package config

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAPIURL         = "http://localhost:8000"
	DefaultPerspective    = "as a medieval peasant"
	DefaultTemperature    = 0.7
	DefaultRequestTimeout = 120 * time.Second
	DefaultExportDir      = "downloads"

	// 环境变量前缀，例如 WHISPERS_API_URL
	envPrefix = "WHISPERS"
)

type Config struct {
	APIURL             string        `yaml:"api_url"`
	Perspective        string        `yaml:"perspective"`
	Temperature        float64       `yaml:"temperature"`
	RequestTimeout     time.Duration `yaml:"request_timeout"`
	MinRequestInterval time.Duration `yaml:"min_request_interval"`
	Retry              RetryConfig   `yaml:"retry"`
	Log                logger.Config `yaml:"log"`
	ExportDir          string        `yaml:"export_dir"`
}

type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// envOverrides 环境变量覆盖项，未设置的保持零值
type envOverrides struct {
	APIURL             string        `envconfig:"API_URL"`
	Perspective        string        `envconfig:"PERSPECTIVE"`
	Temperature        *float64      `envconfig:"TEMPERATURE"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT"`
	MinRequestInterval time.Duration `envconfig:"MIN_REQUEST_INTERVAL"`
	MaxRetries         *int          `envconfig:"MAX_RETRIES"`
	LogLevel           string        `envconfig:"LOG_LEVEL"`
	LogEncoding        string        `envconfig:"LOG_ENCODING"`
	LogPath            string        `envconfig:"LOG_PATH"`
	ExportDir          string        `envconfig:"EXPORT_DIR"`
}

func DefaultConfig() *Config {
	return &Config{
		APIURL:         DefaultAPIURL,
		Perspective:    DefaultPerspective,
		Temperature:    DefaultTemperature,
		RequestTimeout: DefaultRequestTimeout,
		Retry: RetryConfig{
			MaxRetries:   2,
			InitialDelay: time.Second,
			MaxDelay:     10 * time.Second,
		},
		Log: logger.Config{
			Level:      "info",
			Encoding:   "json",
			OutputPath: utils.DefaultLogPath(),
		},
		ExportDir: DefaultExportDir,
	}
}

// LoadConfig 读取配置文件，再叠加 .env 和环境变量
func LoadConfig() (*Config, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadConfigFrom(configPath)
}

// LoadConfigFrom 从指定路径读取配置，文件不存在时使用默认值
func LoadConfigFrom(configPath string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("解析配置文件失败: %w", err)
		}
	case os.IsNotExist(err):
		// 使用默认值
	default:
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config.fillDefaults()

	// .env 不存在是正常情况；已存在的环境变量不会被覆盖
	_ = godotenv.Load()

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) fillDefaults() {
	defaults := DefaultConfig()

	if c.APIURL == "" {
		c.APIURL = defaults.APIURL
	}
	if c.Perspective == "" {
		c.Perspective = defaults.Perspective
	}
	if c.RequestTimeout == 0 {
		c.RequestTimeout = defaults.RequestTimeout
	}
	if c.Log.OutputPath == "" {
		c.Log.OutputPath = defaults.Log.OutputPath
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.ExportDir == "" {
		c.ExportDir = defaults.ExportDir
	}
}

func (c *Config) applyEnv() error {
	var env envOverrides
	if err := envconfig.Process(envPrefix, &env); err != nil {
		return fmt.Errorf("解析环境变量失败: %w", err)
	}

	// 兼容前端的 NEXT_PUBLIC_API_URL
	if env.APIURL == "" {
		env.APIURL = os.Getenv("NEXT_PUBLIC_API_URL")
	}

	if env.APIURL != "" {
		c.APIURL = env.APIURL
	}
	if env.Perspective != "" {
		c.Perspective = env.Perspective
	}
	if env.Temperature != nil {
		c.Temperature = *env.Temperature
	}
	if env.RequestTimeout > 0 {
		c.RequestTimeout = env.RequestTimeout
	}
	if env.MinRequestInterval > 0 {
		c.MinRequestInterval = env.MinRequestInterval
	}
	if env.MaxRetries != nil {
		c.Retry.MaxRetries = *env.MaxRetries
	}
	if env.LogLevel != "" {
		c.Log.Level = env.LogLevel
	}
	if env.LogEncoding != "" {
		c.Log.Encoding = env.LogEncoding
	}
	if env.LogPath != "" {
		c.Log.OutputPath = env.LogPath
	}
	if env.ExportDir != "" {
		c.ExportDir = env.ExportDir
	}
	return nil
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(strings.TrimSpace(c.APIURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs = append(errs, fmt.Errorf("api_url 无效: %q", c.APIURL))
	}
	if math.IsNaN(c.Temperature) || c.Temperature < 0 || c.Temperature > 1 {
		errs = append(errs, fmt.Errorf("temperature 必须在 0.0 到 1.0 之间: %v", c.Temperature))
	}
	if strings.TrimSpace(c.Perspective) == "" {
		errs = append(errs, errors.New("perspective 不能为空"))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout 必须大于 0: %v", c.RequestTimeout))
	}
	if c.MinRequestInterval < 0 {
		errs = append(errs, fmt.Errorf("min_request_interval 不能为负数: %v", c.MinRequestInterval))
	}
	if c.Retry.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("retry.max_retries 不能为负数: %d", c.Retry.MaxRetries))
	}

	return errors.Join(errs...)
}

// SaveConfig 写入配置文件，path 为空时写到默认位置
func SaveConfig(path string, config *Config) error {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return err
		}
	}

	configDir := filepath.Dir(path)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("创建配置目录失败: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("序列化配置失败: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("写入配置文件失败: %w", err)
	}

	return nil
}

// SaveSettings 只更新配置文件里的 perspective 和 temperature。
// 基于文件本身的内容，环境变量和命令行覆盖不会被写回。返回写入的路径
func SaveSettings(path, perspective string, temperature float64) (string, error) {
	if path == "" {
		var err error
		if path, err = getConfigPath(); err != nil {
			return "", err
		}
	}

	config := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return "", fmt.Errorf("解析配置文件失败: %w", err)
		}
	case !os.IsNotExist(err):
		return "", fmt.Errorf("读取配置文件失败: %w", err)
	}
	config.fillDefaults()

	config.Perspective = strings.TrimSpace(perspective)
	config.Temperature = temperature
	if err := config.Validate(); err != nil {
		return "", err
	}

	return path, SaveConfig(path, config)
}

// ConfigPath 返回默认配置文件路径
func ConfigPath() (string, error) {
	return getConfigPath()
}

func getConfigPath() (string, error) {
	configDir, err := utils.GetConfigDir()
	if err != nil {
		return "", fmt.Errorf("获取配置目录失败: %w", err)
	}
	return filepath.Join(configDir, "config.yaml"), nil
}
