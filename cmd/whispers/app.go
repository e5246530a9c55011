package main

import (
	"fmt"

	"github.com/ImanolGo/Visual-Whispers/internal/api"
	"github.com/ImanolGo/Visual-Whispers/internal/chain"
	"github.com/ImanolGo/Visual-Whispers/internal/config"
	"github.com/ImanolGo/Visual-Whispers/internal/events"
	"github.com/ImanolGo/Visual-Whispers/internal/logger"
	"github.com/ImanolGo/Visual-Whispers/internal/utils"
	"go.uber.org/zap"
)

// globalFlags 所有子命令共享的参数
type globalFlags struct {
	configPath string
	apiURL     string
	logLevel   string
}

// app 组装好的运行时依赖
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	bus    *events.MemoryBus
	client *api.Client
	orch   *chain.Orchestrator
}

func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadConfigFrom(flags.configPath)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 命令行参数优先于配置文件和环境变量
	if flags.apiURL != "" {
		cfg.APIURL = flags.apiURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效 (%s):\n%w", displayPath(flags), err)
	}
	return cfg, nil
}

func newApp(cfg *config.Config) (*app, error) {
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	bus := events.NewMemoryBus(func(e events.Event, err error) {
		log.Warn("事件处理失败", zap.String("type", e.Type()), zap.Error(err))
	})
	subscribeLogging(bus, log)

	retry := utils.DefaultRetryConfig()
	retry.MaxRetries = cfg.Retry.MaxRetries
	if cfg.Retry.InitialDelay > 0 {
		retry.InitialDelay = cfg.Retry.InitialDelay
	}
	if cfg.Retry.MaxDelay > 0 {
		retry.MaxDelay = cfg.Retry.MaxDelay
	}

	client := api.NewClient(api.Options{
		BaseURL:     cfg.APIURL,
		Timeout:     cfg.RequestTimeout,
		MinInterval: cfg.MinRequestInterval,
		Retry:       retry,
		Logger:      log.Named("api"),
	})

	orch := chain.New(chain.NewAPIService(client),
		chain.WithLogger(log.Named("chain")),
		chain.WithBus(bus))

	log.Info("启动",
		zap.String("version", Version),
		zap.String("api_url", cfg.APIURL),
		zap.String("session", orch.Snapshot().SessionID))

	return &app{cfg: cfg, logger: log, bus: bus, client: client, orch: orch}, nil
}

func (a *app) close() {
	a.bus.Clear()
	_ = a.logger.Sync()
}

// subscribeLogging 把链事件写进调试日志
func subscribeLogging(bus events.Bus, log *zap.Logger) {
	handler := events.HandlerFunc(func(e events.Event) error {
		fields := make([]zap.Field, 0, len(e.Data())+1)
		fields = append(fields, zap.String("event", e.Type()))
		for k, v := range e.Data() {
			fields = append(fields, zap.Any(k, v))
		}
		log.Debug("链事件", fields...)
		return nil
	})
	for _, t := range []string{
		events.TypeChainSubmitted,
		events.TypeChainAppended,
		events.TypeChainFailed,
		events.TypeChainDiscarded,
		events.TypeChainReset,
	} {
		bus.Subscribe(t, handler)
	}
}

func displayPath(flags *globalFlags) string {
	if flags.configPath != "" {
		return flags.configPath
	}
	if path, err := config.ConfigPath(); err == nil {
		return path
	}
	return utils.GetConfigPathForDisplay()
}

// settingsFile 把 /save 写到 --config 指定的文件，未指定时写默认位置
type settingsFile struct {
	path string
}

func (s settingsFile) SaveSettings(perspective string, temperature float64) (string, error) {
	return config.SaveSettings(s.path, perspective, temperature)
}
