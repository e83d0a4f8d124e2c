// file: cmd/gateway/main.go

package main

import (
	"SnowAegis/internal/adapter/datasource/grpc_client"
	"SnowAegis/internal/adapter/storage/sqlite"
	"SnowAegis/internal/aegmiddleware"
	"SnowAegis/internal/aegobserve"
	"SnowAegis/internal/service"
	"SnowAegis/internal/service/plugin_manager"
	"SnowAegis/internal/service/template"
	"SnowAegis/internal/transport/http/router"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const version = "v0.3.0"

type ServerConfig struct {
	Port      int    `mapstructure:"port"`
	LogLevel  string `mapstructure:"log_level"`
	PprofAddr string `mapstructure:"pprof_addr"`
}

type StorageConfig struct {
	Path      string `mapstructure:"path"`
	SecretKey string `mapstructure:"secret_key"`
}

type BackendConfig struct {
	Address string        `mapstructure:"address"`
	Timeout time.Duration `mapstructure:"timeout"`
	// Command 非空时由网关负责启动并守护后端插件进程
	Command     string   `mapstructure:"command"`
	Args        []string `mapstructure:"args"`
	MaxRestarts int      `mapstructure:"max_restarts"`
}

type AuthConfig struct {
	JWTKey   string        `mapstructure:"jwt_key"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

type RateLimitConfig struct {
	GlobalPerSecond float64 `mapstructure:"global_per_second"`
	GlobalBurst     int     `mapstructure:"global_burst"`
	IPPerSecond     float64 `mapstructure:"ip_per_second"`
	IPBurst         int     `mapstructure:"ip_burst"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 10224)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("storage.path", "instance/datasources.db")
	// 没有默认值的键不会被 Unmarshal 从环境变量读取
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("auth.jwt_key", "")
	v.SetDefault("backend.address", "127.0.0.1:50051")
	v.SetDefault("backend.timeout", 30*time.Second)
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("rate_limit.global_per_second", 100)
	v.SetDefault("rate_limit.global_burst", 200)
	v.SetDefault("rate_limit.ip_per_second", 10)
	v.SetDefault("rate_limit.ip_burst", 30)
}

// loadConfig 读取配置文件并叠加 SNOWAEGIS_ 前缀的环境变量。配置文件不存在时只使用默认值和环境变量。
func loadConfig(path string) (*viper.Viper, *Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("SNOWAEGIS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, nil, fmt.Errorf("读取配置文件 '%s' 失败: %w", path, err)
			}
		}
		log.Printf("⚠️ 配置文件 '%s' 不存在，使用默认配置", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("解析配置到结构体失败: %w", err)
	}
	if cfg.Storage.SecretKey == "" {
		return nil, nil, errors.New("storage.secret_key 不能为空，它用于加密数据源密钥")
	}
	return v, &cfg, nil
}

func main() {
	// 在日志系统完全初始化前，使用标准 log
	log.Printf("SnowAegis Gateway %s 正在启动...", version)

	configPath := flag.String("config", filepath.Join("configs", "config.yaml"), "配置文件路径")
	printToken := flag.String("print-token", "", "为指定角色 (admin/viewer) 签发一个令牌后退出")
	flag.Parse()

	if err := run(*configPath, *printToken); err != nil {
		slog.Error("网关异常退出", "error", err)
		os.Exit(1)
	}
	slog.Info("程序即将退出。")
}

// run 完成组装并阻塞到收到停机信号。所有资源都通过 defer 释放，出错时也不会遗留插件子进程。
func run(configPath, printToken string) error {
	v, config, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	aegobserve.InitLogger(config.Server.LogLevel)
	slog.Info("配置加载并解析成功", "path", configPath, "version", version)

	// 日志级别支持热更新，其余配置需要重启生效
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := v.GetString("server.log_level")
		aegobserve.SetLogLevel(level)
		slog.Info("检测到配置文件变更，日志级别已更新", "file", e.Name, "level", level)
	})
	v.WatchConfig()

	var auth *service.Authenticator
	if config.Auth.JWTKey != "" {
		auth, err = service.NewAuthenticator(config.Auth.JWTKey, config.Auth.TokenTTL)
		if err != nil {
			return fmt.Errorf("初始化鉴权服务失败: %w", err)
		}
		slog.Info("服务层: JWT 鉴权已启用")
	} else {
		slog.Warn("未配置 auth.jwt_key，API 将不做鉴权")
	}

	if printToken != "" {
		if auth == nil {
			return errors.New("未配置 auth.jwt_key，无法签发令牌")
		}
		token, err := auth.GenToken("cli", printToken)
		if err != nil {
			return fmt.Errorf("签发令牌失败: %w", err)
		}
		fmt.Println(token)
		return nil
	}

	if dir := filepath.Dir(config.Storage.Path); dir != "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			_ = os.MkdirAll(dir, 0755)
		}
	}
	store, err := sqlite.Open(config.Storage.Path, config.Storage.SecretKey)
	if err != nil {
		return fmt.Errorf("初始化数据源配置库失败: %w", err)
	}
	defer func() {
		slog.Info("正在关闭数据源配置库...")
		if err := store.Close(); err != nil {
			slog.Error("关闭数据源配置库时发生错误", "error", err)
		}
	}()
	slog.Info("存储层: 数据源配置库就绪", "path", config.Storage.Path)

	backendAddress := config.Backend.Address
	if config.Backend.Command != "" {
		supervisor, err := plugin_manager.NewSupervisor(plugin_manager.ProcessConfig{
			Command:     config.Backend.Command,
			Args:        config.Backend.Args,
			Address:     config.Backend.Address,
			MaxRestarts: config.Backend.MaxRestarts,
		}, nil)
		if err != nil {
			return fmt.Errorf("初始化插件守护进程失败: %w", err)
		}
		if err := supervisor.Start(context.Background()); err != nil {
			return fmt.Errorf("启动后端插件 '%s' 失败: %w", config.Backend.Command, err)
		}
		defer func() { _ = supervisor.Stop() }()
		backendAddress = supervisor.Address()
	}

	backend, err := grpc_client.New(backendAddress, config.Backend.Timeout)
	if err != nil {
		return fmt.Errorf("连接后端插件 '%s' 失败: %w", backendAddress, err)
	}
	defer func() { _ = backend.Close() }()
	slog.Info("适配层: 后端插件客户端创建完成", "address", backendAddress, "type", backend.Type())

	limiter := aegmiddleware.NewRateLimiter(
		config.RateLimit.GlobalPerSecond, config.RateLimit.GlobalBurst,
		config.RateLimit.IPPerSecond, config.RateLimit.IPBurst,
	)

	aegobserve.Register()
	slog.Info("监控: metrics 已注册。")

	httpRouter := router.New(router.Dependencies{
		Store:          store,
		Executor:       backend,
		HealthChecker:  backend,
		Expander:       template.New(),
		Limiter:        limiter,
		Auth:           auth,
		MetricsHandler: aegobserve.Handler(),
	})
	slog.Info("传输层: HTTP 路由器创建完成。")

	addr := fmt.Sprintf(":%d", config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("SnowAegis 网关启动成功，开始监听HTTP请求...", "address", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	pprofServer := aegobserve.EnablePprof(config.Server.PprofAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("HTTP服务启动失败: %w", err)
	case <-quit:
	}
	slog.Info("收到停机信号，准备优雅关闭...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if pprofServer != nil {
		_ = pprofServer.Shutdown(ctx)
	}
	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("HTTP服务优雅关闭失败: %w", err)
	}
	slog.Info("HTTP服务已成功关闭。")
	return nil
}
