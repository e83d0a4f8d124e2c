// file: cmd/plugins/snowflake_plugin/main.go
package main

import (
	"SnowAegis/internal/adapter/backend/backendrpc"
	"SnowAegis/internal/adapter/datasource/snowflake"
	"SnowAegis/internal/aegobserve"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
)

const pluginVersion = "0.3.0"

func main() {
	portFlag := flag.Int("port", 50051, "服务监听端口")
	pluginNameFlag := flag.String("name", "snowflake-plugin", "此插件实例的名称")
	logLevelFlag := flag.String("log_level", "info", "日志级别 (debug/info/warn/error)")
	idleTTLFlag := flag.Duration("idle_ttl", 30*time.Minute, "数据源实例的空闲回收时间，0 表示不回收")
	metricsAddrFlag := flag.String("metrics_addr", "", "Prometheus 指标监听地址，为空则不暴露")
	flag.Parse()

	aegobserve.InitLogger(*logLevelFlag)
	slog.Info("🔌 插件启动中...", "name", *pluginNameFlag, "version", pluginVersion, "port", *portFlag)

	manager := snowflake.NewManager(*idleTTLFlag, nil)
	defer manager.Close()

	if err := snowflake.RegisterMetrics(prometheus.DefaultRegisterer, manager); err != nil {
		slog.Error("注册插件指标失败", "error", err)
		os.Exit(1)
	}
	var metricsServer *http.Server
	if *metricsAddrFlag != "" {
		metricsServer = &http.Server{Addr: *metricsAddrFlag, Handler: promhttp.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			slog.Info("插件指标服务已启动", "address", *metricsAddrFlag)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("插件指标服务异常退出", "error", err)
			}
		}()
	}

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", *portFlag))
	if err != nil {
		slog.Error("gRPC 服务监听端口失败", "port", *portFlag, "error", err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	backendrpc.RegisterBackendServer(grpcServer, snowflake.NewBackend(manager))

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		slog.Info("收到停机信号，插件准备优雅关闭...")
		grpcServer.GracefulStop()
		if metricsServer != nil {
			_ = metricsServer.Close()
		}
	}()

	slog.Info("✅ Snowflake 插件启动成功，开始提供服务...")
	if err := grpcServer.Serve(lis); err != nil {
		slog.Error("gRPC 服务启动失败", "error", err)
		os.Exit(1)
	}
	slog.Info("插件已退出。")
}
