// Package aegobserve file: internal/aegobserve/logging.go
package aegobserve

import (
	"log/slog"
	"os"
	"strings"
)

// logLevel 是全局 logger 的级别，配置热加载时可以直接修改
var logLevel = new(slog.LevelVar)

// ParseLevel 把配置字符串转换为日志级别，无法识别时为 INFO
func ParseLevel(levelStr string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogger 初始化全局的结构化日志记录器。
// 它应该在 main 函数的早期被调用。
func InitLogger(levelStr string) {
	logLevel.Set(ParseLevel(levelStr))

	// JSON 格式输出到标准输出
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: true,
	})
	slog.SetDefault(slog.New(handler))
}

// SetLogLevel 修改全局日志级别，不需要重建 logger
func SetLogLevel(levelStr string) {
	level := ParseLevel(levelStr)
	if logLevel.Level() != level {
		slog.Info("日志级别已变更", "from", logLevel.Level().String(), "to", level.String())
		logLevel.Set(level)
	}
}

// LogLevel 返回当前日志级别
func LogLevel() slog.Level { return logLevel.Level() }
