// Package plugin_manager file: internal/service/plugin_manager/supervisor.go
package plugin_manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

var (
	ErrAlreadyRunning = errors.New("插件进程已经在运行中")
	errStopped        = errors.New("插件守护已停止")
)

// ProcessConfig 描述如何启动后端插件进程。
// Args 中的 <port> 和 <addr> 会被替换为实际监听的端口和地址。
type ProcessConfig struct {
	Command string
	Args    []string
	Env     []string
	// Address 为插件的监听地址，端口为 0 时自动选择一个空闲端口
	Address      string
	ReadyTimeout time.Duration
	RestartDelay time.Duration
	// MaxRestarts <= 0 表示不限制重启次数
	MaxRestarts int
}

// ProbeFunc 检查插件是否已经可以接受请求
type ProbeFunc func(ctx context.Context, address string) error

// Supervisor 负责启动后端插件进程，等待其就绪，并在进程意外退出后自动重启。
type Supervisor struct {
	cfg     ProcessConfig
	address string
	probe   ProbeFunc

	mu       sync.Mutex
	cmd      *exec.Cmd
	waitDone chan struct{}
	quit     chan struct{}
	restarts int
	stopped  bool
}

// NewSupervisor 创建进程守护者。probe 为 nil 时使用 TCP 连通性检查。
func NewSupervisor(cfg ProcessConfig, probe ProbeFunc) (*Supervisor, error) {
	if cfg.Command == "" {
		return nil, errors.New("插件启动命令不能为空")
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = 10 * time.Second
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = 2 * time.Second
	}
	if probe == nil {
		probe = dialProbe
	}

	address, err := resolveAddress(cfg.Address)
	if err != nil {
		return nil, err
	}
	return &Supervisor{cfg: cfg, address: address, probe: probe}, nil
}

// Address 返回插件实际监听的地址
func (s *Supervisor) Address() string { return s.address }

// Running 报告插件进程当前是否存活
func (s *Supervisor) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cmd != nil
}

// Restarts 返回进程被自动重启的次数
func (s *Supervisor) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Start 启动插件进程并等待其就绪，就绪后在后台监控进程。
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cmd != nil {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.stopped = false
	quit := make(chan struct{})
	s.quit = quit
	s.mu.Unlock()

	exited, err := s.launch()
	if err != nil {
		return err
	}
	if err := s.waitReady(ctx, exited); err != nil {
		_ = s.Stop()
		return err
	}
	go s.monitor(exited, quit)
	return nil
}

// Stop 停止插件进程，不再自动重启
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.stopped && s.quit != nil {
		close(s.quit)
	}
	s.stopped = true
	cmd, done := s.cmd, s.waitDone
	s.mu.Unlock()
	if cmd == nil {
		return nil
	}

	if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		slog.Warn("[PluginManager] 停止插件进程失败", "pid", cmd.Process.Pid, "error", err)
	}
	<-done
	slog.Info("[PluginManager] 插件进程已停止", "pid", cmd.Process.Pid)
	return nil
}

// launch 启动一个新进程，返回的通道在进程退出时收到 Wait 的结果。
// 检查 stopped 与登记 cmd 在同一把锁内完成，Stop 要么看到新进程，要么阻止它启动。
func (s *Supervisor) launch() (<-chan error, error) {
	_, port, _ := net.SplitHostPort(s.address)
	replacer := strings.NewReplacer("<port>", port, "<addr>", s.address)
	args := make([]string, len(s.cfg.Args))
	for i, arg := range s.cfg.Args {
		args[i] = replacer.Replace(arg)
	}

	cmd := exec.Command(s.cfg.Command, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if len(s.cfg.Env) > 0 {
		cmd.Env = append(os.Environ(), s.cfg.Env...)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, errStopped
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("启动插件进程失败: %w", err)
	}

	exited := make(chan error, 1)
	done := make(chan struct{})
	s.cmd, s.waitDone = cmd, done
	slog.Info("🚀 [PluginManager] 插件进程已启动", "pid", cmd.Process.Pid, "address", s.address)

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		if s.cmd == cmd {
			s.cmd = nil
		}
		s.mu.Unlock()
		close(done)
		exited <- err
	}()
	return exited, nil
}

func (s *Supervisor) waitReady(ctx context.Context, exited <-chan error) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for {
		probeCtx, probeCancel := context.WithTimeout(ctx, time.Second)
		err := s.probe(probeCtx, s.address)
		probeCancel()
		if err == nil {
			slog.Info("✅ [PluginManager] 插件已就绪", "address", s.address)
			return nil
		}

		select {
		case werr := <-exited:
			return fmt.Errorf("插件进程在就绪前退出: %v", werr)
		case <-ctx.Done():
			return fmt.Errorf("等待插件就绪超时 (%s): %w", s.address, err)
		case <-ticker.C:
		}
	}
}

// monitor 在进程退出后按配置重启它
func (s *Supervisor) monitor(exited <-chan error, quit <-chan struct{}) {
	for {
		err := <-exited
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			return
		}
		if s.cfg.MaxRestarts > 0 && s.restarts >= s.cfg.MaxRestarts {
			s.mu.Unlock()
			slog.Error("[PluginManager] 插件进程退出且已达到最大重启次数", "error", err, "restarts", s.cfg.MaxRestarts)
			return
		}
		s.restarts++
		s.mu.Unlock()

		slog.Warn("🔌 [PluginManager] 检测到插件进程退出，准备重启", "error", err, "delay", s.cfg.RestartDelay)
		select {
		case <-quit:
			return
		case <-time.After(s.cfg.RestartDelay):
		}

		next, lerr := s.launch()
		if errors.Is(lerr, errStopped) {
			return
		}
		if lerr != nil {
			slog.Error("[PluginManager] 重启插件进程失败", "error", lerr)
			return
		}
		exited = next
	}
}

func dialProbe(ctx context.Context, address string) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return err
	}
	return conn.Close()
}

// resolveAddress 端口为 0 时替换为一个当前空闲的端口
func resolveAddress(address string) (string, error) {
	host, port, err := net.SplitHostPort(address)
	if err != nil {
		return "", fmt.Errorf("插件地址 '%s' 无效: %w", address, err)
	}
	if port != "0" {
		return address, nil
	}
	if host == "" {
		host = "127.0.0.1"
	}
	free, err := findFreePort(host)
	if err != nil {
		return "", fmt.Errorf("寻找可用端口失败: %w", err)
	}
	return net.JoinHostPort(host, strconv.Itoa(free)), nil
}

// findFreePort 查找一个可用的 TCP 端口
func findFreePort(host string) (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return 0, err
	}
	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
