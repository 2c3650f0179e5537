// Package livenotebook runs a temporary headless notebook server process for
// live output capture.
package livenotebook

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/peter-gy/marimo/export"
)

const (
	defaultStartTimeout    = 90 * time.Second
	defaultPollInterval    = 200 * time.Millisecond
	defaultShutdownTimeout = 5 * time.Second

	logTailBytes = 4000
)

// Config configures a live notebook server launch.
type Config struct {
	// Command is the notebook CLI invocation, e.g. ["marimo", "run"].
	Command []string
	// ExtraArgs are appended after the run flags.
	ExtraArgs []string

	StartTimeout    time.Duration
	PollInterval    time.Duration
	ShutdownTimeout time.Duration

	Logger export.Logger

	// HealthClient overrides the client used for readiness polling.
	HealthClient *http.Client
}

// Server is a running notebook server process.
type Server struct {
	cfg      Config
	filepath string
	argv     []string
	port     int

	cmd     *exec.Cmd
	logFile *os.File
	done    chan error
}

// Start launches the notebook server for the given file and blocks until its
// health endpoint responds or the startup budget runs out.
func Start(ctx context.Context, cfg Config, filepath string, argv []string) (*Server, error) {
	if filepath == "" {
		return nil, export.NewError(export.KindValidation, "notebook filepath is required", nil)
	}
	if len(cfg.Command) == 0 {
		cfg.Command = []string{"marimo", "run"}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	port, err := freePort()
	if err != nil {
		return nil, export.NewError(export.KindInternal, "no free port for live notebook server", err)
	}

	server := &Server{
		cfg:      cfg,
		filepath: filepath,
		argv:     append(append([]string(nil), cfg.ExtraArgs...), argv...),
		port:     port,
		done:     make(chan error, 1),
	}

	logFile, err := os.CreateTemp("", "notebook-live-*.log")
	if err != nil {
		return nil, export.NewError(export.KindInternal, "live server log file creation failed", err)
	}
	server.logFile = logFile

	args := server.buildArgs()
	cmd := exec.Command(cfg.Command[0], args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		server.cleanupLog()
		return nil, export.NewError(export.KindInternal, "live notebook server start failed", err)
	}
	server.cmd = cmd
	go func() {
		server.done <- cmd.Wait()
		// Later receives (readiness checks, terminate) must not block once
		// the process is gone.
		close(server.done)
	}()

	if err := server.waitUntilReady(ctx); err != nil {
		_ = server.Close()
		return nil, err
	}
	return server, nil
}

// PageURL returns the notebook page URL.
func (s *Server) PageURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d", s.port)
}

// HealthURL returns the readiness endpoint.
func (s *Server) HealthURL() string {
	return s.PageURL() + "/health"
}

// Close terminates the server process and removes the log file. Termination
// is graceful first, forced after the shutdown budget.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	if s.cmd != nil && s.cmd.Process != nil {
		s.terminate()
		s.cmd = nil
	}
	s.cleanupLog()
	return nil
}

func (s *Server) buildArgs() []string {
	args := append([]string(nil), s.cfg.Command[1:]...)
	args = append(args,
		s.filepath,
		"--headless",
		"--no-token",
		"--host", "127.0.0.1",
		"--port", strconv.Itoa(s.port),
	)
	if len(s.argv) > 0 {
		args = append(args, "--")
		args = append(args, s.argv...)
	}
	return args
}

// waitUntilReady polls the health endpoint and the process state until the
// server answers or the startup budget runs out.
func (s *Server) waitUntilReady(ctx context.Context) error {
	timeout := s.cfg.StartTimeout
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	client := s.cfg.HealthClient
	if client == nil {
		client = &http.Client{Timeout: time.Second}
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		select {
		case err := <-s.done:
			return export.NewError(export.KindInternal,
				withLogTail("live notebook server exited before becoming ready", s.readLogTail()), err)
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if s.healthy(ctx, client) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	return export.NewError(export.KindTimeout,
		withLogTail("timed out waiting for live notebook server to become ready", s.readLogTail()), nil)
}

func (s *Server) healthy(ctx context.Context, client *http.Client) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.HealthURL(), nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode == http.StatusOK
}

func (s *Server) terminate() {
	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	_ = s.cmd.Process.Signal(os.Interrupt)
	select {
	case <-s.done:
		return
	case <-time.After(timeout):
	}

	_ = s.cmd.Process.Kill()
	select {
	case <-s.done:
	case <-time.After(timeout):
		s.logger().Debugf("live notebook server did not exit after kill")
	}
}

func (s *Server) readLogTail() string {
	if s.logFile == nil {
		return ""
	}
	_ = s.logFile.Sync()
	data, err := os.ReadFile(s.logFile.Name())
	if err != nil {
		return ""
	}
	if len(data) > logTailBytes {
		data = data[len(data)-logTailBytes:]
	}
	return string(data)
}

func (s *Server) cleanupLog() {
	if s.logFile == nil {
		return
	}
	name := s.logFile.Name()
	_ = s.logFile.Close()
	if err := os.Remove(name); err != nil {
		s.logger().Debugf("live server log cleanup failed: %s", name)
	}
	s.logFile = nil
}

func (s *Server) logger() export.Logger {
	if s == nil || s.cfg.Logger == nil {
		return export.NopLogger{}
	}
	return s.cfg.Logger
}

func withLogTail(msg, logs string) string {
	if logs == "" {
		return msg
	}
	return msg + "\n\n" + logs
}

// freePort reserves an ephemeral loopback port and releases it for the
// server process to bind.
func freePort() (int, error) {
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer func() { _ = ln.Close() }()
	return ln.Addr().(*net.TCPAddr).Port, nil
}

// Factory returns an export.LiveServerFactory using this package.
func Factory(cfg Config) export.LiveServerFactory {
	return func(ctx context.Context, filepath string, argv []string) (export.LiveServer, error) {
		return Start(ctx, cfg, filepath, argv)
	}
}
