package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/erg0nix/ctxmeter/internal/config"
	grpcsvc "github.com/erg0nix/ctxmeter/internal/grpc"
	"github.com/erg0nix/ctxmeter/internal/mcpserver"
	"github.com/erg0nix/ctxmeter/internal/protocol"
)

const drainTimeout = 5 * time.Second

// Runtime is a loaded config plus the services built from it.
type Runtime struct {
	Config     config.Config
	ConfigPath string
	Services   *Services
}

func NewRuntime(cfg config.Config, configPath string, services *Services) *Runtime {
	return &Runtime{Config: cfg, ConfigPath: configPath, Services: services}
}

// workers runs goroutines that share one context; the first failure cancels the rest.
type workers struct {
	wg     sync.WaitGroup
	mu     sync.Mutex
	errs   []error
	cancel context.CancelFunc
}

func newWorkers(parent context.Context) (*workers, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &workers{cancel: cancel}, ctx
}

func (w *workers) Go(fn func() error) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := fn(); err != nil {
			w.mu.Lock()
			w.errs = append(w.errs, err)
			w.mu.Unlock()
			w.cancel()
		}
	}()
}

func (w *workers) Wait() error {
	w.wg.Wait()
	w.cancel()
	return errors.Join(w.errs...)
}

// background starts the optional event feed and config watcher. They stop with ctx.
func (rt *Runtime) background(ctx context.Context, group *workers) {
	logger := rt.Services.Logger

	if hub := rt.Services.Hub; hub != nil {
		group.Go(func() error {
			return hub.ListenAndServe(ctx, rt.Config.EventsBind)
		})
	}

	if rt.ConfigPath == "" {
		return
	}

	watcher, err := config.NewWatcher(rt.ConfigPath, rt.Services.Apply, logger)
	if err != nil {
		logger.Warn("config hot reload disabled", "error", err)
		return
	}
	group.Go(func() error {
		return watcher.Run(ctx)
	})
}

// RunServer serves the gRPC plugin service on cfg.Bind until SIGINT or SIGTERM.
func (rt *Runtime) RunServer() error {
	logger := rt.Services.Logger

	listener, err := net.Listen("tcp", rt.Config.Bind)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", rt.Config.Bind, err)
	}

	pidFile := PIDPath(rt.ConfigPath)
	if err := writePIDFile(pidFile); err != nil {
		logger.Warn("failed to write PID file", "error", err)
	}
	defer os.Remove(pidFile)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, ctx := newWorkers(ctx)
	rt.background(ctx, group)

	server := grpcsvc.NewServer(&grpcsvc.PluginHandler{
		Filter:    rt.Services.Filter,
		Tools:     rt.Services.Tools,
		StatusFor: func() protocol.StatusResponse { return rt.Services.Status("grpc") },
		Events:    rt.Services.Events(),
		StartTime: rt.Services.StartTime,
		Version:   Version,
		Logger:    logger,
	})

	group.Go(func() error {
		logger.Info("server listening", "address", rt.Config.Bind)
		return server.Serve(listener)
	})

	<-ctx.Done()
	logger.Info("shutting down")

	stopped := make(chan struct{})
	go func() {
		server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(drainTimeout):
		logger.Warn("drain timeout, forcing shutdown")
		server.Stop()
	}

	return ignoreCanceled(group.Wait())
}

// RunStdio serves the JSON-RPC plugin protocol over r and w until the host hangs up.
func (rt *Runtime) RunStdio(w io.Writer, r io.Reader) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	group, ctx := newWorkers(ctx)
	rt.background(ctx, group)

	handler := &protocol.Handler{
		Filter:  rt.Services.Filter,
		Tools:   rt.Services.Tools,
		Status:  func() protocol.StatusResponse { return rt.Services.Status("stdio") },
		Events:  rt.Services.Events(),
		Version: Version,
		Logger:  rt.Services.Logger,
	}

	err := handler.ServeUntil(ctx, w, r)
	stop()

	return errors.Join(ignoreCanceled(err), ignoreCanceled(group.Wait()))
}

// RunMCP serves the tool registry to an MCP client over r and w.
func (rt *Runtime) RunMCP(w io.Writer, r io.Reader) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	s, err := mcpserver.New(rt.Services.Tools, Version, rt.Services.Logger)
	if err != nil {
		return err
	}

	group, ctx := newWorkers(ctx)
	rt.background(ctx, group)

	err = mcpserver.Serve(ctx, s, r, w, rt.Services.Logger)
	stop()

	return errors.Join(ignoreCanceled(err), ignoreCanceled(group.Wait()))
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
