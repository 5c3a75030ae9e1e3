package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/codehost_agent/internal/api"
	"github.com/dgnsrekt/codehost_agent/internal/browser"
	"github.com/dgnsrekt/codehost_agent/internal/cdpcontrol"
	"github.com/dgnsrekt/codehost_agent/internal/config"
	"github.com/dgnsrekt/codehost_agent/internal/controller"
	"github.com/dgnsrekt/codehost_agent/internal/journal"
	"github.com/dgnsrekt/codehost_agent/internal/netutil"
	"github.com/dgnsrekt/codehost_agent/internal/render"
)

func main() {
	cfg, err := config.LoadController()
	if err != nil {
		slog.Error("failed to load controller config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		_, _ = io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n")
		os.Exit(1)
	}

	slog.Info("controller config loaded",
		"bind_addr", cfg.BindAddr,
		"tab_url_filter", cfg.TabURLFilter,
		"eval_timeout_ms", cfg.EvalTimeoutMS,
		"render_timeout_ms", cfg.RenderTimeoutMS,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"journal_dir", cfg.JournalDir,
		"host_profiles_file", cfg.HostProfilesFile,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	profiles, err := config.LoadHostProfiles(cfg.HostProfilesFile)
	if err != nil {
		slog.Error("failed to load host profiles", "path", cfg.HostProfilesFile, "error", err)
		os.Exit(1)
	}

	var launcher *browser.Launcher
	if cfg.BrowserLaunch {
		launcher = browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.BrowserStartURL,
			ProfileDir: cfg.BrowserProfileDir,
			Headless:   cfg.BrowserHeadless,
		})
		if err := launcher.Launch(context.Background()); err != nil {
			slog.Error("failed to launch browser", "error", err)
			os.Exit(1)
		}
		defer launcher.Stop()
	}

	ln, err := netutil.Listen(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		exit(launcher, 1)
	}
	bindAddr := ln.Addr().String()

	cdpClient := cdpcontrol.NewClient(cfg.ControllerCDPURL(), cfg.TabURLFilter, time.Duration(cfg.EvalTimeoutMS)*time.Millisecond)
	if err := cdpClient.Connect(context.Background()); err != nil {
		slog.Error("failed to connect CDP controller", "cdp_url", cfg.ControllerCDPURL(), "error", err)
		exit(launcher, 1)
	}
	defer func() { _ = cdpClient.Close() }()

	renderCfg := render.Config{Timeout: time.Duration(cfg.RenderTimeoutMS) * time.Millisecond}
	if cfg.RenderInBrowser {
		renderCfg.RemoteURL = cfg.ControllerCDPURL()
	}

	jw := journal.NewWriter(cfg.JournalDir, 1024, cfg.JournalMaxSizeMB)
	defer func() {
		if err := jw.Close(); err != nil {
			slog.Warn("journal close failed", "error", err)
		}
	}()

	svc := controller.NewService(cdpClient,
		controller.WithRenderer(render.NewRenderer(renderCfg)),
		controller.WithRecorder(jw),
		controller.WithProfiles(profiles),
	)
	h := api.NewServer(svc)

	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		slog.Info("controller listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("controller server failed", "error", err)
			exit(launcher, 1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("controller shutdown failed", "error", err)
	}
}

// exit stops a browser this process started before leaving, since deferred
// calls do not run on os.Exit.
func exit(launcher *browser.Launcher, code int) {
	if launcher != nil {
		launcher.Stop()
	}
	os.Exit(code)
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
