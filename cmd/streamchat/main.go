package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seacow-technology/streamline/internal/config"
	"github.com/seacow-technology/streamline/internal/connection"
	"github.com/seacow-technology/streamline/internal/lifecycle"
	"github.com/seacow-technology/streamline/internal/metrics"
	"github.com/seacow-technology/streamline/internal/session"
	"github.com/seacow-technology/streamline/internal/stream"
	"github.com/seacow-technology/streamline/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/streamchat.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	logger.Info("starting streamchat",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"server_url", cfg.Server.URL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals; SIGCONT is a process resume, which is the
	// terminal analog of a page coming back from the background.
	resumeSource := newSignalSource()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	mets := metrics.New()

	cb := session.Callbacks{
		OnMessage: func(comp stream.Completion) {
			if comp.Failed {
				fmt.Fprintf(os.Stderr, "\n[message failed: %v]\n%s\n> ", comp.Err, comp.Content)
				return
			}
			fmt.Printf("\n%s\n> ", comp.Content)
		},
		OnStatus: func(state connection.State, reason string) {
			logger.Info("connection status", "state", state, "reason", reason)
		},
		OnBusy: func(busy bool) {
			if busy {
				fmt.Print("...")
			}
		},
		ViewActive: func() bool { return true },
	}

	ctrl := session.NewController(cfg, resumeSource, cb, mets, logger)
	ctrl.Start(ctx)

	if err := ctrl.Connect(ctx, ""); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer ctrl.Close()

	// Serve metrics and diagnostics
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, mets.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		d := ctrl.Diagnostics()
		status := "healthy"
		if d.State != connection.Connected {
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status":      status,
			"state":       d.State.String(),
			"url":         d.URL,
			"retry_count": d.RetryCount,
			"idle_time":   d.IdleTime.String(),
		})
	})

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return healthServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return inputLoop(gctx, ctrl, logger)
	})

	logger.Info("streamchat running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("shutdown with error", "error", err)
		os.Exit(1)
	}

	logger.Info("streamchat stopped")
}

// inputLoop reads lines from stdin and sends them as user messages.
// Lines starting with "/" are client commands.
func inputLoop(ctx context.Context, ctrl *session.Controller, logger *slog.Logger) error {
	fmt.Print("> ")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return nil
			}

			line = strings.TrimSpace(line)
			if line == "" {
				fmt.Print("> ")
				continue
			}

			if strings.HasPrefix(line, "/") {
				if err := runCommand(ctx, ctrl, line); err != nil {
					fmt.Fprintf(os.Stderr, "command error: %v\n", err)
				}
				fmt.Print("> ")
				continue
			}

			outcome, err := ctrl.Send(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "send error: %v\n> ", err)
				continue
			}
			go func() {
				if err := <-outcome; err != nil {
					logger.Warn("request not delivered", "error", err)
				}
			}()
		}
	}
}

func runCommand(ctx context.Context, ctrl *session.Controller, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/switch":
		if len(fields) != 2 {
			return fmt.Errorf("usage: /switch <session-key>")
		}
		return ctrl.SwitchSession(ctx, fields[1])
	case "/diag":
		d := ctrl.Diagnostics()
		fmt.Printf("state=%s url=%s backoff=%s retries=%d idle=%s manual_close=%t\n",
			d.State, d.URL, d.BackoffDelay, d.RetryCount, d.IdleTime.Round(time.Millisecond), d.ManualClose)
		return nil
	default:
		return fmt.Errorf("unknown command %q", fields[0])
	}
}

// signalSource adapts SIGCONT into resume signals for the lifecycle
// coordinator.
type signalSource struct {
	ch chan lifecycle.Signal
}

func newSignalSource() *signalSource {
	s := &signalSource{ch: make(chan lifecycle.Signal, 4)}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGCONT)
	go func() {
		for range sigCh {
			select {
			case s.ch <- lifecycle.PageResumed:
			default:
			}
		}
	}()

	return s
}

func (s *signalSource) Signals() <-chan lifecycle.Signal {
	return s.ch
}
