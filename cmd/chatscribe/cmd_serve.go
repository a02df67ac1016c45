package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/user/chatscribe/internal/chat"
	"github.com/user/chatscribe/internal/httpapi"
	"github.com/user/chatscribe/internal/sweeper"
	"github.com/user/chatscribe/internal/telegram"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chatscribe daemon",
	RunE:  runServe,
}

func writePIDFile(dataDir string) (string, error) {
	path := filepath.Join(dataDir, "chatscribe.pid")
	data := []byte(strconv.Itoa(os.Getpid()) + "\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	factory, runner, err := buildCore(cfg)
	if err != nil {
		return err
	}

	pidPath, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue := chat.NewQueue(int64(cfg.MaxConcurrent))
	queue.SetProcessor(func(turn *chat.Turn) error {
		reply, err := runner.Respond(turn.Ctx, turn.SessionID, turn.Text)
		if err != nil {
			return err
		}
		if turn.OnComplete != nil {
			turn.OnComplete(reply)
		}
		return nil
	})
	queue.Start(ctx)
	defer queue.Stop()

	slog.Info("chatscribe started",
		"data_dir", cfg.DataDir,
		"log_level", cfg.LogLevel,
		"max_concurrent", cfg.MaxConcurrent,
		"summary_threshold", cfg.Memory.SummaryThreshold,
		"recent_window", cfg.Memory.RecentWindow,
		"compaction_enabled", cfg.Memory.CompactionEnabled,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidPath,
	)

	if cfg.Telegram.Token != "" {
		adapter, err := telegram.New(cfg.Telegram.Token, queue, factory)
		if err != nil {
			return fmt.Errorf("create telegram adapter: %w", err)
		}
		go adapter.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Warn("telegram adapter disabled (no token)")
	}

	if cfg.Sweep.Enabled {
		sw := sweeper.New(factory, cfg.Sweep.Schedule, slog.Default())
		if err := sw.Start(ctx); err != nil {
			return fmt.Errorf("start sweeper: %w", err)
		}
		defer sw.Stop()
	}

	if cfg.HTTP.Enabled {
		srv := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: httpapi.NewServer(runner, factory),
		}
		go func() {
			slog.Info("http api started", "listen", cfg.HTTP.Listen)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("http api error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			srv.Close()
		}()
	}

	return waitForSignals(cfg.DataDir, pidPath)
}

// waitForSignals blocks until shutdown. SIGHUP re-execs the binary in place
// so a config change can be picked up without dropping the PID file's owner.
func waitForSignals(dataDir, pidPath string) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigs {
		if sig != syscall.SIGHUP {
			slog.Info("shutting down", "signal", sig)
			return nil
		}

		slog.Info("received SIGHUP, restarting")
		self, err := os.Executable()
		if err != nil {
			slog.Error("resolve executable path", "error", err)
			continue
		}
		// The PID file is removed before the exec; on failure the process
		// keeps running, so it gets written back.
		os.Remove(pidPath)
		if err := syscall.Exec(self, os.Args, os.Environ()); err != nil {
			slog.Error("re-exec failed", "error", err)
			if _, werr := writePIDFile(dataDir); werr != nil {
				slog.Error("restore PID file", "error", werr)
			}
		}
	}
	return nil
}
