package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatscribe/internal/chat"
	"github.com/user/chatscribe/internal/compact"
	"github.com/user/chatscribe/internal/config"
	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/state"
	"github.com/user/chatscribe/internal/tokens"
	"github.com/user/chatscribe/pkg/llm"
	"github.com/user/chatscribe/pkg/llm/openai"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "chatscribe",
	Short: "Chat assistant with durable, self-compacting conversation memory",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".chatscribe", "config.json"),
		"config file path")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// buildCore wires the shared components: estimator, state manager, compaction
// engine, memory factory, and the turn runner.
func buildCore(cfg *config.Config) (*memory.Factory, *chat.Runner, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	estimator, err := tokens.New(cfg.Memory.Estimator, cfg.LLM.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("create token estimator: %w", err)
	}

	manager := state.NewManager(cfg.DataDir, estimator)

	// The summarizer gets its own provider so it can run a cheaper model
	// with tighter sampling than the chat turns.
	summaryProvider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.SummaryModel(),
		MaxTokens:   cfg.Summary.MaxTokens,
		Temperature: cfg.Summary.Temperature,
	})
	engine := compact.NewEngine(
		compact.NewLLMSummarizer(summaryProvider),
		estimator,
		compact.Options{
			Threshold:    cfg.Memory.SummaryThreshold,
			RecentWindow: cfg.Memory.RecentWindow,
			Enabled:      cfg.Memory.CompactionEnabled,
		},
		slog.Default(),
	)

	factory := memory.NewFactory(manager, engine, estimator, slog.Default())

	chatProvider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	prompts := chat.NewPromptBuilder(estimator, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	runner := chat.NewRunner(factory, chatProvider, prompts, slog.Default())

	return factory, runner, nil
}
