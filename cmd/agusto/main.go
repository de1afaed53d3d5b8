// Command agusto is a terminal client for the AgustoGPT research gateway.
// It runs chat turns against the agent API and manages saved chats directly,
// using the same environment configuration as the server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	flagToken   string
	flagJSON    bool
	flagVerbose bool

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

var rootCmd = &cobra.Command{
	Use:   "agusto",
	Short: "AgustoGPT research assistant CLI",
	Long: `agusto asks the research agent questions and manages saved chats.

Configuration is read from the environment (and a .env file when present):
  AGENT_API_URL, CLIENT_API_URL, JWT_TOKEN, STORAGE_BACKEND, DB_PATH, ...`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()

		level := slog.LevelWarn
		if flagVerbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagToken, "token", "", "auth token (overrides JWT_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "print JSON output")
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(askCmd, tokenCmd, chatsCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// resolveToken applies the usual precedence with --token as the manual override.
func resolveToken(cfg *config.Config) credential.Token {
	return credential.Resolve(credential.Candidates{
		ManualOverride: flagToken,
		Env:            cfg.FallbackToken,
	})
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
