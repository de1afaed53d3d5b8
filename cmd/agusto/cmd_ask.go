package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/agustogpt/research-gateway/internal/agent"
	"github.com/agustogpt/research-gateway/internal/cache"
	"github.com/agustogpt/research-gateway/internal/clientapi"
	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/credential"
	"github.com/agustogpt/research-gateway/internal/session"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/spf13/cobra"
)

var (
	askMode     string
	askIndustry string
	askYear     int
	askHistory  bool
	askChat     string
)

// askCmd runs a single chat turn
var askCmd = &cobra.Command{
	Use:   "ask <query>",
	Short: "Ask the research assistant a question",
	Long: `Send one question to the research agent and print the answer with its sources.

The question is composed exactly as in the web chat: auto mode searches every
report the token's company is entitled to, tailored mode uses --industry/--year.
Use --chat to continue a saved chat; the turn is saved when storage is enabled.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askMode, "mode", "auto", "search mode: auto or tailored")
	askCmd.Flags().StringVar(&askIndustry, "industry", "", "industry filter (tailored mode)")
	askCmd.Flags().IntVar(&askYear, "year", 0, "report year filter")
	askCmd.Flags().BoolVar(&askHistory, "history", true, "include recent conversation in the query")
	askCmd.Flags().StringVar(&askChat, "chat", "", "continue the saved chat with this id")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	chats, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open chat storage: %w", err)
	}
	defer func() { _ = chats.Close() }()

	includeHistory := cfg.IncludeChatHistory
	if cmd.Flags().Changed("history") {
		includeHistory = askHistory
	}

	profiles := newProfileResolver(cfg)
	svc := agent.NewService(agent.NewClient(cfg.AgentAPIURL, cfg.HTTPTimeout), profiles, chats, agent.Options{
		IncludeHistory: includeHistory,
		DebugQueries:   cfg.DebugQueries,
		QueryLog:       cfg.Storage.QueryLogEnabled,
	})

	tok := resolveToken(cfg)
	ctx = credential.WithToken(ctx, tok)
	sess, _ := session.NewManager().GetOrCreate("")

	if askChat != "" {
		profile := profiles.ForSession(ctx, sess, tok)
		t, err := chats.LoadChat(ctx, profile.Company, askChat)
		if err != nil {
			return fmt.Errorf("load chat %s: %w", askChat, err)
		}
		sess.Load(t)
	}

	resp, err := svc.Ask(ctx, sess, agent.ChatRequest{
		Message:  strings.Join(args, " "),
		Mode:     askMode,
		Industry: askIndustry,
		Year:     askYear,
	})
	if err != nil {
		return err
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp)
	}
	printAnswer(cmd.OutOrStdout(), resp)
	return nil
}

func newProfileResolver(cfg *config.Config) *clientapi.Resolver {
	return clientapi.NewResolver(
		clientapi.NewClient(cfg.ClientAPIBase(), cfg.HTTPTimeout),
		cache.NewMemory(), cfg.Cache.ProfileTTL, logger,
	)
}

func printAnswer(w io.Writer, resp agent.ChatResponse) {
	fmt.Fprintln(w, resp.Answer)

	if len(resp.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, src := range resp.Sources {
			line := fmt.Sprintf("  %d. %s", i+1, src.DocumentName)
			if src.Year > 0 {
				line += fmt.Sprintf(" (%d)", src.Year)
			}
			if src.Page > 0 {
				line += fmt.Sprintf(", p. %d", src.Page)
			}
			fmt.Fprintln(w, line)
		}
	}

	if len(resp.RecommendedQueries) > 0 {
		fmt.Fprintln(w, "\nYou might also ask:")
		for _, q := range resp.RecommendedQueries {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}

	if resp.ChatID != "" {
		fmt.Fprintf(w, "\nchat: %s (saved: %t)\n", resp.ChatID, resp.Persisted)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
