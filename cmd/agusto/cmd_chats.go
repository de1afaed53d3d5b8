package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/agustogpt/research-gateway/internal/config"
	"github.com/agustogpt/research-gateway/internal/store"
	"github.com/spf13/cobra"
)

var (
	chatsCompany string
	chatsLimit   int
)

// chatsCmd is the parent command for saved chat management
var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "Manage saved chats",
	Long: `List, show and delete chats saved by the gateway.

Chats are scoped by company. --company selects it explicitly; otherwise the
company of the resolved token's client profile is used.

Available subcommands:
  list   - List the company's chats, newest first
  show   - Print a saved chat transcript
  delete - Delete a saved chat`,
}

var chatsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved chats",
	Args:  cobra.NoArgs,
	RunE:  runChatsList,
}

var chatsShowCmd = &cobra.Command{
	Use:   "show <chat-id>",
	Short: "Print a saved chat transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsShow,
}

var chatsDeleteCmd = &cobra.Command{
	Use:   "delete <chat-id>",
	Short: "Delete a saved chat",
	Args:  cobra.ExactArgs(1),
	RunE:  runChatsDelete,
}

func init() {
	chatsCmd.PersistentFlags().StringVar(&chatsCompany, "company", "", "company partition (default: token's company)")
	chatsListCmd.Flags().IntVar(&chatsLimit, "limit", store.DefaultListLimit, "maximum number of chats")

	chatsCmd.AddCommand(chatsListCmd, chatsShowCmd, chatsDeleteCmd)
}

// openChats opens the configured store and works out the company partition.
func openChats(cmd *cobra.Command) (store.ChatStore, string, error) {
	ctx := commandContext(cmd)
	cfg := config.FromEnv()

	chats, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, "", fmt.Errorf("open chat storage: %w", err)
	}
	if _, disabled := chats.(store.Disabled); disabled {
		return nil, "", errors.New("chat storage is disabled (STORAGE_BACKEND=none)")
	}

	company := chatsCompany
	if company == "" {
		company = newProfileResolver(cfg).Profile(ctx, resolveToken(cfg)).Company
	}
	return chats, company, nil
}

func runChatsList(cmd *cobra.Command, args []string) error {
	chats, company, err := openChats(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = chats.Close() }()

	list, err := chats.ListChats(commandContext(cmd), company, chatsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(out, list)
	}
	if len(list) == 0 {
		fmt.Fprintf(out, "No saved chats for %s\n", company)
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHAT ID\tUPDATED\tMESSAGES\tMODE\tTITLE")
	for _, c := range list {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			c.ChatID, c.UpdatedAt.Local().Format(time.DateTime), c.MessageCount, c.SearchMode, c.Title)
	}
	return tw.Flush()
}

func runChatsShow(cmd *cobra.Command, args []string) error {
	chats, company, err := openChats(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = chats.Close() }()

	t, err := chats.LoadChat(commandContext(cmd), company, args[0])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("chat %s not found for %s", args[0], company)
		}
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return printJSON(out, t)
	}

	fmt.Fprintf(out, "%s  (%s, %d messages)\n\n", t.ChatID, t.SearchMode, len(t.Messages))
	for _, m := range t.Messages {
		fmt.Fprintf(out, "[%s] %s\n%s\n\n", m.Timestamp.Local().Format(time.DateTime), m.Role, m.Text)
	}
	return nil
}

func runChatsDelete(cmd *cobra.Command, args []string) error {
	chats, company, err := openChats(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = chats.Close() }()

	if err := chats.DeleteChat(commandContext(cmd), company, args[0]); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("chat %s not found for %s", args[0], company)
		}
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
	return nil
}
