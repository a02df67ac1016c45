package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/types"
)

func init() {
	rootCmd.AddCommand(sessionCmd)
	sessionCmd.AddCommand(sessionListCmd, sessionStatsCmd, sessionClearCmd, sessionCompactCmd)
}

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		factory, _, err := buildCore(cfg)
		if err != nil {
			return err
		}

		ids, err := factory.Sessions()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(ids) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}

		ctx := context.Background()
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tMESSAGES\tTOKENS\tSUMMARY\tUPDATED")
		for _, id := range ids {
			mem, err := factory.Open(memory.KindComposite, id)
			if err != nil {
				return err
			}
			stats, err := mem.Stats(ctx)
			if err != nil {
				return err
			}
			summary := "no"
			if stats.HasSummary {
				summary = fmt.Sprintf("yes (%d tok)", stats.SummaryTokenEstimate)
			}
			updated := ""
			if !stats.UpdatedAt.IsZero() {
				updated = stats.UpdatedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				id, stats.RecordCount, stats.LogTokenEstimate, summary, updated)
		}
		return w.Flush()
	},
}

var sessionStatsCmd = &cobra.Command{
	Use:   "stats <id>",
	Short: "Show memory statistics for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		factory, _, err := buildCore(cfg)
		if err != nil {
			return err
		}

		mem, err := factory.Open(memory.KindComposite, types.SessionID(args[0]))
		if err != nil {
			return err
		}
		stats, err := mem.Stats(context.Background())
		if err != nil {
			return err
		}

		fmt.Printf("Session:          %s\n", stats.SessionID)
		fmt.Printf("Messages:         %d\n", stats.RecordCount)
		fmt.Printf("Estimated tokens: %d\n", stats.LogTokenEstimate)
		if stats.HasSummary {
			fmt.Printf("Summary:          yes (%d tokens)\n", stats.SummaryTokenEstimate)
			fmt.Printf("Checkpoint:       %d\n", stats.Checkpoint)
		} else {
			fmt.Println("Summary:          no")
		}
		if !stats.UpdatedAt.IsZero() {
			fmt.Printf("Updated:          %s\n", stats.UpdatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var sessionClearCmd = &cobra.Command{
	Use:   "clear <id>",
	Short: "Clear a session's records and summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		factory, _, err := buildCore(cfg)
		if err != nil {
			return err
		}

		mem, err := factory.Open(memory.KindComposite, types.SessionID(args[0]))
		if err != nil {
			return err
		}
		if err := mem.Clear(context.Background()); err != nil {
			return fmt.Errorf("clear session: %w", err)
		}
		fmt.Printf("Session %s cleared.\n", args[0])
		return nil
	},
}

var sessionCompactCmd = &cobra.Command{
	Use:   "compact <id>",
	Short: "Force a compaction check for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)
		factory, _, err := buildCore(cfg)
		if err != nil {
			return err
		}

		mem, err := factory.Open(memory.KindComposite, types.SessionID(args[0]))
		if err != nil {
			return err
		}
		comp, ok := mem.(*memory.Composite)
		if !ok {
			return fmt.Errorf("session %s does not support compaction", args[0])
		}
		ran, err := comp.Compact(context.Background())
		if err != nil {
			return fmt.Errorf("compact session: %w", err)
		}
		if ran {
			fmt.Printf("Session %s compacted.\n", args[0])
		} else {
			fmt.Printf("Session %s below threshold, nothing to do.\n", args[0])
		}
		return nil
	},
}
