package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/chatscribe/internal/types"
)

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "session id to resume (default: new session)")
	rootCmd.AddCommand(chatCmd)
}

var chatSessionID string

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Chat from the terminal, one-shot or interactively",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	_, runner, err := buildCore(cfg)
	if err != nil {
		return err
	}

	sessionID := types.SessionID(chatSessionID)
	if sessionID == "" {
		sessionID = types.NewSessionID()
		fmt.Fprintf(os.Stderr, "session: %s\n", sessionID)
	}

	ctx := context.Background()

	// One-shot mode
	if len(args) == 1 {
		reply, err := runner.Respond(ctx, sessionID, args[0])
		if err != nil {
			return err
		}
		fmt.Println(reply)
		return nil
	}

	// Interactive REPL
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Type a message, or /quit to exit.")
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		reply, err := runner.Respond(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Println(reply)
	}
	return scanner.Err()
}
