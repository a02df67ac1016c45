package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/chatscribe/internal/chat"
	"github.com/user/chatscribe/internal/memory"
	"github.com/user/chatscribe/internal/types"
)

// Telegram rejects messages longer than this.
const maxTelegramMessage = 4096

// Adapter bridges Telegram chats to the turn queue. Each Telegram chat maps
// to one session, so long-running conversations get compacted like any other.
type Adapter struct {
	bot     *tgbotapi.BotAPI
	queue   *chat.Queue
	factory *memory.Factory
}

func New(token string, queue *chat.Queue, factory *memory.Factory) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Adapter{bot: bot, queue: queue, factory: factory}, nil
}

// Start long-polls for updates until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := a.bot.GetUpdatesChan(cfg)

	go func() {
		<-ctx.Done()
		a.bot.StopReceivingUpdates()
	}()

	for update := range updates {
		if update.Message == nil || update.Message.Text == "" {
			continue
		}
		a.handleMessage(ctx, update.Message)
	}
}

func (a *Adapter) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.IsCommand() {
		a.handleCommand(ctx, msg)
		return
	}

	chatID := msg.Chat.ID
	err := a.queue.Enqueue(&chat.Turn{
		SessionID: sessionFor(msg.From.ID, msg.Chat.ID),
		Text:      msg.Text,
		OnComplete: func(reply string) {
			a.sendResponse(chatID, reply)
		},
	})
	if err != nil {
		slog.Error("telegram enqueue failed", "chat_id", chatID, "error", err)
		a.sendResponse(chatID, "Sorry, I encountered an error processing your message.")
	}
}

func (a *Adapter) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	sessionID := sessionFor(msg.From.ID, msg.Chat.ID)

	switch msg.Command() {
	case "start":
		a.sendResponse(chatID, "Hello! I'm Chatscribe. Send me a message to get started.")

	case "stats":
		mem, err := a.factory.Open(memory.KindComposite, sessionID)
		if err != nil {
			a.sendResponse(chatID, "Error fetching stats.")
			return
		}
		stats, err := mem.Stats(ctx)
		if err != nil {
			a.sendResponse(chatID, "Error fetching stats.")
			return
		}
		a.sendResponse(chatID, formatStats(stats))

	case "clear":
		mem, err := a.factory.Open(memory.KindComposite, sessionID)
		if err != nil {
			a.sendResponse(chatID, "Error clearing conversation.")
			return
		}
		if err := mem.Clear(ctx); err != nil {
			a.sendResponse(chatID, "Error clearing conversation.")
			return
		}
		a.sendResponse(chatID, "Conversation cleared.")

	default:
		a.sendResponse(chatID, "Unknown command. Available: /start, /stats, /clear")
	}
}

func formatStats(stats types.MemoryStats) string {
	text := fmt.Sprintf("Session: %s\nMessages: %d\nEstimated tokens: %d",
		stats.SessionID, stats.RecordCount, stats.LogTokenEstimate)
	if stats.HasSummary {
		text += fmt.Sprintf("\nSummary: yes (%d tokens, through message %d)",
			stats.SummaryTokenEstimate, stats.Checkpoint)
	} else {
		text += "\nSummary: no"
	}
	return text
}

func (a *Adapter) sendResponse(chatID int64, text string) {
	for _, part := range splitMessage(text) {
		out := tgbotapi.NewMessage(chatID, part)
		out.ParseMode = tgbotapi.ModeMarkdown
		if _, err := a.bot.Send(out); err != nil {
			// Markdown parse failures are common; resend as plain text.
			out.ParseMode = ""
			if _, err := a.bot.Send(out); err != nil {
				slog.Error("telegram send failed", "chat_id", chatID, "error", err)
			}
		}
	}
}

func splitMessage(text string) []string {
	var parts []string
	for len(text) > maxTelegramMessage {
		parts = append(parts, text[:maxTelegramMessage])
		text = text[maxTelegramMessage:]
	}
	return append(parts, text)
}

// sessionFor derives a stable session id from the Telegram user and chat, so
// the same pair always resumes the same conversation.
func sessionFor(userID, chatID int64) types.SessionID {
	return types.SessionID("tg-" + strconv.FormatInt(userID, 10) + "-" + strconv.FormatInt(chatID, 10))
}
