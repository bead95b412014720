package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/user/pulsebot/internal/metrics"
	"github.com/user/pulsebot/internal/pipeline"
	"github.com/user/pulsebot/internal/types"
)

// Handler executes one bot command and returns the reply text.
type Handler func(msg *tgbotapi.Message) (string, error)

// Adapter bridges Telegram to the bot's command handlers and reports an
// interaction/completion event pair for every command to the telemetry
// pipeline. Telemetry never affects reply delivery.
type Adapter struct {
	bot       *tgbotapi.BotAPI
	pipe      *pipeline.Pipeline
	collector *metrics.Collector
	handlers  map[string]Handler
}

// New creates a Telegram adapter.
func New(token string, pipe *pipeline.Pipeline, collector *metrics.Collector) (*Adapter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	a := &Adapter{
		bot:       bot,
		pipe:      pipe,
		collector: collector,
	}
	a.handlers = map[string]Handler{
		"ping":  a.handlePing,
		"stats": a.handleStats,
		"help":  a.handleHelp,
	}
	return a, nil
}

// Start begins long-polling for Telegram updates until ctx is cancelled.
func (a *Adapter) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := a.bot.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message == nil || !update.Message.IsCommand() {
				continue
			}
			reply := a.runCommand(update.Message)
			a.send(update.Message.Chat.ID, reply)
		case <-ctx.Done():
			a.bot.StopReceivingUpdates()
			return
		}
	}
}

// runCommand submits the interaction event, executes the handler with
// wall-clock timing, submits the matching completion event, and returns
// the reply text.
func (a *Adapter) runCommand(msg *tgbotapi.Message) string {
	command := msg.Command()
	cid := types.NewCorrelationID()

	a.pipe.Submit(types.NewInteraction(cid, &types.Interaction{
		UserID:      strconv.FormatInt(msg.From.ID, 10),
		Username:    msg.From.UserName,
		CommandName: command,
		GuildID:     guildID(msg.Chat),
		ChannelID:   strconv.FormatInt(msg.Chat.ID, 10),
		Options:     commandOptions(msg),
	}))

	start := time.Now()
	reply, err := a.execute(msg, command)
	durationMS := float64(time.Since(start).Microseconds()) / 1000.0

	completion := &types.Completion{
		CommandName: command,
		Status:      types.StatusOf(err),
		DurationMS:  durationMS,
	}
	if err != nil {
		completion.ErrorType = types.ErrorClass(err)
		slog.Warn("command failed",
			"command", command,
			"status", string(completion.Status),
			"error", err,
		)
	}
	a.pipe.Submit(types.NewCompletion(cid, completion))

	if reply == "" {
		reply = "Sorry, something went wrong handling that command."
	}
	return reply
}

// execute dispatches to the registered handler. Unknown commands are
// user errors, not bot failures.
func (a *Adapter) execute(msg *tgbotapi.Message, command string) (string, error) {
	handler, ok := a.handlers[command]
	if !ok {
		err := types.NewUserInputError(fmt.Sprintf("Unknown command /%s. Try /help.", command))
		return err.Reply, err
	}
	reply, err := handler(msg)
	if err != nil {
		var uie *types.UserInputError
		if errors.As(err, &uie) && uie.Reply != "" {
			return uie.Reply, err
		}
		return "Sorry, something went wrong handling that command.", err
	}
	return reply, nil
}

func (a *Adapter) handlePing(msg *tgbotapi.Message) (string, error) {
	return "pong", nil
}

func (a *Adapter) handleHelp(msg *tgbotapi.Message) (string, error) {
	return "Available commands: /ping, /stats, /help", nil
}

func (a *Adapter) handleStats(msg *tgbotapi.Message) (string, error) {
	snap := a.collector.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b, "Interactions: %d (%d unique users)\n", snap.TotalInteractions, snap.UniqueUsers)

	commands := make([]string, 0, len(snap.CommandInvocations))
	for cmd := range snap.CommandInvocations {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	for _, cmd := range commands {
		fmt.Fprintf(&b, "/%s: %d", cmd, snap.CommandInvocations[cmd])
		if lat, ok := snap.CommandLatency[cmd]; ok {
			fmt.Fprintf(&b, " (avg %.1fms)", lat.AvgMS)
		}
		b.WriteString("\n")
	}

	statuses := make([]string, 0, len(snap.CompletionsByStatus))
	for status := range snap.CompletionsByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)
	for _, status := range statuses {
		fmt.Fprintf(&b, "%s: %d\n", status, snap.CompletionsByStatus[status])
	}

	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *Adapter) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := a.bot.Send(msg); err != nil {
		slog.Error("send message failed", "chat_id", chatID, "error", err)
	}
}

// guildID maps the chat to the event's container identity: group chats
// count as guilds, private chats have none.
func guildID(chat *tgbotapi.Chat) *string {
	if chat == nil || chat.IsPrivate() {
		return nil
	}
	id := strconv.FormatInt(chat.ID, 10)
	return &id
}

// commandOptions extracts the argument text, if any, as the opaque
// options payload.
func commandOptions(msg *tgbotapi.Message) map[string]any {
	args := msg.CommandArguments()
	if args == "" {
		return nil
	}
	return map[string]any{"args": args}
}
