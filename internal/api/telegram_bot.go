// Package api provides handlers for external APIs and interfaces
package api

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/abelzeko/radar-loop/internal/entities"
	"github.com/abelzeko/radar-loop/internal/integration/openai"
	"github.com/abelzeko/radar-loop/internal/timeline"
	"github.com/abelzeko/radar-loop/internal/usecases"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	log "github.com/sirupsen/logrus"
)

// Reply is the bot's answer to one message
type Reply struct {
	Text     string
	PhotoURL string
}

// TelegramBot handles interactions with the Telegram API
type TelegramBot struct {
	bot     *tgbotapi.BotAPI
	useCase *usecases.RadarUseCase
	intents openai.IntentService
}

// NewTelegramBot creates a new Telegram bot handler. intents may be nil.
func NewTelegramBot(botToken string, useCase *usecases.RadarUseCase, intents openai.IntentService) (*TelegramBot, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	return &TelegramBot{
		bot:     bot,
		useCase: useCase,
		intents: intents,
	}, nil
}

// Start begins listening for and handling Telegram messages until ctx is done
func (t *TelegramBot) Start(ctx context.Context) {
	log.Printf("Authorized on Telegram account %s", t.bot.Self.UserName)

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)
	log.Println("Bot is now listening for messages...")

	for {
		select {
		case <-ctx.Done():
			t.bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil {
				continue
			}

			log.Printf("Received message from %s (ID: %d): %s",
				update.Message.From.UserName,
				update.Message.From.ID,
				update.Message.Text)

			t.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage processes a Telegram message and sends the reply
func (t *TelegramBot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	var reply Reply
	if message.IsCommand() {
		log.Printf("Handling /%s command for user %s", message.Command(), message.From.UserName)
		reply = t.respond(ctx, message.Command(), message.CommandArguments())
	} else {
		reply = t.respondText(ctx, message.Text)
	}

	var msg tgbotapi.Chattable
	if reply.PhotoURL != "" {
		photo := tgbotapi.NewPhoto(message.Chat.ID, tgbotapi.FileURL(reply.PhotoURL))
		photo.Caption = reply.Text
		msg = photo
	} else {
		msg = tgbotapi.NewMessage(message.Chat.ID, reply.Text)
	}

	log.Printf("Sending response to user %s", message.From.UserName)
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

const helpText = "Available commands:\n" +
	"/regions - Show the list of regions\n" +
	"/region [key] - Switch the radar loop to a region\n" +
	"/center on|off - Toggle the center marker\n" +
	"/wind on|off - Toggle wind vectors\n" +
	"/faster, /slower - Change the loop speed\n" +
	"/play, /pause - Start or stop the loop\n" +
	"/frame [n] - Show the current frame or frame n\n" +
	"/status - Show the loop settings\n" +
	"/help - Show this help message"

// respond handles commands like /start, /help, etc.
func (t *TelegramBot) respond(ctx context.Context, command, args string) Reply {
	args = strings.TrimSpace(args)

	switch command {
	case "start":
		return Reply{Text: "Welcome to the Radar Bot! Use /regions to see the available regions or /help for more information."}

	case "help":
		return Reply{Text: helpText}

	case "regions":
		return Reply{Text: t.regionsText()}

	case "region":
		if args == "" {
			return Reply{Text: "Please specify a region. Example: /region seoul"}
		}
		if err := t.useCase.SelectRegion(ctx, args); err != nil {
			return t.errorReply(err)
		}
		return Reply{Text: t.statusText()}

	case "center", "wind":
		enabled, ok := parseSwitch(args)
		if !ok {
			return Reply{Text: fmt.Sprintf("Please use /%s on or /%s off.", command, command)}
		}
		var err error
		if command == "center" {
			err = t.useCase.SetCenter(ctx, enabled)
		} else {
			err = t.useCase.SetWindVector(ctx, enabled)
		}
		if err != nil {
			return t.errorReply(err)
		}
		return Reply{Text: t.statusText()}

	case "faster":
		return Reply{Text: speedText(t.useCase.Faster())}

	case "slower":
		return Reply{Text: speedText(t.useCase.Slower())}

	case "play":
		if err := t.useCase.Resume(); err != nil {
			return t.errorReply(err)
		}
		return Reply{Text: "▶️ Playing"}

	case "pause":
		t.useCase.Pause()
		return Reply{Text: "⏸ Paused"}

	case "frame":
		if args != "" {
			n, err := strconv.Atoi(args)
			if err != nil {
				return Reply{Text: "Please specify a frame number. Example: /frame 3"}
			}
			if err := t.useCase.Seek(n - 1); err != nil {
				return t.errorReply(err)
			}
		}
		return t.frameReply()

	case "status":
		return Reply{Text: t.statusText()}

	default:
		log.Printf("Received unknown command /%s", command)
		return Reply{Text: "Unknown command. Use /help to see available commands."}
	}
}

// respondText interprets free text through the intent service when one is configured
func (t *TelegramBot) respondText(ctx context.Context, text string) Reply {
	if t.intents == nil {
		return Reply{Text: "I don't understand. Use /help to see available commands."}
	}

	agentResp, err := t.intents.InterpretUserQuery(ctx, text, entities.Regions())
	if err != nil {
		log.Printf("Error interpreting user query via OpenAI: %v", err)
		return Reply{Text: "Sorry, I'm having trouble understanding right now. Please try again later or use /help."}
	}

	log.Printf("Agent response: Command='%s', Region='%s', Message='%s'",
		agentResp.CommandName, agentResp.RegionKey, agentResp.UserMessage)

	switch agentResp.CommandName {
	case openai.CommandSelectRegion:
		if err := t.useCase.SelectRegion(ctx, agentResp.RegionKey); err != nil {
			return t.errorReply(err)
		}
		reply := t.frameReply()
		if agentResp.UserMessage != "" {
			reply.Text = agentResp.UserMessage + "\n\n" + reply.Text
		}
		return reply
	case openai.CommandGeneralQuery:
		return Reply{Text: agentResp.UserMessage}
	default:
		log.Printf("Agent returned unexpected command: %s", agentResp.CommandName)
		return Reply{Text: "I'm not sure how to respond to that. You can use /help for commands."}
	}
}

func (t *TelegramBot) regionsText() string {
	current := t.useCase.Snapshot().Region.Key

	var b strings.Builder
	b.WriteString("Available regions:\n\n")
	for _, r := range entities.Regions() {
		marker := "•"
		if r.Key == current {
			marker = "▶"
		}
		fmt.Fprintf(&b, "%s %s - %s (%d frames, every %d min)\n", marker, r.Key, r.Name, r.FrameCount, r.FrameIntervalMinutes)
	}
	b.WriteString("\nUse /region [key] to switch.")
	return b.String()
}

func (t *TelegramBot) statusText() string {
	view := t.useCase.Snapshot()

	state := "paused"
	if view.State.Running {
		state = "playing"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📡 Region: %s (%s)\n", view.Region.Name, view.Region.Key)
	fmt.Fprintf(&b, "🎯 Center: %s\n", onOff(view.Center))
	fmt.Fprintf(&b, "💨 Wind vectors: %s\n", onOff(view.WindVector))
	fmt.Fprintf(&b, "⏱ %s, %s\n", speedText(view.State.PeriodMillis), state)
	if frame, ok := view.Current(); ok {
		fmt.Fprintf(&b, "🕒 Frame %d/%d: %s", view.State.Cursor+1, len(view.Frames), timeline.FormatDisplay(frame.Timestamp))
	}
	return b.String()
}

func (t *TelegramBot) frameReply() Reply {
	view := t.useCase.Snapshot()
	frame, ok := view.Current()
	if !ok {
		return Reply{Text: "No frames available right now."}
	}
	return Reply{
		Text:     fmt.Sprintf("%s (%d/%d) %s", view.Region.Name, view.State.Cursor+1, len(view.Frames), timeline.FormatDisplay(frame.Timestamp)),
		PhotoURL: frame.Locator,
	}
}

func (t *TelegramBot) errorReply(err error) Reply {
	if errors.Is(err, usecases.ErrUnknownRegion) {
		return Reply{Text: "Unknown region. Use /regions to see the available regions."}
	}
	log.Printf("Error handling bot request: %v", err)
	return Reply{Text: "Error: " + err.Error()}
}

func parseSwitch(s string) (bool, bool) {
	switch strings.ToLower(s) {
	case "on", "1", "yes":
		return true, true
	case "off", "0", "no":
		return false, true
	}
	return false, false
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func speedText(periodMillis int) string {
	return fmt.Sprintf("%.1f s/frame", float64(periodMillis)/1000)
}
