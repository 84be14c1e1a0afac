package bot

import (
	"context"
	"fmt"
	"log"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"vkform-bot/internal/handlers"
	"vkform-bot/internal/locales"
	telegoapi "vkform-bot/pkg/telegoapi"

	"github.com/getsentry/sentry-go"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"go.uber.org/ratelimit"
)

// processTimeout bounds the handling of one update. Extractions can run for
// minutes, so this is far above the usual API round-trip budget.
const processTimeout = 10 * time.Minute

// Bot wraps the telego library, manages the update loop and routes inbound
// events to the questionnaire and download handlers.
type Bot struct {
	bot         telegoapi.BotAPI
	updatesChan <-chan telego.Update
	debug       bool
	handler     *handlers.MessageHandler
	ratelimiter ratelimit.Limiter
}

// BotDeps holds the dependencies required by the Bot.
type BotDeps struct {
	Bot         telegoapi.BotAPI
	UpdatesChan <-chan telego.Update
	Debug       bool
	Handler     *handlers.MessageHandler
}

// New creates a new Bot instance from its dependencies.
// Returns the new Bot instance or an error if dependencies are missing.
func New(deps BotDeps) (*Bot, error) {
	if deps.Bot == nil {
		return nil, fmt.Errorf("telego bot (BotAPI) instance cannot be nil")
	}
	if deps.Handler == nil {
		return nil, fmt.Errorf("message handler cannot be nil")
	}
	if deps.UpdatesChan == nil {
		return nil, fmt.Errorf("updates channel cannot be nil")
	}

	return &Bot{
		bot:         deps.Bot,
		updatesChan: deps.UpdatesChan,
		debug:       deps.Debug,
		handler:     deps.Handler,
		ratelimiter: ratelimit.New(20),
	}, nil
}

// handleCommandUpdate processes a message identified as a command.
func (b *Bot) handleCommandUpdate(ctx context.Context, message telego.Message) {
	command := "unknown"
	if len(message.Text) > 1 && strings.HasPrefix(message.Text, "/") {
		command = strings.Split(message.Text, " ")[0][1:]
		// Strip the bot-name suffix of group-addressed commands (/vk@SomeBot).
		if at := strings.Index(command, "@"); at != -1 {
			command = command[:at]
		}
	}
	logPrefix := fmt.Sprintf("[Cmd:%s User:%d]", command, message.From.ID)

	handlerFunc := b.handler.GetCommandHandler(command)
	if handlerFunc != nil {
		if b.debug {
			log.Printf("%s Executing handler", logPrefix)
		}
		if err := handlerFunc(ctx, b.bot, message); err != nil {
			log.Printf("%s Handler error: %v", logPrefix, err)
			sentry.CaptureException(fmt.Errorf("%s handler error: %w", logPrefix, err))
		}
		return
	}

	log.Printf("%s No handler found", logPrefix)
	if message.Chat.Type != telego.ChatTypePrivate {
		return // Stay quiet on unknown commands in groups.
	}
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	unknownCmdMsg := locales.GetMessage(localizer, "MsgErrorUnknownCommand", nil, nil)
	if _, err := b.bot.SendMessage(ctx, tu.Message(tu.ID(message.Chat.ID), unknownCmdMsg)); err != nil {
		log.Printf("%s Failed to send unknown command message: %v", logPrefix, err)
	}
}

// processUpdate routes incoming updates to the appropriate handlers.
func (b *Bot) processUpdate(ctx context.Context, update telego.Update) {
	// Apply global rate limiting
	b.ratelimiter.Take()

	// Handle potential panics in handlers
	defer func() {
		if r := recover(); r != nil {
			log.Printf("PANIC recovered in processUpdate: %v\n%s", r, debug.Stack())
			sentry.CurrentHub().Recover(r)
			sentry.Flush(time.Second * 2)
		}
	}()

	processingCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	switch {
	case update.Message != nil:
		message := *update.Message

		// Explicit join announcements carry no command/text payload.
		if len(message.NewChatMembers) > 0 {
			if err := b.handler.HandleNewChatMembers(processingCtx, b.bot, message); err != nil {
				log.Printf("Error greeting new members in chat %d: %v", message.Chat.ID, err)
				sentry.CaptureException(err)
			}
			return
		}

		if message.From == nil { // Ignore messages without a sender (e.g., channel posts from linked chat)
			log.Printf("Ignoring message %d from chat %d without sender", message.MessageID, message.Chat.ID)
			return
		}

		switch {
		case strings.HasPrefix(message.Text, "/"):
			b.handleCommandUpdate(processingCtx, message)
		case message.Document != nil:
			if err := b.handler.HandleDocument(processingCtx, b.bot, message); err != nil {
				log.Printf("[Doc User:%d] Handler error: %v", message.From.ID, err)
				sentry.CaptureException(fmt.Errorf("document handler error: %w", err))
			}
		case message.Text != "":
			if err := b.handler.HandleText(processingCtx, b.bot, message); err != nil {
				log.Printf("[Text User:%d] Handler error: %v", message.From.ID, err)
				sentry.CaptureException(fmt.Errorf("text handler error: %w", err))
			}
		default:
			if b.debug {
				log.Printf("Ignoring unhandled message type (ID: %d)", message.MessageID)
			}
		}

	case update.ChatMember != nil:
		if err := b.handler.HandleChatMemberUpdated(processingCtx, b.bot, *update.ChatMember); err != nil {
			log.Printf("Error handling chat member update in chat %d: %v", update.ChatMember.Chat.ID, err)
			sentry.CaptureException(err)
		}

	case update.MyChatMember != nil:
		if b.debug {
			log.Printf("Ignoring my_chat_member update in chat %d", update.MyChatMember.Chat.ID)
		}

	default:
		if b.debug {
			log.Printf("Ignoring unhandled update type: %+v", update)
		}
	}
}

// Start begins the bot's update processing loop.
// It uses the updatesChan passed during initialization.
func (b *Bot) Start(ctx context.Context) {
	if b.updatesChan == nil {
		log.Fatal("Bot updates channel is nil, cannot start")
	}
	log.Println("Listening for updates...")

	var wg sync.WaitGroup

	for {
		select {
		case <-ctx.Done():
			log.Println("Context done, stopping update processing...")
			wg.Wait() // Wait for all processing goroutines to finish
			log.Println("All update processing finished.")
			return
		case update, ok := <-b.updatesChan:
			if !ok {
				log.Println("Updates channel closed.")
				wg.Wait()
				return
			}
			wg.Add(1)
			go func(up telego.Update) {
				defer wg.Done()
				b.processUpdate(ctx, up)
			}(update)
		}
	}
}

// Stop gracefully stops the bot. The actual stop is triggered by context
// cancellation; this hook exists for symmetry with Start.
func (b *Bot) Stop() {
	log.Println("Bot Stop method called. Actual stop triggered by context cancellation.")
}
