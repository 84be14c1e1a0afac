package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vkform-bot/internal/config"
	"vkform-bot/internal/database"
	"vkform-bot/internal/download"
	"vkform-bot/internal/form"
	"vkform-bot/internal/handlers"
	"vkform-bot/internal/locales"
	"vkform-bot/internal/storage"

	telegoBot "vkform-bot/bot"

	sentry "github.com/getsentry/sentry-go"
	telego "github.com/mymmrac/telego"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	// Initialize localization bundle
	locales.Init(cfg.DefaultLanguage)

	// Initialize Sentry (if DSN is provided)
	err = sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.AppEnv,
		Release:          cfg.Version,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		Debug:            cfg.Debug,
	})
	if err != nil {
		log.Fatalf("sentry.Init: %s", err)
	}
	defer sentry.Flush(2 * time.Second)

	// Connect to MongoDB
	client, _, err := database.ConnectDB(cfg)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}
	defer func() {
		if err = client.Disconnect(context.Background()); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
			sentry.CaptureException(err)
		} else {
			log.Println("Disconnected from MongoDB.")
		}
	}()

	// Create repository instances
	db := client.Database(cfg.MongoDBDatabase)
	mongoLogger := database.NewMongoLogger(db)

	// Creating context for application lifecycle
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Connect to Redis (cookie persistence)
	cookieStore, err := storage.NewRedisCookieStore(ctx, cfg.RedisURL)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to connect to Redis at %s: %v", config.MaskRedisURL(cfg.RedisURL), err)
	}
	defer func() {
		if err := cookieStore.Close(); err != nil {
			log.Printf("Error closing Redis connection: %v", err)
		}
	}()

	// --- Bot Initialization ---
	// 1. Create the raw telego bot instance first
	var bot *telego.Bot
	if cfg.Debug {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultDebugLogger())
	} else {
		bot, err = telego.NewBot(cfg.BotToken, telego.WithDefaultLogger(false, false))
	}
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to create telego bot: %v", err)
	}

	me, err := bot.GetMe(ctx)
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to get bot info: %v", err)
	}
	log.Printf("Authorized as @%s", me.Username)

	// 2. Create the media extractor and delivery pipeline
	extractor, err := download.NewYtDlpExtractor()
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to initialize extractor: %v", err)
	}
	pipeline := download.NewPipeline(bot, cookieStore, extractor, cfg.FileLimitBytes)

	// 3. Create the questionnaire manager
	formManager := form.NewManager(bot, mongoLogger, form.DefaultQuestions, cfg.DefaultChatID)

	// 4. Create message handler with dependencies
	messageHandler := handlers.NewMessageHandler(
		cfg.DefaultChatID,
		cfg.RulesLink,
		me.Username,
		formManager,
		pipeline,
		cookieStore,
		mongoLogger, // action logger
		mongoLogger, // user repository
	)

	// Publish the command menu before taking updates
	if err := messageHandler.SetupCommands(ctx, bot); err != nil {
		log.Printf("Failed to set bot commands: %v", err)
		sentry.CaptureException(err)
	}

	// Long polling conflicts with a leftover webhook, drop it first
	webhookInfo, err := bot.GetWebhookInfo(ctx)
	if err != nil {
		log.Printf("Failed to get webhook info: %v", err)
	} else if webhookInfo.URL != "" {
		log.Printf("Removing active webhook: %s", webhookInfo.URL)
		if err := bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{DropPendingUpdates: true}); err != nil {
			sentry.CaptureException(err)
			log.Fatalf("Failed to delete webhook: %v", err)
		}
	}

	updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message", "chat_member", "my_chat_member"},
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatalf("Failed to start long polling: %v", err)
	}

	// 5. Create the bot wrapper
	appBot, err := telegoBot.New(telegoBot.BotDeps{
		Bot:         bot,
		UpdatesChan: updates,
		Debug:       cfg.Debug,
		Handler:     messageHandler,
	})
	if err != nil {
		sentry.CaptureException(err)
		log.Fatal(err)
	}

	// Start the bot wrapper's processing loop in a separate goroutine
	go appBot.Start(ctx)

	// Wait for context cancellation (e.g., SIGINT, SIGTERM)
	<-ctx.Done()

	log.Println("Shutting down bot...")
	// Stop the bot wrapper gracefully
	appBot.Stop()

	log.Println("Bot shutdown complete.")
}
