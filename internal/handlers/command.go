package handlers

import (
	"context"
	"strconv"
	"strings"

	"vkform-bot/internal/download"
	"vkform-bot/internal/locales"
	telegoapi "vkform-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

const startPayloadPrefix = "chat_"

// HandleStart handles the /start command. A deep-link payload of the form
// `chat_<id>` binds the questionnaire's destination to that chat; any other
// payload (or none) falls back to the configured default chat.
func (h *MessageHandler) HandleStart(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandStart, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	destinationChatID := parseStartPayload(message.Text)

	introKey := "MsgFormStartPrivate"
	if message.Chat.Type != telego.ChatTypePrivate {
		introKey = "MsgFormStartGroup"
	}
	if err := h.reply(ctx, bot, message, locales.GetMessage(localizer, introKey, nil, nil)); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}

	// Start overwrites any stale session for the user and asks the first question.
	if err := h.formManager.Start(ctx, message.From, destinationChatID); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return nil
}

// parseStartPayload extracts the destination chat id from `/start chat_<id>`.
// Returns 0 when the payload is absent or malformed.
func parseStartPayload(text string) int64 {
	parts := strings.SplitN(text, " ", 2)
	if len(parts) != 2 {
		return 0
	}
	payload := strings.TrimSpace(parts[1])
	if !strings.HasPrefix(payload, startPayloadPrefix) {
		return 0
	}
	chatID, err := strconv.ParseInt(strings.TrimPrefix(payload, startPayloadPrefix), 10, 64)
	if err != nil {
		return 0
	}
	return chatID
}

// HandleHelp handles the /help command.
func (h *MessageHandler) HandleHelp(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	localizer := h.getLocalizer(message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandHelp, map[string]interface{}{
		"chat_id": message.Chat.ID,
	})

	helpText := locales.GetMessage(localizer, "MsgHelp", map[string]interface{}{
		"ChatID": h.defaultChatID,
	}, nil)
	return h.reply(ctx, bot, message, helpText)
}

// HandleVK handles the /vk command: download video/audio from a VK link.
func (h *MessageHandler) HandleVK(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	return h.handleDownloadCommand(ctx, bot, message, false)
}

// HandleVKAudio handles the /vk_audio command: audio-only download.
func (h *MessageHandler) HandleVKAudio(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	return h.handleDownloadCommand(ctx, bot, message, true)
}

func (h *MessageHandler) handleDownloadCommand(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, audioOnly bool) error {
	localizer := h.getLocalizer(message.From)

	if !h.ensurePrivateChat(ctx, bot, message) {
		return nil
	}

	url := ExtractFirstURL(message.Text)
	if url == "" || !IsVKURL(url) {
		usageKey := "MsgVKUsage"
		if audioOnly {
			usageKey = "MsgVKAudioUsage"
		}
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, usageKey, nil, nil))
	}

	action := ActionCommandVK
	ackKey := "MsgVKDownloading"
	if audioOnly {
		action = ActionCommandVKAudio
		ackKey = "MsgVKAudioExtracting"
		if !download.FFmpegAvailable() {
			ackKey = "MsgVKAudioFfmpegMissing"
		}
	}
	h.RecordUserActivity(ctx, message.From, action, map[string]interface{}{
		"url": url,
	})

	if err := h.reply(ctx, bot, message, locales.GetMessage(localizer, ackKey, nil, nil)); err != nil {
		return err
	}
	return h.downloader.Download(ctx, message.Chat.ID, message.MessageID, url, message.From.ID, audioOnly)
}

// ensurePrivateChat checks the chat type and, for non-private chats, replies
// with instructions to continue in a private conversation.
func (h *MessageHandler) ensurePrivateChat(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) bool {
	if message.Chat.Type == telego.ChatTypePrivate {
		return true
	}
	localizer := h.getLocalizer(message.From)
	text := locales.GetMessage(localizer, "MsgVKPrivateOnly", map[string]interface{}{
		"Link": h.buildDeepLink("form"),
	}, nil)
	_ = h.reply(ctx, bot, message, text)
	return false
}

// HandleCookies handles the /cookies command: report saved cookie status.
func (h *MessageHandler) HandleCookies(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}
	localizer := h.getLocalizer(message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandCookies, nil)

	_, found, err := h.cookieStore.Get(ctx, message.From.ID)
	if err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	if !found {
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesNotLoaded", nil, nil))
	}

	if at, ok, err := h.cookieStore.UpdatedAt(ctx, message.From.ID); err == nil && ok {
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesLoadedAt", map[string]interface{}{
			"UpdatedAt": at.Format("2006-01-02 15:04"),
		}, nil))
	}
	return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesLoaded", nil, nil))
}

// HandleClearCookies handles the /clearcookies command.
func (h *MessageHandler) HandleClearCookies(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}
	localizer := h.getLocalizer(message.From)

	h.RecordUserActivity(ctx, message.From, ActionCommandClearCookies, nil)

	if err := h.cookieStore.Delete(ctx, message.From.ID); err != nil {
		return h.sendError(ctx, bot, message.Chat.ID, err)
	}
	return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesCleared", nil, nil))
}

// SetupCommands registers the bot command menu with Telegram.
func (h *MessageHandler) SetupCommands(ctx context.Context, bot telegoapi.BotAPI) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	cmds := make([]telego.BotCommand, 0, len(h.commands))
	for _, cmd := range h.commands {
		cmds = append(cmds, telego.BotCommand{
			Command:     cmd.Command,
			Description: locales.GetMessage(localizer, cmd.Description, nil, nil),
		})
	}
	return bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: cmds})
}
