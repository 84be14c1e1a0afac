package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"vkform-bot/internal/form"
	"vkform-bot/internal/locales"
	telegoapi "vkform-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// HandleText processes a non-command text message: questionnaire cancellation,
// an in-progress questionnaire answer, an auto-detected VK link, or an offer
// to start the questionnaire.
func (h *MessageHandler) HandleText(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.From == nil {
		return nil
	}
	userID := message.From.ID
	localizer := h.getLocalizer(message.From)

	if IsCancelKeyword(message.Text) {
		h.RecordUserActivity(ctx, message.From, ActionFormCancel, nil)
		msgID := "MsgFormNotRunning"
		if h.formManager.Cancel(userID) {
			msgID = "MsgFormCancelled"
		}
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, msgID, nil, nil))
	}

	if message.Chat.Type != telego.ChatTypePrivate {
		return nil
	}

	if h.formManager.GetUserState(userID) == form.StateAwaitingAnswer {
		h.RecordUserActivity(ctx, message.From, ActionFormAnswer, nil)
		if err := h.formManager.SubmitAnswer(ctx, userID, message.Text); err != nil {
			return h.sendError(ctx, bot, message.Chat.ID, err)
		}
		return nil
	}

	if url := ExtractFirstURL(message.Text); url != "" && IsVKURL(url) {
		h.RecordUserActivity(ctx, message.From, ActionDownloadLink, map[string]interface{}{
			"url": url,
		})
		if err := h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgVKDownloading", nil, nil)); err != nil {
			return err
		}
		return h.downloader.Download(ctx, message.Chat.ID, message.MessageID, url, userID, false)
	}

	return h.offerForm(ctx, bot, message, localizer)
}

// offerForm suggests starting the questionnaire via a deep-link button.
func (h *MessageHandler) offerForm(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, localizer *i18n.Localizer) error {
	keyboard := tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnStartForm", nil, nil)).
				WithURL(h.buildDeepLink(fmt.Sprintf("chat_%d", h.defaultChatID))),
		),
	)
	params := tu.Message(tu.ID(message.Chat.ID), locales.GetMessage(localizer, "MsgFormOffer", nil, nil)).
		WithReplyParameters(&telego.ReplyParameters{MessageID: message.MessageID}).
		WithReplyMarkup(keyboard)
	if _, err := bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send form offer to chat %d: %w", message.Chat.ID, err)
	}
	return nil
}

// HandleDocument processes a document upload in a private chat: a `.txt` file
// containing recognizable cookie markers is stored as the user's cookies.
func (h *MessageHandler) HandleDocument(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	if message.Chat.Type != telego.ChatTypePrivate || message.Document == nil || message.From == nil {
		return nil
	}
	localizer := h.getLocalizer(message.From)

	fileName := strings.ToLower(message.Document.FileName)
	if !strings.HasSuffix(fileName, ".txt") {
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesWrongFile", nil, nil))
	}

	text, err := h.downloadDocument(ctx, bot, message.Document.FileID)
	if err != nil {
		log.Printf("[Cookies User:%d] Failed to fetch uploaded document: %v", message.From.ID, err)
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesProcessingError", nil, nil))
	}

	// Invalid content is rejected before persistence; no state change.
	if !ValidateCookieFile(text) {
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesInvalid", nil, nil))
	}

	if err := h.cookieStore.Set(ctx, message.From.ID, text); err != nil {
		log.Printf("[Cookies User:%d] Failed to store cookies: %v", message.From.ID, err)
		return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesProcessingError", nil, nil))
	}

	h.RecordUserActivity(ctx, message.From, ActionCookiesUpload, map[string]interface{}{
		"file_name": message.Document.FileName,
	})
	return h.reply(ctx, bot, message, locales.GetMessage(localizer, "MsgCookiesAccepted", nil, nil))
}

// downloadDocument fetches the raw content of an uploaded Telegram document.
func (h *MessageHandler) downloadDocument(ctx context.Context, bot telegoapi.BotAPI, fileID string) (string, error) {
	file, err := bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("failed to resolve file: %w", err)
	}
	data, err := tu.DownloadFile(bot.FileDownloadURL(file.FilePath))
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	return string(data), nil
}

// HandleNewChatMembers greets every user announced by a join message.
func (h *MessageHandler) HandleNewChatMembers(ctx context.Context, bot telegoapi.BotAPI, message telego.Message) error {
	threadID := 0
	if message.IsTopicMessage && message.MessageThreadID != 0 {
		threadID = message.MessageThreadID
	}
	for i := range message.NewChatMembers {
		user := &message.NewChatMembers[i]
		if user.IsBot {
			continue
		}
		if err := h.sendWelcome(ctx, bot, message.Chat.ID, threadID, user); err != nil {
			log.Printf("[Welcome Chat:%d] Failed to greet user %d: %v", message.Chat.ID, user.ID, err)
		}
	}
	return nil
}

// HandleChatMemberUpdated greets a user whose membership status transitioned
// from {left, kicked} to {member, restricted}.
func (h *MessageHandler) HandleChatMemberUpdated(ctx context.Context, bot telegoapi.BotAPI, update telego.ChatMemberUpdated) error {
	oldStatus := update.OldChatMember.MemberStatus()
	newStatus := update.NewChatMember.MemberStatus()

	joinedNow := (oldStatus == telego.MemberStatusLeft || oldStatus == telego.MemberStatusBanned) &&
		(newStatus == telego.MemberStatusMember || newStatus == telego.MemberStatusRestricted)
	if !joinedNow {
		return nil
	}

	user := update.NewChatMember.MemberUser()
	if user.IsBot {
		return nil
	}
	return h.sendWelcome(ctx, bot, update.Chat.ID, 0, &user)
}
