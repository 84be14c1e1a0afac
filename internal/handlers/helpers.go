package handlers

import (
	"context"
	"fmt"
	"log"

	"vkform-bot/internal/locales"
	telegoapi "vkform-bot/pkg/telegoapi"
	"vkform-bot/pkg/utils"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/nicksnyder/go-i18n/v2/i18n"
)

// reply sends an HTML-formatted reply to the message, with link previews suppressed.
func (h *MessageHandler) reply(ctx context.Context, bot telegoapi.BotAPI, message telego.Message, text string) error {
	params := tu.Message(tu.ID(message.Chat.ID), text).
		WithParseMode(telego.ModeHTML).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true}).
		WithReplyParameters(&telego.ReplyParameters{MessageID: message.MessageID})
	if _, err := bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send reply to chat %d: %w", message.Chat.ID, err)
	}
	return nil
}

// sendError sends a generic localized error message to the user and returns
// the original error for upstream reporting.
func (h *MessageHandler) sendError(ctx context.Context, bot telegoapi.BotAPI, chatID int64, originalErr error) error {
	log.Printf("Error for user in chat %d: %v", chatID, originalErr)

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	errMsg := locales.GetMessage(localizer, "MsgErrorGeneral", nil, nil)

	if _, sendErr := bot.SendMessage(ctx, tu.Message(tu.ID(chatID), errMsg)); sendErr != nil {
		log.Printf("Error sending generic error message to chat %d: %v", chatID, sendErr)
	}
	return originalErr
}

// getLocalizer determines the best localizer for a given user. It falls back
// to the configured default language when no user language is available.
func (h *MessageHandler) getLocalizer(user *telego.User) *i18n.Localizer {
	lang := locales.GetDefaultLanguageTag().String()
	if user != nil && user.LanguageCode != "" {
		lang = user.LanguageCode
	}
	return locales.NewLocalizer(lang)
}

// RecordUserActivity combines updating user info and logging the action.
// Both writes are best-effort; failures are logged and never surfaced.
func (h *MessageHandler) RecordUserActivity(ctx context.Context, user *telego.User, action string, details map[string]interface{}) {
	if user == nil {
		log.Printf("Attempted to record activity for nil user, action: %s", action)
		return
	}

	if h.userRepo != nil {
		if err := h.userRepo.UpdateUser(ctx, user.ID, user.Username, user.FirstName, user.LastName, action); err != nil {
			log.Printf("Error updating user %d (%s) in DB during action %s: %v", user.ID, user.Username, action, err)
		}
	}
	if h.actionLogger != nil {
		if err := h.actionLogger.LogUserAction(user.ID, action, details); err != nil {
			log.Printf("Error logging action %s for user %d (%s): %v", action, user.ID, user.Username, err)
		}
	}
}

// buildDeepLink builds a t.me deep link opening a private chat with the bot,
// carrying the given start payload.
func (h *MessageHandler) buildDeepLink(param string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", h.botUsername, param)
}

// welcomeKeyboard builds the two-button navigation keyboard: the questionnaire
// deep link carrying the chat id, and the static rules link.
func (h *MessageHandler) welcomeKeyboard(localizer *i18n.Localizer, chatID int64) *telego.InlineKeyboardMarkup {
	return tu.InlineKeyboard(
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnForm", nil, nil)).
				WithURL(h.buildDeepLink(fmt.Sprintf("chat_%d", chatID))),
		),
		tu.InlineKeyboardRow(
			tu.InlineKeyboardButton(locales.GetMessage(localizer, "BtnRules", nil, nil)).
				WithURL(h.rulesLink),
		),
	)
}

// sendWelcome greets one user in the given chat, optionally inside a topic thread.
func (h *MessageHandler) sendWelcome(ctx context.Context, bot telegoapi.BotAPI, chatID int64, threadID int, user *telego.User) error {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	text := locales.GetMessage(localizer, "MsgWelcome", map[string]interface{}{
		"Mention": utils.Mention(user),
	}, nil)

	params := tu.Message(tu.ID(chatID), text).
		WithParseMode(telego.ModeHTML).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true}).
		WithReplyMarkup(h.welcomeKeyboard(localizer, chatID))
	if threadID != 0 {
		params = params.WithMessageThreadID(threadID)
	}

	if _, err := bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send welcome to chat %d: %w", chatID, err)
	}
	return nil
}
