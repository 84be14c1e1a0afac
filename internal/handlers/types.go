package handlers

import (
	"context"
	"log"

	"vkform-bot/internal/database"
	"vkform-bot/internal/form"
	"vkform-bot/internal/storage"
	telegoapi "vkform-bot/pkg/telegoapi"

	"github.com/mymmrac/telego"
)

// Action types for logging and user updates
const (
	ActionCommandStart        = "command_start"
	ActionCommandHelp         = "command_help"
	ActionCommandVK           = "command_vk"
	ActionCommandVKAudio      = "command_vk_audio"
	ActionCommandCookies      = "command_cookies"
	ActionCommandClearCookies = "command_clearcookies"
	ActionFormAnswer          = "form_answer"
	ActionFormCancel          = "form_cancel"
	ActionCookiesUpload       = "cookies_upload"
	ActionDownloadLink        = "download_link"
)

// Command represents a bot command, mapping the command string to its description and handler function.
type Command struct {
	Command     string                                                      // The command string (e.g., "start").
	Description string                                                      // Localization key of the command description.
	Handler     func(context.Context, telegoapi.BotAPI, telego.Message) error // The function to execute when the command is received.
}

// MessageHandler handles incoming Telegram messages and membership events.
// It orchestrates command handling, the questionnaire flow, cookie management
// and download requests.
type MessageHandler struct {
	defaultChatID int64  // Fallback destination chat for published questionnaires.
	rulesLink     string // URL of the rules message shown on welcome keyboards.
	botUsername   string // Resolved bot username for deep-link construction.

	// commands holds the list of available bot commands.
	commands []Command

	formManager  FormManagerInterface
	downloader   Downloader
	cookieStore  storage.CookieStore
	actionLogger database.UserActionLogger
	userRepo     database.UserRepository
}

// NewMessageHandler creates and initializes a new MessageHandler instance.
// It sets up dependencies and defines the available bot commands.
func NewMessageHandler(
	defaultChatID int64,
	rulesLink string,
	botUsername string,
	formManager FormManagerInterface,
	downloader Downloader,
	cookieStore storage.CookieStore,
	actionLogger database.UserActionLogger,
	userRepo database.UserRepository,
) *MessageHandler {
	if formManager == nil {
		log.Fatal("MessageHandler: form manager dependency is nil")
	}
	if downloader == nil {
		log.Fatal("MessageHandler: downloader dependency is nil")
	}
	if cookieStore == nil {
		log.Fatal("MessageHandler: cookie store dependency is nil")
	}
	h := &MessageHandler{
		defaultChatID: defaultChatID,
		rulesLink:     rulesLink,
		botUsername:   botUsername,
		formManager:   formManager,
		downloader:    downloader,
		cookieStore:   cookieStore,
		actionLogger:  actionLogger,
		userRepo:      userRepo,
	}
	h.commands = []Command{
		{Command: "start", Description: "CmdStartDescription", Handler: h.HandleStart},
		{Command: "help", Description: "CmdHelpDescription", Handler: h.HandleHelp},
		{Command: "vk", Description: "CmdVKDescription", Handler: h.HandleVK},
		{Command: "vk_audio", Description: "CmdVKAudioDescription", Handler: h.HandleVKAudio},
		{Command: "cookies", Description: "CmdCookiesDescription", Handler: h.HandleCookies},
		{Command: "clearcookies", Description: "CmdClearCookiesDescription", Handler: h.HandleClearCookies},
	}
	return h
}

// GetCommandHandler retrieves the handler function associated with a specific command string (e.g., "start").
// It returns nil if the command is not found.
func (h *MessageHandler) GetCommandHandler(command string) func(context.Context, telegoapi.BotAPI, telego.Message) error {
	for _, cmd := range h.commands {
		if cmd.Command == command {
			return cmd.Handler
		}
	}
	return nil
}

// FormState reports the questionnaire state of the user.
func (h *MessageHandler) FormState(userID int64) form.State {
	return h.formManager.GetUserState(userID)
}
