package handlers

import (
	"context"

	"vkform-bot/internal/form"

	"github.com/mymmrac/telego"
)

// FormManagerInterface defines the questionnaire operations used by MessageHandler.
type FormManagerInterface interface {
	GetUserState(userID int64) form.State
	Start(ctx context.Context, user *telego.User, destinationChatID int64) error
	SubmitAnswer(ctx context.Context, userID int64, text string) error
	Cancel(userID int64) bool
}

// Downloader defines the download pipeline operation used by MessageHandler.
type Downloader interface {
	Download(ctx context.Context, chatID int64, replyToMessageID int, sourceURL string, userID int64, audioOnly bool) error
}
