package form

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"vkform-bot/internal/database"
	"vkform-bot/internal/database/models"
	"vkform-bot/internal/locales"
	telegoapi "vkform-bot/pkg/telegoapi"
	"vkform-bot/pkg/utils"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Manager runs the per-user questionnaire state machine. Sessions are keyed by
// user id and guarded by a mutex, so concurrently dispatched updates for the
// same user cannot interleave writes to Progress/Answers.
type Manager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session

	bot           telegoapi.BotAPI
	questions     []string
	defaultChatID int64
	formLogger    database.FormLogger
}

// NewManager creates a new questionnaire manager.
func NewManager(bot telegoapi.BotAPI, formLogger database.FormLogger, questions []string, defaultChatID int64) *Manager {
	if bot == nil {
		log.Fatal("Form Manager: BotAPI instance is nil")
	}
	if len(questions) == 0 {
		log.Fatal("Form Manager: question list is empty")
	}

	return &Manager{
		sessions:      make(map[int64]*Session),
		bot:           bot,
		questions:     questions,
		defaultChatID: defaultChatID,
		formLogger:    formLogger,
	}
}

// QuestionCount returns the number of questions in the questionnaire.
func (m *Manager) QuestionCount() int {
	return len(m.questions)
}

// GetUserState reports whether a questionnaire is in progress for the user.
func (m *Manager) GetUserState(userID int64) State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[userID]; ok {
		return StateAwaitingAnswer
	}
	return StateIdle
}

// Start creates (or overwrites) the session for the user and sends the first
// question. A zero destinationChatID falls back to the configured default chat.
func (m *Manager) Start(ctx context.Context, user *telego.User, destinationChatID int64) error {
	if user == nil {
		return fmt.Errorf("form start requires a user")
	}
	if destinationChatID == 0 {
		destinationChatID = m.defaultChatID
	}

	m.mu.Lock()
	m.sessions[user.ID] = &Session{
		UserID:            user.ID,
		Progress:          0,
		Answers:           make([]string, 0, len(m.questions)),
		DestinationChatID: destinationChatID,
		Requester:         user,
	}
	m.mu.Unlock()

	log.Printf("[Form User:%d] Session started, destination chat %d", user.ID, destinationChatID)
	return m.promptNext(ctx, user.ID)
}

// SubmitAnswer appends the answer (trimmed, accepted verbatim otherwise),
// advances the cursor and either asks the next question or publishes the
// completed form. Returns an error when no session exists for the user.
func (m *Manager) SubmitAnswer(ctx context.Context, userID int64, text string) error {
	m.mu.Lock()
	session, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no active form session for user %d", userID)
	}
	session.Answers = append(session.Answers, strings.TrimSpace(text))
	session.Progress++
	completed := session.Progress >= len(m.questions)
	m.mu.Unlock()

	if !completed {
		return m.promptNext(ctx, userID)
	}

	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	thanks := locales.GetMessage(localizer, "MsgFormThanksPublishing", nil, nil)
	if _, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(userID), thanks)); err != nil {
		log.Printf("[Form User:%d] Failed to send completion notice: %v", userID, err)
	}
	return m.Publish(ctx, userID)
}

// Cancel removes the user's session if present and reports whether one existed.
// A cancelled session is never published, partial answers are discarded.
func (m *Manager) Cancel(userID int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[userID]; !ok {
		return false
	}
	delete(m.sessions, userID)
	log.Printf("[Form User:%d] Session cancelled", userID)
	return true
}

// promptNext sends the question at the session's cursor, or publishes the form
// when every question has been answered.
func (m *Manager) promptNext(ctx context.Context, userID int64) error {
	m.mu.RLock()
	session, ok := m.sessions[userID]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	idx := session.Progress
	m.mu.RUnlock()

	if idx >= len(m.questions) {
		return m.Publish(ctx, userID)
	}

	_, err := m.bot.SendMessage(ctx, tu.Message(tu.ID(userID), m.questions[idx]))
	if err != nil {
		return fmt.Errorf("failed to send question %d to user %d: %w", idx+1, userID, err)
	}
	return nil
}

// Publish renders the summary card and delivers it to the destination chat.
// When that delivery fails the summary goes to the requester instead, prefixed
// with a failure notice. The session is removed regardless of the path taken.
func (m *Manager) Publish(ctx context.Context, userID int64) error {
	m.mu.Lock()
	session, ok := m.sessions[userID]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.sessions, userID)
	m.mu.Unlock()

	summary := m.renderSummary(session)
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())

	deliveredToUser := false
	_, err := m.bot.SendMessage(ctx, summaryMessage(session.DestinationChatID, summary))
	if err != nil {
		log.Printf("[Form User:%d] Publish to chat %d failed: %v. Falling back to the requester.", userID, session.DestinationChatID, err)
		deliveredToUser = true

		notice := locales.GetMessage(localizer, "MsgFormPublishFallback", nil, nil)
		if _, sendErr := m.bot.SendMessage(ctx, tu.Message(tu.ID(userID), notice)); sendErr != nil {
			log.Printf("[Form User:%d] Failed to send fallback notice: %v", userID, sendErr)
		}
		if _, sendErr := m.bot.SendMessage(ctx, summaryMessage(userID, summary)); sendErr != nil {
			return fmt.Errorf("failed to deliver form summary to user %d: %w", userID, sendErr)
		}
	}

	m.logPublishedForm(session, deliveredToUser)
	return nil
}

// renderSummary pairs each question with its answer in original order, padding
// missing answers with the placeholder so both lists always align.
func (m *Manager) renderSummary(session *Session) string {
	localizer := locales.NewLocalizer(locales.GetDefaultLanguageTag().String())
	header := locales.GetMessage(localizer, "MsgFormSummaryHeader", map[string]interface{}{
		"Mention": utils.Mention(session.Requester),
	}, nil)

	var b strings.Builder
	b.WriteString(header)
	for i, question := range m.questions {
		answer := AnswerPlaceholder
		if i < len(session.Answers) {
			answer = session.Answers[i]
		}
		b.WriteString("\n\n")
		b.WriteString("<b>" + utils.EscapeHTML(question) + "</b>\n")
		b.WriteString(utils.EscapeHTML(answer))
	}
	return b.String()
}

func summaryMessage(chatID int64, summary string) *telego.SendMessageParams {
	return tu.Message(tu.ID(chatID), summary).
		WithParseMode(telego.ModeHTML).
		WithLinkPreviewOptions(&telego.LinkPreviewOptions{IsDisabled: true})
}

func (m *Manager) logPublishedForm(session *Session, deliveredToUser bool) {
	if m.formLogger == nil {
		return
	}
	username := ""
	if session.Requester != nil {
		username = session.Requester.Username
	}
	entry := models.FormLog{
		UserID:            session.UserID,
		Username:          username,
		DestinationChatID: session.DestinationChatID,
		Answers:           session.Answers,
		PublishedAt:       time.Now(),
		DeliveredToUser:   deliveredToUser,
	}
	if err := m.formLogger.LogPublishedForm(entry); err != nil {
		log.Printf("[Form User:%d] Failed to log published form: %v", session.UserID, err)
	}
}
