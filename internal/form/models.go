package form

import "github.com/mymmrac/telego"

// State represents the questionnaire state of a single user.
type State string

const (
	// StateIdle means no questionnaire is in progress for the user.
	StateIdle State = ""
	// StateAwaitingAnswer means the user has a session and the bot is waiting
	// for the answer to the question at the session's Progress index.
	StateAwaitingAnswer State = "awaiting_answer"
)

// AnswerPlaceholder renders in place of a missing answer in the published summary.
const AnswerPlaceholder = "—"

// Session is the in-progress questionnaire of one user.
// Invariant: 0 <= Progress <= len(questions) and len(Answers) == Progress;
// a session is removed the moment Progress reaches the question count.
type Session struct {
	UserID            int64
	Progress          int
	Answers           []string
	DestinationChatID int64
	Requester         *telego.User
}

// DefaultQuestions is the fixed ordered prompt list of the questionnaire.
var DefaultQuestions = []string{
	"1) Как тебя зовут?",
	"2) Сколько тебе лет?",
	"3) Рост?",
	"4) Из какого ты города? Если из Москвы, то из какого района?",
	"5) (а вот тут очень важно ответить честно...) Гетеро?",
}
