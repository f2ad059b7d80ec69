package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ashureev/analystai/internal/domain"
)

// State is the position of a session in the interview lifecycle.
type State int

const (
	// StateGreeting is a session that has not been opened yet.
	StateGreeting State = iota
	// StateAsking waits for the answer to the question at the cursor.
	StateAsking
	// StateReadyToFinalize has every answer and waits for a finalize request.
	StateReadyToFinalize
	// StateFinalized holds generated documents. Terminal.
	StateFinalized
)

func (s State) String() string {
	switch s {
	case StateGreeting:
		return "greeting"
	case StateAsking:
		return "asking"
	case StateReadyToFinalize:
		return "ready_to_finalize"
	case StateFinalized:
		return "finalized"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrEmptyAnswer is returned for blank answers; the session is unchanged.
	ErrEmptyAnswer = errors.New("answer must not be empty")
	// ErrNotStarted is returned by operations on a session that was never opened.
	ErrNotStarted = errors.New("conversation has not started")
	// ErrAwaitingFinalize is returned for answers once every question is answered.
	ErrAwaitingFinalize = errors.New("all questions are answered; finalize to generate documents")
	// ErrFinalized is returned for any change to a finalized session.
	ErrFinalized = errors.New("conversation is already finalized")
	// ErrNotReady is returned when finalize is requested before every question is answered.
	ErrNotReady = errors.New("conversation is not ready to finalize")
	// ErrNotRestorable is returned when a persisted conversation has no documents.
	ErrNotRestorable = errors.New("conversation is not finalized")
)

// Synthesizer produces documents from a transcript.
type Synthesizer interface {
	Synthesize(ctx context.Context, transcript string) (*domain.DocumentBundle, error)
}

// Session is one user's walk through a Script. It is not safe for concurrent use; a
// single owner processes events in order.
//
// For a script of n questions, the cursor i is the index of the last question asked.
// Asking(i) holds for i < n-1 and ReadyToFinalize once i == n-1. The log always holds
// i+1 assistant messages and i user messages, alternating from the first question.
type Session struct {
	script    *Script
	state     State
	cursor    int
	title     string
	messages  []domain.Message
	documents *domain.DocumentBundle
}

// NewSession opens a session by asking the first question.
func NewSession(script *Script) *Session {
	s := &Session{script: script}
	s.messages = append(s.messages, domain.AssistantMessage(script.Question(0)))
	s.state = s.stateAt(0)
	return s
}

// Restore rebuilds a read-only finalized session from a persisted conversation.
func Restore(script *Script, conv *domain.Conversation) (*Session, error) {
	if conv == nil || !conv.IsFinalized || conv.Documents == nil {
		return nil, ErrNotRestorable
	}
	messages := make([]domain.Message, len(conv.Messages))
	copy(messages, conv.Messages)
	docs := *conv.Documents
	return &Session{
		script:    script,
		state:     StateFinalized,
		cursor:    script.last(),
		title:     strings.TrimSpace(conv.Title),
		messages:  messages,
		documents: &docs,
	}, nil
}

func (s *Session) stateAt(cursor int) State {
	if cursor >= s.script.last() {
		return StateReadyToFinalize
	}
	return StateAsking
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Cursor returns the index of the last question asked.
func (s *Session) Cursor() int {
	return s.cursor
}

// Messages returns a copy of the message log.
func (s *Session) Messages() []domain.Message {
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// Documents returns the generated bundle, or nil before finalization.
func (s *Session) Documents() *domain.DocumentBundle {
	return s.documents
}

// Title returns the persisted title of a restored session, otherwise the title derived
// from the message log.
func (s *Session) Title() string {
	if s.title != "" {
		return s.title
	}
	return TitleOrDefault(s.messages)
}

// Answer records text as the answer to the current question and asks the next one.
// It returns the messages appended to the log.
func (s *Session) Answer(text string) ([]domain.Message, error) {
	switch s.state {
	case StateGreeting:
		return nil, ErrNotStarted
	case StateReadyToFinalize:
		return nil, ErrAwaitingFinalize
	case StateFinalized:
		return nil, ErrFinalized
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyAnswer
	}

	next := s.cursor + 1
	appended := []domain.Message{
		domain.UserMessage(text),
		domain.AssistantMessage(s.script.Question(next)),
	}
	s.messages = append(s.messages, appended...)
	s.cursor = next
	s.state = s.stateAt(next)
	return appended, nil
}

// Transcript renders the message log as "User: ..." and "AnalystAI: ..." lines.
func (s *Session) Transcript() string {
	return Transcript(s.messages)
}

// Transcript renders messages one per line with a speaker prefix.
func Transcript(messages []domain.Message) string {
	lines := make([]string, len(messages))
	for i, m := range messages {
		speaker := "AnalystAI"
		if m.Role == domain.RoleUser {
			speaker = "User"
		}
		lines[i] = speaker + ": " + m.Content
	}
	return strings.Join(lines, "\n")
}

// Finalize generates documents from the transcript. On failure the session stays ready
// to finalize so the user can try again.
func (s *Session) Finalize(ctx context.Context, syn Synthesizer) (*domain.DocumentBundle, error) {
	switch s.state {
	case StateGreeting:
		return nil, ErrNotStarted
	case StateAsking:
		return nil, ErrNotReady
	case StateFinalized:
		return nil, ErrFinalized
	}

	bundle, err := syn.Synthesize(ctx, s.Transcript())
	if err != nil {
		return nil, err
	}
	s.documents = bundle
	s.state = StateFinalized
	return bundle, nil
}
