package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/analystai/internal/domain"
)

type stubSynthesizer struct {
	bundle     *domain.DocumentBundle
	err        error
	transcript string
	calls      int
}

func (s *stubSynthesizer) Synthesize(_ context.Context, transcript string) (*domain.DocumentBundle, error) {
	s.calls++
	s.transcript = transcript
	return s.bundle, s.err
}

func fullBundle() *domain.DocumentBundle {
	return &domain.DocumentBundle{
		Requirements: domain.RequirementsDocument{Goal: "G", Description: "D", Scope: "S", BusinessRules: "B", KPIs: "K"},
		Artifacts:    domain.AnalyticalArtifactSet{UseCases: "U", ProcessDiagrams: "P", UserStories: "S", LeadingIndicators: "L"},
	}
}

func answerAll(t *testing.T, s *Session) {
	t.Helper()
	for i := 0; s.State() == StateAsking; i++ {
		_, err := s.Answer("answer " + string(rune('A'+i)))
		require.NoError(t, err)
	}
}

func TestNewSession(t *testing.T) {
	s := NewSession(DefaultScript())

	assert.Equal(t, StateAsking, s.State())
	assert.Equal(t, 0, s.Cursor())
	require.Len(t, s.Messages(), 1)
	assert.Equal(t, domain.AssistantMessage(defaultQuestions[0]), s.Messages()[0])
}

func TestSession_AnswerAdvances(t *testing.T) {
	s := NewSession(DefaultScript())

	appended, err := s.Answer("Loan approvals")
	require.NoError(t, err)
	assert.Equal(t, []domain.Message{
		domain.UserMessage("Loan approvals"),
		domain.AssistantMessage(defaultQuestions[1]),
	}, appended)
	assert.Equal(t, 1, s.Cursor())
	assert.Len(t, s.Messages(), 3)
}

func TestSession_MessageCountInvariant(t *testing.T) {
	s := NewSession(DefaultScript())
	for s.State() == StateAsking {
		var users, assistants int
		for _, m := range s.Messages() {
			if m.Role == domain.RoleUser {
				users++
			} else {
				assistants++
			}
		}
		assert.Equal(t, users+1, assistants)
		assert.Equal(t, s.Cursor(), users)

		_, err := s.Answer("something")
		require.NoError(t, err)
	}
}

func TestSession_EmptyAnswerRejected(t *testing.T) {
	s := NewSession(DefaultScript())

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := s.Answer(text)
		require.ErrorIs(t, err, ErrEmptyAnswer)
	}
	assert.Equal(t, 0, s.Cursor())
	assert.Len(t, s.Messages(), 1)
}

func TestSession_SevenQuestionWalkthrough(t *testing.T) {
	s := NewSession(DefaultScript())
	for i := 0; i < 6; i++ {
		require.Equal(t, StateAsking, s.State())
		_, err := s.Answer("answer")
		require.NoError(t, err)
	}

	assert.Equal(t, StateReadyToFinalize, s.State())
	assert.Equal(t, 6, s.Cursor())
	assert.Len(t, s.Messages(), 13)
	assert.Equal(t, defaultQuestions[6], s.Messages()[12].Content)
}

func TestSession_AnswerWhenReadyIsFrozen(t *testing.T) {
	s := NewSession(DefaultScript())
	answerAll(t, s)
	before := s.Transcript()

	_, err := s.Answer("one more thing")
	require.ErrorIs(t, err, ErrAwaitingFinalize)
	assert.Equal(t, before, s.Transcript())
}

func TestSession_FinalizeBeforeReady(t *testing.T) {
	s := NewSession(DefaultScript())
	syn := &stubSynthesizer{bundle: fullBundle()}

	_, err := s.Finalize(context.Background(), syn)
	require.ErrorIs(t, err, ErrNotReady)
	assert.Zero(t, syn.calls)
}

func TestSession_Finalize(t *testing.T) {
	s := NewSession(DefaultScript())
	answerAll(t, s)
	syn := &stubSynthesizer{bundle: fullBundle()}

	bundle, err := s.Finalize(context.Background(), syn)
	require.NoError(t, err)
	assert.Equal(t, fullBundle(), bundle)
	assert.Equal(t, StateFinalized, s.State())
	assert.Equal(t, s.Transcript(), syn.transcript)

	_, err = s.Answer("late")
	require.ErrorIs(t, err, ErrFinalized)
	_, err = s.Finalize(context.Background(), syn)
	require.ErrorIs(t, err, ErrFinalized)
	assert.Equal(t, 1, syn.calls)
}

func TestSession_FinalizeFailureStaysReady(t *testing.T) {
	s := NewSession(DefaultScript())
	answerAll(t, s)
	syn := &stubSynthesizer{err: errors.New("model down")}

	_, err := s.Finalize(context.Background(), syn)
	require.Error(t, err)
	assert.Equal(t, StateReadyToFinalize, s.State())
	assert.Nil(t, s.Documents())

	syn.err = nil
	syn.bundle = fullBundle()
	_, err = s.Finalize(context.Background(), syn)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, s.State())
}

func TestSession_ZeroValueNotStarted(t *testing.T) {
	var s Session
	assert.Equal(t, StateGreeting, s.State())

	_, err := s.Answer("hi")
	require.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Finalize(context.Background(), &stubSynthesizer{})
	require.ErrorIs(t, err, ErrNotStarted)
}

func TestSession_SingleQuestionScriptIsReady(t *testing.T) {
	script, err := NewScript([]string{"Click finalize when ready."})
	require.NoError(t, err)

	s := NewSession(script)
	assert.Equal(t, StateReadyToFinalize, s.State())
}

func TestTranscript(t *testing.T) {
	got := Transcript([]domain.Message{
		domain.AssistantMessage("What process?"),
		domain.UserMessage("Loans"),
		domain.AssistantMessage("Goal?"),
	})
	assert.Equal(t, "AnalystAI: What process?\nUser: Loans\nAnalystAI: Goal?", got)
}

func TestRestore(t *testing.T) {
	conv := &domain.Conversation{
		ID:          "c1",
		Title:       "Loans",
		Messages:    []domain.Message{domain.AssistantMessage("q"), domain.UserMessage("Loans")},
		IsFinalized: true,
		Documents:   fullBundle(),
	}

	s, err := Restore(DefaultScript(), conv)
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, s.State())
	assert.Equal(t, conv.Messages, s.Messages())
	assert.Equal(t, fullBundle(), s.Documents())

	_, err = s.Answer("more")
	require.ErrorIs(t, err, ErrFinalized)

	_, err = Restore(DefaultScript(), &domain.Conversation{IsFinalized: true})
	require.ErrorIs(t, err, ErrNotRestorable)
}

func TestRestore_KeepsPersistedTitle(t *testing.T) {
	conv := &domain.Conversation{
		ID:    "c1",
		Title: "Loan Turnaround",
		Messages: []domain.Message{
			domain.AssistantMessage("What process are we defining?"),
			domain.UserMessage("Reduce approval time"),
		},
		IsFinalized: true,
		Documents:   fullBundle(),
	}

	s, err := Restore(DefaultScript(), conv)
	require.NoError(t, err)
	assert.Equal(t, "Loan Turnaround", s.Title())

	conv.Title = "   "
	s, err = Restore(DefaultScript(), conv)
	require.NoError(t, err)
	assert.Equal(t, "Reduce approval time", s.Title())
}

func TestDeriveTitle(t *testing.T) {
	long := strings.Repeat("abcd", 21)
	require.Len(t, []rune(long), 84)

	tests := []struct {
		name     string
		messages []domain.Message
		want     string
		ok       bool
	}{
		{"none", []domain.Message{domain.AssistantMessage("q")}, "", false},
		{"trimmed", []domain.Message{domain.AssistantMessage("q"), domain.UserMessage("  Loans  ")}, "Loans", true},
		{"first user wins", []domain.Message{domain.UserMessage("first"), domain.UserMessage("second")}, "first", true},
		{"exactly 80", []domain.Message{domain.UserMessage(strings.Repeat("x", 80))}, strings.Repeat("x", 80), true},
		{"long", []domain.Message{domain.UserMessage(long)}, long[:77] + "...", true},
		{"multibyte", []domain.Message{domain.UserMessage(strings.Repeat("é", 81))}, strings.Repeat("é", 77) + "...", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeriveTitle(tt.messages)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, DefaultTitle, TitleOrDefault(nil))
}
