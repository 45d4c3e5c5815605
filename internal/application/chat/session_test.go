package chat

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/melascope-dx/internal/domain/assessment"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) SendChatTurn(ctx context.Context, label string, confidence float64, history []domain.ChatTurn, message string) string {
	args := m.Called(ctx, label, confidence, history, message)
	return args.String(0)
}

func TestNewSession_Greeting(t *testing.T) {
	s := NewSession(&MockSender{}, Context{Label: "Nevus", Confidence: 0.7}, zerolog.Nop())

	turns := s.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, domain.RoleAssistant, turns[0].Role)
	assert.Contains(t, turns[0].Content, "**Nevus**")
}

func TestNewSession_InsightWhenSummaryPresent(t *testing.T) {
	s := NewSession(&MockSender{}, Context{Label: "Melanoma", Confidence: 0.9, Summary: "Irregular borders."}, zerolog.Nop())

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "Analysis complete! I've detected **Melanoma** with 90.0% confidence.\n\nQuick Insight:\nIrregular borders.", turns[1].Content)
}

func TestSend_AppendsUserAndReply(t *testing.T) {
	sender := &MockSender{}
	s := NewSession(sender, Context{Label: "Melanoma", Confidence: 0.9}, zerolog.Nop())

	greeting := s.Turns()
	sender.On("SendChatTurn", mock.Anything, "Melanoma", 0.9, greeting, "Is it serious?").
		Return("Please see a dermatologist.").Once()

	reply, err := s.Send(context.Background(), "Is it serious?")

	require.NoError(t, err)
	assert.Equal(t, "Please see a dermatologist.", reply)
	turns := s.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, domain.ChatTurn{Role: domain.RoleUser, Content: "Is it serious?"}, turns[1])
	assert.Equal(t, domain.ChatTurn{Role: domain.RoleAssistant, Content: "Please see a dermatologist."}, turns[2])
	assert.False(t, s.Busy())
	sender.AssertExpectations(t)
}

func TestSend_FallbackReplyIsAppended(t *testing.T) {
	sender := &MockSender{}
	sender.On("SendChatTurn", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(domain.ChatFallbackReply)
	s := NewSession(sender, Context{Label: "Nevus", Confidence: 0.4}, zerolog.Nop())

	reply, err := s.Send(context.Background(), "hello")

	require.NoError(t, err)
	assert.Equal(t, domain.ChatFallbackReply, reply)
	assert.Equal(t, domain.ChatFallbackReply, s.Turns()[2].Content)
}

func TestSend_RejectsBlank(t *testing.T) {
	sender := &MockSender{}
	s := NewSession(sender, Context{Label: "Nevus"}, zerolog.Nop())

	_, err := s.Send(context.Background(), "   \n")

	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, s.Turns(), 1)
	sender.AssertNotCalled(t, "SendChatTurn", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSend_RejectsOverlap(t *testing.T) {
	sender := &MockSender{}
	entered := make(chan struct{})
	release := make(chan struct{})
	sender.On("SendChatTurn", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return("ok").Once()
	s := NewSession(sender, Context{Label: "Nevus"}, zerolog.Nop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = s.Send(context.Background(), "first")
	}()
	<-entered

	_, err := s.Send(context.Background(), "second")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	<-done
	assert.Len(t, s.Turns(), 3)
}

func TestSend_FiltersSystemTurns(t *testing.T) {
	sender := &MockSender{}
	s := NewSession(sender, Context{Label: "Nevus"}, zerolog.Nop())
	s.turns = append(s.turns, domain.ChatTurn{Role: domain.RoleSystem, Content: "internal"})

	sender.On("SendChatTurn", mock.Anything, mock.Anything, mock.Anything,
		mock.MatchedBy(func(h []domain.ChatTurn) bool {
			for _, t := range h {
				if t.Role == domain.RoleSystem {
					return false
				}
			}
			return len(h) == 1
		}), "hi").Return("hello").Once()

	_, err := s.Send(context.Background(), "hi")
	require.NoError(t, err)
	sender.AssertExpectations(t)
}

func TestTurns_ReturnsCopy(t *testing.T) {
	s := NewSession(&MockSender{}, Context{Label: "Nevus"}, zerolog.Nop())
	turns := s.Turns()
	turns[0].Content = "mutated"
	assert.NotEqual(t, "mutated", s.Turns()[0].Content)
}
