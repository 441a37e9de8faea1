package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/seisan/internal/llm"
	"github.com/hyperjump/seisan/internal/models"
	"github.com/hyperjump/seisan/internal/retrieval"
)

// sessionHistoryTail is how many trailing session messages are handed to the
// generator. The generation layer trims further for its prompt.
const sessionHistoryTail = 10

// ChatError wraps a chat turn failure.
type ChatError struct {
	SessionID string
	Err       error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("chat session %s: %v", e.SessionID, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// Service runs chat turns: retrieve context, generate a grounded answer,
// maintain session history.
type Service struct {
	sessions  *SessionStore
	retriever *retrieval.Retriever
	llm       llm.Client
	logger    *zap.Logger
}

// NewService assembles a chat service.
func NewService(sessions *SessionStore, retriever *retrieval.Retriever, client llm.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sessions: sessions, retriever: retriever, llm: client, logger: logger}
}

// Sessions exposes the underlying session store for history endpoints.
func (s *Service) Sessions() *SessionStore { return s.sessions }

// ProcessMessage handles one chat turn. The user message is recorded before
// generation, so a failed turn still appears in history. Retrieval failures
// degrade to an empty context; generation failures return a ChatError.
func (s *Service) ProcessMessage(ctx context.Context, message, sessionID string) (*models.ChatResponse, error) {
	sess := s.sessions.GetOrCreate(sessionID)
	sessionID = sess.ID

	s.sessions.Append(sessionID, models.ChatMessage{
		Role:      "user",
		Content:   message,
		Timestamp: time.Now(),
	})

	contextItems := s.retriever.BuildContext(ctx, message)

	history, _ := s.sessions.History(sessionID)
	if len(history) > sessionHistoryTail {
		history = history[len(history)-sessionHistoryTail:]
	}

	answer, err := s.llm.GenerateAnswer(ctx, message, contextItems, history)
	if err != nil {
		return nil, &ChatError{SessionID: sessionID, Err: err}
	}

	s.sessions.Append(sessionID, models.ChatMessage{
		Role:      "assistant",
		Content:   answer,
		Timestamp: time.Now(),
	})
	s.sessions.UpdateContext(sessionID, message, contextItems)

	s.logger.Debug("chat turn completed",
		zap.String("session", sessionID),
		zap.Int("retrieved", len(contextItems)))

	return &models.ChatResponse{
		Response:       answer,
		SessionID:      sessionID,
		Query:          message,
		Timestamp:      time.Now(),
		ContextUsed:    len(contextItems) > 0,
		RetrievedCount: len(contextItems),
	}, nil
}
