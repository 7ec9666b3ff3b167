// Package agent runs stateful dialogue sessions on top of a completion model.
// Each session keeps its own instructions and bounded message history.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/okrsync/internal/llm"
)

const (
	defaultHistoryLimit = 40
	replyMaxTokens      = 1024
)

var ErrUnknownAgent = errors.New("unknown agent")

type session struct {
	name         string
	instructions string
	history      []llm.Message
}

// Service owns every dialogue session created through it.
type Service struct {
	llm          llm.Completer
	logger       *slog.Logger
	historyLimit int

	mu       sync.Mutex
	sessions map[string]*session
}

func New(completer llm.Completer, historyLimit int, logger *slog.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	return &Service{
		llm:          completer,
		logger:       logger,
		historyLimit: historyLimit,
		sessions:     make(map[string]*session),
	}
}

// Create registers a session and returns its id.
func (s *Service) Create(ctx context.Context, instructions, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if s.llm == nil {
		return "", fmt.Errorf("create agent %q: no completion model configured", name)
	}

	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &session{name: name, instructions: instructions}
	s.mu.Unlock()

	s.logger.Info("agent created", "agent_id", id, "name", name)
	return id, nil
}

// Turn sends message within a session and returns the reply. On failure the
// message is not kept in the session history.
func (s *Service) Turn(ctx context.Context, agentID, message string) (string, error) {
	s.mu.Lock()
	sess, ok := s.sessions[agentID]
	if !ok {
		s.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	history := append(append([]llm.Message(nil), sess.history...), llm.Message{Role: llm.RoleUser, Content: message})
	instructions := sess.instructions
	s.mu.Unlock()

	reply, err := s.llm.Complete(ctx, instructions, history, replyMaxTokens)
	if err != nil {
		return "", fmt.Errorf("agent turn: %w", err)
	}

	s.mu.Lock()
	if sess, ok := s.sessions[agentID]; ok {
		sess.history = trimHistory(append(history, llm.Message{Role: llm.RoleAssistant, Content: reply}), s.historyLimit)
	}
	s.mu.Unlock()

	return reply, nil
}

// trimHistory drops the oldest user/assistant pairs so the history starts on
// a user turn and holds at most limit messages.
func trimHistory(history []llm.Message, limit int) []llm.Message {
	for len(history) > limit {
		history = history[2:]
	}
	for len(history) > 0 && history[0].Role != llm.RoleUser {
		history = history[1:]
	}
	return history
}
