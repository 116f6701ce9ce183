// Package chat maintains the single live conversation session.
//
// A session is valid only for the binding (corpus, model, instruction) it was
// built from; any change to the binding discards the session and its history.
// The user's turn is recorded before the generation call so it survives a
// failed generation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Sentinel errors for chat operations.
var (
	// ErrNoBinding indicates no corpus or model is bound, so no session can
	// be built.
	ErrNoBinding = errors.New("no corpus or model bound")

	// ErrEmptyPrompt indicates a blank prompt, which is never sent.
	ErrEmptyPrompt = errors.New("empty prompt")

	// ErrGeneration wraps a failed generation call. The user's turn is kept
	// in history so the prompt can be retried.
	ErrGeneration = errors.New("generation failed")
)

// Role distinguishes the two sides of a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Source is one retrieved passage cited by a response. Sources are kept in
// the order the service returned them and are not deduplicated; collapsing
// repeats is left to the model's instruction.
type Source struct {
	URI   string `json:"uri"`
	Title string `json:"title,omitempty"`
	Text  string `json:"text"`
}

// Message is one turn of the conversation.
type Message struct {
	Role    Role     `json:"role"`
	Content string   `json:"content"`
	Sources []Source `json:"sources,omitempty"`
}

// Binding is the tuple that determines session validity. Two sessions built
// from equal bindings are interchangeable; a session whose binding differs
// from the current one is stale.
type Binding struct {
	CorpusID    string
	Model       string
	Instruction string
}

// Reply is what the generation service returns for one turn.
type Reply struct {
	Text    string
	Sources []Source
}

// Generator produces one assistant reply given the prior history and the new
// prompt. Implemented by *VertexGenerator; tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, binding Binding, history []Message, prompt string) (Reply, error)
}

// BindingResolver reports the currently active binding. The manager calls it
// on every send, so corpus, model, and instruction changes take effect on the
// next turn.
type BindingResolver func(ctx context.Context) (Binding, error)

// session is the in-memory conversation state for one binding.
type session struct {
	binding Binding
	history []Message
}

// Manager owns the live session and mediates every turn.
//
// Manager is safe for concurrent use, though the design assumes one
// interactive user driving a sequential stream of turns.
type Manager struct {
	generator Generator
	resolve   BindingResolver
	logger    *slog.Logger

	mu      sync.Mutex
	session *session
}

// NewManager creates a chat manager.
func NewManager(generator Generator, resolve BindingResolver, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{generator: generator, resolve: resolve, logger: logger}
}

// Send processes one user turn and returns the assistant's message.
//
// The user's message is appended to history before the generation call. On
// generation failure the user's turn remains, no assistant turn is added, and
// the error wraps ErrGeneration.
func (m *Manager) Send(ctx context.Context, prompt string) (Message, error) {
	if strings.TrimSpace(prompt) == "" {
		return Message{}, ErrEmptyPrompt
	}

	binding, err := m.resolve(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("resolving binding: %w", err)
	}
	if binding.CorpusID == "" || binding.Model == "" {
		return Message{}, ErrNoBinding
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil || m.session.binding != binding {
		if m.session != nil {
			m.logger.Info("binding changed, rebuilding session",
				"corpus_id", binding.CorpusID, "model", binding.Model)
		}
		m.session = &session{binding: binding}
	}

	prior := make([]Message, len(m.session.history))
	copy(prior, m.session.history)

	m.session.history = append(m.session.history, Message{Role: RoleUser, Content: prompt})

	reply, err := m.generator.Generate(ctx, binding, prior, prompt)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	assistant := Message{Role: RoleAssistant, Content: reply.Text, Sources: reply.Sources}
	m.session.history = append(m.session.history, assistant)
	return assistant, nil
}

// History returns a copy of the current conversation, oldest first. Empty
// when no session exists.
func (m *Manager) History() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	out := make([]Message, len(m.session.history))
	copy(out, m.session.history)
	return out
}

// Clear discards the session and its history. Durable state is untouched.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
}
