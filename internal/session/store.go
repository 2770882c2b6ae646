// Package session provides conversation session state: the ordered message
// log and the at-most-one pending-confirmation slot per session.
package session

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// ErrNotFound is returned for operations on an unknown session id.
var ErrNotFound = errors.New("session not found")

// ErrPendingExists is returned when a pending action is set while one is
// already outstanding. The turn engine treats this as a protocol violation.
var ErrPendingExists = errors.New("session already has a pending action")

// Message represents a chat message in a session.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// ToolCall records a tool call emitted by an assistant message. Tool-role
// messages reference it by id.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// PendingAction records a gated tool call awaiting a human decision.
type PendingAction struct {
	Tool       string    `json:"tool"`
	Command    string    `json:"command"`
	ToolCallID string    `json:"tool_call_id"`
	CreatedAt  time.Time `json:"created_at"`
}

type state struct {
	// turnMu serializes turns for this session. It is held for the full
	// duration of a turn; mu guards the fields below and is held only for
	// individual reads and writes.
	turnMu   sync.Mutex
	mu       sync.RWMutex
	messages []Message
	pending  *PendingAction
}

// Store owns all session state. Sessions are isolated: turns on different
// sessions proceed in parallel, turns on the same session are serialized.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*state
	reset    func(sessionID string)
}

// NewStore creates an empty store. reset, if non-nil, is invoked with each
// newly created session id so callers can clear state keyed by a reused id
// (event logs, checkpoints).
func NewStore(reset func(sessionID string)) *Store {
	return &Store{
		sessions: make(map[string]*state),
		reset:    reset,
	}
}

// Create allocates a fresh session and returns its id.
func (s *Store) Create() string {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &state{}
	s.mu.Unlock()
	if s.reset != nil {
		s.reset(id)
	}
	return id
}

// Exists reports whether the session id is known.
func (s *Store) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

func (s *Store) get(id string) (*state, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return st, nil
}

// AcquireTurn takes the per-session turn lock. The returned release func
// must be called when the turn finishes.
func (s *Store) AcquireTurn(id string) (func(), error) {
	st, err := s.get(id)
	if err != nil {
		return nil, err
	}
	st.turnMu.Lock()
	return st.turnMu.Unlock, nil
}

// AppendMessage appends a message to the session's ordered log.
func (s *Store) AppendMessage(id string, msg Message) error {
	st, err := s.get(id)
	if err != nil {
		return err
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	st.mu.Lock()
	st.messages = append(st.messages, msg)
	st.mu.Unlock()
	return nil
}

// Messages returns a copy of the session's message log, in order.
func (s *Store) Messages(id string) ([]Message, error) {
	st, err := s.get(id)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make([]Message, len(st.messages))
	copy(out, st.messages)
	return out, nil
}

// SetPending records a pending action. Fails with ErrPendingExists if the
// session already has one outstanding; the slot holds at most one.
func (s *Store) SetPending(id string, action PendingAction) error {
	st, err := s.get(id)
	if err != nil {
		return err
	}
	if action.CreatedAt.IsZero() {
		action.CreatedAt = time.Now()
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.pending != nil {
		return ErrPendingExists
	}
	st.pending = &action
	return nil
}

// Pending returns a copy of the session's pending action, or nil.
func (s *Store) Pending(id string) (*PendingAction, error) {
	st, err := s.get(id)
	if err != nil {
		return nil, err
	}
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.pending == nil {
		return nil, nil
	}
	p := *st.pending
	return &p, nil
}

// ClearPending empties the pending slot. Clearing an already-empty slot is
// a no-op.
func (s *Store) ClearPending(id string) error {
	st, err := s.get(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.pending = nil
	st.mu.Unlock()
	return nil
}

// Reset drops the session's messages and pending action, keeping the id.
func (s *Store) Reset(id string) error {
	st, err := s.get(id)
	if err != nil {
		return err
	}
	st.mu.Lock()
	st.messages = nil
	st.pending = nil
	st.mu.Unlock()
	if s.reset != nil {
		s.reset(id)
	}
	return nil
}
