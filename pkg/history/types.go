package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"multimind-hq/relay/pkg/providers"
)

// Role is the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one turn of a chat.
type Message struct {
	ID        string             `json:"id"`
	ChatID    string             `json:"chat_id"`
	Role      Role               `json:"role"`
	Content   string             `json:"content"`
	Provider  providers.Provider `json:"provider"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
}

// Chat is a conversation bound to one provider and model at a time.
// Messages is populated by GetChat only.
type Chat struct {
	ID        string             `json:"id"`
	Title     string             `json:"title"`
	Provider  providers.Provider `json:"provider"`
	Model     string             `json:"model"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Messages  []Message          `json:"messages,omitempty"`
}

// Store persists chats and their messages.
type Store interface {
	// CreateChat inserts a new chat. Messages on c are ignored.
	CreateChat(ctx context.Context, c *Chat) error

	// GetChat returns the chat with its messages in order.
	GetChat(ctx context.Context, id string) (*Chat, error)

	// ListChats returns every chat without messages, newest first.
	ListChats(ctx context.Context) ([]Chat, error)

	// UpdateChat saves title, provider, model and UpdatedAt.
	UpdateChat(ctx context.Context, c *Chat) error

	// AppendMessages adds msgs in order and bumps each chat's UpdatedAt.
	// Either every message is stored or none is.
	AppendMessages(ctx context.Context, msgs ...*Message) error

	// ClearMessages removes every message of a chat but keeps the chat.
	ClearMessages(ctx context.Context, chatID string) error

	// DeleteChat removes a chat and its messages.
	DeleteChat(ctx context.Context, id string) error

	// DeleteAll removes every chat and returns how many were deleted.
	DeleteAll(ctx context.Context) (int64, error)

	// PruneBefore removes chats not updated since cutoff.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	Close() error
}

// ErrNotFound is returned for unknown chat ids.
var ErrNotFound = errors.New("chat not found")

// StorageError wraps a failure of the storage backend.
type StorageError struct {
	Backend   string // "sqlite" or "memory"
	Operation string // "create_chat", "append_message", ...
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("history storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

func storageError(backend, op string, cause error) error {
	return &StorageError{Backend: backend, Operation: op, Cause: cause}
}
