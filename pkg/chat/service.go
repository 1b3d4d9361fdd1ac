package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"multimind-hq/relay/pkg/history"
	"multimind-hq/relay/pkg/providers"
	"multimind-hq/relay/pkg/proxy"
	"multimind-hq/relay/pkg/telemetry/logging"
)

// DefaultTitle is the title of a chat that has not been renamed.
const DefaultTitle = "New Chat"

// Sender routes one message through the request engine.
type Sender interface {
	HandleRequest(ctx context.Context, message, model string, provider providers.Provider, opts ...proxy.RequestOption) (*providers.Reply, error)
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock used for timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) { s.clock = clock }
}

// WithDefaultProvider sets the provider of chats created without one.
func WithDefaultProvider(p providers.Provider) Option {
	return func(s *Service) { s.defaultProvider = p }
}

// Service manages chats: it persists the conversation and sends each user
// message through the request engine.
type Service struct {
	store           history.Store
	sender          Sender
	clock           clockwork.Clock
	defaultProvider providers.Provider
	logger          *slog.Logger
}

// NewService creates a chat service.
func NewService(store history.Store, sender Sender, opts ...Option) *Service {
	s := &Service{
		store:           store,
		sender:          sender,
		clock:           clockwork.NewRealClock(),
		defaultProvider: providers.OpenAI,
		logger:          slog.Default().With("component", "chat"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewChat creates an empty chat. An empty provider uses the default
// provider and an empty model uses the provider's default model.
func (s *Service) NewChat(ctx context.Context, provider providers.Provider, model string) (*history.Chat, error) {
	if provider == "" {
		provider = s.defaultProvider
	}
	if !provider.Valid() {
		return nil, providers.ValidationError(fmt.Sprintf("unknown provider %q", provider))
	}
	if model == "" {
		model = providers.DefaultModel(provider)
	}

	now := s.clock.Now().UTC()
	c := &history.Chat{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Title:     DefaultTitle,
		Provider:  provider,
		Model:     model,
		CreatedAt: now,
		UpdatedAt: now,
		Messages:  []history.Message{},
	}
	if err := s.store.CreateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to create chat: %w", err)
	}

	s.logger.Debug("chat created", "chat_id", c.ID, "provider", provider, "model", model)
	return c, nil
}

// Get returns a chat with its messages.
func (s *Service) Get(ctx context.Context, id string) (*history.Chat, error) {
	return s.store.GetChat(ctx, id)
}

// List returns every chat, newest first, without messages.
func (s *Service) List(ctx context.Context) ([]history.Chat, error) {
	return s.store.ListChats(ctx)
}

// Send delivers text in the chat and returns the assistant's answer. The
// user and assistant messages are stored only when the provider answers, so
// a failed send leaves the chat unchanged.
func (s *Service) Send(ctx context.Context, chatID, text string, opts ...proxy.RequestOption) (*history.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, providers.ValidationError("Message cannot be empty")
	}

	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	ctx = logging.WithChatID(ctx, c.ID)
	ctx = logging.WithProvider(ctx, string(c.Provider))
	ctx = logging.WithModel(ctx, c.Model)

	sentAt := s.clock.Now().UTC()
	reply, err := s.sender.HandleRequest(ctx, text, c.Model, c.Provider, opts...)
	if err != nil {
		s.logger.WarnContext(ctx, "chat send failed", "error", err)
		return nil, err
	}
	if reply == nil || reply.Result.Response == "" {
		return nil, providers.InvalidResponseError(c.Provider, "Invalid response from API")
	}

	user := &history.Message{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		Role:      history.RoleUser,
		Content:   text,
		Provider:  c.Provider,
		Model:     c.Model,
		CreatedAt: sentAt,
	}
	answer := &history.Message{
		ID:        uuid.NewString(),
		ChatID:    c.ID,
		Role:      history.RoleAssistant,
		Content:   reply.Result.Response,
		Provider:  c.Provider,
		Model:     c.Model,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.AppendMessages(ctx, user, answer); err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}
	return answer, nil
}

// SetModel switches the provider and model used for the chat's next
// messages. An empty provider keeps the current one.
func (s *Service) SetModel(ctx context.Context, chatID string, provider providers.Provider, model string) (*history.Chat, error) {
	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if provider != "" {
		if !provider.Valid() {
			return nil, providers.ValidationError(fmt.Sprintf("unknown provider %q", provider))
		}
		if provider != c.Provider && model == "" {
			model = providers.DefaultModel(provider)
		}
		c.Provider = provider
	}
	if model == "" {
		return nil, providers.ValidationError("Model must be specified")
	}
	c.Model = model
	c.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}
	return c, nil
}

// Rename sets the chat title.
func (s *Service) Rename(ctx context.Context, chatID, title string) (*history.Chat, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, providers.ValidationError("Title cannot be empty")
	}

	c, err := s.store.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	c.Title = title
	c.UpdatedAt = s.clock.Now().UTC()

	if err := s.store.UpdateChat(ctx, c); err != nil {
		return nil, fmt.Errorf("failed to update chat: %w", err)
	}
	return c, nil
}

// Clear removes every message of the chat.
func (s *Service) Clear(ctx context.Context, chatID string) error {
	return s.store.ClearMessages(ctx, chatID)
}

// Delete removes one chat.
func (s *Service) Delete(ctx context.Context, chatID string) error {
	return s.store.DeleteChat(ctx, chatID)
}

// DeleteAll removes every chat and returns how many were removed.
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete chats: %w", err)
	}
	s.logger.Info("all chats deleted", "count", n)
	return n, nil
}

// Guidance turns a send failure into the text shown to the user.
func Guidance(provider providers.Provider, err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, history.ErrNotFound) {
		return "Chat not found."
	}
	if errors.Is(err, providers.ErrCancelled) || errors.Is(err, context.Canceled) {
		return "Response stopped."
	}

	var apiErr *providers.APIError
	if !errors.As(err, &apiErr) {
		return "Failed to send message"
	}

	switch {
	case apiErr.Status == 401:
		return fmt.Sprintf("Authentication failed for %s. Please check your API key in settings.", provider)
	case apiErr.Status == 0 || strings.Contains(strings.ToLower(apiErr.Message), "network"):
		return "Network error. Please check your internet connection and try again."
	case apiErr.Kind == providers.KindQueueFull:
		return "The relay is busy. Please try again in a moment."
	case apiErr.Kind == providers.KindNotRunning:
		return "The proxy server is stopped. Start it and try again."
	case apiErr.Kind == providers.KindCircuitOpen:
		return fmt.Sprintf("%s is temporarily unavailable after repeated failures. Please try again later.", provider)
	case apiErr.Status >= 500:
		return fmt.Sprintf("Server error (%d). Please try again later.", apiErr.Status)
	default:
		return apiErr.Message
	}
}
