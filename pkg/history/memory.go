package history

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It backs the chat service
// when history persistence is disabled.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]*Chat
	messages map[string][]Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]*Chat),
		messages: make(map[string][]Message),
	}
}

// CreateChat implements Store.
func (s *MemoryStore) CreateChat(_ context.Context, c *Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *c
	stored.Messages = nil
	s.chats[c.ID] = &stored
	return nil
}

// GetChat implements Store.
func (s *MemoryStore) GetChat(_ context.Context, id string) (*Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.chats[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *c
	out.Messages = append([]Message{}, s.messages[id]...)
	return &out, nil
}

// ListChats implements Store.
func (s *MemoryStore) ListChats(_ context.Context) ([]Chat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

// UpdateChat implements Store.
func (s *MemoryStore) UpdateChat(_ context.Context, c *Chat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.chats[c.ID]
	if !ok {
		return ErrNotFound
	}
	stored.Title = c.Title
	stored.Provider = c.Provider
	stored.Model = c.Model
	stored.UpdatedAt = c.UpdatedAt
	return nil
}

// AppendMessages implements Store.
func (s *MemoryStore) AppendMessages(_ context.Context, msgs ...*Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		if _, ok := s.chats[m.ChatID]; !ok {
			return ErrNotFound
		}
	}
	for _, m := range msgs {
		s.chats[m.ChatID].UpdatedAt = m.CreatedAt
		s.messages[m.ChatID] = append(s.messages[m.ChatID], *m)
	}
	return nil
}

// ClearMessages implements Store.
func (s *MemoryStore) ClearMessages(_ context.Context, chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[chatID]; !ok {
		return ErrNotFound
	}
	delete(s.messages, chatID)
	return nil
}

// DeleteChat implements Store.
func (s *MemoryStore) DeleteChat(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.chats[id]; !ok {
		return ErrNotFound
	}
	delete(s.chats, id)
	delete(s.messages, id)
	return nil
}

// DeleteAll implements Store.
func (s *MemoryStore) DeleteAll(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := int64(len(s.chats))
	s.chats = make(map[string]*Chat)
	s.messages = make(map[string][]Message)
	return n, nil
}

// PruneBefore implements Store.
func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, c := range s.chats {
		if c.UpdatedAt.Before(cutoff) {
			delete(s.chats, id)
			delete(s.messages, id)
			n++
		}
	}
	return n, nil
}

// Close implements Store.
func (s *MemoryStore) Close() error {
	return nil
}
