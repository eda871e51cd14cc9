package chat

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/emergent-company/testmind/pkg/apperror"
)

// MemoryStore is an in-process Store used by tests.
type MemoryStore struct {
	mu       sync.Mutex
	chats    map[string]Chat
	order    []string
	messages map[string][]Message
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:    make(map[string]Chat),
		messages: make(map[string][]Message),
	}
}

func (m *MemoryStore) CreateChat(_ context.Context, c *Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[c.ID]; ok {
		return apperror.NewConflict("chat " + c.ID + " already exists")
	}
	c.CreatedAt = time.Now()
	m.chats[c.ID] = *c
	m.order = append(m.order, c.ID)
	return nil
}

func (m *MemoryStore) GetChat(_ context.Context, id string) (*Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.chats[id]
	if !ok {
		return nil, apperror.NewNotFound("Chat", id)
	}
	return &c, nil
}

func (m *MemoryStore) ListChats(_ context.Context, userID string, limit int) ([]Chat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Chat{}
	for i := len(m.order) - 1; i >= 0; i-- {
		c := m.chats[m.order[i]]
		if c.UserID != userID {
			continue
		}
		out = append(out, c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) DeleteChat(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[id]; !ok {
		return apperror.NewNotFound("Chat", id)
	}
	delete(m.chats, id)
	delete(m.messages, id)
	m.order = slices.DeleteFunc(m.order, func(s string) bool { return s == id })
	return nil
}

func (m *MemoryStore) SaveMessages(_ context.Context, msgs []Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range msgs {
		if _, ok := m.chats[msg.ChatID]; !ok {
			return apperror.NewNotFound("Chat", msg.ChatID)
		}
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = time.Now()
		}
		m.messages[msg.ChatID] = append(m.messages[msg.ChatID], msg)
	}
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, chatID string) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message{}, m.messages[chatID]...), nil
}
