package chat

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/uptrace/bun"

	"github.com/emergent-company/testmind/pkg/logger"
	"github.com/emergent-company/testmind/pkg/pgutils"
)

// Store is the persistence surface of the chat service.
type Store interface {
	CreateChat(ctx context.Context, c *Chat) error
	GetChat(ctx context.Context, id string) (*Chat, error)
	// ListChats returns the user's chats, newest first.
	ListChats(ctx context.Context, userID string, limit int) ([]Chat, error)
	DeleteChat(ctx context.Context, id string) error
	SaveMessages(ctx context.Context, msgs []Message) error
	// ListMessages returns the chat's messages, oldest first.
	ListMessages(ctx context.Context, chatID string) ([]Message, error)
}

// Repository handles database operations for chats and messages
type Repository struct {
	db  bun.IDB
	log *slog.Logger
}

func NewRepository(db bun.IDB, log *slog.Logger) *Repository {
	return &Repository{db: db, log: log.With(logger.Scope("chat.repo"))}
}

func (r *Repository) CreateChat(ctx context.Context, c *Chat) error {
	if _, err := r.db.NewInsert().Model(c).Returning("created_at").Exec(ctx); err != nil {
		r.log.Error("failed to create chat", logger.Error(err), slog.String("chatID", c.ID))
		return pgutils.ToAppError(err, "Chat", c.ID)
	}
	return nil
}

func (r *Repository) GetChat(ctx context.Context, id string) (*Chat, error) {
	var c Chat
	if err := r.db.NewSelect().Model(&c).Where("c.id = ?", id).Scan(ctx); err != nil {
		return nil, pgutils.ToAppError(err, "Chat", id)
	}
	return &c, nil
}

func (r *Repository) ListChats(ctx context.Context, userID string, limit int) ([]Chat, error) {
	out := []Chat{}
	q := r.db.NewSelect().Model(&out).
		Where("c.user_id = ?", userID).
		Order("c.created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		r.log.Error("failed to list chats", logger.Error(err))
		return nil, pgutils.ToAppError(err, "Chat", "")
	}
	return out, nil
}

// DeleteChat removes the chat; messages go with it by cascade.
func (r *Repository) DeleteChat(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*Chat)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return pgutils.ToAppError(err, "Chat", id)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return pgutils.ToAppError(sql.ErrNoRows, "Chat", id)
	}
	return nil
}

func (r *Repository) SaveMessages(ctx context.Context, msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}
	if _, err := r.db.NewInsert().Model(&msgs).Exec(ctx); err != nil {
		r.log.Error("failed to save messages", logger.Error(err), slog.String("chatID", msgs[0].ChatID))
		return pgutils.ToAppError(err, "Message", msgs[0].ID)
	}
	return nil
}

func (r *Repository) ListMessages(ctx context.Context, chatID string) ([]Message, error) {
	out := []Message{}
	err := r.db.NewSelect().Model(&out).
		Where("m.chat_id = ?", chatID).
		Order("m.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, pgutils.ToAppError(err, "Message", chatID)
	}
	return out, nil
}
