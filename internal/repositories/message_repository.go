package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"presence-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

const messageColumns = `id, sender_id, receiver_id, group_id, text, image, is_edited, edited_at, created_at`

// MessageRepository defines interactions for direct and group messages.
type MessageRepository interface {
	CreateDirectMessage(ctx context.Context, senderID, receiverID int, text, image string) (models.Message, error)
	CreateGroupMessage(ctx context.Context, senderID, groupID int, text, image string) (models.Message, error)
	ListDirectMessages(ctx context.Context, userID, peerID int) ([]models.Message, error)
	ListGroupMessages(ctx context.Context, groupID int) ([]models.Message, error)
	SearchMessages(ctx context.Context, userID int, query string) ([]models.Message, error)
	GetMessage(ctx context.Context, messageID int) (models.Message, error)
	SetReaction(ctx context.Context, messageID, userID int, emoji string) error
	EditMessage(ctx context.Context, messageID int, text string) (models.Message, error)
	DeleteMessage(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// CreateDirectMessage stores a one-to-one message.
func (r *MessageRepo) CreateDirectMessage(ctx context.Context, senderID, receiverID int, text, image string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `INSERT INTO messages (sender_id, receiver_id, text, image) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns, senderID, receiverID, text, image)
	if err != nil {
		return models.Message{}, err
	}
	msg.Reactions = []models.Reaction{}
	return msg, nil
}

// CreateGroupMessage stores a message addressed to a group.
func (r *MessageRepo) CreateGroupMessage(ctx context.Context, senderID, groupID int, text, image string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `INSERT INTO messages (sender_id, group_id, text, image) VALUES ($1, $2, $3, $4) RETURNING `+messageColumns, senderID, groupID, text, image)
	if err != nil {
		return models.Message{}, err
	}
	msg.Reactions = []models.Reaction{}
	return msg, nil
}

// ListDirectMessages returns the thread between two users in creation order.
func (r *MessageRepo) ListDirectMessages(ctx context.Context, userID, peerID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`, userID, peerID)
	if err != nil {
		return nil, err
	}
	return r.attachReactions(ctx, msgs)
}

// ListGroupMessages returns group messages in creation order.
func (r *MessageRepo) ListGroupMessages(ctx context.Context, groupID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages WHERE group_id=$1 ORDER BY created_at ASC, id ASC`, groupID)
	if err != nil {
		return nil, err
	}
	return r.attachReactions(ctx, msgs)
}

// SearchMessages finds the user's messages containing the query text.
func (r *MessageRepo) SearchMessages(ctx context.Context, userID int, query string) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs, `SELECT `+messageColumns+` FROM messages
        WHERE (sender_id=$1 OR receiver_id=$1) AND text ILIKE '%' || $2 || '%'
        ORDER BY created_at DESC, id DESC LIMIT 50`, userID, query)
	if err != nil {
		return nil, err
	}
	return r.attachReactions(ctx, msgs)
}

// GetMessage retrieves a single message with its reactions.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID int) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs, err := r.attachReactions(ctx, []models.Message{msg})
	if err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// SetReaction records the user's reaction, replacing any previous one.
func (r *MessageRepo) SetReaction(ctx context.Context, messageID, userID int, emoji string) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO message_reactions (message_id, user_id, emoji) VALUES ($1, $2, $3)
        ON CONFLICT (message_id, user_id) DO UPDATE SET emoji = EXCLUDED.emoji, created_at = NOW()`, messageID, userID, emoji)
	return err
}

// EditMessage replaces the message text and marks it edited.
func (r *MessageRepo) EditMessage(ctx context.Context, messageID int, text string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `UPDATE messages SET text=$2, is_edited=TRUE, edited_at=NOW() WHERE id=$1 RETURNING `+messageColumns, messageID, text)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Message{}, ErrMessageNotFound
	}
	if err != nil {
		return models.Message{}, err
	}
	msgs, err := r.attachReactions(ctx, []models.Message{msg})
	if err != nil {
		return models.Message{}, err
	}
	return msgs[0], nil
}

// DeleteMessage removes a message permanently.
func (r *MessageRepo) DeleteMessage(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM messages WHERE id=$1`, messageID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrMessageNotFound
	}
	return nil
}

func (r *MessageRepo) attachReactions(ctx context.Context, msgs []models.Message) ([]models.Message, error) {
	if len(msgs) == 0 {
		return msgs, nil
	}

	ids := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, int64(m.ID))
	}

	type reactionRow struct {
		MessageID int    `db:"message_id"`
		UserID    int    `db:"user_id"`
		Emoji     string `db:"emoji"`
	}
	var rows []reactionRow
	err := r.db.SelectContext(ctx, &rows, `SELECT message_id, user_id, emoji FROM message_reactions WHERE message_id = ANY($1) ORDER BY created_at ASC`, pq.Array(ids))
	if err != nil {
		return nil, err
	}

	byMessage := make(map[int][]models.Reaction, len(msgs))
	for _, row := range rows {
		byMessage[row.MessageID] = append(byMessage[row.MessageID], models.Reaction{UserID: row.UserID, Emoji: row.Emoji})
	}
	for i := range msgs {
		reactions := byMessage[msgs[i].ID]
		if reactions == nil {
			reactions = []models.Reaction{}
		}
		msgs[i].Reactions = reactions
	}
	return msgs, nil
}
