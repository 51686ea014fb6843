package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"realtime-chat/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository defines interactions for one-to-one messages.
type MessageRepository interface {
	CreateMessage(ctx context.Context, msg models.Message) (models.Message, error)
	GetMessage(ctx context.Context, messageID string) (models.Message, error)
	GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error)
	MarkConversationSeen(ctx context.Context, receiverID, senderID string) (int64, error)
	MarkSeen(ctx context.Context, messageID, receiverID string) error
	UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error)
	LastMessages(ctx context.Context, userID string) (map[string]models.Message, error)
}

// MessageRepo is a sqlx-backed repository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, receiver_id, text, image_url, seen, created_at`

// CreateMessage stores a message. ID and CreatedAt are assigned here and by the store.
func (r *MessageRepo) CreateMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	var out models.Message
	err := r.db.QueryRowxContext(ctx, `INSERT INTO messages (id, sender_id, receiver_id, text, image_url) VALUES ($1, $2, $3, $4, $5) RETURNING `+messageColumns,
		msg.ID, msg.SenderID, msg.ReceiverID, msg.Text, msg.ImageURL).StructScan(&out)
	return out, err
}

// GetMessage retrieves a single message.
func (r *MessageRepo) GetMessage(ctx context.Context, messageID string) (models.Message, error) {
	var msg models.Message
	err := r.db.GetContext(ctx, &msg, `SELECT `+messageColumns+` FROM messages WHERE id=$1`, messageID)
	if errors.Is(err, sql.ErrNoRows) || hasPQCode(err, pqInvalidTextRepresentation) {
		return models.Message{}, ErrMessageNotFound
	}
	return msg, err
}

// GetConversation returns both directions of a conversation, oldest first.
func (r *MessageRepo) GetConversation(ctx context.Context, userID, otherID string) ([]models.Message, error) {
	query := `SELECT ` + messageColumns + `
        FROM messages
        WHERE (sender_id=$1 AND receiver_id=$2) OR (sender_id=$2 AND receiver_id=$1)
        ORDER BY created_at ASC, id ASC`
	msgs := []models.Message{}
	err := r.db.SelectContext(ctx, &msgs, query, userID, otherID)
	return msgs, err
}

// MarkConversationSeen flags every unseen message from senderID to receiverID.
func (r *MessageRepo) MarkConversationSeen(ctx context.Context, receiverID, senderID string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE receiver_id=$1 AND sender_id=$2 AND seen = FALSE`, receiverID, senderID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkSeen flags one message, only when receiverID is its receiver.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID, receiverID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE id=$1 AND receiver_id=$2`, messageID, receiverID)
	if hasPQCode(err, pqInvalidTextRepresentation) {
		return ErrMessageNotFound
	}
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

// UnseenCounts returns sender id -> number of unseen messages addressed to receiverID.
func (r *MessageRepo) UnseenCounts(ctx context.Context, receiverID string) (map[string]int, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT sender_id, COUNT(*) FROM messages
        WHERE receiver_id=$1 AND seen = FALSE
        GROUP BY sender_id`, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var senderID string
		var n int
		if err := rows.Scan(&senderID, &n); err != nil {
			return nil, err
		}
		counts[senderID] = n
	}
	return counts, rows.Err()
}

// LastMessages returns counterpart id -> most recent message exchanged with userID.
func (r *MessageRepo) LastMessages(ctx context.Context, userID string) (map[string]models.Message, error) {
	query := `SELECT DISTINCT ON (counterpart) ` + messageColumns + `
        FROM (
            SELECT *, CASE WHEN sender_id=$1 THEN receiver_id ELSE sender_id END AS counterpart
            FROM messages
            WHERE sender_id=$1 OR receiver_id=$1
        ) m
        ORDER BY counterpart, created_at DESC, id DESC`
	var msgs []models.Message
	if err := r.db.SelectContext(ctx, &msgs, query, userID); err != nil {
		return nil, err
	}

	last := make(map[string]models.Message, len(msgs))
	for _, m := range msgs {
		last[m.Counterpart(userID)] = m
	}
	return last, nil
}
