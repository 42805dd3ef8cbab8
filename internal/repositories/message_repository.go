package repositories

import (
	"context"
	"errors"

	"github.com/jmoiron/sqlx"

	"chat-app/internal/models"
)

var ErrMessageNotFound = errors.New("message not found")

// MessageRepository abstracts message persistence.
type MessageRepository interface {
	Create(ctx context.Context, senderID, recipientID int, text, image string) (models.Message, error)
	Conversation(ctx context.Context, viewerID, counterpartID int) ([]models.Message, error)
	UnseenCounts(ctx context.Context, viewerID int) (map[int]int, error)
	MarkConversationSeen(ctx context.Context, viewerID, counterpartID int) error
	MarkSeen(ctx context.Context, messageID int) error
}

// MessageRepo is a sqlx implementation of MessageRepository.
type MessageRepo struct {
	db *sqlx.DB
}

// NewMessageRepo constructs a MessageRepo.
func NewMessageRepo(db *sqlx.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

const messageColumns = `id, sender_id, recipient_id, text, image, seen, created_at`

// Create stores a message. The caller validates that text or image is set.
func (r *MessageRepo) Create(ctx context.Context, senderID, recipientID int, text, image string) (models.Message, error) {
	var msg models.Message
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO messages (sender_id, recipient_id, text, image) VALUES ($1, $2, $3, $4)
         RETURNING `+messageColumns, senderID, recipientID, text, image).StructScan(&msg)
	return msg, err
}

// Conversation returns both directions of a dialog ordered oldest first.
func (r *MessageRepo) Conversation(ctx context.Context, viewerID, counterpartID int) ([]models.Message, error) {
	var msgs []models.Message
	err := r.db.SelectContext(ctx, &msgs,
		`SELECT `+messageColumns+` FROM messages
         WHERE (sender_id=$1 AND recipient_id=$2) OR (sender_id=$2 AND recipient_id=$1)
         ORDER BY created_at ASC`, viewerID, counterpartID)
	return msgs, err
}

// UnseenCounts returns sender id -> count of unseen messages addressed to the
// viewer. Senders with no unseen messages do not appear.
func (r *MessageRepo) UnseenCounts(ctx context.Context, viewerID int) (map[int]int, error) {
	rows, err := r.db.QueryxContext(ctx,
		`SELECT sender_id, COUNT(*) FROM messages
         WHERE recipient_id=$1 AND seen = FALSE
         GROUP BY sender_id`, viewerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int]int)
	for rows.Next() {
		var senderID, count int
		if err := rows.Scan(&senderID, &count); err != nil {
			return nil, err
		}
		counts[senderID] = count
	}
	return counts, rows.Err()
}

// MarkConversationSeen flips every unseen counterpart->viewer message. Safe to
// call repeatedly.
func (r *MessageRepo) MarkConversationSeen(ctx context.Context, viewerID, counterpartID int) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE messages SET seen = TRUE
         WHERE sender_id=$1 AND recipient_id=$2 AND seen = FALSE`, counterpartID, viewerID)
	return err
}

// MarkSeen flips a single message by id.
func (r *MessageRepo) MarkSeen(ctx context.Context, messageID int) error {
	res, err := r.db.ExecContext(ctx, `UPDATE messages SET seen = TRUE WHERE id=$1`, messageID)
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
