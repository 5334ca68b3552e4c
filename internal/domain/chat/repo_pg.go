package chat

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bhavishy2801/CareBridge/internal/domain/party"
	"github.com/bhavishy2801/CareBridge/internal/platform/apperr"
	"github.com/bhavishy2801/CareBridge/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const msgCols = `id, conversation_id, sender_id, sender_type, receiver_id, receiver_type,
	content, message_type, attachment_url, status, is_read, read_at, created_at`

const msgColsLatest = `l.id, l.conversation_id, l.sender_id, l.sender_type, l.receiver_id, l.receiver_type,
	l.content, l.message_type, l.attachment_url, l.status, l.is_read, l.read_at, l.created_at`

func scanMessage(row pgx.Row, extra ...any) (*Message, error) {
	var m Message
	var senderType, receiverType, msgType, status string
	dest := []any{&m.ID, &m.ConversationID, &m.SenderID, &senderType, &m.ReceiverID, &receiverType,
		&m.Content, &msgType, &m.AttachmentURL, &status, &m.IsRead, &m.ReadAt, &m.CreatedAt}
	err := row.Scan(append(dest, extra...)...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.Missing("Message not found")
	}
	if err != nil {
		return nil, apperr.Internalf(err, "scan message")
	}
	if m.SenderType, err = party.Parse(senderType); err != nil {
		return nil, apperr.Internalf(err, "message %s", m.ID)
	}
	if m.ReceiverType, err = party.Parse(receiverType); err != nil {
		return nil, apperr.Internalf(err, "message %s", m.ID)
	}
	if m.Status, err = ParseDeliveryStatus(status); err != nil {
		return nil, apperr.Internalf(err, "message %s", m.ID)
	}
	m.MessageType = MessageType(msgType)
	return &m, nil
}

func (r *repoPG) Insert(ctx context.Context, m *Message) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat_message (`+msgCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		m.ID, m.ConversationID, m.SenderID, m.SenderType.String(), m.ReceiverID, m.ReceiverType.String(),
		m.Content, string(m.MessageType), m.AttachmentURL, string(m.Status), m.IsRead, m.ReadAt, m.CreatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.New(apperr.Conflict, "Message already exists")
	}
	if err != nil {
		return apperr.Internalf(err, "insert message")
	}
	return nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Message, error) {
	return scanMessage(r.pool.QueryRow(ctx, `SELECT `+msgCols+` FROM chat_message WHERE id = $1`, id))
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM chat_message WHERE id = $1`, id)
	if err != nil {
		return apperr.Internalf(err, "delete message")
	}
	if tag.RowsAffected() == 0 {
		return apperr.Missing("Message not found")
	}
	return nil
}

func (r *repoPG) History(ctx context.Context, conversationID string, limit, offset int) ([]*Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+msgCols+` FROM chat_message
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`, conversationID, limit, offset)
	if err != nil {
		return nil, apperr.Internalf(err, "query history")
	}
	defer rows.Close()

	var items []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internalf(err, "iterate history")
	}
	return items, nil
}

func (r *repoPG) MarkRead(ctx context.Context, conversationID string, readerID uuid.UUID, at time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_message SET status = 'read', is_read = TRUE, read_at = $3
		WHERE conversation_id = $1 AND receiver_id = $2 AND status <> 'read'`,
		conversationID, readerID, at)
	if err != nil {
		return 0, apperr.Internalf(err, "mark read")
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) MarkDelivered(ctx context.Context, conversationID string, receiverID uuid.UUID) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE chat_message SET status = 'delivered'
		WHERE receiver_id = $1 AND status = 'sent'
			AND ($2 = '' OR conversation_id = $2)`,
		receiverID, conversationID)
	if err != nil {
		return 0, apperr.Internalf(err, "mark delivered")
	}
	return tag.RowsAffected(), nil
}

func (r *repoPG) Conversations(ctx context.Context, userID uuid.UUID) ([]*Conversation, error) {
	rows, err := r.pool.Query(ctx, `
		WITH mine AS (
			SELECT * FROM chat_message WHERE sender_id = $1 OR receiver_id = $1
		), latest AS (
			SELECT DISTINCT ON (conversation_id) * FROM mine
			ORDER BY conversation_id, created_at DESC, id DESC
		), unread AS (
			SELECT conversation_id, count(*) AS n FROM mine
			WHERE receiver_id = $1 AND NOT is_read
			GROUP BY conversation_id
		)
		SELECT `+msgColsLatest+`, COALESCE(u.n, 0)
		FROM latest l LEFT JOIN unread u ON u.conversation_id = l.conversation_id
		ORDER BY l.created_at DESC`, userID)
	if err != nil {
		return nil, apperr.Internalf(err, "query conversations")
	}
	defer rows.Close()

	var items []*Conversation
	for rows.Next() {
		var unread int64
		m, err := scanMessage(rows, &unread)
		if err != nil {
			return nil, err
		}
		items = append(items, &Conversation{ConversationID: m.ConversationID, Last: m, UnreadCount: unread})
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internalf(err, "iterate conversations")
	}
	return items, nil
}

func (r *repoPG) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx,
		`SELECT count(*) FROM chat_message WHERE receiver_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, apperr.Internalf(err, "count unread")
	}
	return n, nil
}
