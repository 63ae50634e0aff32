package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cocesi/carpool-backend/internal/models"
)

const messageColumns = `id, booking_id, sender_id, receiver_id, content,
	is_read, read_at, is_template, template_type, created_at, updated_at`

// MessageRepository handles database operations for the messages table
type MessageRepository struct {
	db DB
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(db DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create inserts a new message and populates the generated id and timestamps
func (r *MessageRepository) Create(message *models.Message) error {
	query := `
		INSERT INTO messages (booking_id, sender_id, receiver_id, content, is_template, template_type)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, is_read, created_at, updated_at
	`

	err := r.db.QueryRow(
		query,
		message.BookingID, message.SenderID, message.ReceiverID,
		message.Content, message.IsTemplate, message.TemplateType,
	).Scan(&message.ID, &message.IsRead, &message.CreatedAt, &message.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}

	return nil
}

// GetByBooking retrieves the conversation for a booking, oldest first
func (r *MessageRepository) GetByBooking(bookingID int64) ([]models.Message, error) {
	messages := []models.Message{}
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE booking_id = $1
		ORDER BY created_at`

	if err := r.db.Select(&messages, query, bookingID); err != nil {
		if err == sql.ErrNoRows {
			return messages, nil
		}
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}

	return messages, nil
}

// MarkReadForReceiver marks the receiver's unread messages in a booking
// as read
func (r *MessageRepository) MarkReadForReceiver(bookingID, receiverID int64, now time.Time) error {
	_, err := r.db.Exec(
		`UPDATE messages
		 SET is_read = TRUE, read_at = $3, updated_at = NOW()
		 WHERE booking_id = $1 AND receiver_id = $2 AND is_read = FALSE`,
		bookingID, receiverID, now,
	)
	if err != nil {
		return fmt.Errorf("failed to mark messages read: %w", err)
	}
	return nil
}

// CountUnreadForReceiver counts the user's unread messages across all bookings
func (r *MessageRepository) CountUnreadForReceiver(receiverID int64) (int, error) {
	var count int
	err := r.db.Get(&count,
		`SELECT COUNT(*) FROM messages WHERE receiver_id = $1 AND is_read = FALSE`,
		receiverID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}
