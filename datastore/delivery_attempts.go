package datastore

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/kfimusic/beatstore/models"
)

type DeliveryAttemptRepository struct {
	db *sql.DB
}

func NewDeliveryAttemptRepository(db *sql.DB) *DeliveryAttemptRepository {
	return &DeliveryAttemptRepository{db: db}
}

func (r *DeliveryAttemptRepository) CreateAttempt(ctx context.Context, attempt *models.DeliveryAttempt) error {
	if _, err := uuid.Parse(attempt.ID); err != nil {
		return fmt.Errorf("invalid attempt ID format: %w", err)
	}

	query := `
		INSERT INTO delivery_attempts (id, session_id, transport, sender, status, message_id, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		attempt.ID, nullIfEmpty(attempt.SessionID), attempt.Transport, attempt.Sender,
		string(attempt.Status), nullIfEmpty(attempt.MessageID), nullIfEmpty(attempt.ErrorMessage), attempt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert delivery attempt: %w", err)
	}
	return nil
}

// ListAttemptsBySession returns the attempt trail for one session, oldest first.
func (r *DeliveryAttemptRepository) ListAttemptsBySession(ctx context.Context, sessionID string) ([]models.DeliveryAttempt, error) {
	query := `
		SELECT id, COALESCE(session_id, ''), transport, sender, status,
		       COALESCE(message_id, ''), COALESCE(error_message, ''), created_at
		FROM delivery_attempts
		WHERE session_id = $1
		ORDER BY created_at ASC
	`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query delivery attempts: %w", err)
	}
	defer rows.Close()

	var attempts []models.DeliveryAttempt
	for rows.Next() {
		var a models.DeliveryAttempt
		var status string
		if err := rows.Scan(&a.ID, &a.SessionID, &a.Transport, &a.Sender, &status, &a.MessageID, &a.ErrorMessage, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan delivery attempt: %w", err)
		}
		a.Status = models.DeliveryStatus(status)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating delivery attempts: %w", err)
	}
	return attempts, nil
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
