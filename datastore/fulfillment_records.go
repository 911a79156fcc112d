package datastore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kfimusic/beatstore/models"
)

// DefaultClaimTTL is how long a "sending" claim blocks other triggers before
// it is considered abandoned.
const DefaultClaimTTL = 10 * time.Minute

var ErrRecordNotFound = errors.New("fulfillment record not found")

// FulfillmentRepository stores per-session notification state in Postgres.
type FulfillmentRepository struct {
	db       *sql.DB
	claimTTL time.Duration
	now      func() time.Time
}

func NewFulfillmentRepository(db *sql.DB) *FulfillmentRepository {
	return &FulfillmentRepository{db: db, claimTTL: DefaultClaimTTL, now: time.Now}
}

// Claim atomically marks sessionID as sending and returns the token that
// identifies this claim. It returns false when another trigger holds a live
// claim or the session was already notified.
func (r *FulfillmentRepository) Claim(ctx context.Context, sessionID string) (string, bool, error) {
	if strings.TrimSpace(sessionID) == "" {
		return "", false, fmt.Errorf("session ID is required")
	}

	now := r.now().UTC()
	token := uuid.NewString()
	query := `
		INSERT INTO fulfillment_records (session_id, status, claimed_at, claim_token)
		VALUES ($1, 'sending', $2, $4)
		ON CONFLICT (session_id) DO UPDATE
			SET claimed_at = EXCLUDED.claimed_at, claim_token = EXCLUDED.claim_token
			WHERE fulfillment_records.status = 'sending'
			  AND fulfillment_records.claimed_at < $3
	`
	res, err := r.db.ExecContext(ctx, query, sessionID, now, now.Add(-r.claimTTL), token)
	if err != nil {
		return "", false, fmt.Errorf("failed to claim session %s: %w", sessionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", false, fmt.Errorf("failed to read claim result for session %s: %w", sessionID, err)
	}
	if n != 1 {
		return "", false, nil
	}
	return token, true, nil
}

// Complete records that the buyer was notified.
func (r *FulfillmentRepository) Complete(ctx context.Context, sessionID string) error {
	query := `
		UPDATE fulfillment_records
		SET status = 'notified', notified_at = $2
		WHERE session_id = $1
	`
	res, err := r.db.ExecContext(ctx, query, sessionID, r.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to complete session %s: %w", sessionID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("complete session %s: %w", sessionID, ErrRecordNotFound)
	}
	return nil
}

// Release drops the sending claim identified by token so a later trigger may
// retry. A claim taken over by another trigger is left alone.
func (r *FulfillmentRepository) Release(ctx context.Context, sessionID, token string) error {
	query := `DELETE FROM fulfillment_records WHERE session_id = $1 AND status = 'sending' AND claim_token = $2`
	if _, err := r.db.ExecContext(ctx, query, sessionID, token); err != nil {
		return fmt.Errorf("failed to release session %s: %w", sessionID, err)
	}
	return nil
}

func (r *FulfillmentRepository) GetRecord(ctx context.Context, sessionID string) (*models.FulfillmentRecord, error) {
	query := `
		SELECT session_id, status, claimed_at, notified_at
		FROM fulfillment_records
		WHERE session_id = $1
	`
	var rec models.FulfillmentRecord
	var status string
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&rec.SessionID, &status, &rec.ClaimedAt, &rec.NotifiedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get fulfillment record: %w", err)
	}
	rec.Status = models.FulfillmentStatus(status)
	return &rec, nil
}
