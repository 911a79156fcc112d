package datastore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kfimusic/beatstore/models"
)

// MemoryFulfillmentStore is the in-process FulfillmentRepository used when no
// database is configured. State is lost on restart.
type MemoryFulfillmentStore struct {
	mu       sync.Mutex
	records  map[string]models.FulfillmentRecord
	claimTTL time.Duration
	now      func() time.Time
}

func NewMemoryFulfillmentStore() *MemoryFulfillmentStore {
	return &MemoryFulfillmentStore{
		records:  make(map[string]models.FulfillmentRecord),
		claimTTL: DefaultClaimTTL,
		now:      time.Now,
	}
}

func (s *MemoryFulfillmentStore) Claim(_ context.Context, sessionID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	if rec, ok := s.records[sessionID]; ok {
		if rec.Status == models.FulfillmentStatusNotified || now.Sub(rec.ClaimedAt) < s.claimTTL {
			return "", false, nil
		}
	}
	token := uuid.NewString()
	s.records[sessionID] = models.FulfillmentRecord{
		SessionID:  sessionID,
		Status:     models.FulfillmentStatusSending,
		ClaimedAt:  now,
		ClaimToken: token,
	}
	return token, true, nil
}

func (s *MemoryFulfillmentStore) Complete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return ErrRecordNotFound
	}
	now := s.now().UTC()
	rec.Status = models.FulfillmentStatusNotified
	rec.NotifiedAt = &now
	s.records[sessionID] = rec
	return nil
}

// Release drops the claim identified by token. A claim taken over by another
// trigger is left alone.
func (s *MemoryFulfillmentStore) Release(_ context.Context, sessionID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[sessionID]; ok && rec.Status == models.FulfillmentStatusSending && rec.ClaimToken == token {
		delete(s.records, sessionID)
	}
	return nil
}

func (s *MemoryFulfillmentStore) GetRecord(_ context.Context, sessionID string) (*models.FulfillmentRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[sessionID]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &rec, nil
}
