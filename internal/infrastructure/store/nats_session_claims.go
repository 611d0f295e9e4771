// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonboulle/clockwork"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain"
	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// NatsSessionClaims keeps session ownership in a NATS KV bucket. Claims are
// never deleted: releasing one writes a record without owner, so every write
// is a compare-and-set on the key's latest revision.
type NatsSessionClaims struct {
	kv    *NatsKV
	keys  *KeyBuilder
	clock clockwork.Clock
}

// Ensure NatsSessionClaims implements domain.SessionClaims
var _ domain.SessionClaims = (*NatsSessionClaims)(nil)

// NewNatsSessionClaims creates a claim store over kvStore. Keys are always
// encoded since appointment and user ids are caller supplied.
func NewNatsSessionClaims(kvStore INatsKeyValue, clock clockwork.Clock) *NatsSessionClaims {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &NatsSessionClaims{
		kv:    NewNatsKV(kvStore, "session claim"),
		keys:  NewKeyBuilder("session", true),
		clock: clock,
	}
}

func (s *NatsSessionClaims) key(appointmentID, userID string) string {
	return s.keys.Key(appointmentID + "/" + userID)
}

func (s *NatsSessionClaims) get(ctx context.Context, appointmentID, userID string) (models.SessionClaim, uint64, error) {
	value, revision, err := s.kv.GetRevision(ctx, s.key(appointmentID, userID))
	if err != nil {
		return models.SessionClaim{}, 0, err
	}

	var claim models.SessionClaim
	if err := json.Unmarshal(value, &claim); err != nil {
		return models.SessionClaim{}, 0, domain.NewInternalError("failed to unmarshal session claim", err)
	}
	return claim, revision, nil
}

func (s *NatsSessionClaims) write(ctx context.Context, claim models.SessionClaim, revision uint64) (uint64, error) {
	data, err := json.Marshal(claim)
	if err != nil {
		return 0, domain.NewInternalError("failed to marshal session claim", err)
	}
	return s.kv.Update(ctx, s.key(claim.AppointmentID, claim.UserID), data, revision)
}

func (s *NatsSessionClaims) Claim(ctx context.Context, claim models.SessionClaim) (uint64, error) {
	if claim.Released() {
		return 0, domain.NewValidationError("session claim needs an owner")
	}

	var revision uint64
	current, rev, err := s.get(ctx, claim.AppointmentID, claim.UserID)
	switch {
	case domain.GetErrorType(err) == domain.ErrorTypeNotFound:
	case err != nil:
		return 0, err
	case !current.Released():
		return 0, fmt.Errorf("%w: owned by %s", domain.ErrSessionExists, current.Owner)
	default:
		revision = rev
	}

	claim.ClaimedAt = s.clock.Now().UTC()
	next, err := s.write(ctx, claim, revision)
	if domain.GetErrorType(err) == domain.ErrorTypeConflict {
		// another instance claimed it between the read and the write
		return 0, fmt.Errorf("%w: %s/%s", domain.ErrSessionExists, claim.AppointmentID, claim.UserID)
	}
	return next, err
}

func (s *NatsSessionClaims) Refresh(ctx context.Context, claim models.SessionClaim, revision uint64) (uint64, error) {
	if claim.ClaimedAt.IsZero() {
		claim.ClaimedAt = s.clock.Now().UTC()
	}
	return s.write(ctx, claim, revision)
}

func (s *NatsSessionClaims) Owner(ctx context.Context, appointmentID, userID string) (models.SessionClaim, error) {
	claim, _, err := s.get(ctx, appointmentID, userID)
	if err != nil {
		return models.SessionClaim{}, err
	}
	if claim.Released() {
		return models.SessionClaim{}, domain.NewNotFoundError(
			fmt.Sprintf("session %s/%s is not claimed", appointmentID, userID))
	}
	return claim, nil
}

func (s *NatsSessionClaims) Release(ctx context.Context, claim models.SessionClaim, revision uint64) error {
	_, err := s.write(ctx, models.SessionClaim{
		AppointmentID: claim.AppointmentID,
		UserID:        claim.UserID,
		ClaimedAt:     s.clock.Now().UTC(),
	}, revision)
	return err
}
