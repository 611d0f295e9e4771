// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package domain

import (
	"context"

	"github.com/linuxfoundation/lfx-v2-consultation-service/internal/domain/models"
)

// SessionClaims makes an (appointment, user) pair owned by a single agent
// instance across replicas. Revisions are compare-and-set tokens: Refresh and
// Release only succeed for the holder of the latest revision.
type SessionClaims interface {
	// Claim takes the pair for claim.Owner. ErrSessionExists when another
	// instance holds it.
	Claim(ctx context.Context, claim models.SessionClaim) (uint64, error)
	// Refresh rewrites a held claim so it does not expire.
	Refresh(ctx context.Context, claim models.SessionClaim, revision uint64) (uint64, error)
	// Owner returns the current claim. NotFound when the pair is unclaimed.
	Owner(ctx context.Context, appointmentID, userID string) (models.SessionClaim, error)
	// Release gives a held claim up.
	Release(ctx context.Context, claim models.SessionClaim, revision uint64) error
}
