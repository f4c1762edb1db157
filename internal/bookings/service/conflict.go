package service

import (
	"context"
	"fmt"

	"lessonbook/internal/bookings/repository"
	"lessonbook/pkg/model"
)

// ConflictAnalyzer finds occupying commitments that overlap a window. The
// same query serves the advisory check and the authoritative re-check under
// the lock.
type ConflictAnalyzer struct {
	commitments repository.CommitmentRepository
}

func NewConflictAnalyzer(commitments repository.CommitmentRepository) *ConflictAnalyzer {
	return &ConflictAnalyzer{commitments: commitments}
}

func (a *ConflictAnalyzer) FindConflicts(ctx context.Context, ownerID string, window model.TimeWindow, excludeID string) ([]model.ConflictingCommitment, error) {
	conflicts, err := a.commitments.FindOverlapping(ctx, ownerID, window.Date, window.Start, window.End, excludeID)
	if err != nil {
		return nil, fmt.Errorf("find conflicts for %s on %s: %w", ownerID, window, err)
	}
	return conflicts, nil
}

func (a *ConflictAnalyzer) HasConflicts(ctx context.Context, ownerID string, window model.TimeWindow, excludeID string) (bool, error) {
	conflicts, err := a.FindConflicts(ctx, ownerID, window, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
