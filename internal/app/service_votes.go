package app

import (
	"context"
	"errors"

	"cleanstreet/api/internal/metrics"
	"cleanstreet/api/internal/store"
	"cleanstreet/api/internal/util"
)

const (
	VoteUp   = "up"
	VoteDown = "down"
)

// VoteResult reports the caller's vote after SetVote. Vote is nil when the
// vote was cleared; Created is true only when a new row was inserted.
type VoteResult struct {
	Vote    *store.Vote
	Created bool
}

// SetVote records the caller's vote on a complaint. An empty voteType clears it.
func (s *Service) SetVote(ctx context.Context, p Principal, complaintID, voteType string) (VoteResult, error) {
	switch voteType {
	case VoteUp, VoteDown, "":
	default:
		return VoteResult{}, validationError("Invalid vote_type")
	}
	if _, err := s.loadListedComplaint(ctx, p, complaintID); err != nil {
		return VoteResult{}, err
	}

	if voteType == "" {
		if err := s.store.DeleteVote(ctx, p.UserID, complaintID); err != nil {
			return VoteResult{}, err
		}
		metrics.VoteCast("")
		return VoteResult{}, nil
	}

	existing, err := s.store.GetVote(ctx, p.UserID, complaintID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return VoteResult{}, err
	}
	vote := store.Vote{
		ID:          existing.ID,
		UserID:      p.UserID,
		ComplaintID: complaintID,
		VoteType:    voteType,
	}
	if vote.ID == "" {
		vote.ID = util.NewID("vote")
	}

	saved, created, err := s.store.UpsertVote(ctx, vote)
	if err != nil {
		return VoteResult{}, err
	}
	metrics.VoteCast(voteType)
	return VoteResult{Vote: &saved, Created: created}, nil
}

func (s *Service) VoteSummary(ctx context.Context, p Principal, complaintID string) (store.VoteCounts, error) {
	if _, err := s.loadListedComplaint(ctx, p, complaintID); err != nil {
		return store.VoteCounts{}, err
	}
	return s.store.VoteSummary(ctx, complaintID)
}
