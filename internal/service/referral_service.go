package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/yourierick/solifin/member-service/internal/models"
	"go.uber.org/zap"
)

// ReferralAPI is the part of the Solifin API used for the referrals dialog.
type ReferralAPI interface {
	GetReferrals(ctx context.Context, token, packID string) ([][]models.ReferralRecord, error)
	GetDetailedStats(ctx context.Context, token, packID string) (json.RawMessage, error)
}

// ReferralService builds the referral views of a pack
type ReferralService struct {
	api    ReferralAPI
	logger *zap.Logger
}

// NewReferralService creates a new referral service
func NewReferralService(api ReferralAPI, logger *zap.Logger) *ReferralService {
	return &ReferralService{
		api:    api,
		logger: logger.Named("referral_service"),
	}
}

// GetTree fetches the pack's referrals and returns the nested tree with
// per-generation totals.
func (s *ReferralService) GetTree(ctx context.Context, token, packID string) (*models.ReferralTreeResponse, error) {
	generations, err := s.api.GetReferrals(ctx, token, packID)
	if err != nil {
		return nil, fmt.Errorf("fetch referrals for pack %s: %w", packID, err)
	}

	tree, dropped := BuildReferralTree(generations)
	if dropped > 0 {
		s.logger.Info("referrals without a placed sponsor left out of tree",
			zap.String("pack_id", packID), zap.Int("dropped", dropped))
	}

	return &models.ReferralTreeResponse{
		Tree:        tree,
		Generations: SummarizeReferrals(generations),
		Dropped:     dropped,
	}, nil
}

// GetStats returns the pack's detailed statistics as sent by the backend.
func (s *ReferralService) GetStats(ctx context.Context, token, packID string) (json.RawMessage, error) {
	stats, err := s.api.GetDetailedStats(ctx, token, packID)
	if err != nil {
		return nil, fmt.Errorf("fetch stats for pack %s: %w", packID, err)
	}
	return stats, nil
}
