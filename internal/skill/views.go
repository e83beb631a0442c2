package skill

import (
	"context"
	"fmt"

	"github.com/aimerfeng/SkillStage/internal/models"
)

// RequestsOverview groups the skills a user has requested and the skills of
// theirs that others have requested
type RequestsOverview struct {
	Sent     []*models.Skill
	Received []*models.Skill
}

// SentRequests returns every skill on which user holds a request
func (s *Service) SentRequests(ctx context.Context, user string) ([]*models.Skill, error) {
	return s.repo.ListByRequester(ctx, user)
}

// ReceivedRequests returns every skill owned by user with at least one request
func (s *Service) ReceivedRequests(ctx context.Context, user string) ([]*models.Skill, error) {
	return s.repo.ListReceived(ctx, user)
}

// MyRequests returns both projections for user
func (s *Service) MyRequests(ctx context.Context, user string) (*RequestsOverview, error) {
	sent, err := s.SentRequests(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list sent requests: %w", err)
	}
	received, err := s.ReceivedRequests(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to list received requests: %w", err)
	}
	return &RequestsOverview{Sent: sent, Received: received}, nil
}
