package skill

import (
	"context"
	"strings"

	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/google/uuid"
)

// MaxCommentLength bounds feedback comments
const MaxCommentLength = 1000

// SubmitFeedbackRequest represents a feedback submission
type SubmitFeedbackRequest struct {
	Rating  int     `json:"rating"`
	Comment *string `json:"comment,omitempty" binding:"omitempty,max=1000"`
}

// ValidateRating checks the rating is within [MinRating, MaxRating]
func ValidateRating(rating int) error {
	if rating < MinRating || rating > MaxRating {
		return ErrInvalidRating
	}
	return nil
}

// SubmitFeedback records a one-time rating from author. Feedback cannot be
// edited or removed afterwards.
func (s *Service) SubmitFeedback(ctx context.Context, id uuid.UUID, author string, req *SubmitFeedbackRequest) (*models.Feedback, error) {
	if err := ValidateRating(req.Rating); err != nil {
		return nil, err
	}

	var comment *string
	if req.Comment != nil {
		if c := strings.TrimSpace(*req.Comment); c != "" {
			comment = &c
		}
	}

	var created models.Feedback
	_, err := s.repo.Update(ctx, id, func(sk *models.Skill) (bool, error) {
		if sk.FeedbackFrom(author) {
			return false, ErrFeedbackExists
		}
		if s.requireAcceptedFeedback && !hasAcceptedRequest(sk, author) {
			return false, ErrFeedbackNotEligible
		}

		created = models.Feedback{
			ID:        uuid.New(),
			User:      author,
			Rating:    req.Rating,
			Comment:   comment,
			CreatedAt: s.now(),
		}
		sk.Feedbacks = append(sk.Feedbacks, created)
		return true, nil
	})
	monitoring.RecordSkillMutation("submit_feedback", outcome(err))
	if err != nil {
		return nil, err
	}

	monitoring.RecordFeedbackRating(req.Rating)
	logging.LogSkillEvent(id.String(), author, "feedback_submitted", created.ID.String())
	return &created, nil
}

func hasAcceptedRequest(sk *models.Skill, user string) bool {
	idx := sk.RequestFrom(user)
	return idx >= 0 && sk.Requests[idx].Status == models.RequestStatusAccepted
}
