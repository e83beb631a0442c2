package skill

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/google/uuid"
)

// Field limits for listings
const (
	MaxTitleLength       = 120
	MaxDescriptionLength = 2000
	MaxCategoryLength    = 60
)

// CreateSkillRequest represents a request to create a skill listing
type CreateSkillRequest struct {
	Title       string `json:"title" binding:"required,max=120"`
	Description string `json:"description" binding:"max=2000"`
	Category    string `json:"category" binding:"max=60"`
}

// UpdateSkillRequest represents a request to update a skill listing.
// Nil or empty fields keep the stored value.
type UpdateSkillRequest struct {
	Title       *string `json:"title,omitempty" binding:"omitempty,max=120"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=2000"`
	Category    *string `json:"category,omitempty" binding:"omitempty,max=60"`
}

func validateField(name, value string, max int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidSkill, name)
	}
	if utf8.RuneCountInString(value) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidSkill, name, max)
	}
	return nil
}

// Create creates a new skill listing owned by owner
func (s *Service) Create(ctx context.Context, owner string, req *CreateSkillRequest) (*models.Skill, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateField("title", title, MaxTitleLength, true); err != nil {
		return nil, err
	}
	if err := validateField("description", req.Description, MaxDescriptionLength, false); err != nil {
		return nil, err
	}
	if err := validateField("category", req.Category, MaxCategoryLength, false); err != nil {
		return nil, err
	}

	now := s.now()
	sk := &models.Skill{
		ID:               uuid.New(),
		Owner:            owner,
		Title:            title,
		Description:      req.Description,
		Category:         strings.TrimSpace(req.Category),
		Requests:         []models.Request{},
		AcceptedLearners: []string{},
		Feedbacks:        []models.Feedback{},
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.repo.Create(ctx, sk)
	monitoring.RecordSkillMutation("create", outcome(err))
	if err != nil {
		return nil, fmt.Errorf("failed to create skill: %w", err)
	}

	logging.LogSkillEvent(sk.ID.String(), owner, "created", logging.SanitizeForLog(sk.Title, 64))
	return sk, nil
}

// Get retrieves a skill listing by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	return s.repo.Get(ctx, id)
}

// List retrieves all skill listings, optionally filtered by category
func (s *Service) List(ctx context.Context, filter ListFilter) ([]*models.Skill, error) {
	filter.Category = strings.TrimSpace(filter.Category)
	return s.repo.List(ctx, filter)
}

// Update changes title, description or category. Only the owner may update.
func (s *Service) Update(ctx context.Context, id uuid.UUID, caller string, req *UpdateSkillRequest) (*models.Skill, error) {
	if req.Title != nil {
		if err := validateField("title", *req.Title, MaxTitleLength, false); err != nil {
			return nil, err
		}
	}
	if req.Description != nil {
		if err := validateField("description", *req.Description, MaxDescriptionLength, false); err != nil {
			return nil, err
		}
	}
	if req.Category != nil {
		if err := validateField("category", *req.Category, MaxCategoryLength, false); err != nil {
			return nil, err
		}
	}

	updated, err := s.repo.Update(ctx, id, func(sk *models.Skill) (bool, error) {
		if sk.Owner != caller {
			return false, ErrNotOwner
		}
		changed := false
		if v := trimmed(req.Title); v != "" && v != sk.Title {
			sk.Title = v
			changed = true
		}
		if req.Description != nil && *req.Description != "" && *req.Description != sk.Description {
			sk.Description = *req.Description
			changed = true
		}
		if v := trimmed(req.Category); v != "" && v != sk.Category {
			sk.Category = v
			changed = true
		}
		return changed, nil
	})
	monitoring.RecordSkillMutation("update", outcome(err))
	if err != nil {
		return nil, err
	}

	logging.LogSkillEvent(id.String(), caller, "updated", "")
	return updated, nil
}

// Delete removes a skill listing. Only the owner may delete.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, caller string) error {
	sk, err := s.repo.Get(ctx, id)
	if err != nil {
		monitoring.RecordSkillMutation("delete", outcome(err))
		return err
	}

	// Owner is immutable, so the check stays valid until the delete lands
	if sk.Owner != caller {
		monitoring.RecordSkillMutation("delete", outcome(ErrNotOwner))
		return ErrNotOwner
	}

	err = s.repo.Delete(ctx, id)
	monitoring.RecordSkillMutation("delete", outcome(err))
	if err != nil {
		return err
	}

	logging.LogSkillEvent(id.String(), caller, "deleted", "")
	return nil
}

func trimmed(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}
