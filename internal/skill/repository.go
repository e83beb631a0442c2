package skill

import (
	"context"

	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/google/uuid"
)

// MutateFunc edits a private copy of a skill document. It reports whether
// the document changed; an error aborts the mutation without writing.
type MutateFunc func(s *models.Skill) (changed bool, err error)

// ListFilter narrows List results
type ListFilter struct {
	Category string
}

// Repository persists skill documents. Update must apply fn as one atomic
// read-modify-write on the document: two concurrent updates of the same
// skill never both observe the same version.
type Repository interface {
	Create(ctx context.Context, s *models.Skill) error
	Get(ctx context.Context, id uuid.UUID) (*models.Skill, error)
	List(ctx context.Context, filter ListFilter) ([]*models.Skill, error)
	Update(ctx context.Context, id uuid.UUID, fn MutateFunc) (*models.Skill, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByRequester(ctx context.Context, user string) ([]*models.Skill, error)
	ListReceived(ctx context.Context, owner string) ([]*models.Skill, error)
}
