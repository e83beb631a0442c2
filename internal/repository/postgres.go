package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/SkillStage/internal/breaker"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BreakerName is the circuit breaker guarding skill queries
const BreakerName = "postgres-skills"

const skillColumns = `id, owner_id, title, description, category,
	requests, accepted_learners, feedbacks, version, created_at, updated_at`

// Postgres stores each skill as one row with its requests, resolved learners
// and feedbacks in JSONB columns. Updates use the version column as an
// optimistic lock and retry on conflict.
type Postgres struct {
	db         *pgxpool.Pool
	breakers   *breaker.Manager
	maxRetries int
}

// NewPostgres creates a Postgres-backed skill store
func NewPostgres(db *pgxpool.Pool, breakers *breaker.Manager, maxRetries int) *Postgres {
	if maxRetries < 1 {
		maxRetries = 1
	}
	if breakers == nil {
		breakers = breaker.NewManager(nil, IsExpectedError)
	}
	return &Postgres{db: db, breakers: breakers, maxRetries: maxRetries}
}

// IsExpectedError reports database errors that are normal query outcomes
func IsExpectedError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// run executes a query under the circuit breaker and records its latency
func (r *Postgres) run(ctx context.Context, queryType string, fn func() (interface{}, error)) (interface{}, error) {
	start := time.Now()
	result, err := r.breakers.Execute(ctx, BreakerName, fn)
	monitoring.RecordDBQuery(queryType, time.Since(start))
	if errors.Is(err, breaker.ErrOpen) {
		return nil, fmt.Errorf("%w: %v", skill.ErrStoreUnavailable, err)
	}
	return result, err
}

func scanSkill(row pgx.Row) (*models.Skill, error) {
	var s models.Skill
	err := row.Scan(
		&s.ID, &s.Owner, &s.Title, &s.Description, &s.Category,
		&s.Requests, &s.AcceptedLearners, &s.Feedbacks,
		&s.Version, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	normalize(&s)
	return &s, nil
}

// normalize replaces nil collections so they encode as JSON arrays
func normalize(s *models.Skill) {
	if s.Requests == nil {
		s.Requests = []models.Request{}
	}
	if s.AcceptedLearners == nil {
		s.AcceptedLearners = []string{}
	}
	if s.Feedbacks == nil {
		s.Feedbacks = []models.Feedback{}
	}
}

// Create inserts a new skill
func (r *Postgres) Create(ctx context.Context, s *models.Skill) error {
	normalize(s)
	_, err := r.run(ctx, "skill_insert", func() (interface{}, error) {
		return r.db.Exec(ctx, `
			INSERT INTO skills (`+skillColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, s.ID, s.Owner, s.Title, s.Description, s.Category,
			s.Requests, s.AcceptedLearners, s.Feedbacks,
			s.Version, s.CreatedAt, s.UpdatedAt)
	})
	if err != nil {
		return fmt.Errorf("failed to insert skill: %w", err)
	}
	return nil
}

// Get retrieves a skill by ID
func (r *Postgres) Get(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	result, err := r.run(ctx, "skill_get", func() (interface{}, error) {
		return scanSkill(r.db.QueryRow(ctx, `
			SELECT `+skillColumns+` FROM skills WHERE id = $1
		`, id))
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, skill.ErrSkillNotFound
		}
		return nil, fmt.Errorf("failed to get skill: %w", err)
	}
	return result.(*models.Skill), nil
}

// Update applies fn with optimistic concurrency: the write only lands if
// the version read is still current, otherwise the document is re-read and
// fn applied again.
func (r *Postgres) Update(ctx context.Context, id uuid.UUID, fn skill.MutateFunc) (*models.Skill, error) {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		current, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}

		working := current.Clone()
		changed, err := fn(working)
		if err != nil {
			return nil, err
		}
		if !changed {
			return current, nil
		}
		normalize(working)

		_, err = r.run(ctx, "skill_update", func() (interface{}, error) {
			return nil, r.db.QueryRow(ctx, `
				UPDATE skills SET
					title = $3, description = $4, category = $5,
					requests = $6, accepted_learners = $7, feedbacks = $8,
					version = version + 1, updated_at = NOW()
				WHERE id = $1 AND version = $2
				RETURNING version, updated_at
			`, id, current.Version, working.Title, working.Description, working.Category,
				working.Requests, working.AcceptedLearners, working.Feedbacks,
			).Scan(&working.Version, &working.UpdatedAt)
		})
		if err == nil {
			return working, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("failed to update skill: %w", err)
		}

		// Someone else committed first (or deleted the row); start over
		monitoring.RecordStoreRetry("postgres")
	}
	return nil, skill.ErrConcurrentUpdate
}

// Delete removes a skill
func (r *Postgres) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.run(ctx, "skill_delete", func() (interface{}, error) {
		tag, err := r.db.Exec(ctx, `DELETE FROM skills WHERE id = $1`, id)
		return tag.RowsAffected(), err
	})
	if err != nil {
		return fmt.Errorf("failed to delete skill: %w", err)
	}
	if result.(int64) == 0 {
		return skill.ErrSkillNotFound
	}
	return nil
}

// List retrieves all skills, newest first
func (r *Postgres) List(ctx context.Context, filter skill.ListFilter) ([]*models.Skill, error) {
	return r.query(ctx, "skill_list", `
		SELECT `+skillColumns+` FROM skills
		WHERE ($1 = '' OR category = $1)
		ORDER BY created_at DESC, id
	`, filter.Category)
}

// ListByRequester retrieves skills on which user holds a request
func (r *Postgres) ListByRequester(ctx context.Context, user string) ([]*models.Skill, error) {
	containment, err := json.Marshal([]map[string]string{{"user": user}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode requester filter: %w", err)
	}
	return r.query(ctx, "skill_list_sent", `
		SELECT `+skillColumns+` FROM skills
		WHERE requests @> $1::jsonb
		ORDER BY created_at DESC, id
	`, string(containment))
}

// ListReceived retrieves skills owned by owner that have at least one request
func (r *Postgres) ListReceived(ctx context.Context, owner string) ([]*models.Skill, error) {
	return r.query(ctx, "skill_list_received", `
		SELECT `+skillColumns+` FROM skills
		WHERE owner_id = $1 AND jsonb_array_length(requests) > 0
		ORDER BY created_at DESC, id
	`, owner)
}

func (r *Postgres) query(ctx context.Context, queryType, sql string, args ...interface{}) ([]*models.Skill, error) {
	result, err := r.run(ctx, queryType, func() (interface{}, error) {
		rows, err := r.db.Query(ctx, sql, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		skills := []*models.Skill{}
		for rows.Next() {
			s, err := scanSkill(rows)
			if err != nil {
				return nil, err
			}
			skills = append(skills, s)
		}
		return skills, rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list skills: %w", err)
	}
	return result.([]*models.Skill), nil
}
