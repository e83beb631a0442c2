package profile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aimerfeng/SkillStage/internal/breaker"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/jackc/pgx/v5/pgxpool"
)

// BreakerName is the circuit breaker guarding profile queries
const BreakerName = "postgres-users"

// Postgres reads profiles from the users table
type Postgres struct {
	db       *pgxpool.Pool
	breakers *breaker.Manager
}

// NewPostgres creates a Postgres-backed directory
func NewPostgres(db *pgxpool.Pool, breakers *breaker.Manager) *Postgres {
	if breakers == nil {
		breakers = breaker.NewManager(nil, nil)
	}
	return &Postgres{db: db, breakers: breakers}
}

func (p *Postgres) Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	ids = unique(ids)
	if len(ids) == 0 {
		return map[string]models.Profile{}, nil
	}

	start := time.Now()
	result, err := p.breakers.Execute(ctx, BreakerName, func() (interface{}, error) {
		rows, err := p.db.Query(ctx, `SELECT id, name, email FROM users WHERE id = ANY($1)`, ids)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		out := make(map[string]models.Profile, len(ids))
		for rows.Next() {
			var pr models.Profile
			if err := rows.Scan(&pr.ID, &pr.Name, &pr.Email); err != nil {
				return nil, err
			}
			out[pr.ID] = pr
		}
		return out, rows.Err()
	})
	monitoring.RecordDBQuery("profile_lookup", time.Since(start))
	if err != nil {
		if errors.Is(err, breaker.ErrOpen) {
			return nil, fmt.Errorf("profile directory unavailable: %w", err)
		}
		return nil, fmt.Errorf("failed to look up profiles: %w", err)
	}
	return result.(map[string]models.Profile), nil
}
