package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSkill builds a listing created at the given offset from a fixed epoch
func newSkill(owner, category string, offset time.Duration) *models.Skill {
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(offset)
	return &models.Skill{
		ID:               uuid.New(),
		Owner:            owner,
		Title:            "Guitar basics",
		Description:      "Chords and strumming",
		Category:         category,
		Requests:         []models.Request{},
		AcceptedLearners: []string{},
		Feedbacks:        []models.Feedback{},
		Version:          1,
		CreatedAt:        created,
		UpdatedAt:        created,
	}
}

func addRequest(user string) skill.MutateFunc {
	return func(s *models.Skill) (bool, error) {
		if s.RequestFrom(user) >= 0 {
			return false, nil
		}
		now := time.Now().UTC()
		s.Requests = append(s.Requests, models.Request{
			ID:        uuid.New(),
			User:      user,
			Status:    models.RequestStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
		return true, nil
	}
}

// runRepositoryContract exercises behaviour every skill store must share
func runRepositoryContract(t *testing.T, newRepo func(t *testing.T) skill.Repository) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		repo := newRepo(t)
		s := newSkill("owner-a", "music", 0)
		require.NoError(t, repo.Create(ctx, s))

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, s.Title, got.Title)
		assert.Equal(t, "owner-a", got.Owner)
		assert.Equal(t, 1, got.Version)
		assert.Empty(t, got.Requests)
	})

	t.Run("get missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, skill.ErrSkillNotFound)
	})

	t.Run("update bumps version only on change", func(t *testing.T) {
		repo := newRepo(t)
		s := newSkill("owner-a", "music", 0)
		require.NoError(t, repo.Create(ctx, s))

		updated, err := repo.Update(ctx, s.ID, addRequest("learner-b"))
		require.NoError(t, err)
		assert.Equal(t, 2, updated.Version)
		require.Len(t, updated.Requests, 1)

		same, err := repo.Update(ctx, s.ID, addRequest("learner-b"))
		require.NoError(t, err)
		assert.Equal(t, 2, same.Version)
		assert.Len(t, same.Requests, 1)
	})

	t.Run("update error leaves document untouched", func(t *testing.T) {
		repo := newRepo(t)
		s := newSkill("owner-a", "music", 0)
		require.NoError(t, repo.Create(ctx, s))

		boom := errors.New("boom")
		_, err := repo.Update(ctx, s.ID, func(s *models.Skill) (bool, error) {
			s.Title = "changed"
			return true, boom
		})
		assert.ErrorIs(t, err, boom)

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		assert.Equal(t, "Guitar basics", got.Title)
		assert.Equal(t, 1, got.Version)
	})

	t.Run("update missing", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Update(ctx, uuid.New(), addRequest("learner-b"))
		assert.ErrorIs(t, err, skill.ErrSkillNotFound)
	})

	t.Run("concurrent updates are serialized", func(t *testing.T) {
		repo := newRepo(t)
		s := newSkill("owner-a", "music", 0)
		require.NoError(t, repo.Create(ctx, s))

		learners := []string{"l1", "l2", "l3", "l4", "l5", "l6", "l7", "l8"}
		var wg sync.WaitGroup
		for _, l := range learners {
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func(user string) {
					defer wg.Done()
					// Conflicts past the retry budget are acceptable, lost writes are not
					_, err := repo.Update(ctx, s.ID, addRequest(user))
					if err != nil && !errors.Is(err, skill.ErrConcurrentUpdate) {
						t.Errorf("unexpected error: %v", err)
					}
				}(l)
			}
		}
		wg.Wait()

		got, err := repo.Get(ctx, s.ID)
		require.NoError(t, err)
		seen := map[string]bool{}
		for _, r := range got.Requests {
			assert.False(t, seen[r.User], "duplicate request for %s", r.User)
			seen[r.User] = true
		}
		assert.Equal(t, len(got.Requests)+1, got.Version)
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		s := newSkill("owner-a", "music", 0)
		require.NoError(t, repo.Create(ctx, s))

		require.NoError(t, repo.Delete(ctx, s.ID))
		_, err := repo.Get(ctx, s.ID)
		assert.ErrorIs(t, err, skill.ErrSkillNotFound)
		assert.ErrorIs(t, repo.Delete(ctx, s.ID), skill.ErrSkillNotFound)
	})

	t.Run("list orders newest first and filters", func(t *testing.T) {
		repo := newRepo(t)
		older := newSkill("owner-a", "music", 0)
		newer := newSkill("owner-b", "cooking", time.Hour)
		require.NoError(t, repo.Create(ctx, older))
		require.NoError(t, repo.Create(ctx, newer))

		all, err := repo.List(ctx, skill.ListFilter{})
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, newer.ID, all[0].ID)
		assert.Equal(t, older.ID, all[1].ID)

		music, err := repo.List(ctx, skill.ListFilter{Category: "music"})
		require.NoError(t, err)
		require.Len(t, music, 1)
		assert.Equal(t, older.ID, music[0].ID)
	})

	t.Run("request views", func(t *testing.T) {
		repo := newRepo(t)
		requested := newSkill("owner-a", "music", 0)
		quiet := newSkill("owner-a", "music", time.Minute)
		require.NoError(t, repo.Create(ctx, requested))
		require.NoError(t, repo.Create(ctx, quiet))
		_, err := repo.Update(ctx, requested.ID, addRequest("learner-b"))
		require.NoError(t, err)

		sent, err := repo.ListByRequester(ctx, "learner-b")
		require.NoError(t, err)
		require.Len(t, sent, 1)
		assert.Equal(t, requested.ID, sent[0].ID)

		none, err := repo.ListByRequester(ctx, "learner-c")
		require.NoError(t, err)
		assert.Empty(t, none)

		received, err := repo.ListReceived(ctx, "owner-a")
		require.NoError(t, err)
		require.Len(t, received, 1)
		assert.Equal(t, requested.ID, received[0].ID)
	})
}
