package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/google/uuid"
)

// memoryDoc is one stored skill with its own mutation lock
type memoryDoc struct {
	mu    sync.Mutex
	skill *models.Skill
	gone  bool
}

// Memory is an in-process skill store. Each document carries its own lock,
// so mutations of different skills never wait on each other; the index lock
// is only held to find, insert or remove documents.
type Memory struct {
	mu   sync.RWMutex
	docs map[uuid.UUID]*memoryDoc
	now  func() time.Time
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[uuid.UUID]*memoryDoc),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) lookup(id uuid.UUID) (*memoryDoc, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	return doc, ok
}

// Create stores a new skill
func (m *Memory) Create(ctx context.Context, s *models.Skill) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[s.ID] = &memoryDoc{skill: s.Clone()}
	return nil
}

// Get returns a copy of the skill
func (m *Memory) Get(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	doc, ok := m.lookup(id)
	if !ok {
		return nil, skill.ErrSkillNotFound
	}
	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.gone {
		return nil, skill.ErrSkillNotFound
	}
	return doc.skill.Clone(), nil
}

// Update applies fn to a copy of the skill and commits it while holding
// the document lock
func (m *Memory) Update(ctx context.Context, id uuid.UUID, fn skill.MutateFunc) (*models.Skill, error) {
	doc, ok := m.lookup(id)
	if !ok {
		return nil, skill.ErrSkillNotFound
	}

	doc.mu.Lock()
	defer doc.mu.Unlock()
	if doc.gone {
		return nil, skill.ErrSkillNotFound
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	working := doc.skill.Clone()
	changed, err := fn(working)
	if err != nil {
		return nil, err
	}
	if !changed {
		return doc.skill.Clone(), nil
	}

	working.Version = doc.skill.Version + 1
	working.UpdatedAt = m.now()
	doc.skill = working
	return working.Clone(), nil
}

// Delete removes the skill
func (m *Memory) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	doc, ok := m.docs[id]
	if ok {
		delete(m.docs, id)
	}
	m.mu.Unlock()
	if !ok {
		return skill.ErrSkillNotFound
	}

	// Wait out any in-flight mutation and fence later ones
	doc.mu.Lock()
	doc.gone = true
	doc.mu.Unlock()
	return nil
}

// List returns all skills, newest first
func (m *Memory) List(ctx context.Context, filter skill.ListFilter) ([]*models.Skill, error) {
	return m.collect(func(s *models.Skill) bool {
		return filter.Category == "" || s.Category == filter.Category
	}), nil
}

// ListByRequester returns skills on which user holds a request
func (m *Memory) ListByRequester(ctx context.Context, user string) ([]*models.Skill, error) {
	return m.collect(func(s *models.Skill) bool {
		return s.RequestFrom(user) >= 0
	}), nil
}

// ListReceived returns skills owned by owner that have requests
func (m *Memory) ListReceived(ctx context.Context, owner string) ([]*models.Skill, error) {
	return m.collect(func(s *models.Skill) bool {
		return s.Owner == owner && len(s.Requests) > 0
	}), nil
}

func (m *Memory) collect(match func(*models.Skill) bool) []*models.Skill {
	m.mu.RLock()
	docs := make([]*memoryDoc, 0, len(m.docs))
	for _, doc := range m.docs {
		docs = append(docs, doc)
	}
	m.mu.RUnlock()

	out := []*models.Skill{}
	for _, doc := range docs {
		doc.mu.Lock()
		if !doc.gone && match(doc.skill) {
			out = append(out, doc.skill.Clone())
		}
		doc.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID.String() < out[j].ID.String()
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
