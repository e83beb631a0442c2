package profile

import (
	"context"
	"sync"

	"github.com/aimerfeng/SkillStage/internal/models"
)

// Directory resolves identity references to public profiles. Unknown ids
// are simply absent from the result.
type Directory interface {
	Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error)
}

// Memory is a Directory backed by a map
type Memory struct {
	mu       sync.RWMutex
	profiles map[string]models.Profile
}

// NewMemory creates a directory seeded with profiles
func NewMemory(profiles ...models.Profile) *Memory {
	m := &Memory{profiles: make(map[string]models.Profile, len(profiles))}
	for _, p := range profiles {
		m.profiles[p.ID] = p
	}
	return m
}

// Put adds or replaces a profile
func (m *Memory) Put(p models.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *Memory) Lookup(ctx context.Context, ids []string) (map[string]models.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]models.Profile, len(ids))
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// unique drops empty and repeated ids, keeping first-seen order
func unique(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
