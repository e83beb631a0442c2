package models

import (
	"time"

	"github.com/google/uuid"
)

// Feedback is a learner's one-time rating of a skill, embedded in Skill
type Feedback struct {
	ID        uuid.UUID `json:"id"`
	User      string    `json:"user"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
