package models

import (
	"time"

	"github.com/google/uuid"
)

// Skill represents a skill listing offered by its owner.
// Requests, resolved learners and feedbacks are embedded so a listing is
// always read and written as one document.
type Skill struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	Owner            string     `json:"owner" db:"owner_id"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description" db:"description"`
	Category         string     `json:"category" db:"category"`
	Requests         []Request  `json:"requests" db:"requests"`
	AcceptedLearners []string   `json:"acceptedLearners" db:"accepted_learners"`
	Feedbacks        []Feedback `json:"feedbacks" db:"feedbacks"`
	Version          int        `json:"version" db:"version"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}

// Clone returns a deep copy of the skill
func (s *Skill) Clone() *Skill {
	if s == nil {
		return nil
	}
	out := *s
	out.Requests = append([]Request(nil), s.Requests...)
	out.AcceptedLearners = append([]string(nil), s.AcceptedLearners...)
	out.Feedbacks = make([]Feedback, len(s.Feedbacks))
	for i, f := range s.Feedbacks {
		out.Feedbacks[i] = f
		if f.Comment != nil {
			c := *f.Comment
			out.Feedbacks[i].Comment = &c
		}
	}
	if s.Feedbacks == nil {
		out.Feedbacks = nil
	}
	return &out
}

// RequestFrom returns the index of the request held by user, or -1
func (s *Skill) RequestFrom(user string) int {
	for i, r := range s.Requests {
		if r.User == user {
			return i
		}
	}
	return -1
}

// RequestByID returns the index of the request with the given id, or -1
func (s *Skill) RequestByID(id uuid.UUID) int {
	for i, r := range s.Requests {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// FeedbackFrom reports whether user already left feedback
func (s *Skill) FeedbackFrom(user string) bool {
	for _, f := range s.Feedbacks {
		if f.User == user {
			return true
		}
	}
	return false
}

// HasAcceptedLearner reports whether user is in the resolved learner set
func (s *Skill) HasAcceptedLearner(user string) bool {
	for _, u := range s.AcceptedLearners {
		if u == user {
			return true
		}
	}
	return false
}

// ApprovedLearners lists requesters whose request was accepted
func (s *Skill) ApprovedLearners() []string {
	out := []string{}
	for _, r := range s.Requests {
		if r.Status == RequestStatusAccepted {
			out = append(out, r.User)
		}
	}
	return out
}
