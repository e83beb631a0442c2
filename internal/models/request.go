package models

import (
	"time"

	"github.com/google/uuid"
)

// RequestStatus represents the lifecycle status of a learning request
type RequestStatus string

const (
	RequestStatusPending  RequestStatus = "pending"
	RequestStatusAccepted RequestStatus = "accepted"
	RequestStatusRejected RequestStatus = "rejected"
)

// IsTerminal reports whether the status can only be set by the owner
func (s RequestStatus) IsTerminal() bool {
	return s == RequestStatusAccepted || s == RequestStatusRejected
}

// Valid reports whether s is a known status
func (s RequestStatus) Valid() bool {
	return s == RequestStatusPending || s.IsTerminal()
}

// Request is a learner's interest in a skill, embedded in Skill
type Request struct {
	ID        uuid.UUID     `json:"id"`
	User      string        `json:"user"`
	Status    RequestStatus `json:"status"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}
