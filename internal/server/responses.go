package server

import (
	"context"
	"time"

	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/google/uuid"
)

// SkillResponse is the public representation of a skill listing
type SkillResponse struct {
	ID               uuid.UUID          `json:"id"`
	Owner            models.Profile     `json:"owner"`
	Title            string             `json:"title"`
	Description      string             `json:"description"`
	Category         string             `json:"category"`
	Requests         []RequestResponse  `json:"requests"`
	AcceptedLearners []string           `json:"acceptedLearners"`
	ApprovedLearners []string           `json:"approvedLearners"`
	Feedbacks        []FeedbackResponse `json:"feedbacks"`
	AverageRating    *string            `json:"averageRating"`
	TotalRatings     int                `json:"totalRatings"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// RequestResponse is a request with its requester resolved
type RequestResponse struct {
	ID        uuid.UUID            `json:"id"`
	User      models.Profile       `json:"user"`
	Status    models.RequestStatus `json:"status"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

// FeedbackResponse is a feedback entry
type FeedbackResponse struct {
	ID        uuid.UUID `json:"id"`
	User      string    `json:"user"`
	Rating    int       `json:"rating"`
	Comment   *string   `json:"comment,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RequestsMessage is the body of request lifecycle responses
type RequestsMessage struct {
	Message  string            `json:"message"`
	Requests []RequestResponse `json:"requests"`
}

// MyRequestsResponse lists both sides of a user's requests
type MyRequestsResponse struct {
	Sent     []SkillResponse `json:"sent"`
	Received []SkillResponse `json:"received"`
}

// profiles maps identities to profiles. Identities missing from the
// directory resolve to a profile carrying only the id.
type profiles map[string]models.Profile

func (p profiles) get(id string) models.Profile {
	if pr, ok := p[id]; ok {
		return pr
	}
	return models.Profile{ID: id}
}

// resolveProfiles looks up the owner and requesters of skills. A failing
// directory degrades to id-only profiles.
func (s *APIServer) resolveProfiles(ctx context.Context, skills ...*models.Skill) profiles {
	var ids []string
	for _, sk := range skills {
		ids = append(ids, sk.Owner)
		for _, r := range sk.Requests {
			ids = append(ids, r.User)
		}
	}
	if len(ids) == 0 {
		return profiles{}
	}

	found, err := s.profiles.Lookup(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Int("ids", len(ids)).Msg("Profile lookup failed, returning ids only")
		return profiles{}
	}
	return found
}

func newRequestResponses(reqs []models.Request, p profiles) []RequestResponse {
	out := make([]RequestResponse, 0, len(reqs))
	for _, r := range reqs {
		out = append(out, RequestResponse{
			ID:        r.ID,
			User:      p.get(r.User),
			Status:    r.Status,
			CreatedAt: r.CreatedAt,
			UpdatedAt: r.UpdatedAt,
		})
	}
	return out
}

func newSkillResponse(sk *models.Skill, p profiles) SkillResponse {
	summary := skill.Summarize(sk)

	feedbacks := make([]FeedbackResponse, 0, len(sk.Feedbacks))
	for _, f := range sk.Feedbacks {
		feedbacks = append(feedbacks, FeedbackResponse{
			ID:        f.ID,
			User:      f.User,
			Rating:    f.Rating,
			Comment:   f.Comment,
			CreatedAt: f.CreatedAt,
		})
	}

	accepted := sk.AcceptedLearners
	if accepted == nil {
		accepted = []string{}
	}

	return SkillResponse{
		ID:               sk.ID,
		Owner:            p.get(sk.Owner),
		Title:            sk.Title,
		Description:      sk.Description,
		Category:         sk.Category,
		Requests:         newRequestResponses(sk.Requests, p),
		AcceptedLearners: accepted,
		ApprovedLearners: sk.ApprovedLearners(),
		Feedbacks:        feedbacks,
		AverageRating:    summary.FormatAverage(),
		TotalRatings:     summary.Total,
		CreatedAt:        sk.CreatedAt,
		UpdatedAt:        sk.UpdatedAt,
	}
}

func newSkillResponses(skills []*models.Skill, p profiles) []SkillResponse {
	out := make([]SkillResponse, 0, len(skills))
	for _, sk := range skills {
		out = append(out, newSkillResponse(sk, p))
	}
	return out
}
