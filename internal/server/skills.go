package server

import (
	"errors"
	"io"
	"net/http"

	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/aimerfeng/SkillStage/internal/middleware"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// skillID parses the :id parameter. A malformed id cannot name a skill, so
// it is reported as not found.
func skillID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.RespondWithError(c, apierrors.ErrSkillNotFoundError)
		return uuid.Nil, false
	}
	return id, true
}

// handleCreateSkill handles POST /api/skills
func (s *APIServer) handleCreateSkill(c *gin.Context) {
	var req skill.CreateSkillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	owner := middleware.GetUserIDFromContext(c)
	sk, err := s.skills.Create(c.Request.Context(), owner, &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newSkillResponse(sk, s.resolveProfiles(c.Request.Context(), sk)))
}

// handleListSkills handles GET /api/skills
func (s *APIServer) handleListSkills(c *gin.Context) {
	skills, err := s.skills.List(c.Request.Context(), skill.ListFilter{
		Category: c.Query("category"),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSkillResponses(skills, s.resolveProfiles(c.Request.Context(), skills...)))
}

// handleGetSkill handles GET /api/skills/:id
func (s *APIServer) handleGetSkill(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	sk, err := s.skills.Get(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSkillResponse(sk, s.resolveProfiles(c.Request.Context(), sk)))
}

// handleUpdateSkill handles PUT /api/skills/:id
func (s *APIServer) handleUpdateSkill(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	var req skill.UpdateSkillRequest
	// An empty body updates nothing
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	sk, err := s.skills.Update(c.Request.Context(), id, middleware.GetUserIDFromContext(c), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, newSkillResponse(sk, s.resolveProfiles(c.Request.Context(), sk)))
}

// handleDeleteSkill handles DELETE /api/skills/:id
func (s *APIServer) handleDeleteSkill(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	if err := s.skills.Delete(c.Request.Context(), id, middleware.GetUserIDFromContext(c)); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Skill deleted"})
}

// handleToggleRequest handles PATCH /api/skills/:id/request
func (s *APIServer) handleToggleRequest(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	sk, action, err := s.skills.ToggleRequest(c.Request.Context(), id, middleware.GetUserIDFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	message := "Request sent successfully"
	if action == skill.ToggleWithdrawn {
		message = "Request withdrawn successfully"
	}
	s.respondRequests(c, sk, message)
}

// handleWithdrawRequest handles PATCH /api/skills/:id/withdraw
func (s *APIServer) handleWithdrawRequest(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	sk, err := s.skills.WithdrawRequest(c.Request.Context(), id, middleware.GetUserIDFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	s.respondRequests(c, sk, "Withdrawn successfully")
}

// handleAcceptRequest handles PATCH /api/skills/:id/request/:requestId/accept
func (s *APIServer) handleAcceptRequest(c *gin.Context) {
	s.resolveRequest(c, models.RequestStatusAccepted, "Request accepted")
}

// handleRejectRequest handles PATCH /api/skills/:id/request/:requestId/reject
func (s *APIServer) handleRejectRequest(c *gin.Context) {
	s.resolveRequest(c, models.RequestStatusRejected, "Request rejected")
}

func (s *APIServer) resolveRequest(c *gin.Context, decision models.RequestStatus, message string) {
	id, ok := skillID(c)
	if !ok {
		return
	}
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		middleware.RespondWithError(c, apierrors.ErrRequestNotFoundError)
		return
	}

	sk, err := s.skills.ResolveRequest(c.Request.Context(), id, requestID, middleware.GetUserIDFromContext(c), decision)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	s.respondRequests(c, sk, message)
}

func (s *APIServer) respondRequests(c *gin.Context, sk *models.Skill, message string) {
	c.JSON(http.StatusOK, RequestsMessage{
		Message:  message,
		Requests: newRequestResponses(sk.Requests, s.resolveProfiles(c.Request.Context(), sk)),
	})
}

// handleSubmitFeedback handles POST /api/skills/:id/feedback
func (s *APIServer) handleSubmitFeedback(c *gin.Context) {
	id, ok := skillID(c)
	if !ok {
		return
	}

	var req skill.SubmitFeedbackRequest
	// A missing body is judged by its missing rating
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return
	}

	if _, err := s.skills.SubmitFeedback(c.Request.Context(), id, middleware.GetUserIDFromContext(c), &req); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"message": "Feedback submitted successfully"})
}

// handleMyRequests handles GET /api/skills/my-requests
func (s *APIServer) handleMyRequests(c *gin.Context) {
	overview, err := s.skills.MyRequests(c.Request.Context(), middleware.GetUserIDFromContext(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	all := append(append([]*models.Skill{}, overview.Sent...), overview.Received...)
	p := s.resolveProfiles(c.Request.Context(), all...)
	c.JSON(http.StatusOK, MyRequestsResponse{
		Sent:     newSkillResponses(overview.Sent, p),
		Received: newSkillResponses(overview.Received, p),
	})
}
