package server

import (
	"errors"
	"fmt"
	"strings"

	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/middleware"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// respondServiceError maps a skill service error onto the API error table
func respondServiceError(c *gin.Context, err error) {
	var apiErr *apierrors.APIError
	switch {
	case errors.Is(err, skill.ErrSkillNotFound):
		apiErr = apierrors.ErrSkillNotFoundError
	case errors.Is(err, skill.ErrRequestNotFound):
		apiErr = apierrors.ErrRequestNotFoundError
	case errors.Is(err, skill.ErrNotOwner):
		apiErr = apierrors.ErrForbiddenError.WithMessage("Only the skill owner can do this")
	case errors.Is(err, skill.ErrSelfRequest):
		apiErr = apierrors.ErrSelfRequestError
	case errors.Is(err, skill.ErrRequestResolved):
		apiErr = apierrors.ErrRequestResolvedError
	case errors.Is(err, skill.ErrInvalidRating):
		apiErr = apierrors.NewValidationError(map[string]string{"rating": err.Error()})
	case errors.Is(err, skill.ErrInvalidSkill):
		apiErr = apierrors.NewValidationError(err.Error())
	case errors.Is(err, skill.ErrInvalidDecision):
		apiErr = apierrors.NewInvalidRequestError(err.Error())
	case errors.Is(err, skill.ErrFeedbackExists):
		apiErr = apierrors.ErrFeedbackExistsError
	case errors.Is(err, skill.ErrFeedbackNotEligible):
		apiErr = apierrors.ErrFeedbackNotEligibleError
	case errors.Is(err, skill.ErrConcurrentUpdate):
		apiErr = apierrors.ErrConflictError
	case errors.Is(err, skill.ErrStoreUnavailable):
		apiErr = apierrors.ErrServiceUnavailableError
	default:
		logging.LogError(err, middleware.GetRequestIDFromContext(c), "api", c.FullPath())
		_ = c.Error(err)
		apiErr = apierrors.ErrInternalServerError
	}
	middleware.RespondWithError(c, apiErr)
}

// respondBindError reports a request body that could not be bound
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		details := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			details[lowerFirst(fe.Field())] = describeFieldError(fe)
		}
		middleware.RespondWithError(c, apierrors.NewValidationError(details))
		return
	}
	middleware.RespondWithError(c, apierrors.NewInvalidRequestError("Malformed request body"))
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	default:
		return "is invalid"
	}
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}
