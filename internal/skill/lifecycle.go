package skill

import (
	"context"
	"errors"

	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/google/uuid"
)

// ToggleAction reports what a toggle did
type ToggleAction string

const (
	ToggleSent      ToggleAction = "sent"
	ToggleWithdrawn ToggleAction = "withdrawn"
)

const stateNone = "none"

// ToggleRequest creates a pending request for caller, or removes the one
// caller already holds. Owners cannot request their own skill.
func (s *Service) ToggleRequest(ctx context.Context, id uuid.UUID, caller string) (*models.Skill, ToggleAction, error) {
	var (
		action ToggleAction
		from   string
	)

	updated, err := s.repo.Update(ctx, id, func(sk *models.Skill) (bool, error) {
		if sk.Owner == caller {
			return false, ErrSelfRequest
		}

		idx := sk.RequestFrom(caller)
		if idx < 0 {
			now := s.now()
			sk.Requests = append(sk.Requests, models.Request{
				ID:        uuid.New(),
				User:      caller,
				Status:    models.RequestStatusPending,
				CreatedAt: now,
				UpdatedAt: now,
			})
			action, from = ToggleSent, stateNone
			return true, nil
		}

		current := sk.Requests[idx].Status
		if current.IsTerminal() && s.policy == PolicySticky {
			return false, ErrRequestResolved
		}
		sk.Requests = removeRequest(sk.Requests, idx)
		action, from = ToggleWithdrawn, string(current)
		return true, nil
	})
	monitoring.RecordSkillMutation("toggle_request", outcome(err))
	if err != nil {
		return nil, "", err
	}

	to := string(models.RequestStatusPending)
	if action == ToggleWithdrawn {
		to = stateNone
	}
	monitoring.RecordRequestTransition(from, to)
	logging.LogSkillEvent(id.String(), caller, "request_"+string(action), from+"->"+to)

	return updated, action, nil
}

// WithdrawRequest removes the caller's request. It is a no-op when the
// caller holds none.
func (s *Service) WithdrawRequest(ctx context.Context, id uuid.UUID, caller string) (*models.Skill, error) {
	var from string

	updated, err := s.repo.Update(ctx, id, func(sk *models.Skill) (bool, error) {
		idx := sk.RequestFrom(caller)
		if idx < 0 {
			from = ""
			s.logger.Debug().Str("skill_id", id.String()).Str("user_id", caller).Msg("Withdraw without request")
			return false, nil
		}

		current := sk.Requests[idx].Status
		if current.IsTerminal() && s.policy == PolicySticky {
			return false, ErrRequestResolved
		}
		sk.Requests = removeRequest(sk.Requests, idx)
		from = string(current)
		return true, nil
	})
	monitoring.RecordSkillMutation("withdraw_request", outcome(err))
	if err != nil {
		return nil, err
	}

	if from != "" {
		monitoring.RecordRequestTransition(from, stateNone)
		logging.LogSkillEvent(id.String(), caller, "request_withdrawn", from+"->"+stateNone)
	}
	return updated, nil
}

// ResolveRequest lets the owner accept or reject a request. The requester
// joins AcceptedLearners whichever decision is taken.
func (s *Service) ResolveRequest(ctx context.Context, id, requestID uuid.UUID, caller string, decision models.RequestStatus) (*models.Skill, error) {
	if !decision.IsTerminal() {
		return nil, ErrInvalidDecision
	}

	var from string

	updated, err := s.repo.Update(ctx, id, func(sk *models.Skill) (bool, error) {
		if sk.Owner != caller {
			return false, ErrNotOwner
		}

		idx := sk.RequestByID(requestID)
		if idx < 0 {
			return false, ErrRequestNotFound
		}

		req := &sk.Requests[idx]
		from = string(req.Status)
		changed := false

		if req.Status != decision {
			if req.Status.IsTerminal() && s.policy == PolicySticky {
				return false, ErrRequestResolved
			}
			req.Status = decision
			req.UpdatedAt = s.now()
			changed = true
		}

		if !sk.HasAcceptedLearner(req.User) {
			sk.AcceptedLearners = append(sk.AcceptedLearners, req.User)
			changed = true
		}
		return changed, nil
	})
	monitoring.RecordSkillMutation("resolve_request", outcome(err))
	if err != nil {
		if errors.Is(err, ErrNotOwner) {
			logging.LogSecurityEvent("skill_resolve_forbidden", caller, "", id.String())
		}
		return nil, err
	}

	if from != string(decision) {
		monitoring.RecordRequestTransition(from, string(decision))
	}
	logging.LogSkillEvent(id.String(), caller, "request_"+string(decision), requestID.String())

	return updated, nil
}

func removeRequest(reqs []models.Request, idx int) []models.Request {
	out := make([]models.Request, 0, len(reqs)-1)
	out = append(out, reqs[:idx]...)
	return append(out, reqs[idx+1:]...)
}
