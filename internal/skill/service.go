package skill

import (
	"time"

	"github.com/aimerfeng/SkillStage/internal/config"
	"github.com/aimerfeng/SkillStage/internal/logging"
	"github.com/rs/zerolog"
)

// TerminalPolicy decides what toggle and withdraw do to a resolved request
type TerminalPolicy string

const (
	// PolicySticky keeps accepted and rejected requests in place
	PolicySticky TerminalPolicy = config.TerminalPolicySticky
	// PolicyReference lets the requester remove a request in any state
	PolicyReference TerminalPolicy = config.TerminalPolicyReference
)

// Service implements the skill listing, request lifecycle and feedback rules
type Service struct {
	repo                    Repository
	policy                  TerminalPolicy
	requireAcceptedFeedback bool
	now                     func() time.Time
	logger                  zerolog.Logger
}

// NewService creates a new skill service
func NewService(repo Repository, cfg *config.SkillConfig) *Service {
	policy := PolicySticky
	requireAccepted := true
	if cfg != nil {
		if cfg.TerminalPolicy == config.TerminalPolicyReference {
			policy = PolicyReference
		}
		requireAccepted = cfg.RequireAcceptedFeedback
	}
	return &Service{
		repo:                    repo,
		policy:                  policy,
		requireAcceptedFeedback: requireAccepted,
		now:                     func() time.Time { return time.Now().UTC() },
		logger:                  logging.NewLogger("skill"),
	}
}

// Policy returns the terminal request policy in effect
func (s *Service) Policy() TerminalPolicy {
	return s.policy
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
