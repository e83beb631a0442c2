package breaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aimerfeng/SkillStage/internal/monitoring"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// ErrOpen is returned when a breaker rejects a call
var ErrOpen = errors.New("circuit breaker is open")

// Config holds configuration for circuit breakers
type Config struct {
	// MaxRequests is the number of requests allowed through while half-open
	MaxRequests uint32
	// Interval is the cyclic period of the closed state after which counts reset
	Interval time.Duration
	// Timeout is how long the breaker stays open before going half-open
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failures that opens the circuit
	FailureThreshold uint32
}

// DefaultConfig returns default circuit breaker configuration
func DefaultConfig() *Config {
	return &Config{
		MaxRequests:      3,
		Interval:         60 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	}
}

// State is the textual state of a breaker
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// Status contains status information about a circuit breaker
type Status struct {
	Name         string `json:"name"`
	State        State  `json:"state"`
	Requests     uint32 `json:"requests"`
	TotalSuccess uint32 `json:"total_success"`
	TotalFailure uint32 `json:"total_failure"`
}

// Manager manages named circuit breakers around a backend
type Manager struct {
	breakers map[string]*gobreaker.CircuitBreaker
	config   *Config
	// expected reports errors that are normal outcomes and must not trip
	expected func(error) bool
	mu       sync.RWMutex
}

// NewManager creates a new circuit breaker manager. expected may be nil.
func NewManager(config *Config, expected func(error) bool) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if expected == nil {
		expected = func(error) bool { return false }
	}
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		config:   config,
		expected: expected,
	}
}

// Get returns or creates the breaker with the given name
func (m *Manager) Get(name string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if exists {
		return cb
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cb, exists = m.breakers[name]; exists {
		return cb
	}

	cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: m.config.MaxRequests,
		Interval:    m.config.Interval,
		Timeout:     m.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= m.config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn().
				Str("circuit_breaker", name).
				Str("from", string(stateOf(from))).
				Str("to", string(stateOf(to))).
				Msg("Circuit breaker state changed")
			monitoring.SetCircuitBreakerState(name, gaugeValue(to))
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Callers giving up is not a backend fault
			if errors.Is(err, context.Canceled) {
				return true
			}
			return m.expected(err)
		},
	})
	monitoring.SetCircuitBreakerState(name, 0)

	m.breakers[name] = cb
	return cb
}

// Execute runs fn under the named breaker
func (m *Manager) Execute(ctx context.Context, name string, fn func() (interface{}, error)) (interface{}, error) {
	cb := m.Get(name)

	result, err := cb.Execute(func() (interface{}, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return fn()
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			log.Warn().Str("circuit_breaker", name).Msg("Circuit breaker is open, rejecting call")
			return nil, ErrOpen
		}
		return nil, err
	}
	return result, nil
}

// Status returns the status of a breaker, or nil if it was never used
func (m *Manager) Status(name string) *Status {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	if !exists {
		return nil
	}

	counts := cb.Counts()
	return &Status{
		Name:         name,
		State:        stateOf(cb.State()),
		Requests:     counts.Requests,
		TotalSuccess: counts.TotalSuccesses,
		TotalFailure: counts.TotalFailures,
	}
}

// IsOpen checks if the named breaker is open
func (m *Manager) IsOpen(name string) bool {
	m.mu.RLock()
	cb, exists := m.breakers[name]
	m.mu.RUnlock()
	return exists && cb.State() == gobreaker.StateOpen
}

func stateOf(state gobreaker.State) State {
	switch state {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

func gaugeValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 0.5
	default:
		return 0
	}
}
