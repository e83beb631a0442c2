package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aimerfeng/SkillStage/internal/config"
	apierrors "github.com/aimerfeng/SkillStage/internal/errors"
	"github.com/aimerfeng/SkillStage/internal/middleware"
	"github.com/aimerfeng/SkillStage/internal/models"
	"github.com/aimerfeng/SkillStage/internal/profile"
	"github.com/aimerfeng/SkillStage/internal/repository"
	"github.com/aimerfeng/SkillStage/internal/skill"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const testSecret = "test-secret-key-for-jwt-testing-32chars"

// Identities used across scenarios: A owns skills, B and C learn
const (
	userA = "user-a"
	userB = "user-b"
	userC = "user-c"
)

// Helper function to create a test JWT token
func createTestJWTToken(userID string) string {
	now := time.Now()
	claims := &middleware.Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "access",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(15 * time.Minute)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, _ := token.SignedString([]byte(testSecret))
	return tokenString
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	repo    *repository.Memory
}

func newTestServer(t *testing.T, skillCfg config.SkillConfig) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test", Name: "skillstage"},
		JWT:    config.JWTConfig{Secret: testSecret},
		Skill:  skillCfg,
	}

	repo := repository.NewMemory()
	profiles := profile.NewMemory(
		models.Profile{ID: userA, Name: "Alice", Email: "alice@example.com"},
		models.Profile{ID: userB, Name: "Bob", Email: "bob@example.com"},
	)
	srv := NewAPIServer(cfg, Dependencies{
		Skills:   skill.NewService(repo, &cfg.Skill),
		Profiles: profiles,
		Checks: map[string]HealthCheck{
			"store": func(ctx context.Context) error { return nil },
		},
	})
	return &testServer{t: t, handler: srv.Router(), repo: repo}
}

func defaultSkillConfig() config.SkillConfig {
	return config.SkillConfig{TerminalPolicy: config.TerminalPolicySticky, RequireAcceptedFeedback: true}
}

func (ts *testServer) do(method, path, user string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer "+createTestJWTToken(user))
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func requireErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code apierrors.ErrorCode) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	resp := decode[apierrors.ErrorResponse](t, w)
	assert.Equal(t, code, resp.Error.Code)
	assert.NotEmpty(t, resp.RequestID)
	assert.NotEmpty(t, resp.Error.Timestamp)
}

func (ts *testServer) createSkill(owner string) SkillResponse {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/api/skills", owner, map[string]string{
		"title":       "Guitar basics",
		"description": "Chords and strumming",
		"category":    "music",
	})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[SkillResponse](ts.t, w)
}

func (ts *testServer) getSkill(id string) SkillResponse {
	ts.t.Helper()
	w := ts.do(http.MethodGet, "/api/skills/"+id, "", nil)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return decode[SkillResponse](ts.t, w)
}

func (ts *testServer) toggle(id, user string) RequestsMessage {
	ts.t.Helper()
	w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request", user, nil)
	require.Equal(ts.t, http.StatusOK, w.Code, w.Body.String())
	return decode[RequestsMessage](ts.t, w)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	w := ts.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "healthy", body["status"])
}

func TestCreateSkill(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())

	sk := ts.createSkill(userA)
	assert.Equal(t, "Guitar basics", sk.Title)
	assert.Equal(t, models.Profile{ID: userA, Name: "Alice", Email: "alice@example.com"}, sk.Owner)
	assert.Empty(t, sk.Requests)
	assert.Nil(t, sk.AverageRating)
	assert.Zero(t, sk.TotalRatings)

	t.Run("requires auth", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/skills", "", map[string]string{"title": "x"})
		requireErrorCode(t, w, http.StatusUnauthorized, apierrors.ErrUnauthorized)
	})

	t.Run("requires title", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/skills", userA, map[string]string{"description": "no title"})
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrValidationFailed)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/skills", bytes.NewBufferString("{not json"))
		req.Header.Set("Authorization", "Bearer "+createTestJWTToken(userA))
		w := httptest.NewRecorder()
		ts.handler.ServeHTTP(w, req)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrInvalidRequest)
	})
}

func TestListAndGetSkills(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	first := ts.createSkill(userA)
	w := ts.do(http.MethodPost, "/api/skills", userC, map[string]string{"title": "Knife skills", "category": "cooking"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = ts.do(http.MethodGet, "/api/skills", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]SkillResponse](t, w), 2)

	w = ts.do(http.MethodGet, "/api/skills?category=music", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	music := decode[[]SkillResponse](t, w)
	require.Len(t, music, 1)
	assert.Equal(t, first.ID, music[0].ID)

	// Unknown identities render as id-only profiles
	w = ts.do(http.MethodGet, "/api/skills?category=cooking", "", nil)
	cooking := decode[[]SkillResponse](t, w)
	require.Len(t, cooking, 1)
	assert.Equal(t, models.Profile{ID: userC}, cooking[0].Owner)

	got := ts.getSkill(first.ID.String())
	assert.Equal(t, first.ID, got.ID)

	t.Run("unknown id", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/skills/8f1c6a6e-2c5e-4a53-9d55-1f0a3c2b7e11", "", nil)
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrSkillNotFound)
	})

	t.Run("malformed id", func(t *testing.T) {
		w := ts.do(http.MethodGet, "/api/skills/not-a-uuid", "", nil)
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrSkillNotFound)
	})
}

func TestUpdateSkill(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	path := "/api/skills/" + sk.ID.String()

	w := ts.do(http.MethodPut, path, userA, map[string]string{"title": "Advanced guitar", "category": ""})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[SkillResponse](t, w)
	assert.Equal(t, "Advanced guitar", updated.Title)
	// Empty fields keep the stored value
	assert.Equal(t, "music", updated.Category)
	assert.Equal(t, "Chords and strumming", updated.Description)

	w = ts.do(http.MethodPut, path, userB, map[string]string{"title": "Hijacked"})
	requireErrorCode(t, w, http.StatusForbidden, apierrors.ErrForbidden)
	assert.Equal(t, "Advanced guitar", ts.getSkill(sk.ID.String()).Title)
}

func TestDeleteSkill(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	path := "/api/skills/" + sk.ID.String()

	// B deletes A's skill: forbidden, skill unchanged
	w := ts.do(http.MethodDelete, path, userB, nil)
	requireErrorCode(t, w, http.StatusForbidden, apierrors.ErrForbidden)
	assert.Equal(t, sk.Title, ts.getSkill(sk.ID.String()).Title)

	w = ts.do(http.MethodDelete, path, userA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Skill deleted", decode[map[string]string](t, w)["message"])

	w = ts.do(http.MethodGet, path, "", nil)
	requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrSkillNotFound)
}

func TestToggleRequest(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()

	sent := ts.toggle(id, userB)
	assert.Equal(t, "Request sent successfully", sent.Message)
	require.Len(t, sent.Requests, 1)
	assert.Equal(t, models.RequestStatusPending, sent.Requests[0].Status)
	assert.Equal(t, "Bob", sent.Requests[0].User.Name)

	withdrawn := ts.toggle(id, userB)
	assert.Equal(t, "Request withdrawn successfully", withdrawn.Message)
	assert.Empty(t, withdrawn.Requests)

	t.Run("owner cannot request own skill", func(t *testing.T) {
		w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request", userA, nil)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrInvalidOperation)
		assert.Empty(t, ts.getSkill(id).Requests)
	})

	t.Run("missing skill", func(t *testing.T) {
		w := ts.do(http.MethodPatch, "/api/skills/8f1c6a6e-2c5e-4a53-9d55-1f0a3c2b7e11/request", userB, nil)
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrSkillNotFound)
	})
}

func TestToggleThenWithdraw(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()

	ts.toggle(id, userB)
	ts.toggle(id, userC)

	w := ts.do(http.MethodPatch, "/api/skills/"+id+"/withdraw", userC, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[RequestsMessage](t, w)
	assert.Equal(t, "Withdrawn successfully", resp.Message)
	require.Len(t, resp.Requests, 1)
	assert.Equal(t, userB, resp.Requests[0].User.ID)

	// Withdrawing again is a no-op
	w = ts.do(http.MethodPatch, "/api/skills/"+id+"/withdraw", userC, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[RequestsMessage](t, w).Requests, 1)
}

func TestResolveRequest(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()

	requestID := ts.toggle(id, userB).Requests[0].ID.String()
	acceptPath := "/api/skills/" + id + "/request/" + requestID + "/accept"
	rejectPath := "/api/skills/" + id + "/request/" + requestID + "/reject"

	t.Run("non-owner is forbidden", func(t *testing.T) {
		w := ts.do(http.MethodPatch, acceptPath, userC, nil)
		requireErrorCode(t, w, http.StatusForbidden, apierrors.ErrForbidden)
		assert.Equal(t, models.RequestStatusPending, ts.getSkill(id).Requests[0].Status)
	})

	t.Run("unknown request", func(t *testing.T) {
		w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request/8f1c6a6e-2c5e-4a53-9d55-1f0a3c2b7e11/accept", userA, nil)
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrRequestNotFound)

		w = ts.do(http.MethodPatch, "/api/skills/"+id+"/request/garbage/accept", userA, nil)
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrRequestNotFound)
	})

	w := ts.do(http.MethodPatch, acceptPath, userA, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[RequestsMessage](t, w)
	assert.Equal(t, "Request accepted", resp.Message)
	assert.Equal(t, models.RequestStatusAccepted, resp.Requests[0].Status)

	got := ts.getSkill(id)
	assert.Equal(t, []string{userB}, got.AcceptedLearners)
	assert.Equal(t, []string{userB}, got.ApprovedLearners)

	t.Run("accepting again is idempotent", func(t *testing.T) {
		w := ts.do(http.MethodPatch, acceptPath, userA, nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{userB}, ts.getSkill(id).AcceptedLearners)
	})

	t.Run("switching decision is refused", func(t *testing.T) {
		w := ts.do(http.MethodPatch, rejectPath, userA, nil)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrRequestResolved)
	})

	t.Run("requester cannot drop a resolved request", func(t *testing.T) {
		w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request", userB, nil)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrRequestResolved)
		w = ts.do(http.MethodPatch, "/api/skills/"+id+"/withdraw", userB, nil)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrRequestResolved)
	})
}

func TestRejectRequestRecordsLearner(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()
	requestID := ts.toggle(id, userC).Requests[0].ID.String()

	w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request/"+requestID+"/reject", userA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Request rejected", decode[RequestsMessage](t, w).Message)

	got := ts.getSkill(id)
	assert.Equal(t, []string{userC}, got.AcceptedLearners)
	assert.Empty(t, got.ApprovedLearners)
}

func TestReferencePolicy(t *testing.T) {
	ts := newTestServer(t, config.SkillConfig{TerminalPolicy: config.TerminalPolicyReference})
	sk := ts.createSkill(userA)
	id := sk.ID.String()
	requestID := ts.toggle(id, userB).Requests[0].ID.String()

	w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request/"+requestID+"/accept", userA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = ts.do(http.MethodPatch, "/api/skills/"+id+"/request/"+requestID+"/reject", userA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RequestStatusRejected, decode[RequestsMessage](t, w).Requests[0].Status)

	withdrawn := ts.toggle(id, userB)
	assert.Equal(t, "Request withdrawn successfully", withdrawn.Message)
	assert.Empty(t, withdrawn.Requests)
}

func TestFeedback(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()
	feedbackPath := "/api/skills/" + id + "/feedback"

	t.Run("rating out of range", func(t *testing.T) {
		for _, rating := range []int{0, 6} {
			w := ts.do(http.MethodPost, feedbackPath, userB, map[string]any{"rating": rating})
			requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrValidationFailed)
		}
		w := ts.do(http.MethodPost, feedbackPath, userB, nil)
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrValidationFailed)
	})

	t.Run("requires an accepted request", func(t *testing.T) {
		w := ts.do(http.MethodPost, feedbackPath, userB, map[string]any{"rating": 4})
		requireErrorCode(t, w, http.StatusForbidden, apierrors.ErrPreconditionFailed)
	})

	// A accepts B, B leaves feedback 4
	requestID := ts.toggle(id, userB).Requests[0].ID.String()
	w := ts.do(http.MethodPatch, "/api/skills/"+id+"/request/"+requestID+"/accept", userA, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(http.MethodPost, feedbackPath, userB, map[string]any{"rating": 4, "comment": "Great mentor"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "Feedback submitted successfully", decode[map[string]string](t, w)["message"])

	got := ts.getSkill(id)
	require.NotNil(t, got.AverageRating)
	assert.Equal(t, "4.0", *got.AverageRating)
	assert.Equal(t, 1, got.TotalRatings)
	require.Len(t, got.Feedbacks, 1)
	assert.Equal(t, "Great mentor", *got.Feedbacks[0].Comment)

	t.Run("second feedback", func(t *testing.T) {
		w := ts.do(http.MethodPost, feedbackPath, userB, map[string]any{"rating": 5})
		requireErrorCode(t, w, http.StatusBadRequest, apierrors.ErrAlreadyExists)
		assert.Equal(t, 1, ts.getSkill(id).TotalRatings)
	})

	t.Run("missing skill", func(t *testing.T) {
		w := ts.do(http.MethodPost, "/api/skills/8f1c6a6e-2c5e-4a53-9d55-1f0a3c2b7e11/feedback", userB, map[string]any{"rating": 3})
		requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrSkillNotFound)
	})
}

func TestFeedbackWithoutEligibility(t *testing.T) {
	ts := newTestServer(t, config.SkillConfig{TerminalPolicy: config.TerminalPolicySticky})
	sk := ts.createSkill(userA)

	w := ts.do(http.MethodPost, "/api/skills/"+sk.ID.String()+"/feedback", userC, map[string]any{"rating": 3})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "3.0", *ts.getSkill(sk.ID.String()).AverageRating)
}

func TestMyRequests(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	requested := ts.createSkill(userA)
	ts.createSkill(userA)
	ts.toggle(requested.ID.String(), userB)

	w := ts.do(http.MethodGet, "/api/skills/my-requests", userB, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine := decode[MyRequestsResponse](t, w)
	require.Len(t, mine.Sent, 1)
	assert.Equal(t, requested.ID, mine.Sent[0].ID)
	assert.Equal(t, "Alice", mine.Sent[0].Owner.Name)
	assert.Empty(t, mine.Received)

	w = ts.do(http.MethodGet, "/api/skills/my-requests", userA, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mine = decode[MyRequestsResponse](t, w)
	assert.Empty(t, mine.Sent)
	require.Len(t, mine.Received, 1)
	assert.Equal(t, "Bob", mine.Received[0].Requests[0].User.Name)

	w = ts.do(http.MethodGet, "/api/skills/my-requests", "", nil)
	requireErrorCode(t, w, http.StatusUnauthorized, apierrors.ErrUnauthorized)
}

func TestConcurrentTogglesNeverDuplicate(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	sk := ts.createSkill(userA)
	id := sk.ID.String()

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPatch, "/api/skills/"+id+"/request", nil)
			req.Header.Set("Authorization", "Bearer "+createTestJWTToken(userB))
			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, req)
			assert.Equal(t, http.StatusOK, w.Code)
		}()
	}
	wg.Wait()

	// An even number of toggles leaves no request behind
	assert.Empty(t, ts.getSkill(id).Requests)
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, defaultSkillConfig())
	w := ts.do(http.MethodGet, "/api/nothing-here", "", nil)
	requireErrorCode(t, w, http.StatusNotFound, apierrors.ErrNotFound)
}
