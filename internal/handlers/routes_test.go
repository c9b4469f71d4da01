package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"referral-engine/internal/auth"
	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
	"referral-engine/internal/services"
	"referral-engine/internal/testutil"
)

const serviceToken = "svc-test-token"

type apiSuite struct {
	t      *testing.T
	router *gin.Engine
	repo   *repository.Repository
	disp   *services.Dispatcher
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Count   int             `json:"count"`
	Linked  bool            `json:"linked"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newAPISuite(t *testing.T) *apiSuite {
	t.Helper()
	gin.SetMode(gin.TestMode)
	auth.InitJWT("handler-test-secret")

	repo := repository.NewRepository(testutil.NewTestDB(t))
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	disp := services.NewDispatcher(services.NewStoreNotifier(repo), time.Second, m)
	clock := clockwork.NewFakeClockAt(time.Date(2025, time.October, 6, 10, 0, 0, 0, time.UTC))
	engine := services.NewEngine(repo, config.DefaultReferralPolicy(), clock, m, disp)

	router := gin.New()
	SetupRoutes(router, engine, RouterConfig{ServiceToken: serviceToken, Gatherer: reg})

	return &apiSuite{t: t, router: router, repo: repo, disp: disp}
}

func (s *apiSuite) member(first, last string) (*models.Advocate, string) {
	s.t.Helper()
	ctx := context.Background()

	user := &models.User{Email: first + "@example.edu", FirstName: first, LastName: last}
	require.NoError(s.t, s.repo.CreateUser(ctx, user))
	advocate := &models.Advocate{UserID: user.ID, DisplayName: first + " " + last}
	require.NoError(s.t, s.repo.CreateAdvocate(ctx, advocate))

	token, err := auth.GenerateToken(user.ID, "", time.Hour)
	require.NoError(s.t, err)
	return advocate, token
}

func (s *apiSuite) do(method, path, token string, body interface{}, headers ...string) (int, envelope) {
	s.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func TestReferralFlowOverHTTP(t *testing.T) {
	s := newAPISuite(t)
	_, janeToken := s.member("Jane", "Doe")
	bob, bobToken := s.member("Bob", "Smith")

	code, env := s.do(http.MethodPost, "/api/referral/handle", janeToken, nil)
	require.Equal(t, http.StatusOK, code)
	var handle struct{ Handle string }
	require.NoError(t, json.Unmarshal(env.Data, &handle))
	assert.Equal(t, "jane-doe", handle.Handle)

	code, env = s.do(http.MethodPost, "/api/referral/claim", bobToken, gin.H{"handle": "jane-doe"})
	require.Equal(t, http.StatusOK, code)
	var claim struct {
		ReferralID *string `json:"referral_id"`
		Status     string  `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	require.NotNil(t, claim.ReferralID)
	assert.Equal(t, "signed_up", claim.Status)

	code, env = s.do(http.MethodPost, "/internal/referral/link", "",
		gin.H{"profile_id": bob.ID.String(), "handle": "jane-doe"}, auth.ServiceTokenHeader, serviceToken)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Linked)

	code, env = s.do(http.MethodPost, "/internal/referral/activate", "",
		gin.H{"invitee_profile_id": bob.ID.String()}, auth.ServiceTokenHeader, serviceToken)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &claim))
	assert.Equal(t, "activated", claim.Status)

	code, env = s.do(http.MethodGet, "/api/rewards", janeToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, 1, env.Count)
	var rewards []models.Reward
	require.NoError(t, json.Unmarshal(env.Data, &rewards))

	redeemPath := fmt.Sprintf("/api/rewards/%s/redeem", rewards[0].ID)
	code, env = s.do(http.MethodPost, redeemPath, bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "not_reward_owner", env.Code)

	code, env = s.do(http.MethodPost, redeemPath, janeToken, nil)
	require.Equal(t, http.StatusOK, code)
	var redeemed struct {
		RewardType string `json:"reward_type"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &redeemed))
	assert.Equal(t, "bonus_ai_session", redeemed.RewardType)

	code, env = s.do(http.MethodPost, redeemPath, janeToken, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "already_redeemed", env.Code)

	code, env = s.do(http.MethodGet, "/api/referral/activity", janeToken, nil)
	require.Equal(t, http.StatusOK, code)
	var activity []models.ReferralActivity
	require.NoError(t, json.Unmarshal(env.Data, &activity))
	require.Len(t, activity, 1)
	assert.Equal(t, "Bob S.", activity[0].InviteeName)

	s.disp.Wait()
	code, _ = s.do(http.MethodGet, "/api/referral/me", janeToken, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestClaimUnknownHandleReturnsNullID(t *testing.T) {
	s := newAPISuite(t)
	_, bobToken := s.member("Bob", "Smith")

	code, env := s.do(http.MethodPost, "/api/referral/claim", bobToken, gin.H{"handle": "ghost"})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"referral_id":null}`, string(env.Data))

	code, env = s.do(http.MethodPost, "/api/referral/claim", bobToken, gin.H{})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", env.Code)
}

func TestInviteRateLimitIsDistinguishable(t *testing.T) {
	s := newAPISuite(t)
	_, janeToken := s.member("Jane", "Doe")

	for i := 0; i < 10; i++ {
		code, _ := s.do(http.MethodPost, "/api/referral/invites", janeToken, nil)
		require.Equal(t, http.StatusCreated, code)
	}

	code, env := s.do(http.MethodPost, "/api/referral/invites", janeToken, nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "rate_limited", env.Code)
}

func TestProtectedRoutes(t *testing.T) {
	s := newAPISuite(t)
	_, janeToken := s.member("Jane", "Doe")

	code, _ := s.do(http.MethodGet, "/api/referral/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/internal/referral/activate", "", gin.H{"invitee_profile_id": "x"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = s.do(http.MethodPost, "/api/admin/rewards/00000000-0000-0000-0000-000000000000/revoke", janeToken, gin.H{"reason": "x"})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = s.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "referral_handles_assigned_total")
}

func TestAdminRevoke(t *testing.T) {
	s := newAPISuite(t)
	adminToken, err := auth.GenerateToken(9999, auth.RoleAdmin, time.Hour)
	require.NoError(t, err)

	code, env := s.do(http.MethodPost, "/api/admin/rewards/00000000-0000-0000-0000-000000000001/revoke", adminToken, gin.H{"reason": "fraud"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "reward_not_found", env.Code)

	code, env = s.do(http.MethodPost, "/api/admin/referrals/not-a-uuid/flags", adminToken, gin.H{"token": "x"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", env.Code)
}
