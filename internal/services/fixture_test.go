package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
	"referral-engine/internal/testutil"
)

var testStart = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []*models.Notification
	err  error
}

func (n *recordingNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, notification)
	return nil
}

func (n *recordingNotifier) Sent() []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]*models.Notification(nil), n.sent...)
}

type fixture struct {
	t          *testing.T
	ctx        context.Context
	repo       *repository.Repository
	clock      *clockwork.FakeClock
	policy     config.ReferralPolicy
	metrics    *metrics.Registry
	notifier   *recordingNotifier
	dispatcher *Dispatcher
	engine     *Engine
	users      int
}

func newFixture(t *testing.T, tweaks ...func(*config.ReferralPolicy)) *fixture {
	t.Helper()

	policy := config.DefaultReferralPolicy()
	for _, tweak := range tweaks {
		tweak(&policy)
	}

	repo := repository.NewRepository(testutil.NewTestDB(t))
	clock := clockwork.NewFakeClockAt(testStart)
	m := metrics.New(nil)
	notifier := &recordingNotifier{}
	dispatcher := NewDispatcher(notifier, time.Second, m)

	return &fixture{
		t:          t,
		ctx:        context.Background(),
		repo:       repo,
		clock:      clock,
		policy:     policy,
		metrics:    m,
		notifier:   notifier,
		dispatcher: dispatcher,
		engine:     NewEngine(repo, policy, clock, m, dispatcher),
	}
}

// advocate creates an account plus its advocate profile
func (f *fixture) advocate(firstName, lastName, university string) *models.Advocate {
	f.t.Helper()
	f.users++

	user := &models.User{
		Email:     fmt.Sprintf("user%d@example.edu", f.users),
		FirstName: firstName,
		LastName:  lastName,
	}
	require.NoError(f.t, f.repo.CreateUser(f.ctx, user))

	advocate := &models.Advocate{
		UserID:      user.ID,
		DisplayName: firstName + " " + lastName,
		University:  university,
	}
	require.NoError(f.t, f.repo.CreateAdvocate(f.ctx, advocate))
	return advocate
}

func (f *fixture) handle(a *models.Advocate) string {
	f.t.Helper()
	h, err := f.engine.Handles.EnsureHandleFor(f.ctx, a)
	require.NoError(f.t, err)
	return h
}

// signUp claims referrer's handle for invitee and links the invitee profile,
// leaving a signed_up referral ready for activation
func (f *fixture) signUp(referrer, invitee *models.Advocate) *models.Referral {
	f.t.Helper()
	handle := f.handle(referrer)

	claimed, err := f.engine.Referrals.ClaimReferral(f.ctx, handle, invitee.UserID)
	require.NoError(f.t, err)
	require.NotNil(f.t, claimed)

	linked, err := f.engine.Referrals.LinkProfileToReferral(f.ctx, invitee.ID, handle)
	require.NoError(f.t, err)
	require.NotNil(f.t, linked)
	return linked
}

func (f *fixture) reload(a *models.Advocate) *models.Advocate {
	f.t.Helper()
	fresh, err := f.repo.GetAdvocateByID(f.ctx, a.ID)
	require.NoError(f.t, err)
	return fresh
}

func (f *fixture) referral(id uuid.UUID) *models.Referral {
	f.t.Helper()
	r, err := f.repo.GetReferralByID(f.ctx, id)
	require.NoError(f.t, err)
	return r
}

func (f *fixture) rewardsOf(a *models.Advocate) []models.Reward {
	f.t.Helper()
	rewards, err := f.repo.ListRewardsByProfile(f.ctx, a.ID)
	require.NoError(f.t, err)
	return rewards
}

var errDeliveryDown = errors.New("notification store unavailable")
