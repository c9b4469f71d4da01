package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"referral-engine/internal/config"
	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
	"referral-engine/internal/utils"
)

var errHandleRace = errors.New("advocate handle assigned concurrently")

// HandleService assigns the public slug used in join links
type HandleService struct {
	repo    *repository.Repository
	policy  config.ReferralPolicy
	clock   clockwork.Clock
	locks   *keyedMutex
	metrics *metrics.Registry
}

func NewHandleService(repo *repository.Repository, policy config.ReferralPolicy, clock clockwork.Clock, locks *keyedMutex, m *metrics.Registry) *HandleService {
	return &HandleService{repo: repo, policy: policy, clock: clock, locks: locks, metrics: m}
}

// EnsureHandle returns the caller's handle, assigning one on first use
func (s *HandleService) EnsureHandle(ctx context.Context, userID uint) (string, error) {
	advocate, err := s.repo.GetAdvocateByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAdvocateNotFound
		}
		return "", err
	}
	return s.EnsureHandleFor(ctx, advocate)
}

// EnsureHandleFor is EnsureHandle for an already loaded advocate
func (s *HandleService) EnsureHandleFor(ctx context.Context, advocate *models.Advocate) (string, error) {
	if advocate.Handle != nil {
		return *advocate.Handle, nil
	}

	unlock := s.locks.Lock(advocate.ID.String())
	defer unlock()

	var handle string
	err := s.repo.Transaction(ctx, func(tx *repository.Repository) error {
		current, err := tx.LockAdvocate(ctx, advocate.ID)
		if err != nil {
			return err
		}
		if current.Handle != nil {
			handle = *current.Handle
			return nil
		}

		handle, err = s.allocate(ctx, tx, current)
		return err
	})

	if errors.Is(err, errHandleRace) {
		current, err := s.repo.GetAdvocateByID(ctx, advocate.ID)
		if err != nil {
			return "", err
		}
		if current.Handle == nil {
			return "", fmt.Errorf("advocate %s: %w", advocate.ID, errHandleRace)
		}
		return *current.Handle, nil
	}
	if err != nil {
		if errors.Is(err, ErrHandleExhausted) {
			log.Error().Err(err).Str("advocate_id", advocate.ID.String()).
				Str("display_name", advocate.DisplayName).
				Msg("Handle space exhausted, operator attention required")
		}
		return "", err
	}

	advocate.Handle = &handle
	return handle, nil
}

// allocate probes candidates with a conditional insert into the reservation
// table, so two advocates racing for the same slug cannot both win it.
func (s *HandleService) allocate(ctx context.Context, tx *repository.Repository, advocate *models.Advocate) (string, error) {
	maxLen := s.policy.HandleMaxLength
	base := utils.HandleBase(advocate.DisplayName, maxLen)
	now := s.clock.Now().UTC()

	for attempt := 0; attempt < s.policy.HandleMaxAttempts; attempt++ {
		candidate := utils.HandleCandidate(base, attempt, maxLen)

		reserved, err := tx.ReserveHandle(ctx, candidate, advocate.ID, now)
		if err != nil {
			return "", fmt.Errorf("failed to reserve handle %q: %w", candidate, err)
		}
		if !reserved {
			continue
		}

		assigned, err := tx.AssignHandle(ctx, advocate.ID, candidate)
		if err != nil {
			return "", fmt.Errorf("failed to assign handle %q: %w", candidate, err)
		}
		if !assigned {
			return "", errHandleRace
		}

		s.metrics.HandlesAssigned.Inc()
		log.Info().Str("advocate_id", advocate.ID.String()).Str("handle", candidate).
			Int("attempt", attempt).Msg("Assigned referral handle")
		return candidate, nil
	}

	return "", fmt.Errorf("%w: base %q after %d attempts", ErrHandleExhausted, base, s.policy.HandleMaxAttempts)
}
