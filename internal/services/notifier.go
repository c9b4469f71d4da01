package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"referral-engine/internal/metrics"
	"referral-engine/internal/models"
	"referral-engine/internal/repository"
)

// Notifier delivers an in-app notification to a profile
type Notifier interface {
	Notify(ctx context.Context, notification *models.Notification) error
}

// StoreNotifier writes notifications to the notifications table
type StoreNotifier struct {
	repo *repository.Repository
}

func NewStoreNotifier(repo *repository.Repository) *StoreNotifier {
	return &StoreNotifier{repo: repo}
}

func (n *StoreNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	if err := n.repo.CreateNotification(ctx, notification); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// BreakerNotifier stops calling a failing notifier until it recovers
type BreakerNotifier struct {
	next    Notifier
	breaker *gobreaker.CircuitBreaker
}

func NewBreakerNotifier(next Notifier) *BreakerNotifier {
	settings := gobreaker.Settings{
		Name:        "notifications",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Notification circuit breaker changed state")
		},
	}
	return &BreakerNotifier{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (n *BreakerNotifier) Notify(ctx context.Context, notification *models.Notification) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		return nil, n.next.Notify(ctx, notification)
	})
	return err
}

// Dispatcher sends notifications in the background. Failures are logged and
// counted, never returned, so callers are not delayed by delivery.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	metrics  *metrics.Registry
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, timeout time.Duration, m *metrics.Registry) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{notifier: notifier, timeout: timeout, metrics: m}
}

// Dispatch queues notification for delivery and returns immediately
func (d *Dispatcher) Dispatch(notification *models.Notification) {
	if d == nil || d.notifier == nil {
		return
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("profile_id", notification.ProfileID.String()).
					Msg("Notification delivery panicked")
				d.metrics.NotificationErrors.Inc()
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := d.notifier.Notify(ctx, notification); err != nil {
			log.Warn().Err(err).
				Str("profile_id", notification.ProfileID.String()).
				Str("type", notification.Type).
				Msg("Failed to deliver notification")
			d.metrics.NotificationErrors.Inc()
		}
	}()
}

// Wait blocks until queued deliveries finish
func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
