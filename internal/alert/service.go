package alert

import (
	"context"
	"log/slog"
	"time"
)

// DefaultCooldown is the minimum interval between alerts for one sensor.
const DefaultCooldown = 15 * time.Minute

// Notifier hands a finished alert to the notification transport and returns
// the transport-assigned message id.
type Notifier interface {
	Send(ctx context.Context, subject, body string) (string, error)
}

// Service evaluates sensor state and dispatches consolidated alerts, at most
// one per sensor per cool-down window.
type Service struct {
	store    ThrottleStore
	notifier Notifier
	window   time.Duration
}

func NewService(store ThrottleStore, notifier Notifier, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultCooldown
	}
	return &Service{store: store, notifier: notifier, window: window}
}

// Process runs the evaluate -> throttle -> dispatch chain for one sensor.
// Returns whether an alert was dispatched. Transport failures are swallowed
// into a false outcome; only throttle-store errors are returned.
func (s *Service) Process(ctx context.Context, sensorID uint, snap Snapshot, now time.Time) (bool, error) {
	conds := Evaluate(snap)
	if len(conds) == 0 {
		// All clear. The gate is not consulted, so an in-flight cool-down
		// is neither reset nor extended.
		return false, nil
	}

	ok, err := s.store.TryAcquire(ctx, sensorID, now)
	if err != nil {
		return false, err
	}
	if !ok {
		slog.Info("alert throttled", "sensor_id", sensorID, "conditions", len(conds))
		return false, nil
	}

	subject := buildSubject(sensorID)
	body := buildBody(sensorID, conds, snap, now, s.window)

	msgID, err := s.notifier.Send(ctx, subject, body)
	if err != nil {
		// The slot was only reserved; give it back so the next qualifying
		// reading can retry before the window elapses.
		if relErr := s.store.Release(ctx, sensorID); relErr != nil {
			slog.Error("alert throttle release failed", "sensor_id", sensorID, "error", relErr)
		}
		slog.Error("alert dispatch failed", "sensor_id", sensorID, "error", err)
		return false, nil
	}

	slog.Info("alert dispatched", "sensor_id", sensorID, "conditions", len(conds), "message_id", msgID)
	return true, nil
}

// Status reports the throttle state for one sensor.
func (s *Service) Status(ctx context.Context, sensorID uint, now time.Time) (Status, error) {
	return s.store.Status(ctx, sensorID, now)
}

// ResetHistory clears every per-sensor timer. Unsafe outside tests and
// operational recovery: it defeats throttling for all sensors simultaneously.
func (s *Service) ResetHistory(ctx context.Context) error {
	return s.store.Reset(ctx)
}
