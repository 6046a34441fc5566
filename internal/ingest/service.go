package ingest

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"agrosense/internal/alert"
	"agrosense/internal/store"

	"gorm.io/datatypes"
)

// Result summarizes one ingestion call for the response envelope.
type Result struct {
	Readings  int
	AlertSent bool
}

type Service struct {
	repo   *store.Repo
	alerts *alert.Service
}

func NewService(repo *store.Repo, alerts *alert.Service) *Service {
	return &Service{repo: repo, alerts: alerts}
}

// Ingest runs classify -> persist -> evaluate -> alert for one payload.
// Readings are stamped with server receipt time and written all-or-nothing;
// the alert stage runs only after a successful commit and can never fail the
// call. Business errors (store.ErrSensorNotFound, ErrKindNotResolved) abort
// before anything is persisted.
func (s *Service) Ingest(ctx context.Context, p Payload) (Result, error) {
	now := time.Now().UTC()

	sensors, err := s.repo.SensorsBySerial(ctx, p.Serial)
	if err != nil {
		return Result{}, err
	}

	readings, err := Classify(sensors, p, now)
	if err != nil {
		return Result{}, err
	}

	raw, err := json.Marshal(p)
	if err != nil {
		return Result{}, err
	}
	rec := &store.TelemetryRecord{
		Serial:     p.Serial,
		Payload:    datatypes.JSON(raw),
		ReceivedAt: now,
	}

	if err := s.repo.InsertReadingBatch(ctx, readings, rec); err != nil {
		return Result{}, err
	}
	slog.Debug("telemetry stored", "serial", p.Serial, "readings", len(readings))

	// All rows under one serial describe the same physical probe; alerts are
	// keyed by the first sensor id, as provisioning orders them.
	sent, err := s.alerts.Process(ctx, sensors[0].ID, Snapshot(p), now)
	if err != nil {
		slog.Warn("alert evaluation failed", "serial", p.Serial, "error", err)
	}

	return Result{Readings: len(readings), AlertSent: sent}, nil
}
