package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"agrosense/internal/alert"
	"agrosense/internal/ingest"
	"agrosense/internal/irrigation"
	"agrosense/internal/store"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	ingest     *ingest.Service
	irrigation *irrigation.Service
	alerts     *alert.Service
	repo       *store.Repo
}

func NewServer(ingestSvc *ingest.Service, irrigationSvc *irrigation.Service, alerts *alert.Service, repo *store.Repo) *Server {
	return &Server{ingest: ingestSvc, irrigation: irrigationSvc, alerts: alerts, repo: repo}
}

func (s *Server) RegisterRoutes(r chi.Router) {
	r.Post("/readings", s.handleIngest)
	r.Post("/irrigation/decision", s.handleIrrigationDecision)
	r.Get("/sensors/{id}/readings", s.handleListReadings)
	r.Get("/alerts/throttle/{sensorID}", s.handleThrottleStatus)
	r.Post("/alerts/throttle/reset", s.handleThrottleReset)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

type envelope struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	AlertSent *bool  `json:"alert_sent,omitempty"`
}

// handleIngest accepts device telemetry. Business failures (unknown serial or
// kind) still answer 200 with status "error" so constrained firmware only has
// to parse one response shape; only persistence failures are 500.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var p ingest.Payload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid request body"})
		return
	}

	res, err := s.ingest.Ingest(r.Context(), p)
	if err != nil {
		if errors.Is(err, store.ErrSensorNotFound) || errors.Is(err, ingest.ErrKindNotResolved) {
			writeJSON(w, http.StatusOK, envelope{Status: "error", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to store readings"})
		return
	}

	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "reading received", AlertSent: &res.AlertSent})
}

func (s *Server) handleIrrigationDecision(w http.ResponseWriter, r *http.Request) {
	var in irrigation.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid request body"})
		return
	}

	irrigate, err := s.irrigation.Decide(r.Context(), in)
	if err != nil {
		if errors.Is(err, store.ErrSensorNotFound) {
			writeJSON(w, http.StatusOK, envelope{Status: "error", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to decide"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"status": "success", "irrigate": irrigate})
}

func (s *Server) handleListReadings(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "sensor id must be numeric"})
		return
	}

	var from, to time.Time
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid from parameter"})
			return
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "invalid to parameter"})
			return
		}
	}

	sensor, err := s.repo.SensorByID(r.Context(), uint(id))
	if err != nil {
		if errors.Is(err, store.ErrSensorNotFound) {
			writeJSON(w, http.StatusNotFound, envelope{Status: "error", Message: err.Error()})
			return
		}
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to load sensor"})
		return
	}

	readings, err := s.repo.ListReadings(r.Context(), uint(id), from, to)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to list readings"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"sensor": map[string]any{
			"id":        sensor.ID,
			"serial":    sensor.Serial,
			"kind":      sensor.Kind,
			"kind_name": store.KindDisplayName(sensor.Kind),
		},
		"readings": readings,
	})
}

func (s *Server) handleThrottleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "sensorID"), 10, 32)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, envelope{Status: "error", Message: "sensor id must be numeric"})
		return
	}

	st, err := s.alerts.Status(r.Context(), uint(id), time.Now().UTC())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to read throttle state"})
		return
	}

	writeJSON(w, http.StatusOK, st)
}

// handleThrottleReset clears every per-sensor alert timer. Operational/test
// interface; unsafe in production because it defeats throttling globally.
func (s *Server) handleThrottleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.alerts.ResetHistory(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, envelope{Status: "error", Message: "failed to reset throttle state"})
		return
	}
	writeJSON(w, http.StatusOK, envelope{Status: "success", Message: "alert history cleared"})
}
