package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"agrosense/internal/alert"
	"agrosense/internal/ingest"
	"agrosense/internal/irrigation"
	"agrosense/internal/store"
	"agrosense/internal/weather"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type stubNotifier struct{ sent int }

func (s *stubNotifier) Send(_ context.Context, _, _ string) (string, error) {
	s.sent++
	return "msg-1", nil
}

type stubLookup struct{ raining bool }

func (s *stubLookup) Lookup(_ context.Context, city string) (weather.Snapshot, error) {
	return weather.Snapshot{City: city, Raining: s.raining}, nil
}

type stubPredictor struct{ label string }

func (s *stubPredictor) Predict(_ context.Context, _ irrigation.Features) (string, error) {
	return s.label, nil
}

type testEnv struct {
	router   chi.Router
	repo     *store.Repo
	notifier *stubNotifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := "file:httpapi_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := store.New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	notifier := &stubNotifier{}
	throttle := alert.NewMemoryThrottle(15 * time.Minute)
	alerts := alert.NewService(throttle, notifier, 15*time.Minute)
	ingestSvc := ingest.NewService(repo, alerts)
	irrigationSvc := irrigation.NewService(repo, &stubLookup{}, weather.NewCache(time.Hour), &stubPredictor{label: "Sim"}, "")

	r := chi.NewRouter()
	NewServer(ingestSvc, irrigationSvc, alerts, repo).RegisterRoutes(r)
	return &testEnv{router: r, repo: repo, notifier: notifier}
}

func (e *testEnv) provision(t *testing.T, serial string) []store.Sensor {
	t.Helper()
	kinds := []store.SensorKind{store.KindHumidity, store.KindPH}
	var sensors []store.Sensor
	for _, kind := range kinds {
		s := store.Sensor{Serial: serial, Kind: kind}
		if err := e.repo.CreateSensor(context.Background(), &s); err != nil {
			t.Fatalf("create sensor: %v", err)
		}
		sensors = append(sensors, s)
	}
	return sensors
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestIngestEndpointSuccess(t *testing.T) {
	env := newTestEnv(t)
	env.provision(t, "ESP32-01")

	rec := env.do(t, http.MethodPost, "/readings", `{"serial":"ESP32-01","humidity":55.0,"ph":5.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["status"] != "success" {
		t.Fatalf("expected success envelope, got %v", body)
	}
	if body["alert_sent"] != true {
		t.Fatalf("expected alert_sent true for critical payload, got %v", body)
	}
	if env.notifier.sent != 1 {
		t.Fatalf("expected 1 alert send, got %d", env.notifier.sent)
	}
}

func TestIngestEndpointUnknownSerial(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/readings", `{"serial":"nope","humidity":55.0}`)
	// Business errors answer 200 with an error envelope so firmware parses one shape.
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", body)
	}
	if _, present := body["alert_sent"]; present {
		t.Fatalf("alert_sent must be omitted on error: %v", body)
	}
}

func TestIngestEndpointBadJSON(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/readings", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestIrrigationDecisionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.provision(t, "ESP32-02")

	rec := env.do(t, http.MethodPost, "/irrigation/decision", `{"serial":"ESP32-02","humidity":30,"ph":6.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["irrigate"] != true {
		t.Fatalf("expected irrigate true, got %v", body)
	}
}

func TestListReadingsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	sensors := env.provision(t, "ESP32-03")

	taken := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []store.SensorReading{{SensorID: sensors[0].ID, TakenAt: taken, Value: 61.5}}
	if err := env.repo.InsertReadingBatch(context.Background(), batch, nil); err != nil {
		t.Fatalf("seed readings: %v", err)
	}

	path := "/sensors/" + itoa(sensors[0].ID) + "/readings?from=2026-03-01T11:00:00Z&to=2026-03-01T13:00:00Z"
	rec := env.do(t, http.MethodGet, path, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	readings, ok := body["readings"].([]any)
	if !ok || len(readings) != 1 {
		t.Fatalf("expected 1 reading, got %v", body)
	}
	sensor, ok := body["sensor"].(map[string]any)
	if !ok || sensor["serial"] != "ESP32-03" || sensor["kind_name"] != "Humidity" {
		t.Fatalf("unexpected sensor metadata: %v", body)
	}

	rec = env.do(t, http.MethodGet, "/sensors/abc/readings", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for non-numeric id, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/sensors/9999/readings", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown sensor, got %d", rec.Code)
	}
}

func TestThrottleStatusAndReset(t *testing.T) {
	env := newTestEnv(t)
	sensors := env.provision(t, "ESP32-04")

	// Arm the gate through a real critical ingestion.
	env.do(t, http.MethodPost, "/readings", `{"serial":"ESP32-04","humidity":10}`)

	rec := env.do(t, http.MethodGet, "/alerts/throttle/"+itoa(sensors[0].ID), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	st := decodeBody(t, rec)
	if st["may_send"] != false {
		t.Fatalf("expected cooling state, got %v", st)
	}

	rec = env.do(t, http.MethodPost, "/alerts/throttle/reset", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/alerts/throttle/"+itoa(sensors[0].ID), "")
	st = decodeBody(t, rec)
	if st["may_send"] != true {
		t.Fatalf("expected idle state after reset, got %v", st)
	}
}

func itoa(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
