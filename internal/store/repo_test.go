package store

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestRepo(t *testing.T) *Repo {
	t.Helper()
	// Unique in-memory DB per test to avoid cross-test contamination.
	dsn := "file:store_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	repo, err := New(db)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return repo
}

func TestSensorsBySerial(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	for _, kind := range []SensorKind{KindHumidity, KindPH, KindRelay} {
		if err := repo.CreateSensor(ctx, &Sensor{Serial: "ESP32-01", Kind: kind}); err != nil {
			t.Fatalf("create sensor: %v", err)
		}
	}

	sensors, err := repo.SensorsBySerial(ctx, "ESP32-01")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if len(sensors) != 3 {
		t.Fatalf("expected 3 sensors, got %d", len(sensors))
	}
	for i := 1; i < len(sensors); i++ {
		if sensors[i].ID <= sensors[i-1].ID {
			t.Fatalf("sensors not in id order: %v", sensors)
		}
	}

	if _, err := repo.SensorsBySerial(ctx, "nope"); !errors.Is(err, ErrSensorNotFound) {
		t.Fatalf("expected ErrSensorNotFound, got %v", err)
	}
}

func TestSensorByID(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	s := Sensor{Serial: "ESP32-07", Kind: KindPotassium}
	if err := repo.CreateSensor(ctx, &s); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	got, err := repo.SensorByID(ctx, s.ID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Serial != "ESP32-07" || got.Kind != KindPotassium {
		t.Fatalf("unexpected sensor: %+v", got)
	}

	if _, err := repo.SensorByID(ctx, 9999); !errors.Is(err, ErrSensorNotFound) {
		t.Fatalf("expected ErrSensorNotFound, got %v", err)
	}
}

func TestReadingRoundTrip(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	sensor := Sensor{Serial: "ESP32-02", Kind: KindHumidity}
	if err := repo.CreateSensor(ctx, &sensor); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	taken := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []SensorReading{{SensorID: sensor.ID, TakenAt: taken, Value: 55.5}}
	if err := repo.InsertReadingBatch(ctx, batch, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := repo.ListReadings(ctx, sensor.ID, taken.Add(-time.Minute), taken.Add(time.Minute))
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(got))
	}
	if got[0].Value != 55.5 {
		t.Fatalf("expected value 55.5, got %v", got[0].Value)
	}

	// Outside the range it must not appear.
	got, err = repo.ListReadings(ctx, sensor.ID, taken.Add(time.Hour), time.Time{})
	if err != nil {
		t.Fatalf("list out of range: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no readings, got %d", len(got))
	}
}

func TestInsertReadingBatchAtomic(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	sensor := Sensor{Serial: "ESP32-03", Kind: KindPH}
	if err := repo.CreateSensor(ctx, &sensor); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	taken := time.Now().UTC()
	// Second reading collides on the primary key, so the whole batch must roll back.
	batch := []SensorReading{
		{ID: 1, SensorID: sensor.ID, TakenAt: taken, Value: 6.5},
		{ID: 1, SensorID: sensor.ID, TakenAt: taken, Value: 6.6},
	}
	if err := repo.InsertReadingBatch(ctx, batch, nil); err == nil {
		t.Fatalf("expected batch insert to fail")
	}

	got, err := repo.ListReadings(ctx, sensor.ID, time.Time{}, time.Time{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("partial batch visible after rollback: %v", got)
	}
}

func TestTelemetryRecordStoredWithBatch(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	sensor := Sensor{Serial: "ESP32-04", Kind: KindHumidity}
	if err := repo.CreateSensor(ctx, &sensor); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	rec := &TelemetryRecord{Serial: "ESP32-04", Payload: []byte(`{"humidity":42}`)}
	batch := []SensorReading{{SensorID: sensor.ID, TakenAt: time.Now().UTC(), Value: 42}}
	if err := repo.InsertReadingBatch(ctx, batch, rec); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if rec.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatalf("telemetry record id not assigned")
	}
	if rec.ReceivedAt.IsZero() {
		t.Fatalf("telemetry record timestamp not assigned")
	}
}

func TestProvisionProbeIdempotent(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	first, err := repo.ProvisionProbe(ctx, "ESP32-10", nil)
	if err != nil {
		t.Fatalf("provision: %v", err)
	}
	if len(first) != 5 {
		t.Fatalf("expected 5 sensors, got %d", len(first))
	}

	second, err := repo.ProvisionProbe(ctx, "ESP32-10", nil)
	if err != nil {
		t.Fatalf("re-provision: %v", err)
	}
	if len(second) != 5 {
		t.Fatalf("re-provision duplicated rows: got %d", len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("re-provision replaced sensor %d", first[i].ID)
		}
	}

	kinds := map[SensorKind]bool{}
	for _, s := range second {
		kinds[s.Kind] = true
	}
	for _, k := range []SensorKind{KindPhosphorus, KindPotassium, KindPH, KindHumidity, KindRelay} {
		if !kinds[k] {
			t.Fatalf("kind %q missing after provisioning", k)
		}
	}
}

func TestCityForSensor(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	plantingID, err := repo.CreateLocation(ctx, "Campinas", "north field", "soy")
	if err != nil {
		t.Fatalf("create location: %v", err)
	}

	linked := Sensor{Serial: "ESP32-05", Kind: KindHumidity, PlantingID: &plantingID}
	if err := repo.CreateSensor(ctx, &linked); err != nil {
		t.Fatalf("create sensor: %v", err)
	}
	orphan := Sensor{Serial: "ESP32-06", Kind: KindHumidity}
	if err := repo.CreateSensor(ctx, &orphan); err != nil {
		t.Fatalf("create sensor: %v", err)
	}

	city, err := repo.CityForSensor(ctx, linked.ID)
	if err != nil {
		t.Fatalf("city lookup: %v", err)
	}
	if city != "Campinas" {
		t.Fatalf("expected Campinas, got %q", city)
	}

	city, err = repo.CityForSensor(ctx, orphan.ID)
	if err != nil {
		t.Fatalf("orphan city lookup: %v", err)
	}
	if city != "" {
		t.Fatalf("expected empty city for orphan sensor, got %q", city)
	}
}
