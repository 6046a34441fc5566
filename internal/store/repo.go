package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// ErrSensorNotFound is returned when a serial code resolves to no sensors.
var ErrSensorNotFound = errors.New("sensor not found")

type Repo struct {
	db *gorm.DB
}

func OpenPostgres(user, password, dbName, host, port, sslMode string) (*gorm.DB, error) {
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC", host, user, password, dbName, port, sslMode)
	return gorm.Open(postgres.Open(dsn), &gorm.Config{})
}

func New(db *gorm.DB) (*Repo, error) {
	if err := db.AutoMigrate(&Property{}, &Field{}, &Planting{}, &Sensor{}, &SensorReading{}, &TelemetryRecord{}); err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// SensorsBySerial returns every sensor row provisioned under a serial code,
// in stable id order. An unknown serial yields ErrSensorNotFound.
func (r *Repo) SensorsBySerial(ctx context.Context, serial string) ([]Sensor, error) {
	var sensors []Sensor
	if err := r.db.WithContext(ctx).Where("serial = ?", serial).Order("id").Find(&sensors).Error; err != nil {
		return nil, err
	}
	if len(sensors) == 0 {
		return nil, fmt.Errorf("%w: serial %q", ErrSensorNotFound, serial)
	}
	return sensors, nil
}

// InsertReadingBatch writes a batch of readings plus the raw telemetry record
// in a single transaction. Either everything becomes visible or nothing does.
func (r *Repo) InsertReadingBatch(ctx context.Context, readings []SensorReading, rec *TelemetryRecord) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range readings {
			if err := tx.Create(&readings[i]).Error; err != nil {
				return err
			}
		}
		if rec != nil {
			if rec.ID == uuid.Nil {
				rec.ID = uuid.New()
			}
			if rec.ReceivedAt.IsZero() {
				rec.ReceivedAt = time.Now().UTC()
			}
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// ListReadings returns readings for one sensor inside [from, to], oldest first.
// Zero bounds are open-ended.
func (r *Repo) ListReadings(ctx context.Context, sensorID uint, from, to time.Time) ([]SensorReading, error) {
	q := r.db.WithContext(ctx).Where("sensor_id = ?", sensorID)
	if !from.IsZero() {
		q = q.Where("taken_at >= ?", from)
	}
	if !to.IsZero() {
		q = q.Where("taken_at <= ?", to)
	}
	var readings []SensorReading
	if err := q.Order("taken_at").Order("id").Find(&readings).Error; err != nil {
		return nil, err
	}
	return readings, nil
}

// SensorByID loads one sensor row. Unknown ids yield ErrSensorNotFound.
func (r *Repo) SensorByID(ctx context.Context, sensorID uint) (Sensor, error) {
	var sensor Sensor
	if err := r.db.WithContext(ctx).First(&sensor, sensorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Sensor{}, fmt.Errorf("%w: id %d", ErrSensorNotFound, sensorID)
		}
		return Sensor{}, err
	}
	return sensor, nil
}

// CityForSensor walks sensor -> planting -> field -> property and returns the
// property's city. Empty string when any link in the chain is missing.
func (r *Repo) CityForSensor(ctx context.Context, sensorID uint) (string, error) {
	var sensor Sensor
	if err := r.db.WithContext(ctx).First(&sensor, sensorID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: id %d", ErrSensorNotFound, sensorID)
		}
		return "", err
	}
	if sensor.PlantingID == nil {
		return "", nil
	}
	var planting Planting
	if err := r.db.WithContext(ctx).First(&planting, *sensor.PlantingID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	var field Field
	if err := r.db.WithContext(ctx).First(&field, planting.FieldID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	var property Property
	if err := r.db.WithContext(ctx).First(&property, field.PropertyID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", err
	}
	return property.City, nil
}

// CreateSensor provisions a sensor row. Identity is immutable after creation.
func (r *Repo) CreateSensor(ctx context.Context, s *Sensor) error {
	return r.db.WithContext(ctx).Create(s).Error
}

// ProvisionProbe ensures one sensor row per kind exists under a serial,
// creating only the missing ones. Safe to run on every startup.
func (r *Repo) ProvisionProbe(ctx context.Context, serial string, plantingID *uint) ([]Sensor, error) {
	kinds := []SensorKind{KindPhosphorus, KindPotassium, KindPH, KindHumidity, KindRelay}

	var sensors []Sensor
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing []Sensor
		if err := tx.Where("serial = ?", serial).Find(&existing).Error; err != nil {
			return err
		}
		present := map[SensorKind]bool{}
		for _, s := range existing {
			present[s.Kind] = true
		}
		for _, kind := range kinds {
			if present[kind] {
				continue
			}
			s := Sensor{Serial: serial, Kind: kind, PlantingID: plantingID}
			if err := tx.Create(&s).Error; err != nil {
				return err
			}
		}
		return tx.Where("serial = ?", serial).Order("id").Find(&sensors).Error
	})
	if err != nil {
		return nil, err
	}
	return sensors, nil
}

// CreateLocation provisions a property/field/planting chain and returns the
// planting id sensors should reference.
func (r *Repo) CreateLocation(ctx context.Context, city, fieldName, crop string) (uint, error) {
	var plantingID uint
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		property := Property{City: city, Name: city}
		if err := tx.Create(&property).Error; err != nil {
			return err
		}
		field := Field{PropertyID: property.ID, Name: fieldName}
		if err := tx.Create(&field).Error; err != nil {
			return err
		}
		planting := Planting{FieldID: field.ID, Crop: crop}
		if err := tx.Create(&planting).Error; err != nil {
			return err
		}
		plantingID = planting.ID
		return nil
	})
	return plantingID, err
}
