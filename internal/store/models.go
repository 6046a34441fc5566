package store

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SensorKind is the fixed classification of what a sensor measures.
type SensorKind string

const (
	KindPhosphorus SensorKind = "P"
	KindPotassium  SensorKind = "K"
	KindPH         SensorKind = "pH"
	KindHumidity   SensorKind = "H"
	KindRelay      SensorKind = "relay"
)

// KindDisplayName maps a sensor kind to its human-readable name.
// Kept separate from the kind values so storage stays free of presentation.
func KindDisplayName(k SensorKind) string {
	switch k {
	case KindPhosphorus:
		return "Phosphorus"
	case KindPotassium:
		return "Potassium"
	case KindPH:
		return "pH"
	case KindHumidity:
		return "Humidity"
	case KindRelay:
		return "Irrigation relay"
	}
	return string(k)
}

// Sensor is a provisioned measuring device channel. Several rows may share one
// serial code (one row per kind on a multi-channel probe).
type Sensor struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	Serial     string     `gorm:"index" json:"serial"`
	Kind       SensorKind `gorm:"size:16" json:"kind"`
	PlantingID *uint      `json:"planting_id,omitempty"`
}

// Planting, Field and Property form the location hierarchy a sensor hangs off.
// The core only ever walks it to resolve a city name for weather lookups.
type Planting struct {
	ID      uint   `gorm:"primaryKey" json:"id"`
	FieldID uint   `json:"field_id"`
	Crop    string `json:"crop"`
}

type Field struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	PropertyID uint   `json:"property_id"`
	Name       string `json:"name"`
}

type Property struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
}

// SensorReading is one accepted measurement. Append-only; never updated or
// deleted by the service.
type SensorReading struct {
	ID       uint      `gorm:"primaryKey" json:"id"`
	SensorID uint      `gorm:"index:idx_sensor_taken,priority:1" json:"sensor_id"`
	TakenAt  time.Time `gorm:"index:idx_sensor_taken,priority:2" json:"taken_at"`
	Value    float64   `json:"value"`
}

// TelemetryRecord archives the raw payload of an accepted ingestion call,
// written in the same transaction as the readings it produced.
type TelemetryRecord struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Serial     string         `gorm:"index" json:"serial"`
	Payload    datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	ReceivedAt time.Time      `json:"received_at"`
}
