// Package ingest turns raw device telemetry into typed sensor readings and
// drives the persist -> evaluate -> alert pipeline.
package ingest

import (
	"errors"
	"fmt"
	"time"

	"agrosense/internal/alert"
	"agrosense/internal/store"
)

// ErrKindNotResolved is returned when a provisioned sensor row carries a kind
// the classifier does not know. The whole batch is rejected.
var ErrKindNotResolved = errors.New("sensor kind not found")

// Payload is the raw telemetry body devices post. Every channel is optional;
// phosphorus/potassium/irrigation are 0/1 flags on the wire (1 = OK / active).
type Payload struct {
	Serial     string   `json:"serial"`
	Humidity   *float64 `json:"humidity,omitempty"`
	PH         *float64 `json:"ph,omitempty"`
	Phosphorus *int     `json:"phosphorus,omitempty"`
	Potassium  *int     `json:"potassium,omitempty"`
	Irrigation *int     `json:"irrigation,omitempty"`
}

// Classify maps the payload onto the sensor rows sharing its serial. A sensor
// of kind K accepts only the payload field matching K; an absent field simply
// produces no reading for that sensor.
func Classify(sensors []store.Sensor, p Payload, takenAt time.Time) ([]store.SensorReading, error) {
	var readings []store.SensorReading

	for _, sensor := range sensors {
		var value *float64

		switch sensor.Kind {
		case store.KindHumidity:
			value = p.Humidity
		case store.KindPH:
			value = p.PH
		case store.KindPhosphorus:
			value = flagValue(p.Phosphorus)
		case store.KindPotassium:
			value = flagValue(p.Potassium)
		case store.KindRelay:
			value = flagValue(p.Irrigation)
		default:
			return nil, fmt.Errorf("%w: sensor %d has kind %q", ErrKindNotResolved, sensor.ID, sensor.Kind)
		}

		if value == nil {
			continue
		}
		readings = append(readings, store.SensorReading{
			SensorID: sensor.ID,
			TakenAt:  takenAt,
			Value:    *value,
		})
	}

	return readings, nil
}

// Snapshot derives the evaluator's view of the payload. Missing nutrient flags
// default to OK and a missing relay flag to inactive, matching the device
// firmware's omission semantics.
func Snapshot(p Payload) alert.Snapshot {
	return alert.Snapshot{
		Humidity:         p.Humidity,
		PH:               p.PH,
		PhosphorusOK:     p.Phosphorus == nil || *p.Phosphorus == 1,
		PotassiumOK:      p.Potassium == nil || *p.Potassium == 1,
		IrrigationActive: p.Irrigation != nil && *p.Irrigation == 1,
	}
}

func flagValue(v *int) *float64 {
	if v == nil {
		return nil
	}
	f := float64(*v)
	return &f
}
