package irrigation

import (
	"context"
	"log/slog"
	"time"

	"agrosense/internal/store"
	"agrosense/internal/weather"
)

// WeatherLookup is the weather collaborator contract.
type WeatherLookup interface {
	Lookup(ctx context.Context, city string) (weather.Snapshot, error)
}

// Input is the soil state accompanying an irrigation decision request.
// The same wire shape as telemetry ingestion; nutrient flags are 0/1.
type Input struct {
	Serial     string   `json:"serial"`
	Humidity   *float64 `json:"humidity,omitempty"`
	PH         *float64 `json:"ph,omitempty"`
	Phosphorus *int     `json:"phosphorus,omitempty"`
	Potassium  *int     `json:"potassium,omitempty"`
}

type Service struct {
	repo        *store.Repo
	weather     WeatherLookup
	cache       *weather.Cache
	predictor   Predictor
	defaultCity string
}

func NewService(repo *store.Repo, lookup WeatherLookup, cache *weather.Cache, predictor Predictor, defaultCity string) *Service {
	if defaultCity == "" {
		defaultCity = "Sao Paulo"
	}
	return &Service{
		repo:        repo,
		weather:     lookup,
		cache:       cache,
		predictor:   predictor,
		defaultCity: defaultCity,
	}
}

// inputs is everything the decision needs, gathered up front so the fallback
// policy lives in exactly one place instead of scattered error handlers.
type inputs struct {
	Raining  bool
	Features Features
}

// conservativeInputs is the fail-safe stand-in when any collaborator fails:
// soaked soil, neutral pH and rain, which always resolves to "do not irrigate".
func conservativeInputs(now time.Time) inputs {
	return inputs{
		Raining: true,
		Features: Features{
			MinuteOfDay: minuteOfDay(now),
			Phosphorus:  1,
			Potassium:   1,
			PH:          7.0,
			Humidity:    100,
		},
	}
}

// Decide resolves the sensor's city, consults weather and the classifier, and
// returns whether to irrigate. Unknown serials surface as
// store.ErrSensorNotFound; every other failure degrades to the conservative
// defaults rather than failing the decision.
func (s *Service) Decide(ctx context.Context, in Input) (bool, error) {
	now := time.Now().UTC()

	sensors, err := s.repo.SensorsBySerial(ctx, in.Serial)
	if err != nil {
		return false, err
	}

	gathered, err := s.gatherInputs(ctx, sensors, in, now)
	if err != nil {
		slog.Warn("irrigation inputs unavailable, applying conservative defaults", "serial", in.Serial, "error", err)
		gathered = conservativeInputs(now)
	}

	if gathered.Raining {
		slog.Info("rain expected, not irrigating", "serial", in.Serial)
		return false, nil
	}

	label, err := s.predictor.Predict(ctx, gathered.Features)
	if err != nil {
		slog.Warn("prediction failed, not irrigating", "serial", in.Serial, "error", err)
		return false, nil
	}

	irrigate := label == "Sim"
	slog.Info("irrigation decision", "serial", in.Serial, "label", label, "irrigate", irrigate)
	return irrigate, nil
}

func (s *Service) gatherInputs(ctx context.Context, sensors []store.Sensor, in Input, now time.Time) (inputs, error) {
	city := s.defaultCity
	for _, sensor := range sensors {
		resolved, err := s.repo.CityForSensor(ctx, sensor.ID)
		if err != nil {
			return inputs{}, err
		}
		if resolved != "" {
			city = resolved
			break
		}
	}

	snap, ok := s.cache.Get()
	if !ok {
		fetched, err := s.weather.Lookup(ctx, city)
		if err != nil {
			return inputs{}, err
		}
		s.cache.Set(fetched)
		snap = fetched
	}

	f := Features{
		MinuteOfDay: minuteOfDay(now),
		Phosphorus:  1,
		Potassium:   1,
		PH:          7.0,
		Humidity:    100,
	}
	if in.Phosphorus != nil {
		f.Phosphorus = float64(*in.Phosphorus)
	}
	if in.Potassium != nil {
		f.Potassium = float64(*in.Potassium)
	}
	if in.PH != nil {
		f.PH = *in.PH
	}
	if in.Humidity != nil {
		f.Humidity = *in.Humidity
	}

	return inputs{Raining: snap.Raining, Features: f}, nil
}

func minuteOfDay(t time.Time) float64 {
	return float64(t.Hour()*60 + t.Minute())
}
