package alert

import "fmt"

// Category tags the rule a condition came from.
type Category string

const (
	CategoryHumidityLow  Category = "humidity_low"
	CategoryPHRange      Category = "ph_out_of_range"
	CategoryPhosphorus   Category = "phosphorus_critical"
	CategoryPotassium    Category = "potassium_critical"
	CategoryIrrigationOn Category = "irrigation_active"
)

// Condition is one detected critical state. Ephemeral; never persisted.
type Condition struct {
	Category Category
	Text     string
}

// Snapshot is the sensor state the evaluator runs over. Nil humidity/pH means
// the channel was not reported and its rule never fires.
type Snapshot struct {
	Humidity         *float64
	PH               *float64
	PhosphorusOK     bool
	PotassiumOK      bool
	IrrigationActive bool
}

// Evaluate checks each rule independently and returns the conditions that
// fired, in fixed rule order. Pure; no side effects.
func Evaluate(s Snapshot) []Condition {
	var conds []Condition

	if s.Humidity != nil && *s.Humidity < 60 {
		conds = append(conds, Condition{
			Category: CategoryHumidityLow,
			Text:     fmt.Sprintf("Humidity low (%.1f%%) < 60%%", *s.Humidity),
		})
	}

	if s.PH != nil && (*s.PH < 6.0 || *s.PH > 7.0) {
		conds = append(conds, Condition{
			Category: CategoryPHRange,
			Text:     fmt.Sprintf("pH out of range (%.2f) - ideal: 6.0 to 7.0", *s.PH),
		})
	}

	if !s.PhosphorusOK {
		conds = append(conds, Condition{Category: CategoryPhosphorus, Text: "Phosphorus critical"})
	}

	if !s.PotassiumOK {
		conds = append(conds, Condition{Category: CategoryPotassium, Text: "Potassium critical"})
	}

	// Informational, but still a reportable condition.
	if s.IrrigationActive {
		conds = append(conds, Condition{Category: CategoryIrrigationOn, Text: "Irrigation active"})
	}

	return conds
}
