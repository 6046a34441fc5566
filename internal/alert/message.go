package alert

import (
	"fmt"
	"strings"
	"time"
)

// maxSubjectLen mirrors the subject limit of the notification transport.
const maxSubjectLen = 100

func buildSubject(sensorID uint) string {
	return truncateSubject(fmt.Sprintf("[SENSOR ALERT %d] Critical conditions detected", sensorID))
}

func truncateSubject(s string) string {
	runes := []rune(s)
	if len(runes) <= maxSubjectLen {
		return s
	}
	return string(runes[:maxSubjectLen])
}

// buildBody renders the consolidated alert: banner, timestamp, the numbered
// condition list and the current values, each value marked when it is itself a
// triggering condition.
func buildBody(sensorID uint, conds []Condition, snap Snapshot, now time.Time, window time.Duration) string {
	var b strings.Builder

	fmt.Fprintf(&b, "AUTOMATED ALERT - SENSOR %d\n\n", sensorID)
	b.WriteString("!! CRITICAL CONDITIONS DETECTED !!\n\n")
	fmt.Fprintf(&b, "Timestamp: %s\n\n", now.UTC().Format(time.RFC3339))

	b.WriteString("Critical conditions identified:\n")
	for i, c := range conds {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, c.Text)
	}

	b.WriteString("\nCurrent values:\n")

	if snap.Humidity != nil {
		mark := ""
		if *snap.Humidity < 60 {
			mark = " (!)"
		}
		fmt.Fprintf(&b, "  - Humidity: %.1f%%%s\n", *snap.Humidity, mark)
	} else {
		b.WriteString("  - Humidity: N/A\n")
	}

	if snap.PH != nil {
		mark := ""
		if *snap.PH < 6.0 || *snap.PH > 7.0 {
			mark = " (!)"
		}
		fmt.Fprintf(&b, "  - pH: %.2f%s\n", *snap.PH, mark)
	} else {
		b.WriteString("  - pH: N/A\n")
	}

	if snap.PhosphorusOK {
		b.WriteString("  - Phosphorus: OK\n")
	} else {
		b.WriteString("  - Phosphorus: CRITICAL (!)\n")
	}

	if snap.PotassiumOK {
		b.WriteString("  - Potassium: OK\n")
	} else {
		b.WriteString("  - Potassium: CRITICAL (!)\n")
	}

	if snap.IrrigationActive {
		b.WriteString("  - Irrigation: ACTIVE (!)\n")
	} else {
		b.WriteString("  - Irrigation: INACTIVE\n")
	}

	b.WriteString("\n---\n")
	b.WriteString("This is an automated alert from the sensor monitoring service.\n")
	fmt.Fprintf(&b, "The next alert may be sent after %d minutes.\n", int(window.Minutes()))

	return b.String()
}
