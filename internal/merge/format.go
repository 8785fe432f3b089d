package merge

import (
	"fmt"
	"math"
)

// FormatHMS renders a total-seconds value as H:MM:SS. Negative or
// non-finite input yields a zero duration.
func FormatHMS(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return "0:00:00"
	}

	total := int(math.Round(seconds))
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60

	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}
