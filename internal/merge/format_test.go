package merge

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatHMS(t *testing.T) {
	tests := []struct {
		name    string
		seconds float64
		want    string
	}{
		{"zero", 0, "0:00:00"},
		{"seconds only", 42, "0:00:42"},
		{"minute boundary", 60, "0:01:00"},
		{"hour minute second", 3661, "1:01:01"},
		{"multi hour", 7325, "2:02:05"},
		{"fraction rounds up", 59.6, "0:01:00"},
		{"fraction rounds down", 59.4, "0:00:59"},
		{"over a day keeps hours", 90000, "25:00:00"},
		{"negative", -5, "0:00:00"},
		{"nan", math.NaN(), "0:00:00"},
		{"positive infinity", math.Inf(1), "0:00:00"},
		{"negative infinity", math.Inf(-1), "0:00:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatHMS(tt.seconds))
		})
	}
}
