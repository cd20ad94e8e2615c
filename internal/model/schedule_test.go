package model

import (
	"testing"
	"time"
)

func TestFrequencyValid(t *testing.T) {
	for _, f := range []Frequency{FrequencyDaily, FrequencyWeekly, FrequencyMonthly} {
		if !f.Valid() {
			t.Errorf("%s should be valid", f)
		}
	}
	for _, f := range []Frequency{"", "hourly", "Daily"} {
		if f.Valid() {
			t.Errorf("%q should be invalid", f)
		}
	}
}

func TestFrequencyNextRun(t *testing.T) {
	from := time.Date(2025, 1, 31, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		freq Frequency
		want time.Time
	}{
		{FrequencyDaily, time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)},
		{FrequencyWeekly, time.Date(2025, 2, 7, 12, 0, 0, 0, time.UTC)},
		{FrequencyMonthly, time.Date(2025, 3, 3, 12, 0, 0, 0, time.UTC)},
		// Unknown frequencies behave like daily.
		{Frequency("bogus"), time.Date(2025, 2, 1, 12, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := tt.freq.NextRun(from); !got.Equal(tt.want) {
			t.Errorf("%s.NextRun() = %v, want %v", tt.freq, got, tt.want)
		}
	}
}
