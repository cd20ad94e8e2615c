package model

import "time"

// Frequency is how often a scheduled cleanup runs.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether the frequency is one of the supported values.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// NextRun computes the next run timestamp counting from the given time.
func (f Frequency) NextRun(from time.Time) time.Time {
	switch f {
	case FrequencyWeekly:
		return from.AddDate(0, 0, 7)
	case FrequencyMonthly:
		return from.AddDate(0, 1, 0)
	default:
		return from.AddDate(0, 0, 1)
	}
}

// ScheduleConfig is the single per-user cleanup schedule row. NextRunAt is
// meaningless while the schedule is inactive; the scheduler alone advances it.
type ScheduleConfig struct {
	ID          string
	UserID      string
	Frequency   Frequency
	AutoApprove bool
	IsActive    bool
	LastRunAt   *time.Time
	NextRunAt   *time.Time
}
