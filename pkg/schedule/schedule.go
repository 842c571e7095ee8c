// Package schedule computes when the next recording starts and how long it
// lasts from the daily start/stop periods of the device settings.
package schedule

import (
	"fmt"
	"math"
	"time"

	"github.com/itohio/gospl/pkg/config"
)

const (
	// Never is the persisted start time of a recording that is not scheduled.
	Never uint32 = math.MaxUint32

	secondsInMinute = 60
	secondsInDay    = 24 * 60 * 60
)

// Recording is a scheduled recording in epoch seconds.
type Recording struct {
	Start    uint32 // Epoch seconds, Never if nothing is scheduled
	Duration uint32 // Seconds
}

// Scheduled reports whether the recording has a start time.
func (r Recording) Scheduled() bool {
	return r.Start != Never
}

// StartTime returns the start as a UTC time.
func (r Recording) StartTime() time.Time {
	return time.Unix(int64(r.Start), 0).UTC()
}

// Due reports whether the recording should start at now.
func (r Recording) Due(now uint32) bool {
	return r.Scheduled() && now >= r.Start
}

func (r Recording) String() string {
	if !r.Scheduled() {
		return "never"
	}
	return fmt.Sprintf("%s for %ds", r.StartTime().Format(time.DateTime), r.Duration)
}

// SecondOfDay returns the UTC second of the day of an epoch time.
func SecondOfDay(now uint32) uint32 {
	return now % secondsInDay
}

// Next returns the next recording at or after now.
//
// Each active period [start, stop) is cut into duty cycles of
// RecordDuration+SleepDuration seconds starting at the period start. Inside
// a period the next cycle boundary strictly after the elapsed time is used,
// and the duration is capped at the end of the period. When no period is
// left today the first period of tomorrow is used.
func Next(now uint32, s *config.Settings) Recording {
	periods := s.ActivePeriods()
	if len(periods) == 0 {
		return Recording{Start: Never, Duration: uint32(s.RecordDuration)}
	}

	record := uint32(s.RecordDuration)
	cycle := record + uint32(s.SleepDuration)
	if cycle == 0 {
		return Recording{Start: Never}
	}

	current := SecondOfDay(now)

	for _, p := range periods {
		start := uint32(p.StartMinutes) * secondsInMinute
		stop := uint32(p.StopMinutes) * secondsInMinute

		if current < start {
			return Recording{
				Start:    now + (start - current),
				Duration: min(record, stop-start),
			}
		}

		if current < stop {
			cycles := (current - start + cycle) / cycle
			offset := cycles * cycle

			if offset < stop-start {
				return Recording{
					Start:    now - (current - start) + offset,
					Duration: min(record, stop-start-offset),
				}
			}
		}
	}

	first := periods[0]
	start := uint32(first.StartMinutes) * secondsInMinute
	stop := uint32(first.StopMinutes) * secondsInMinute

	return Recording{
		Start:    now + (secondsInDay - current) + start,
		Duration: min(record, stop-start),
	}
}
