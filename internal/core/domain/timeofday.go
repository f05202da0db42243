package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// TimeOfDay is a wall-clock offset from midnight. It carries no date and
// no zone; opening hours are compared in venue-local clock time.
type TimeOfDay time.Duration

// NewTimeOfDay builds a TimeOfDay from hours and minutes.
func NewTimeOfDay(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// TimeOfDayOf returns the clock part of t in t's own location.
func TimeOfDayOf(t time.Time) TimeOfDay {
	h, m, s := t.Clock()
	return TimeOfDay(time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond()))
}

// ParseTimeOfDay accepts "15:04" or "15:04:05".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return TimeOfDayOf(t), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

// Duration returns the offset from midnight.
func (t TimeOfDay) Duration() time.Duration { return time.Duration(t) }

// String formats as HH:MM, or HH:MM:SS when seconds are set.
func (t TimeOfDay) String() string {
	d := time.Duration(t)
	if sec := d % time.Minute / time.Second; sec != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute), int(sec))
	}
	return fmt.Sprintf("%02d:%02d", int(d/time.Hour), int(d%time.Hour/time.Minute))
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
