package model

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock accepts "HH:MM" and "HH:MM:SS" (seconds are dropped).
func ParseClock(s string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("parse clock %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("parse clock %q: bad hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("parse clock %q: bad minute", s)
	}
	return Clock{Hour: h, Minute: m}, nil
}

// MustParseClock is ParseClock for fixtures; it panics on error.
func MustParseClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// ClockOf returns the wall-clock time of t in t's location.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Minutes returns minutes since midnight.
func (c Clock) Minutes() int {
	return c.Hour*60 + c.Minute
}

func (c Clock) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// TimeWindow is the working window of a shift code.
type TimeWindow struct {
	Start Clock `yaml:"start" json:"start"`
	End   Clock `yaml:"end" json:"end"`
}

// Overnight reports whether the window ends on the following calendar day.
// An end equal to the start is treated as a full 24h shift.
func (w TimeWindow) Overnight() bool {
	return w.End.Minutes() <= w.Start.Minutes()
}

// Duration is always positive: overnight windows get 24h added to the end.
func (w TimeWindow) Duration() time.Duration {
	end := w.End.Minutes()
	if w.Overnight() {
		end += 24 * 60
	}
	return time.Duration(end-w.Start.Minutes()) * time.Minute
}
