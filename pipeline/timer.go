// ABOUTME: Pipeline timer holding a Quartz-style cron spec and the only-on-changes flag.
// ABOUTME: Specs are parsed with robfig/cron using a seconds-first six-field layout.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var timerParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// Timer triggers pipeline runs on a cron-like schedule.
type Timer struct {
	spec          string
	onlyOnChanges bool
}

// NewTimer creates a timer. The spec is not validated; see ParseTimerSpec.
func NewTimer(spec string, onlyOnChanges bool) *Timer {
	return &Timer{spec: spec, onlyOnChanges: onlyOnChanges}
}

// Spec returns the cron spec string.
func (t *Timer) Spec() string { return t.spec }

// SetSpec replaces the cron spec string.
func (t *Timer) SetSpec(v string) { t.spec = v }

// OnlyOnChanges reports whether the timer fires only when materials changed.
func (t *Timer) OnlyOnChanges() bool { return t.onlyOnChanges }

// SetOnlyOnChanges sets the only-on-changes flag.
func (t *Timer) SetOnlyOnChanges(v bool) { t.onlyOnChanges = v }

// Next returns the first fire time strictly after the given instant.
func (t *Timer) Next(after time.Time) (time.Time, error) {
	sched, err := ParseTimerSpec(t.spec)
	if err != nil {
		return time.Time{}, err
	}
	return sched.Next(after), nil
}

// ParseTimerSpec parses a Quartz-style spec: seconds, minutes, hours,
// day-of-month, month, day-of-week, and an optional year that must be a
// wildcard. "?" is accepted in the day fields. Numeric days of the week
// run 1-7 from SUN to SAT.
func ParseTimerSpec(spec string) (cron.Schedule, error) {
	fields := strings.Fields(spec)
	if len(fields) == 7 {
		if fields[6] != "*" && fields[6] != "?" {
			return nil, fmt.Errorf("timer spec %q: year field %q is not supported", spec, fields[6])
		}
		fields = fields[:6]
	}
	if len(fields) != 6 {
		return nil, fmt.Errorf("timer spec %q: expected 6 fields, got %d", spec, len(fields))
	}
	dow, err := quartzDOW(fields[5])
	if err != nil {
		return nil, fmt.Errorf("timer spec %q: %w", spec, err)
	}
	fields[5] = dow
	sched, err := timerParser.Parse(strings.Join(fields, " "))
	if err != nil {
		return nil, fmt.Errorf("timer spec %q: %w", spec, err)
	}
	return sched, nil
}

// quartzDOW rewrites the numeric values of a day-of-week field from 1-7 to
// the 0-6 numbering robfig/cron expects. Names and wildcards pass through.
func quartzDOW(field string) (string, error) {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		base, step, hasStep := strings.Cut(part, "/")
		lo, hi, isRange := strings.Cut(base, "-")
		lo, err := shiftDay(lo)
		if err != nil {
			return "", err
		}
		base = lo
		if isRange {
			if hi, err = shiftDay(hi); err != nil {
				return "", err
			}
			base = lo + "-" + hi
		}
		if hasStep {
			base += "/" + step
		}
		parts[i] = base
	}
	return strings.Join(parts, ","), nil
}

func shiftDay(v string) (string, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return v, nil
	}
	if n < 1 || n > 7 {
		return "", fmt.Errorf("day-of-week %d out of range 1-7", n)
	}
	return strconv.Itoa(n - 1), nil
}
