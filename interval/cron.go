package interval

import (
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"
)

// CronTimeSpanWrapper is an IntervalProvider that parses an @-prefixed or
// space-containing string as a crontab schedule, exposing the time until
// the next occurrence as Value. A string that does not look like a cron
// schedule degrades to plain TimeSpanWrapper behavior.
type CronTimeSpanWrapper struct {
	schedule cron.Schedule // nil when degraded to fallback
	fallback *TimeSpanWrapper

	now func() time.Time // overridable for tests
}

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// looksLikeCron reports whether raw should be parsed as a crontab schedule,
// per spec.md §4.10: @-prefixed, or containing whitespace.
func looksLikeCron(raw string) bool {
	return strings.HasPrefix(raw, "@") || strings.ContainsAny(raw, " \t")
}

// NewCronTimeSpanWrapper parses raw as a cron schedule if it looks like one,
// otherwise falls back to NewTimeSpanWrapper with the same defaultUnit and
// allowZero semantics.
func NewCronTimeSpanWrapper(raw string, defaultUnit Unit, allowZero bool) (*CronTimeSpanWrapper, error) {
	raw = strings.TrimSpace(raw)
	if looksLikeCron(raw) {
		schedule, err := cronParser.Parse(raw)
		if err != nil {
			return nil, err
		}
		return &CronTimeSpanWrapper{schedule: schedule, now: time.Now}, nil
	}

	fallback, err := NewTimeSpanWrapper(raw, defaultUnit, allowZero)
	if err != nil {
		return nil, err
	}
	return &CronTimeSpanWrapper{fallback: fallback, now: time.Now}, nil
}

// Value implements Provider. For a cron schedule it is the time until the
// next occurrence strictly after now+500ms (so a Value() call right at a
// scheduled instant doesn't immediately re-fire); for a degraded wrapper it
// delegates to the fallback.
func (w *CronTimeSpanWrapper) Value() time.Duration {
	if w.schedule == nil {
		return w.fallback.Value()
	}
	now := w.now()
	next := w.schedule.Next(now.Add(500 * time.Millisecond))
	return next.Sub(now)
}
