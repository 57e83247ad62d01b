package interval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDurationDefaultUnit(t *testing.T) {
	d, err := ParseDuration("500", Milliseconds, true)
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, d)
}

func TestParseDurationSuffix(t *testing.T) {
	d, err := ParseDuration("2s", Milliseconds, true)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d)

	d, err = ParseDuration("3m", Milliseconds, true)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Minute, d)
}

func TestParseDurationZeroDisallowed(t *testing.T) {
	d, err := ParseDuration("0", Seconds, false)
	require.NoError(t, err)
	assert.Equal(t, Infinite, d)
}

func TestParseDurationZeroAllowed(t *testing.T) {
	d, err := ParseDuration("0", Seconds, true)
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)
}

func TestParseDurationNegativeIsInfinite(t *testing.T) {
	d, err := ParseDuration("-5", Seconds, true)
	require.NoError(t, err)
	assert.Equal(t, Infinite, d)
}

func TestParseDurationInvalid(t *testing.T) {
	_, err := ParseDuration("not-a-number", Seconds, true)
	require.Error(t, err)
}

func TestCronTimeSpanWrapperDegradesToFallback(t *testing.T) {
	w, err := NewCronTimeSpanWrapper("30s", Milliseconds, true)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, w.Value())
}

func TestCronTimeSpanWrapperNextOccurrence(t *testing.T) {
	w, err := NewCronTimeSpanWrapper("@every 1m", Milliseconds, true)
	require.NoError(t, err)

	fixed := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	got := w.Value()
	assert.InDelta(t, float64(time.Minute), float64(got), float64(10*time.Millisecond))
}

func TestLooksLikeCron(t *testing.T) {
	assert.True(t, looksLikeCron("@every 5m"))
	assert.True(t, looksLikeCron("0 * * * *"))
	assert.False(t, looksLikeCron("500ms"))
}
