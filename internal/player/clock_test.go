package player

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseClockKnownValues(t *testing.T) {
	cases := map[string]int{
		"0:00:00":  0,
		"0:00:59":  59,
		"0:01:00":  60,
		"1:00:00":  3600,
		"1:01:01":  3661,
		"23:59:59": 86399,
	}
	for clock, want := range cases {
		assert.Equal(t, want, parseClock(clock), "parseClock(%q)", clock)
	}
}

func TestParseClockMalformed(t *testing.T) {
	assert.Zero(t, parseClock("not-a-clock"))
	assert.Zero(t, parseClock(""))
}

func TestFormatClockRoundTrip(t *testing.T) {
	for _, secs := range []int{0, 1, 59, 60, 61, 3599, 3600, 86399} {
		assert.Equal(t, secs, parseClock(formatClock(secs)))
	}
}

func TestFormatClockClampsNegative(t *testing.T) {
	assert.Equal(t, "0:00:00", formatClock(-5))
}

func TestPad2(t *testing.T) {
	assert.Equal(t, "05", pad2(5))
	assert.Equal(t, "45", pad2(45))
}
