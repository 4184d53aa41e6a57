package data

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func at(day, hour, min int) time.Time {
	return time.Date(2024, 1, day, hour, min, 0, 0, time.UTC)
}

func TestCalendarSession(t *testing.T) {
	t.Parallel()

	cal := NewCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) // MLK day

	assert.False(t, cal.IsTradingDay(at(13, 12, 0)), "saturday")
	assert.False(t, cal.IsTradingDay(at(15, 12, 0)), "holiday")
	assert.True(t, cal.IsTradingDay(at(16, 12, 0)))

	assert.True(t, cal.InSession(at(16, 9, 30)))
	assert.True(t, cal.InSession(at(16, 16, 0)))
	assert.False(t, cal.InSession(at(16, 9, 29)))
	assert.False(t, cal.InSession(at(16, 16, 1)))
}

func TestCalendarNextOpen(t *testing.T) {
	t.Parallel()

	cal := NewCalendar(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))

	tests := []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{"in session", at(16, 11, 0), at(16, 11, 0)},
		{"before open", at(16, 7, 0), at(16, 9, 30)},
		{"after close", at(16, 17, 0), at(17, 9, 30)},
		{"friday evening skips weekend and holiday", at(12, 16, 30), at(16, 9, 30)},
		{"midnight", at(17, 0, 0), at(17, 9, 30)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.NextOpen(tt.in))
		})
	}
}

func TestCalendarAdvance(t *testing.T) {
	t.Parallel()

	cal := NewCalendar()

	tests := []struct {
		name    string
		from    time.Time
		minutes int
		want    time.Time
	}{
		{"zero in session", at(16, 10, 0), 0, at(16, 10, 0)},
		{"zero before open snaps", at(16, 0, 0), 0, at(16, 9, 30)},
		{"within day", at(16, 9, 30), 15, at(16, 9, 45)},
		{"lands on close", at(16, 15, 45), 15, at(16, 16, 0)},
		{"rolls over night", at(16, 15, 45), 30, at(17, 9, 45)},
		{"from close", at(16, 16, 0), 15, at(17, 9, 45)},
		{"over weekend", at(19, 15, 30), 60, at(22, 10, 0)},
		{"full session", at(16, 9, 30), 390, at(16, 16, 0)},
		{"two sessions", at(16, 9, 30), 780, at(17, 16, 0)},
		{"negative is zero", at(16, 10, 0), -5, at(16, 10, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cal.Advance(tt.from, tt.minutes))
		})
	}
}

func TestZeroCalendarUsesRegularSession(t *testing.T) {
	t.Parallel()

	var cal Calendar
	assert.Equal(t, at(16, 9, 30), cal.NextOpen(at(16, 8, 0)))
}
