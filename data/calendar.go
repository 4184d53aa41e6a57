package data

import (
	"time"

	"github.com/rustyeddy/optsim/market"
)

// TimeRange is a daily session window in wall clock hours and minutes.
// Both ends are inclusive.
type TimeRange struct {
	StartHour   int
	StartMinute int
	EndHour     int
	EndMinute   int
}

func (r TimeRange) open(day time.Time) time.Time {
	return day.Add(time.Duration(r.StartHour)*time.Hour + time.Duration(r.StartMinute)*time.Minute)
}

func (r TimeRange) close(day time.Time) time.Time {
	return day.Add(time.Duration(r.EndHour)*time.Hour + time.Duration(r.EndMinute)*time.Minute)
}

// RegularSession is the US equity options session, 09:30 to 16:00.
var RegularSession = TimeRange{9, 30, 16, 0}

// maxCalendarScan bounds the search for the next trading day.
const maxCalendarScan = 3660

// Calendar decides which wall clock instants are tradable. Timestamps are
// exchange local times carried in UTC.
type Calendar struct {
	Session  TimeRange
	holidays map[time.Time]struct{}
}

// NewCalendar returns a Monday to Friday calendar over the regular
// session, closed on the given dates.
func NewCalendar(holidays ...time.Time) Calendar {
	c := Calendar{Session: RegularSession, holidays: map[time.Time]struct{}{}}
	for _, h := range holidays {
		c.holidays[market.DateOf(h)] = struct{}{}
	}
	return c
}

func (c Calendar) session() TimeRange {
	if c.Session == (TimeRange{}) {
		return RegularSession
	}
	return c.Session
}

func (c Calendar) IsTradingDay(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[market.DateOf(t)]
	return !holiday
}

func (c Calendar) InSession(t time.Time) bool {
	if !c.IsTradingDay(t) {
		return false
	}
	day := market.DateOf(t)
	s := c.session()
	return !t.Before(s.open(day)) && !t.After(s.close(day))
}

// NextOpen returns t when it is inside a session, else the start of the
// next session.
func (c Calendar) NextOpen(t time.Time) time.Time {
	s := c.session()
	for i := 0; i < maxCalendarScan; i++ {
		day := market.DateOf(t)
		if c.IsTradingDay(day) {
			if open := s.open(day); t.Before(open) {
				return open
			}
			if !t.After(s.close(day)) {
				return t
			}
		}
		t = day.AddDate(0, 0, 1)
	}
	return t
}

// Advance moves t forward by minutes of in-session time, first snapping to
// the next open when t is outside a session.
func (c Calendar) Advance(t time.Time, minutes int) time.Time {
	s := c.session()
	t = c.NextOpen(t)
	remaining := time.Duration(max(minutes, 0)) * time.Minute

	for i := 0; i < maxCalendarScan; i++ {
		end := s.close(market.DateOf(t))
		avail := end.Sub(t)
		if remaining <= avail {
			return t.Add(remaining)
		}
		remaining -= avail
		t = c.NextOpen(market.DateOf(t).AddDate(0, 0, 1))
	}
	return t
}
