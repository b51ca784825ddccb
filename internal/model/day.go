package model

import (
	"fmt"
	"time"
)

// Day is a civil calendar date: one timezone-local midnight-to-midnight
// bucket, the atomic unit of all streak arithmetic. Day is comparable with ==
// and usable as a map key. The zero Day means "no day".
type Day struct {
	Year  int
	Month time.Month
	Date  int
}

// DayOf buckets an absolute instant into the calendar day it falls on in loc.
// Two instants map to the same Day iff they fall between the same local
// midnights.
func DayOf(ts time.Time, loc *time.Location) Day {
	y, m, d := ts.In(loc).Date()
	return Day{Year: y, Month: m, Date: d}
}

// IsZero reports whether d is the zero Day.
func (d Day) IsZero() bool { return d == Day{} }

// ordinal returns the day count since 1970-01-01 using pure integer
// civil-calendar arithmetic, so a given Day always yields the same value on
// every platform.
func (d Day) ordinal() int {
	y := d.Year
	m := int(d.Month)
	if m <= 2 {
		y--
	}
	era := y
	if y < 0 {
		era = y - 399
	}
	era /= 400
	yoe := y - era*400
	var mp int
	if m > 2 {
		mp = m - 3
	} else {
		mp = m + 9
	}
	doy := (153*mp+2)/5 + d.Date - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

// Sub returns the whole-day distance d minus other.
func (d Day) Sub(other Day) int { return d.ordinal() - other.ordinal() }

// Before reports whether d falls strictly earlier than other.
func (d Day) Before(other Day) bool { return d.ordinal() < other.ordinal() }

// AddDays returns the day n calendar days after d (n may be negative).
func (d Day) AddDays(n int) Day {
	t := time.Date(d.Year, d.Month, d.Date+n, 0, 0, 0, 0, time.UTC)
	y, m, dd := t.Date()
	return Day{Year: y, Month: m, Date: dd}
}

// String formats d as YYYY-MM-DD.
func (d Day) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Date)
}
