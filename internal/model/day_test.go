package model

import (
	"testing"
	"time"
)

func TestDayOf_LocalMidnightBoundary(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+2", 2*60*60)

	// 23:59 and 00:01 local time, two minutes apart.
	before := time.Date(2025, 3, 10, 21, 59, 0, 0, time.UTC)
	after := time.Date(2025, 3, 10, 22, 1, 0, 0, time.UTC)

	d1, d2 := DayOf(before, loc), DayOf(after, loc)
	if d1 == d2 {
		t.Fatalf("instants on different local days mapped to same Day %v", d1)
	}
	if d2.Sub(d1) != 1 {
		t.Fatalf("want adjacent days, got gap %d", d2.Sub(d1))
	}

	// Same instants truncated in UTC share a day.
	if DayOf(before, time.UTC) != DayOf(after, time.UTC) {
		t.Fatalf("UTC truncation should put both on 2025-03-10")
	}
}

func TestDayOf_SameLocalDayCollapses(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC-5", -5*60*60)
	a := time.Date(2025, 7, 4, 5, 0, 1, 0, loc)
	b := time.Date(2025, 7, 4, 23, 59, 59, 0, loc)
	if DayOf(a, loc) != DayOf(b, loc) {
		t.Fatalf("instants between the same local midnights must share a Day")
	}
}

func TestDay_SubAcrossBoundaries(t *testing.T) {
	t.Parallel()
	cases := []struct {
		a, b Day
		want int
	}{
		{Day{2025, time.March, 1}, Day{2025, time.February, 27}, 2},
		{Day{2025, time.January, 1}, Day{2024, time.December, 31}, 1},
		{Day{2024, time.March, 1}, Day{2024, time.February, 28}, 2}, // leap year
		{Day{2025, time.March, 1}, Day{2025, time.February, 28}, 1},
		{Day{2025, time.June, 10}, Day{2025, time.June, 10}, 0},
		{Day{1969, time.December, 31}, Day{1970, time.January, 1}, -1},
	}
	for _, tc := range cases {
		if got := tc.a.Sub(tc.b); got != tc.want {
			t.Errorf("%v - %v = %d, want %d", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestDay_AddDaysRoundTrip(t *testing.T) {
	t.Parallel()
	d := Day{2025, time.January, 30}
	for _, n := range []int{-400, -31, -1, 0, 1, 29, 365, 1000} {
		got := d.AddDays(n)
		if diff := got.Sub(d); diff != n {
			t.Fatalf("AddDays(%d): distance %d", n, diff)
		}
	}
}

func TestDay_OrdinalReproducible(t *testing.T) {
	t.Parallel()
	loc := time.FixedZone("UTC+9", 9*60*60)
	ts := time.Date(1993, 11, 2, 15, 30, 0, 0, time.UTC)
	if DayOf(ts, loc) != DayOf(ts, loc) {
		t.Fatalf("same timestamp and zone must yield identical Day")
	}
	d := DayOf(ts, loc)
	if d.Sub(d) != 0 {
		t.Fatalf("self-distance must be 0")
	}
}

func TestDay_StringAndZero(t *testing.T) {
	t.Parallel()
	d := Day{2025, time.February, 3}
	if got := d.String(); got != "2025-02-03" {
		t.Fatalf("String: %q", got)
	}
	if d.IsZero() {
		t.Fatalf("non-zero day reported zero")
	}
	if !(Day{}).IsZero() {
		t.Fatalf("zero day not reported zero")
	}
}

func TestDay_Before(t *testing.T) {
	t.Parallel()
	a := Day{2024, time.December, 31}
	b := Day{2025, time.January, 1}
	if !a.Before(b) || b.Before(a) || a.Before(a) {
		t.Fatalf("ordering broken for %v / %v", a, b)
	}
}
