// Package streak derives current and longest streaks from raw event logs.
//
// Everything here is a pure function of its arguments: the calculators never
// fail, hold no state, and may be called redundantly whenever events change.
// Backdated events therefore need no incremental patching; callers recompute
// from the full event set.
package streak

import (
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/akarev/keepup/internal/model"
)

// UniqueDays returns the distinct calendar days in loc on which at least one
// event tagged to entityID occurred, sorted ascending. Input order does not
// matter; same-day events collapse to one day.
func UniqueDays(events []model.Event, entityID uuid.UUID, loc *time.Location) []model.Day {
	seen := make(map[model.Day]struct{}, len(events))
	for _, ev := range events {
		if ev.TaggedTo(entityID) {
			seen[model.DayOf(ev.Timestamp, loc)] = struct{}{}
		}
	}
	days := make([]model.Day, 0, len(seen))
	for d := range seen {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}

// Compute derives the streak state for one entity from the events tagged to
// it, dispatching on the entity kind. today is the caller's current calendar
// day and the upper bound of all arithmetic.
func Compute(e model.Entity, events []model.Event, today model.Day, loc *time.Location) model.StreakState {
	days := UniqueDays(events, e.ID, loc)
	if e.Kind == model.KindRestraint {
		return restraintStreaks(model.DayOf(e.CreatedAt, loc), days, today)
	}
	return pursuitStreaks(days, today)
}

// pursuitStreaks counts days with at least one occurrence. Today not yet
// logged keeps yesterday's run alive for exactly one grace day; a gap of more
// than one day to the latest counted day means the streak is already broken.
func pursuitStreaks(days []model.Day, today model.Day) model.StreakState {
	var st model.StreakState
	if len(days) == 0 {
		return st
	}
	last := days[len(days)-1]
	st.LastEventDate = last

	if today.Sub(last) <= 1 {
		n := 1
		for i := len(days) - 1; i > 0; i-- {
			if days[i].Sub(days[i-1]) != 1 {
				break
			}
			n++
		}
		st.Current = n
	}

	run, longest := 1, 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 1 {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}
	st.Longest = longest
	return st
}

// restraintStreaks counts lapse-free days. created is the lower bound of all
// computation; the lapse day itself never counts as clean. There is no grace
// day on this side: the clean streak simply accrues until a lapse.
func restraintStreaks(created model.Day, lapses []model.Day, today model.Day) model.StreakState {
	var st model.StreakState
	if len(lapses) == 0 {
		n := today.Sub(created)
		if n < 0 {
			n = 0
		}
		st.Current, st.Longest = n, n
		return st
	}
	lastLapse := lapses[len(lapses)-1]
	st.LastEventDate = lastLapse

	cur := today.Sub(lastLapse)
	if cur < 0 {
		cur = 0
	}
	st.Current = cur

	// Linear scan with created and today as virtual sentinels: the run before
	// the first lapse, every run between consecutive lapses, and the run
	// after the last lapse (== cur).
	longest := lapses[0].Sub(created)
	for i := 1; i < len(lapses); i++ {
		if gap := lapses[i].Sub(lapses[i-1]) - 1; gap > longest {
			longest = gap
		}
	}
	if cur > longest {
		longest = cur
	}
	if longest < 0 {
		longest = 0
	}
	st.Longest = longest
	return st
}
