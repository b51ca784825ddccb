// Package overview reduces computed entity streak states into summary
// statistics for dashboard-style callers. The reduction is read-only.
package overview

import "github.com/akarev/keepup/internal/model"

// Overview summarizes the active entities of one collection.
type Overview struct {
	TotalActiveStreaks int // entities currently mid-streak
	TotalStreakDays    int // sum of current streaks over those entities
	TopCurrentStreak   int
	LongestEverStreak  int

	// Restraint-only figures; zero when the collection holds no restraints.
	TotalLapses       int // logged lapses summed per tagged restraint
	MeanCurrentStreak int // integer-rounded mean over restraints mid-streak
}

// Build reduces already-computed streak states. Inactive entities are
// excluded; no entity is mutated. events is the full event log, used only to
// count lapses per restraint (a lapse tagged to two restraints counts once
// for each).
func Build(entities []model.Entity, events []model.Event) Overview {
	var o Overview
	var cleanRuns, cleanSum int
	for _, e := range entities {
		if !e.Active {
			continue
		}
		if e.Streak.Current > 0 {
			o.TotalActiveStreaks++
			o.TotalStreakDays += e.Streak.Current
			if e.Streak.Current > o.TopCurrentStreak {
				o.TopCurrentStreak = e.Streak.Current
			}
		}
		if e.Streak.Longest > o.LongestEverStreak {
			o.LongestEverStreak = e.Streak.Longest
		}
		if e.Kind == model.KindRestraint {
			for _, ev := range events {
				if ev.TaggedTo(e.ID) {
					o.TotalLapses++
				}
			}
			if e.Streak.Current > 0 {
				cleanRuns++
				cleanSum += e.Streak.Current
			}
		}
	}
	if cleanRuns > 0 {
		o.MeanCurrentStreak = (cleanSum + cleanRuns/2) / cleanRuns
	}
	return o
}
