package appointment

import (
	"sort"
	"time"
)

// Interval is half-open: [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Overlaps uses the half-open test, so back-to-back intervals do not clash.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// FreeSlots walks [windowStart, windowEnd) in steps of step and returns the
// start of every slot that ends inside the window and overlaps no busy
// interval.
func FreeSlots(windowStart, windowEnd time.Time, step time.Duration, busy []Interval) []time.Time {
	slots := []time.Time{}
	if step <= 0 {
		return slots
	}

	for cursor := windowStart; !cursor.Add(step).After(windowEnd); cursor = cursor.Add(step) {
		slot := Interval{Start: cursor, End: cursor.Add(step)}
		free := true
		for _, b := range busy {
			if slot.Overlaps(b) {
				free = false
				break
			}
		}
		if free {
			slots = append(slots, cursor)
		}
	}
	return slots
}

func sortTimes(ts []time.Time) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].Before(ts[j]) })
}
