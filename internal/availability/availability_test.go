package availability

import (
	"math/rand/v2"
	"testing"

	"github.com/example/hall-scheduler/internal/timewindow"
)

func iv(t *testing.T, start, end string) Interval {
	t.Helper()
	s, err := timewindow.ParseClock(start)
	if err != nil {
		t.Fatalf("parse %q: %v", start, err)
	}
	e, err := timewindow.ParseClock(end)
	if err != nil {
		t.Fatalf("parse %q: %v", end, err)
	}
	return Interval{Start: s, End: e}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	got := Merge([]Interval{
		iv(t, "13:00", "14:00"),
		iv(t, "09:00", "10:00"),
		iv(t, "10:00", "11:00"), // touches the previous run
		iv(t, "09:30", "09:45"), // contained
		iv(t, "15:00", "15:00"), // empty
	})
	want := []Interval{iv(t, "09:00", "11:00"), iv(t, "13:00", "14:00")}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("run %d: expected %v, got %v", i, want[i], got[i])
		}
	}
}

func TestFreePeriodsWorkedExample(t *testing.T) {
	t.Parallel()

	hours := iv(t, "08:00", "22:00")
	occupied := []Interval{
		iv(t, "09:00", "11:00"), // recurring slot active on Monday
		iv(t, "13:00", "14:00"), // approved booking
	}

	periods := FreePeriods(hours, occupied, 60)
	want := []Interval{iv(t, "08:00", "09:00"), iv(t, "11:00", "13:00"), iv(t, "14:00", "22:00")}
	wantSubSlots := []int{1, 2, 8}
	if len(periods) != len(want) {
		t.Fatalf("expected %d periods, got %#v", len(want), periods)
	}
	for i, period := range periods {
		if period.Interval() != want[i] {
			t.Fatalf("period %d: expected %v, got %v", i, want[i], period.Interval())
		}
		if len(period.SubSlots) != wantSubSlots[i] {
			t.Fatalf("period %d: expected %d sub-slots, got %d", i, wantSubSlots[i], len(period.SubSlots))
		}
		if period.SubSlots[0].Start != period.Start {
			t.Fatalf("period %d: sub-slots must start at the period start", i)
		}
		for _, sub := range period.SubSlots {
			if sub.Minutes() != 60 {
				t.Fatalf("period %d: unexpected sub-slot %v", i, sub)
			}
		}
	}
}

func TestFreePeriodsEdges(t *testing.T) {
	t.Parallel()

	hours := iv(t, "08:00", "22:00")

	t.Run("no occupants yields whole day", func(t *testing.T) {
		periods := FreePeriods(hours, nil, 0)
		if len(periods) != 1 || periods[0].Interval() != hours || periods[0].SubSlots != nil {
			t.Fatalf("unexpected periods %#v", periods)
		}
	})

	t.Run("occupants outside working hours are clipped", func(t *testing.T) {
		periods := FreePeriods(hours, []Interval{iv(t, "06:00", "09:00"), iv(t, "21:00", "24:00")}, 0)
		if len(periods) != 1 || periods[0].Interval() != iv(t, "09:00", "21:00") {
			t.Fatalf("unexpected periods %#v", periods)
		}
	})

	t.Run("fully occupied day has no free periods", func(t *testing.T) {
		if periods := FreePeriods(hours, []Interval{iv(t, "00:00", "24:00")}, 30); len(periods) != 0 {
			t.Fatalf("expected none, got %#v", periods)
		}
	})

	t.Run("partial trailing sub-slot is dropped", func(t *testing.T) {
		periods := FreePeriods(iv(t, "08:00", "10:30"), nil, 60)
		if len(periods) != 1 || len(periods[0].SubSlots) != 2 {
			t.Fatalf("unexpected periods %#v", periods)
		}
		if last := periods[0].SubSlots[1]; last != iv(t, "09:00", "10:00") {
			t.Fatalf("unexpected last sub-slot %v", last)
		}
		if periods[0].End != iv(t, "08:00", "10:30").End {
			t.Fatalf("period must keep its unrounded end")
		}
	})
}

// Free periods are disjoint, sorted and together with the merged occupied
// runs cover working hours exactly.
func TestFreePeriodsPartitionWorkingHours(t *testing.T) {
	t.Parallel()

	rng := rand.New(rand.NewPCG(42, 7))
	hours := Interval{Start: 8 * 60, End: 22 * 60}

	for round := 0; round < 500; round++ {
		var occupied []Interval
		for n := rng.IntN(8); n > 0; n-- {
			start := timewindow.Clock(rng.IntN(timewindow.MinutesPerDay))
			length := timewindow.Clock(1 + rng.IntN(240))
			occupied = append(occupied, Interval{Start: start, End: min(start+length, timewindow.MinutesPerDay)})
		}

		periods := FreePeriods(hours, occupied, 0)

		covered := make([]bool, timewindow.MinutesPerDay)
		mark := func(i Interval, label string) {
			for m := i.Start; m < i.End; m++ {
				if covered[m] {
					t.Fatalf("round %d: minute %d covered twice (%s)", round, m, label)
				}
				covered[m] = true
			}
		}
		var clipped []Interval
		for _, o := range occupied {
			c := Interval{Start: max(o.Start, hours.Start), End: min(o.End, hours.End)}
			if !c.Empty() {
				clipped = append(clipped, c)
			}
		}
		for _, run := range Merge(clipped) {
			mark(run, "occupied")
		}
		for i, p := range periods {
			if p.Interval().Empty() {
				t.Fatalf("round %d: empty free period %v", round, p)
			}
			if i > 0 && periods[i-1].End >= p.Start {
				t.Fatalf("round %d: periods not sorted and separated: %v then %v", round, periods[i-1], p)
			}
			mark(p.Interval(), "free")
		}
		for m := timewindow.Clock(0); m < timewindow.MinutesPerDay; m++ {
			inHours := m >= hours.Start && m < hours.End
			if covered[m] != inHours {
				t.Fatalf("round %d: minute %d coverage=%v, in working hours=%v", round, m, covered[m], inHours)
			}
		}
	}
}
