package cronodate

import (
	"testing"
	"time"

	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
)

func mustSet(t *testing.T, d *Date, u Unit, spec string) {
	t.Helper()
	if err := d.Set(u, spec); err != nil {
		t.Fatalf("Set(%s, %q): %v", u, spec, err)
	}
}

func TestFillMatchesEverything(t *testing.T) {
	d := New()
	d.Fill()
	if !d.Match(time.Date(2026, 7, 29, 13, 45, 0, 0, time.UTC)) {
		t.Fatal("filled Date should match any time")
	}
}

func TestEmptyMatchesNothing(t *testing.T) {
	d := New()
	d.Empty()
	if d.Match(time.Date(2026, 7, 29, 13, 45, 0, 0, time.UTC)) {
		t.Fatal("empty Date should match no time")
	}
}

func TestSetWildcardThenInteger(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Hour, "9")
	if d.Match(time.Date(2026, 7, 29, 8, 0, 0, 0, time.UTC)) {
		t.Fatal("hour=9 matched an 08:00 time")
	}
	if !d.Match(time.Date(2026, 7, 29, 9, 0, 0, 0, time.UTC)) {
		t.Fatal("hour=9 failed to match a 09:00 time")
	}
}

func TestSetRangeAndStride(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Minute, "0-10/5")
	for _, m := range []int{0, 5, 10} {
		if !d.items[Minute].contains(m) {
			t.Fatalf("expected minute %d in 0-10/5", m)
		}
	}
	for _, m := range []int{1, 4, 6, 11} {
		if d.items[Minute].contains(m) {
			t.Fatalf("did not expect minute %d in 0-10/5", m)
		}
	}
}

func TestSetCommaList(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, MDay, "1,15,28-30")
	for _, v := range []int{1, 15, 28, 29, 30} {
		if !d.items[MDay].contains(v) {
			t.Fatalf("expected mday %d", v)
		}
	}
	if d.items[MDay].contains(2) {
		t.Fatal("did not expect mday 2")
	}
}

func TestSetWeekdayNamePrefix(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Weekday, "mon-fri")
	// 2026-07-29 is a Wednesday.
	if !d.Match(time.Date(2026, 7, 29, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("mon-fri should match Wednesday")
	}
	// 2026-08-01 is a Saturday.
	if d.Match(time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatal("mon-fri should not match Saturday")
	}
}

func TestSetMonthNamePrefix(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Month, "jan,jul")
	if !d.items[Month].contains(0) || !d.items[Month].contains(6) {
		t.Fatal("expected January and July set")
	}
}

func TestSetOutOfRangeRejected(t *testing.T) {
	d := New()
	d.Fill()
	if err := d.Set(Hour, "25"); err == nil {
		t.Fatal("expected error for hour=25")
	} else if kind, ok := cronerr.KindOf(err); !ok || kind != cronerr.SemanticParse {
		t.Fatalf("expected SemanticParse, got %v", err)
	}
}

func TestNextAdvancesToNextMinute(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Second, "0")
	now := time.Date(2026, 7, 29, 10, 0, 30, 0, time.UTC)
	next, err := d.Next(now)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2026, 7, 29, 10, 1, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestNextRollsOverMonthAndYear(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Month, "jan")
	mustSet(t, d, MDay, "1")
	mustSet(t, d, Hour, "0")
	mustSet(t, d, Minute, "0")
	mustSet(t, d, Second, "0")
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	next, err := d.Next(now)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	want := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Fatalf("Next = %v, want %v", next, want)
	}
}

func TestNextOverflowsOnUnsatisfiableDate(t *testing.T) {
	d := New()
	d.Fill()
	// February 30th never exists.
	mustSet(t, d, Month, "feb")
	mustSet(t, d, MDay, "30")
	now := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)
	_, err := d.Next(now)
	if err == nil {
		t.Fatal("expected overflow error")
	}
	if kind, ok := cronerr.KindOf(err); !ok || kind != cronerr.Overflow {
		t.Fatalf("expected Overflow, got %v", err)
	}
}

func TestRemainingMatchesNextMinusNow(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Second, "0")
	now := time.Date(2026, 7, 29, 10, 0, 45, 0, time.UTC)
	rem, err := d.Remaining(now)
	if err != nil {
		t.Fatalf("Remaining: %v", err)
	}
	if rem != 15*time.Second {
		t.Fatalf("Remaining = %v, want 15s", rem)
	}
}

func TestGetEncodesRanges(t *testing.T) {
	d := New()
	mustSet(t, d, MDay, "1,2,3,10")
	got := d.Get(MDay)
	want := "1-3,10"
	if got != want {
		t.Fatalf("Get(MDay) = %q, want %q", got, want)
	}
}

func TestCronScheduleAdapterMatchesNext(t *testing.T) {
	d := New()
	d.Fill()
	mustSet(t, d, Second, "0")
	now := time.Date(2026, 7, 29, 10, 0, 30, 0, time.UTC)
	sched := d.CronSchedule()
	got := sched.Next(now)
	want, _ := d.Next(now)
	if !got.Equal(want) {
		t.Fatalf("CronSchedule.Next = %v, want %v", got, want)
	}
}
