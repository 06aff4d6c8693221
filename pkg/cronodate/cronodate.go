// Package cronodate implements the cron-entry calendar matcher ported from
// flux-core's src/common/libutil/cronodate.c: a per-time-unit set of
// integers that can test a broken-down time for a match, and advance a
// time to the next matching instant.
package cronodate

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/flux-framework/flux-cron-go/pkg/cronerr"
	cronlib "github.com/robfig/cron/v3"
)

// Unit identifies one of the seven calendar fields a Date matches against.
// The declaration order is significant: it is the least-significant-first
// order cronodate_next walks when looking for the next match, and the order
// tm_advance uses to decide which unit to roll into on overflow.
type Unit int

const (
	Second Unit = iota
	Minute
	Hour
	MDay
	Month
	Year
	Weekday
	numUnits
)

var weekdayNames = []string{
	"Sunday", "Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday",
}

var monthNames = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Min returns the minimum legal value for the unit.
func (u Unit) Min() int {
	if u == MDay {
		return 1
	}
	return 0
}

// Max returns the maximum legal value for the unit. Year is an offset from
// 1900, so its bound of 1100 corresponds to the calendar year 3000.
func (u Unit) Max() int {
	switch u {
	case Second:
		return 60 // tolerate a leap second
	case Minute:
		return 59
	case Hour:
		return 23
	case MDay:
		return 31
	case Month:
		return 11
	case Year:
		return 1100
	case Weekday:
		return 6
	}
	return -1
}

// String returns the unit's field name, as used in cron.create args and
// in serialized trigger state.
func (u Unit) String() string {
	switch u {
	case Second:
		return "second"
	case Minute:
		return "minute"
	case Hour:
		return "hour"
	case MDay:
		return "mday"
	case Month:
		return "month"
	case Year:
		return "year"
	case Weekday:
		return "weekday"
	}
	return "unknown"
}

// StringToWeekday resolves a case-insensitive prefix of an English weekday
// name to its index (0 = Sunday). Returns -1 if no weekday matches.
func StringToWeekday(s string) int {
	return prefixIndex(weekdayNames, s)
}

// StringToMonth resolves a case-insensitive prefix of an English month name
// to its index (0 = January). Returns -1 if no month matches.
func StringToMonth(s string) int {
	return prefixIndex(monthNames, s)
}

func prefixIndex(names []string, s string) int {
	if s == "" {
		return -1
	}
	lower := strings.ToLower(s)
	for i, name := range names {
		if strings.HasPrefix(strings.ToLower(name), lower) {
			return i
		}
	}
	return -1
}

// unitSet is a bounded set of non-negative integers, backed by a bitmap
// sized to the unit's bound — the Go stand-in for cronodate.c's idset.
type unitSet struct {
	bits []bool
}

func newUnitSet(max int) *unitSet {
	return &unitSet{bits: make([]bool, max+1)}
}

func (s *unitSet) clear() {
	for i := range s.bits {
		s.bits[i] = false
	}
}

func (s *unitSet) fillRange(lo, hi int) {
	for i := lo; i <= hi && i < len(s.bits); i++ {
		s.bits[i] = true
	}
}

func (s *unitSet) set(v int) {
	if v >= 0 && v < len(s.bits) {
		s.bits[v] = true
	}
}

func (s *unitSet) contains(v int) bool {
	return v >= 0 && v < len(s.bits) && s.bits[v]
}

// nextAfter returns the smallest set member strictly greater than v.
func (s *unitSet) nextAfter(v int) (int, bool) {
	for i := v + 1; i < len(s.bits); i++ {
		if s.bits[i] {
			return i, true
		}
	}
	return 0, false
}

func (s *unitSet) first() (int, bool) {
	for i, b := range s.bits {
		if b {
			return i, true
		}
	}
	return 0, false
}

// encode renders the set as a compact range-list string, e.g. "0-5,7,10-12".
func (s *unitSet) encode() string {
	var members []int
	for i, b := range s.bits {
		if b {
			members = append(members, i)
		}
	}
	if len(members) == 0 {
		return ""
	}
	sort.Ints(members)
	var parts []string
	start := members[0]
	prev := members[0]
	flush := func(end int) {
		if start == end {
			parts = append(parts, strconv.Itoa(start))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", start, end))
		}
	}
	for _, m := range members[1:] {
		if m == prev+1 {
			prev = m
			continue
		}
		flush(prev)
		start, prev = m, m
	}
	flush(prev)
	return strings.Join(parts, ",")
}

// Date is a per-unit calendar matcher: the set of (second, minute, hour,
// day-of-month, month, year, weekday) values a broken-down time must fall
// within to match.
type Date struct {
	items [numUnits]*unitSet
}

// New returns an empty Date: it matches nothing until units are configured.
func New() *Date {
	d := &Date{}
	for u := Unit(0); u < numUnits; u++ {
		d.items[u] = newUnitSet(u.Max())
	}
	return d
}

// Fill sets every unit to its full range, so the Date matches every instant.
func (d *Date) Fill() {
	for u := Unit(0); u < numUnits; u++ {
		d.items[u].fillRange(u.Min(), u.Max())
	}
}

// Empty clears every unit, so the Date matches no instant.
func (d *Date) Empty() {
	for u := Unit(0); u < numUnits; u++ {
		d.items[u].clear()
	}
}

// SetInt restricts unit u to the single value v.
func (d *Date) SetInt(u Unit, v int) error {
	if v < u.Min() || v > u.Max() {
		return cronerr.New(cronerr.SemanticParse,
			fmt.Sprintf("%s: value %d out of range [%d,%d]", u, v, u.Min(), u.Max()))
	}
	d.items[u].clear()
	d.items[u].set(v)
	return nil
}

// Set parses spec per the cronodate grammar and replaces unit u's set.
// spec is a comma-separated list of "*", a single value, a named
// weekday/month, or a "lo-hi" range, each optionally followed by "/N" to
// keep only every Nth value. On any parse failure the unit's set is left
// unchanged.
func (d *Date) Set(u Unit, spec string) error {
	next := newUnitSet(u.Max())
	for _, tok := range strings.Split(spec, ",") {
		stride := 1
		rangeTok := tok
		if i := strings.IndexByte(tok, '/'); i >= 0 {
			rangeTok = tok[:i]
			n, err := strconv.Atoi(tok[i+1:])
			if err != nil || n <= 0 {
				return cronerr.New(cronerr.SemanticParse,
					fmt.Sprintf("%s: bad stride in %q", u, tok))
			}
			stride = n
		}
		lo, hi, err := parseRange(rangeTok, u)
		if err != nil {
			return err
		}
		if lo == hi {
			next.set(lo)
		} else if stride == 1 {
			next.fillRange(lo, hi)
		} else {
			for v := lo; v <= hi; v += stride {
				next.set(v)
			}
		}
	}
	d.items[u] = next
	return nil
}

func parseRange(tok string, u Unit) (lo, hi int, err error) {
	if tok == "*" {
		return u.Min(), u.Max(), nil
	}
	if i := strings.IndexByte(tok, '-'); i > 0 {
		lo, err = parseUnitValue(tok[:i], u)
		if err != nil {
			return 0, 0, err
		}
		hi, err = parseUnitValue(tok[i+1:], u)
		return lo, hi, err
	}
	v, err := parseUnitValue(tok, u)
	return v, v, err
}

func parseUnitValue(s string, u Unit) (int, error) {
	if n, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
		if n < u.Min() || n > u.Max() {
			return 0, cronerr.New(cronerr.SemanticParse,
				fmt.Sprintf("%s: value %d out of range [%d,%d]", u, n, u.Min(), u.Max()))
		}
		return n, nil
	}
	switch u {
	case Weekday:
		if n := StringToWeekday(s); n >= 0 {
			return n, nil
		}
	case Month:
		if n := StringToMonth(s); n >= 0 {
			return n, nil
		}
	}
	return 0, cronerr.New(cronerr.SemanticParse, fmt.Sprintf("%s: cannot parse %q", u, s))
}

// Get returns the current set for unit u, range-encoded.
func (d *Date) Get(u Unit) string {
	return d.items[u].encode()
}

// broken mirrors struct tm's fields this package cares about. year is an
// offset from 1900, matching the C convention cronodate.c relies on.
type broken struct {
	sec, min, hour, mday, mon, year, wday int
}

func toBroken(t time.Time) broken {
	return broken{
		sec:  t.Second(),
		min:  t.Minute(),
		hour: t.Hour(),
		mday: t.Day(),
		mon:  int(t.Month()) - 1,
		year: t.Year() - 1900,
		wday: int(t.Weekday()),
	}
}

func (b broken) toTime(loc *time.Location) time.Time {
	return time.Date(b.year+1900, time.Month(b.mon+1), b.mday, b.hour, b.min, b.sec, 0, loc)
}

func (b *broken) get(u Unit) int {
	switch u {
	case Second:
		return b.sec
	case Minute:
		return b.min
	case Hour:
		return b.hour
	case MDay:
		return b.mday
	case Month:
		return b.mon
	case Year:
		return b.year
	case Weekday:
		return b.wday
	}
	return 0
}

func (b *broken) set(u Unit, v int) {
	switch u {
	case Second:
		b.sec = v
	case Minute:
		b.min = v
	case Hour:
		b.hour = v
	case MDay:
		b.mday = v
	case Month:
		b.mon = v
	case Year:
		b.year = v
	}
}

func (b *broken) incr(u Unit) {
	b.set(u, b.get(u)+1)
}

// resetBelow zeroes (to each unit's minimum) every unit that is
// less-significant than u, mirroring cronodate.c's tm_reset.
func (b *broken) resetBelow(u Unit) {
	for v := Unit(0); v < u; v++ {
		b.set(v, v.Min())
	}
}

// advance rolls unit u forward to val, carrying into the next-greater unit
// when val is less than the current value, and resetting lower units to
// their minima. Mirrors cronodate.c's tm_advance.
func (b *broken) advance(u Unit, val int) {
	switch u {
	case Second, Minute, Hour, MDay, Month:
		if b.get(u) > val {
			b.incr(u + 1)
		}
		b.set(u, val)
		b.resetBelow(u)
	case Year:
		b.year = val
		b.resetBelow(Year)
	case Weekday:
		if b.wday > val {
			b.mday += (7 - b.wday) + val
		} else {
			b.mday += val - b.wday
		}
		b.resetBelow(MDay)
	}
}

// unitOrder is the least-significant-first search order cronodate_next uses.
var unitOrder = [...]Unit{Second, Minute, Hour, MDay, Month, Year, Weekday}

// twoYears bounds the next-match search, mirroring cronodate.c's literal
// 2*60*60*24*365 second overflow guard.
const twoYears = 2 * 365 * 24 * time.Hour

// Match reports whether t falls within every unit's configured set.
func (d *Date) Match(t time.Time) bool {
	b := toBroken(t)
	for _, u := range unitOrder {
		if !d.items[u].contains(b.get(u)) {
			return false
		}
	}
	return true
}

// Next advances t to the next instant strictly after t that matches every
// unit's set. It returns a cronerr.Overflow error if no match is found
// within two years of t.
func (d *Date) Next(t time.Time) (time.Time, error) {
	loc := t.Location()
	b := toBroken(t)
	b.sec++
	start := b.toTime(loc)
	b = toBroken(start)
	startUnix := start.Unix()

	for {
		advanced := false
		for _, u := range unitOrder {
			set := d.items[u]
			v := b.get(u)
			if set.contains(v) {
				continue
			}
			next, ok := set.nextAfter(v)
			if !ok {
				next, ok = set.first()
				if !ok {
					return time.Time{}, cronerr.New(cronerr.Overflow,
						fmt.Sprintf("%s: empty set never matches", u))
				}
			}
			b.advance(u, next)
			fixed := b.toTime(loc)
			if fixed.Sub(time.Unix(startUnix, 0).In(loc)) > twoYears {
				return time.Time{}, cronerr.New(cronerr.Overflow,
					"no matching time found within two years")
			}
			b = toBroken(fixed)
			advanced = true
			break
		}
		if !advanced {
			return b.toTime(loc), nil
		}
	}
}

// Remaining returns the duration until the next match after now, or a
// cronerr.Overflow error if none is found within the search bound.
func (d *Date) Remaining(now time.Time) (time.Duration, error) {
	next, err := d.Next(now)
	if err != nil {
		return 0, err
	}
	return next.Sub(now), nil
}

// cronScheduleAdapter makes *Date satisfy robfig/cron/v3's Schedule
// interface. The Datetime trigger does not use it; it calls Date.Next
// directly and arms a one-shot reactor timer.
type cronScheduleAdapter struct{ d *Date }

func (a cronScheduleAdapter) Next(t time.Time) time.Time {
	next, err := a.d.Next(t)
	if err != nil {
		// robfig/cron's Schedule interface has no error return; push the
		// wakeup far into the future so the periodic watcher effectively
		// never fires again. The caller (trigger.Datetime) detects this via
		// Date.Next directly and stops the entry safely instead of relying
		// on this fallback firing.
		return t.Add(100 * 365 * 24 * time.Hour)
	}
	return next
}

// CronSchedule adapts d to robfig/cron/v3's cron.Schedule interface.
func (d *Date) CronSchedule() cronlib.Schedule {
	return cronScheduleAdapter{d: d}
}
