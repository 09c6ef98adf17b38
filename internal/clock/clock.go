// Package clock maps wall-clock time onto the venue's trading periods.
//
// Up/down markets are keyed by period start timestamps aligned to
// 5- and 15-minute boundaries in US Eastern time. All functions here
// are pure so period math can be tested without touching the wall
// clock.
package clock

import (
	"context"
	"fmt"
	"time"

	"github.com/alanyoungcy/tenorarb/internal/domain"
)

// Overlap is the final stretch of a 15m period during which a 5m
// period runs fully inside it. Trading only happens in this window.
const (
	OverlapOffset = 10 * time.Minute
	Period15      = 15 * time.Minute
	Period5       = 5 * time.Minute
)

var eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(fmt.Sprintf("clock: load location %s: %v", name, err))
	}
	return loc
}

// PeriodStart floors t to the containing period boundary for the given
// tenor. The boundary is defined on the minute-of-hour in US Eastern
// time; the remainder is subtracted on the absolute timeline so the
// result is stable across DST transitions.
func PeriodStart(t time.Time, tenor domain.Tenor) time.Time {
	lt := t.In(eastern)
	over := time.Duration(int64(lt.Minute())%tenor.Minutes())*time.Minute +
		time.Duration(lt.Second())*time.Second +
		time.Duration(lt.Nanosecond())
	return t.Add(-over)
}

// PeriodEnd returns the first instant after the period that starts at
// start for the given tenor.
func PeriodEnd(start time.Time, tenor domain.Tenor) time.Time {
	return start.Add(time.Duration(tenor.Seconds()) * time.Second)
}

// IsOverlap reports whether now falls in the overlap window of the 15m
// period starting at start15, i.e. its final five minutes.
func IsOverlap(now, start15 time.Time) bool {
	elapsed := now.Sub(start15)
	return elapsed >= OverlapOffset && elapsed < Period15
}

// Clock supplies the current time and timed waits. The engine takes it
// as an interface so tests can pin or step time without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// System is the wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

func (System) Sleep(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
