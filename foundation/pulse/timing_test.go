package pulse_test

import (
	"testing"
	"time"

	"github.com/braidchain/pulse/foundation/pulse"
)

func Test_NextTruncatedTime(t *testing.T) {
	period := 60 * time.Second

	before := time.Now().UTC()
	next := pulse.NextTruncatedTime(period)
	after := time.Now().UTC()

	if !next.Truncate(period).Equal(next) {
		t.Fatalf("Should land on the absolute period grid: got %s", next)
	}

	if !next.After(before) {
		t.Logf("got: %s", next)
		t.Logf("now: %s", before)
		t.Fatalf("Should be strictly after the current wall-clock time.")
	}

	if next.Sub(after) > period {
		t.Logf("got: %s", next)
		t.Logf("now: %s", after)
		t.Fatalf("Should be no more than one period away.")
	}
}

func Test_NextPulseTimestamp(t *testing.T) {
	period := 60 * time.Second
	ts := time.Now().UTC().Truncate(period)

	// The previous pulse is recent, so the cadence holds.
	next := pulse.NextPulseTimestamp(ts, period)
	if !next.Equal(ts.Add(period)) {
		t.Logf("got: %s", next)
		t.Logf("exp: %s", ts.Add(period))
		t.Fatalf("Should keep the cadence while within one period.")
	}

	// The previous pulse is at least one full period old, so the schedule
	// resynchronizes to the absolute grid instead of producing a catch-up
	// burst.
	next = pulse.NextPulseTimestamp(ts.Add(-period), period)
	if !next.Equal(ts.Add(period)) {
		t.Logf("got: %s", next)
		t.Logf("exp: %s", ts.Add(period))
		t.Fatalf("Should resynchronize to the absolute grid after a stall.")
	}

	// A larger period keeps the cadence from a recent pulse.
	period = 5 * time.Minute
	next = pulse.NextPulseTimestamp(ts, period)
	if !next.Equal(ts.Add(period)) {
		t.Logf("got: %s", next)
		t.Logf("exp: %s", ts.Add(period))
		t.Fatalf("Should keep the cadence for a five minute period.")
	}
}
