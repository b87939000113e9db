package pulse

import "time"

// NextTruncatedTime computes the next pulse boundary on the absolute period
// grid: the current wall-clock time floored to the most recent multiple of
// period (measured from the zero time), advanced by one period. When now
// falls exactly on a boundary the following boundary is returned.
func NextTruncatedTime(period time.Duration) time.Time {
	now := time.Now().UTC()
	return now.Truncate(period).Add(period)
}

// NextPulseTimestamp computes the scheduled time of the pulse that follows
// one emitted at prevTime. While the chain is keeping cadence, that is
// exactly prevTime plus one period. Once at least one full period has been
// missed, the old cadence is abandoned and the schedule resynchronizes to
// the absolute grid. A resumed beacon therefore never produces a catch-up
// burst of missed pulses.
func NextPulseTimestamp(prevTime time.Time, period time.Duration) time.Time {
	now := time.Now().UTC()
	if now.Sub(prevTime) < period {
		return prevTime.Add(period)
	}
	return NextTruncatedTime(period)
}
