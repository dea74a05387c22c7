package services

import "time"

const (
	RejectDuration = "duration"
	RejectRate     = "rate"
)

// TamperGuard bounds client-reported playback positions. A child's device is
// untrusted: progress may not exceed the video length or outrun the wall clock.
type TamperGuard struct {
	Grace          time.Duration // allowed overshoot past the video end
	RateMultiplier float64       // allowed playback speed relative to the wall clock
	RateSlack      time.Duration // absolute allowance for request jitter
}

func DefaultTamperGuard() TamperGuard {
	return TamperGuard{
		Grace:          5 * time.Second,
		RateMultiplier: 1.1,
		RateSlack:      2 * time.Second,
	}
}

type PlaybackReport struct {
	Position         time.Duration
	PreviousPosition time.Duration
	VideoDuration    time.Duration // zero when the duration is not known yet
	WallClockDelta   time.Duration // server time since the last accepted heartbeat
}

// Verdict carries the credit even for rejected reports. Credit is computed on
// the position clamped into the duration bound, so it is always safe to apply.
type Verdict struct {
	Accepted bool
	Reason   string
	Credit   time.Duration
}

func (g TamperGuard) Check(r PlaybackReport) Verdict {
	v := Verdict{Accepted: true}

	pos := r.Position
	switch {
	case pos < 0:
		v = Verdict{Reason: RejectDuration}
		pos = 0
	case r.VideoDuration > 0 && pos > r.VideoDuration+g.Grace:
		v = Verdict{Reason: RejectDuration}
		pos = r.VideoDuration + g.Grace
	}

	wall := r.WallClockDelta
	if wall < 0 {
		wall = 0
	}

	advance := pos - r.PreviousPosition
	if v.Accepted && advance > 0 {
		allowed := time.Duration(float64(wall)*g.RateMultiplier) + g.RateSlack
		if advance > allowed {
			v = Verdict{Reason: RejectRate}
		}
	}

	credit := advance
	if wall < credit {
		credit = wall
	}
	if credit < 0 {
		credit = 0
	}
	v.Credit = credit

	return v
}
