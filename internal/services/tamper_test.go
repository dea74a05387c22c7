package services

import (
	"testing"
	"time"
)

func TestTamperGuard_Check(t *testing.T) {
	g := DefaultTamperGuard()
	s := time.Second

	tests := []struct {
		name       string
		report     PlaybackReport
		accepted   bool
		reason     string
		wantCredit time.Duration
	}{
		{
			name:       "normal playback",
			report:     PlaybackReport{Position: 60 * s, PreviousPosition: 30 * s, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 30 * s,
		},
		{
			name:       "credit capped by wall clock",
			report:     PlaybackReport{Position: 62 * s, PreviousPosition: 30 * s, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 30 * s,
		},
		{
			name:       "paused player earns nothing",
			report:     PlaybackReport{Position: 30 * s, PreviousPosition: 30 * s, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 0,
		},
		{
			name:       "backward seek accepted without credit",
			report:     PlaybackReport{Position: 10 * s, PreviousPosition: 200 * s, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 0,
		},
		{
			name:       "position far past the end",
			report:     PlaybackReport{Position: 9999 * s, PreviousPosition: 0, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   false,
			reason:     RejectDuration,
			wantCredit: 30 * s,
		},
		{
			name:       "overshoot within grace",
			report:     PlaybackReport{Position: 604 * s, PreviousPosition: 580 * s, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 24 * s,
		},
		{
			name:     "negative position",
			report:   PlaybackReport{Position: -5 * s, PreviousPosition: 0, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted: false,
			reason:   RejectDuration,
		},
		{
			name:       "forward skip faster than real time",
			report:     PlaybackReport{Position: 300 * s, PreviousPosition: 0, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   false,
			reason:     RejectRate,
			wantCredit: 30 * s,
		},
		{
			name:       "slack covers jitter",
			report:     PlaybackReport{Position: 34 * s, PreviousPosition: 0, VideoDuration: 600 * s, WallClockDelta: 30 * s},
			accepted:   true,
			wantCredit: 30 * s,
		},
		{
			name:       "unknown duration skips upper bound",
			report:     PlaybackReport{Position: 5000 * s, PreviousPosition: 4980 * s, VideoDuration: 0, WallClockDelta: 20 * s},
			accepted:   true,
			wantCredit: 20 * s,
		},
		{
			name:       "clock skew never yields negative credit",
			report:     PlaybackReport{Position: 40 * s, PreviousPosition: 30 * s, VideoDuration: 600 * s, WallClockDelta: -5 * s},
			accepted:   false,
			reason:     RejectRate,
			wantCredit: 0,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			v := g.Check(tc.report)
			if v.Accepted != tc.accepted {
				t.Fatalf("accepted = %v, want %v (reason %q)", v.Accepted, tc.accepted, v.Reason)
			}
			if !tc.accepted && v.Reason != tc.reason {
				t.Fatalf("reason = %q, want %q", v.Reason, tc.reason)
			}
			if v.Credit != tc.wantCredit {
				t.Fatalf("credit = %s, want %s", v.Credit, tc.wantCredit)
			}
			if v.Credit < 0 || v.Credit > maxDuration(tc.report.WallClockDelta, 0) {
				t.Fatalf("credit %s outside [0, wall clock]", v.Credit)
			}
		})
	}
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
