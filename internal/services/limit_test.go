package services

import "testing"

func intPtr(v int) *int { return &v }

func TestEvaluateLimit(t *testing.T) {
	tests := []struct {
		name       string
		limit      *int
		watched    int
		additional int
		want       Allowance
	}{
		{"unlimited", nil, 500, 9000, Allowance{Unlimited: true}},
		{"fresh day", intPtr(60), 0, 0, Allowance{Remaining: 60}},
		{"partly watched", intPtr(60), 45, 0, Allowance{Remaining: 15}},
		{"partial minute of live session ignored", intPtr(60), 45, 119, Allowance{Remaining: 14}},
		{"live session exhausts", intPtr(10), 5, 300, Allowance{Remaining: 0}},
		{"over limit clamps to zero", intPtr(30), 45, 0, Allowance{Remaining: 0}},
		{"negative additional ignored", intPtr(30), 0, -120, Allowance{Remaining: 30}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := EvaluateLimit(tc.limit, tc.watched, tc.additional)
			if got != tc.want {
				t.Fatalf("EvaluateLimit() = %+v, want %+v", got, tc.want)
			}
		})
	}
}

func TestAllowance_Exhausted(t *testing.T) {
	if (Allowance{Unlimited: true}).Exhausted() {
		t.Fatalf("unlimited allowance must never be exhausted")
	}
	if !(Allowance{Remaining: 0}).Exhausted() {
		t.Fatalf("zero remaining must be exhausted")
	}
	if (Allowance{Remaining: 1}).Exhausted() {
		t.Fatalf("one minute remaining must not be exhausted")
	}
}

func TestAllowance_RemainingPtr(t *testing.T) {
	if (Allowance{Unlimited: true}).RemainingPtr() != nil {
		t.Fatalf("expected nil remaining for unlimited profile")
	}
	if got := (Allowance{Remaining: 7}).RemainingPtr(); got == nil || *got != 7 {
		t.Fatalf("expected 7, got %v", got)
	}
}
