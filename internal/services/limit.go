package services

// Allowance is the outcome of a daily-limit evaluation.
type Allowance struct {
	Unlimited bool
	Remaining int
}

// Exhausted is never true for profiles without a configured limit.
func (a Allowance) Exhausted() bool {
	return !a.Unlimited && a.Remaining <= 0
}

// RemainingPtr renders the allowance for JSON: nil stands for "no limit".
func (a Allowance) RemainingPtr() *int {
	if a.Unlimited {
		return nil
	}
	r := a.Remaining
	return &r
}

// EvaluateLimit computes the minutes left today. additionalElapsedSeconds is
// time accrued by a session that has not been committed to the daily total yet;
// only whole minutes of it count.
func EvaluateLimit(dailyLimitMinutes *int, watchedToday, additionalElapsedSeconds int) Allowance {
	if dailyLimitMinutes == nil {
		return Allowance{Unlimited: true}
	}
	if additionalElapsedSeconds < 0 {
		additionalElapsedSeconds = 0
	}

	remaining := *dailyLimitMinutes - watchedToday - additionalElapsedSeconds/60
	if remaining < 0 {
		remaining = 0
	}
	return Allowance{Remaining: remaining}
}
