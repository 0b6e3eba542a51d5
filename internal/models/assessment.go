package models

// AttemptKind distinguishes the two assessment flavours. Attempts for both
// kinds are structurally identical but live in separate tables.
type AttemptKind string

const (
	KindQuiz         AttemptKind = "quiz"
	KindPracticeTest AttemptKind = "practice_test"
)

// Assessment is a quiz or practice test.
type Assessment struct {
	ID               int64       `json:"id"`
	Kind             AttemptKind `json:"kind"`
	Title            string      `json:"title"`
	Difficulty       Difficulty  `json:"difficulty"`
	TimeLimitSeconds *int        `json:"time_limit_seconds,omitempty"`
	DurationMinutes  *int        `json:"duration_minutes,omitempty"`
	XPReward         int         `json:"xp_reward"`
	IsActive         bool        `json:"is_active"`
}

// TimeLimit returns the configured limit in seconds, or 0 when there is none.
// Practice tests fall back to duration_minutes when no explicit limit is set.
func (a *Assessment) TimeLimit() int {
	if a.TimeLimitSeconds != nil && *a.TimeLimitSeconds > 0 {
		return *a.TimeLimitSeconds
	}
	if a.Kind == KindPracticeTest && a.DurationMinutes != nil && *a.DurationMinutes > 0 {
		return *a.DurationMinutes * 60
	}
	return 0
}
