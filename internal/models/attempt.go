package models

import "time"

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptCompleted  AttemptStatus = "completed"
)

// Metadata keys written on a completed attempt.
const (
	MetaXPTransactionID   = "xp_transaction_id"
	MetaTimeLimitExceeded = "time_limit_exceeded"
	MetaTimeLimitSeconds  = "time_limit_seconds"
	MetaElapsedSeconds    = "elapsed_seconds"
	MetaClient            = "client"
)

type Attempt struct {
	ID              int64          `json:"id"`
	Kind            AttemptKind    `json:"kind"`
	AssessmentID    int64          `json:"assessment_id"`
	UserID          int64          `json:"user_id"`
	Status          AttemptStatus  `json:"status"`
	QuestionIDs     []int64        `json:"-"`
	TotalQuestions  int            `json:"total_questions"`
	CorrectCount    int            `json:"correct_count"`
	IncorrectCount  int            `json:"incorrect_count"`
	Score           int            `json:"score"`
	XPAwarded       int            `json:"xp_awarded"`
	DurationSeconds *int           `json:"duration_seconds"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	CompletedAt     *time.Time     `json:"completed_at"`
}

// TimeLimitExceeded reports the forfeiture flag recorded at completion.
func (a *Attempt) TimeLimitExceeded() bool {
	v, _ := a.Metadata[MetaTimeLimitExceeded].(bool)
	return v
}

// QuestionAttempt is one scored question of an attempt.
type QuestionAttempt struct {
	ID               int64          `json:"id"`
	AttemptID        int64          `json:"attempt_id"`
	QuestionID       int64          `json:"question_id"`
	QuestionText     string         `json:"question_text,omitempty"`
	TopicID          *int64         `json:"-"`
	SelectedOption   *string        `json:"selected_option,omitempty"`
	SelectedOptions  []string       `json:"selected_options,omitempty"`
	IsCorrect        bool           `json:"is_correct"`
	Score            int            `json:"score"`
	ResponseMetadata map[string]any `json:"-"`
}

// ── Request Types ─────────────────────────────────────────

type QuestionResponse struct {
	QuestionID      int64    `json:"question_id"`
	SelectedOption  *string  `json:"selected_option,omitempty"`
	SelectedOptions []string `json:"selected_options,omitempty"`
}

type SubmitAttemptRequest struct {
	Responses        []QuestionResponse `json:"responses"`
	DurationSeconds  *int               `json:"duration_seconds,omitempty"`
	TimeSpentSeconds *int               `json:"time_spent_seconds,omitempty"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
}

// ElapsedSeconds returns the caller-reported elapsed time, preferring
// duration_seconds over time_spent_seconds.
func (r SubmitAttemptRequest) ElapsedSeconds() *int {
	if r.DurationSeconds != nil {
		return r.DurationSeconds
	}
	return r.TimeSpentSeconds
}

// ── Response Types ────────────────────────────────────────

type StartAttemptResponse struct {
	AttemptID int64         `json:"attempt_id"`
	Status    AttemptStatus `json:"status"`
}

type AttemptView struct {
	Attempt
	Questions []QuestionAttempt `json:"questions"`
}

type SubmitAttemptResponse struct {
	Attempt AttemptView    `json:"attempt"`
	Message *string        `json:"message,omitempty"`
	Rewards *RewardSummary `json:"rewards,omitempty"`
}
