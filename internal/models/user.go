package models

import "time"

// User carries the progression fields the rewards engine writes.
type User struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	XPTotal    int64     `json:"xp_total"`
	Level      int       `json:"level"`
	StreakDays int       `json:"streak_days"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type ErrorResponse struct {
	Error       string  `json:"error"`
	QuestionIDs []int64 `json:"question_ids,omitempty"`
}
