package models

import "time"

// ── Core Gamification Structs ─────────────────────────────

// XPTransaction is an append-only ledger row.
type XPTransaction struct {
	ID        int64          `json:"id"`
	UserID    int64          `json:"user_id"`
	Amount    int            `json:"amount"`
	Source    string         `json:"source"`
	Reason    string         `json:"reason"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Ledger sources.
const (
	SourceQuiz         = "quiz"
	SourcePracticeTest = "practice_test"
)

type TopicMastery struct {
	UserID          int64     `json:"user_id"`
	TopicID         int64     `json:"topic_id"`
	TotalAttempts   int       `json:"total_attempts"`
	CorrectAttempts int       `json:"correct_attempts"`
	Accuracy        int       `json:"accuracy"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type UserAchievement struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	XPReward    int       `json:"xp_reward"`
	EarnedAt    time.Time `json:"earned_at"`
}

// LifetimeStats aggregates a user's completed attempts.
type LifetimeStats struct {
	AttemptsCompleted int `json:"attempts_completed"`
	QuestionsAnswered int `json:"questions_answered"`
	QuestionsCorrect  int `json:"questions_correct"`
}

type Badge struct {
	Key         string `json:"key"`
	Name        string `json:"name"`
	XPThreshold int64  `json:"xp_threshold"`
}

// ── Response Types ────────────────────────────────────────

type RewardSummary struct {
	XPEarned             int      `json:"xp_earned"`
	XPTotal              int64    `json:"xp_total"`
	Level                int      `json:"level"`
	LeveledUp            bool     `json:"leveled_up"`
	XPToNextLevel        int64    `json:"xp_to_next_level"`
	StreakDays           int      `json:"streak_days"`
	AchievementsUnlocked []string `json:"achievements_unlocked"`
	NewBadge             *Badge   `json:"new_badge,omitempty"`
}

type ProgressResponse struct {
	XPTotal       int64             `json:"xp_total"`
	Level         int               `json:"level"`
	XPToNextLevel int64             `json:"xp_to_next_level"`
	StreakDays    int               `json:"streak_days"`
	Badge         *Badge            `json:"badge"`
	Achievements  []UserAchievement `json:"achievements"`
}

type MasteryResponse struct {
	Topics []TopicMastery `json:"topics"`
}
