package gamification

import "github.com/learnquest/backend/internal/models"

// AchievementDef defines a single achievement and the condition that unlocks it.
type AchievementDef struct {
	Key         string
	Name        string
	Description string
	XPReward    int
	Met         func(models.LifetimeStats) bool
}

// Achievements is evaluated in order; keys are stable identifiers stored in
// user_achievements.
var Achievements = []AchievementDef{
	{
		Key: "first_attempt", Name: "First Steps", Description: "Complete your first quiz or practice test", XPReward: 10,
		Met: func(s models.LifetimeStats) bool { return s.AttemptsCompleted >= 1 },
	},
	{
		Key: "ten_attempts", Name: "Quiz Regular", Description: "Complete 10 quizzes or practice tests", XPReward: 50,
		Met: func(s models.LifetimeStats) bool { return s.AttemptsCompleted >= 10 },
	},
	{
		Key: "fifty_attempts", Name: "Marathoner", Description: "Complete 50 quizzes or practice tests", XPReward: 150,
		Met: func(s models.LifetimeStats) bool { return s.AttemptsCompleted >= 50 },
	},
	{
		Key: "sharpshooter", Name: "Sharpshooter", Description: "Reach 80% accuracy with at least 5 correct answers", XPReward: 25,
		Met: func(s models.LifetimeStats) bool {
			return s.QuestionsCorrect >= 5 && s.QuestionsAnswered > 0 &&
				s.QuestionsCorrect*100 >= s.QuestionsAnswered*80
		},
	},
	{
		Key: "century_correct", Name: "Century", Description: "Answer 100 questions correctly", XPReward: 100,
		Met: func(s models.LifetimeStats) bool { return s.QuestionsCorrect >= 100 },
	},
}

// AchievementByKey looks up a definition.
func AchievementByKey(key string) (AchievementDef, bool) {
	for _, a := range Achievements {
		if a.Key == key {
			return a, true
		}
	}
	return AchievementDef{}, false
}

// CheckAchievements returns the definitions satisfied by stats that are not
// in owned. The caller persists ownership and pays the rewards.
func CheckAchievements(stats models.LifetimeStats, owned map[string]bool) []AchievementDef {
	var earned []AchievementDef
	for _, a := range Achievements {
		if owned[a.Key] {
			continue
		}
		if a.Met(stats) {
			earned = append(earned, a)
		}
	}
	return earned
}

// ── Badges ──────────────────────────────────────────────

// Badges is sorted by ascending threshold.
var Badges = []models.Badge{
	{Key: "bronze", Name: "Bronze Learner", XPThreshold: 100},
	{Key: "silver", Name: "Silver Scholar", XPThreshold: 500},
	{Key: "gold", Name: "Gold Achiever", XPThreshold: 1000},
	{Key: "platinum", Name: "Platinum Mind", XPThreshold: 2500},
	{Key: "diamond", Name: "Diamond Sage", XPThreshold: 5000},
}

// BadgeForXP returns the highest-threshold badge at or below xpTotal, or nil.
func BadgeForXP(xpTotal int64) *models.Badge {
	var current *models.Badge
	for i := range Badges {
		if Badges[i].XPThreshold <= xpTotal {
			b := Badges[i]
			current = &b
		}
	}
	return current
}

// NewBadge returns the badge reached by moving from before to after, if it
// differs from the badge held before.
func NewBadge(before, after int64) *models.Badge {
	prev, next := BadgeForXP(before), BadgeForXP(after)
	if next == nil {
		return nil
	}
	if prev == nil || prev.Key != next.Key {
		return next
	}
	return nil
}
