package gamification

import (
	"math"

	"github.com/learnquest/backend/internal/models"
)

// BaseXP returns the XP a perfect attempt earns at the given difficulty.
// Unknown difficulty tags earn the medium amount.
func BaseXP(difficulty models.Difficulty) int {
	switch difficulty {
	case models.DifficultyEasy:
		return 5
	case models.DifficultyHard:
		return 15
	default:
		return 10
	}
}

// XPForAttempt scales BaseXP by the attempt's score percentage, rounding half
// away from zero. Scores outside 0-100 are clamped.
func XPForAttempt(scorePercentage int, difficulty models.Difficulty) int {
	if scorePercentage <= 0 {
		return 0
	}
	if scorePercentage > 100 {
		scorePercentage = 100
	}
	return int(math.Round(float64(BaseXP(difficulty)) * float64(scorePercentage) / 100))
}

// levelThresholds[i] is the XP needed to reach level i+1.
var levelThresholds = [10]int64{0, 100, 250, 500, 1000, 2000, 3500, 5500, 8000, 12000}

// MaxLevel is the highest reachable level.
const MaxLevel = len(levelThresholds)

// LevelForXP returns the highest level whose threshold is at or below xpTotal.
func LevelForXP(xpTotal int64) int {
	level := 1
	for i, threshold := range levelThresholds {
		if xpTotal >= threshold {
			level = i + 1
		}
	}
	return level
}

// XPToNextLevel returns the XP still missing for the next level, or 0 at MaxLevel.
func XPToNextLevel(xpTotal int64) int64 {
	level := LevelForXP(xpTotal)
	if level >= MaxLevel {
		return 0
	}
	return levelThresholds[level] - xpTotal
}

// ScorePercentage rounds correct/total to a whole percentage; 0 when total is 0.
func ScorePercentage(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}
