package gamification

import (
	"math"
	"sort"

	"github.com/learnquest/backend/internal/models"
)

// MasteryDelta is the counter increment for one (user, topic) row.
type MasteryDelta struct {
	TopicID  int64
	Attempts int
	Correct  int
}

// AccumulateMastery folds scored questions into per-topic deltas. Questions
// without a topic are skipped. Output is ordered by topic id so concurrent
// upserts always touch rows in the same order.
func AccumulateMastery(results []models.QuestionAttempt) []MasteryDelta {
	byTopic := make(map[int64]*MasteryDelta)
	for _, r := range results {
		if r.TopicID == nil {
			continue
		}
		d, ok := byTopic[*r.TopicID]
		if !ok {
			d = &MasteryDelta{TopicID: *r.TopicID}
			byTopic[*r.TopicID] = d
		}
		d.Attempts++
		if r.IsCorrect {
			d.Correct++
		}
	}

	out := make([]MasteryDelta, 0, len(byTopic))
	for _, d := range byTopic {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out
}

// Accuracy is round(correct/total*100), 0 when total is 0.
func Accuracy(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(correct) / float64(total) * 100))
}

// ApplyMastery returns m with delta added and accuracy recomputed.
func ApplyMastery(m models.TopicMastery, d MasteryDelta) models.TopicMastery {
	m.TopicID = d.TopicID
	m.TotalAttempts += d.Attempts
	m.CorrectAttempts += d.Correct
	m.Accuracy = Accuracy(m.CorrectAttempts, m.TotalAttempts)
	return m
}
