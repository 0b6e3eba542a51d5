package gamification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/gamification/gamificationtest"
	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/models"
)

var now = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func newFixture(t *testing.T, user models.User) (*gamification.Service, *gamificationtest.Memory) {
	t.Helper()
	mem := gamificationtest.NewMemory()
	mem.AddUser(user)
	return gamification.NewService(mem, logger.Nop(), time.UTC), mem
}

func award(userID int64, xp, answered, correct int) gamification.AttemptAward {
	return gamification.AttemptAward{
		UserID:      userID,
		Source:      models.SourceQuiz,
		XP:          xp,
		Reason:      "Quiz completed",
		Answered:    answered,
		Correct:     correct,
		CompletedAt: now,
	}
}

func TestAwardAttemptFirstAttempt(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 1, Level: 1})

	out, err := svc.AwardAttempt(ctx, mem, award(1, 5, 4, 4))
	require.NoError(t, err)

	assert.Equal(t, int64(0), out.XPBefore)
	assert.Equal(t, 15, out.Summary.XPEarned)
	assert.Equal(t, int64(15), out.Summary.XPTotal)
	assert.Equal(t, 1, out.Summary.Level)
	assert.False(t, out.Summary.LeveledUp)
	assert.Equal(t, int64(85), out.Summary.XPToNextLevel)
	assert.Equal(t, 1, out.Summary.StreakDays)
	assert.Equal(t, []string{"first_attempt"}, out.Summary.AchievementsUnlocked)
	assert.Nil(t, out.Summary.NewBadge)

	txns := mem.Transactions(1)
	require.Len(t, txns, 2)
	assert.Equal(t, out.TransactionID, txns[0].ID)
	assert.Equal(t, models.SourceQuiz, txns[0].Source)
	assert.Equal(t, "First Steps", txns[1].Source)

	u := mem.User(1)
	assert.Equal(t, int64(15), u.XPTotal)
	assert.Equal(t, 1, u.StreakDays)
}

func TestAwardAttemptZeroXPStillRecorded(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 1, Level: 1})
	_, err := mem.GrantAchievement(ctx, 1, "first_attempt")
	require.NoError(t, err)

	out, err := svc.AwardAttempt(ctx, mem, award(1, 0, 4, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, out.Summary.XPEarned)
	assert.Empty(t, out.Summary.AchievementsUnlocked)
	require.Len(t, mem.Transactions(1), 1)
	assert.Equal(t, 0, mem.Transactions(1)[0].Amount)
}

func TestAwardAttemptLevelUpAndBadge(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 2, XPTotal: 95, Level: 1, StreakDays: 2})
	require.NoError(t, mem.AppendXPTransaction(ctx, &models.XPTransaction{UserID: 2, Amount: 95, Source: "seed"}))
	_, err := mem.GrantAchievement(ctx, 2, "first_attempt")
	require.NoError(t, err)
	mem.RecordActivity(gamificationtest.Activity{UserID: 2, Answered: 4, Correct: 1, CompletedAt: now.Add(-20 * time.Hour)})

	out, err := svc.AwardAttempt(ctx, mem, award(2, 10, 4, 2))
	require.NoError(t, err)

	assert.Equal(t, 1, out.LevelBefore)
	assert.Equal(t, 2, out.Summary.Level)
	assert.True(t, out.Summary.LeveledUp)
	require.NotNil(t, out.Summary.NewBadge)
	assert.Equal(t, "bronze", out.Summary.NewBadge.Key)
	assert.Equal(t, 3, out.Summary.StreakDays, "previous activity was yesterday")
	assert.Empty(t, out.Summary.AchievementsUnlocked)
}

func TestAwardAttemptLedgerIsAuthoritative(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 3, XPTotal: 500, Level: 4})

	out, err := svc.AwardAttempt(ctx, mem, award(3, 5, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), out.XPBefore)
	assert.Equal(t, int64(15), out.Summary.XPTotal)
	assert.Equal(t, int64(15), mem.User(3).XPTotal)
}

func TestAwardAttemptAchievementPaidOnce(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 4, Level: 1})

	first, err := svc.AwardAttempt(ctx, mem, award(4, 5, 4, 4))
	require.NoError(t, err)
	mem.RecordActivity(gamificationtest.Activity{UserID: 4, Answered: 4, Correct: 4, CompletedAt: now})

	second, err := svc.AwardAttempt(ctx, mem, award(4, 5, 4, 4))
	require.NoError(t, err)

	assert.Equal(t, []string{"first_attempt"}, first.Summary.AchievementsUnlocked)
	// 8/8 correct crosses the sharpshooter threshold on the second attempt.
	assert.Equal(t, []string{"sharpshooter"}, second.Summary.AchievementsUnlocked)
	assert.Equal(t, int64(5+10+5+25), second.Summary.XPTotal)
	assert.Equal(t, 1, second.Summary.StreakDays, "same day keeps the streak")
}

func TestAwardAttemptUnknownUser(t *testing.T) {
	svc, mem := newFixture(t, models.User{ID: 1})
	_, err := svc.AwardAttempt(context.Background(), mem, award(99, 5, 1, 1))
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestProgress(t *testing.T) {
	ctx := context.Background()
	svc, mem := newFixture(t, models.User{ID: 5, Level: 1})
	_, err := svc.AwardAttempt(ctx, mem, award(5, 100, 10, 10))
	require.NoError(t, err)

	p, err := svc.Progress(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(100+10+25), p.XPTotal)
	assert.Equal(t, 2, p.Level)
	assert.Equal(t, int64(115), p.XPToNextLevel)
	require.NotNil(t, p.Badge)
	assert.Equal(t, "bronze", p.Badge.Key)
	require.Len(t, p.Achievements, 2)
	assert.Equal(t, "First Steps", p.Achievements[0].Name)
	assert.Equal(t, "Sharpshooter", p.Achievements[1].Name)
}

func TestRecordMastery(t *testing.T) {
	ctx := context.Background()
	svc, _ := newFixture(t, models.User{ID: 6})
	topic := int64(7)

	results := []models.QuestionAttempt{
		{QuestionID: 1, TopicID: &topic, IsCorrect: true},
		{QuestionID: 2, TopicID: &topic, IsCorrect: false},
		{QuestionID: 3},
	}
	require.NoError(t, svc.RecordMastery(ctx, 6, results))
	require.NoError(t, svc.RecordMastery(ctx, 6, results[:1]))

	resp, err := svc.Mastery(ctx, 6)
	require.NoError(t, err)
	require.Len(t, resp.Topics, 1)
	assert.Equal(t, 3, resp.Topics[0].TotalAttempts)
	assert.Equal(t, 2, resp.Topics[0].CorrectAttempts)
	assert.Equal(t, 67, resp.Topics[0].Accuracy)

	empty, err := svc.Mastery(ctx, 99)
	require.NoError(t, err)
	assert.NotNil(t, empty.Topics)
}
