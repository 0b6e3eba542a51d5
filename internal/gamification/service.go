package gamification

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/models"
)

var tracer = otel.Tracer("github.com/learnquest/backend/internal/gamification")

// Ledger is the write path for a user's progression. Implementations are bound
// to the submission transaction; LockUser must be called first.
type Ledger interface {
	LockUser(ctx context.Context, userID int64) (*models.User, error)
	LedgerTotal(ctx context.Context, userID int64) (int64, error)
	AppendXPTransaction(ctx context.Context, txn *models.XPTransaction) error
	UpdateUserProgress(ctx context.Context, userID int64, xpTotal int64, level, streakDays int) error
	LastCompletedAt(ctx context.Context, userID int64) (*time.Time, error)
	LifetimeStats(ctx context.Context, userID int64) (models.LifetimeStats, error)
	OwnedAchievements(ctx context.Context, userID int64) (map[string]bool, error)
	GrantAchievement(ctx context.Context, userID int64, key string) (bool, error)
}

// Reader backs the progress read model and the post-commit mastery upserts.
type Reader interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	LedgerTotal(ctx context.Context, userID int64) (int64, error)
	ListAchievements(ctx context.Context, userID int64) ([]models.UserAchievement, error)
	ApplyMasteryDeltas(ctx context.Context, userID int64, deltas []MasteryDelta) error
	ListTopicMastery(ctx context.Context, userID int64) ([]models.TopicMastery, error)
}

type Service struct {
	store Reader
	log   *logger.Logger
	loc   *time.Location
}

func NewService(store Reader, log *logger.Logger, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{store: store, log: log.With("service", "gamification"), loc: loc}
}

// AttemptAward describes a scored, non-forfeited attempt. The attempt itself
// must not yet be marked completed when AwardAttempt runs.
type AttemptAward struct {
	UserID      int64
	Source      string
	XP          int
	Reason      string
	Metadata    map[string]any
	Answered    int
	Correct     int
	CompletedAt time.Time
}

type RewardOutcome struct {
	TransactionID int64
	XPBefore      int64
	LevelBefore   int
	Unlocked      []AchievementDef
	Summary       models.RewardSummary
}

// ── Attempt Rewards ─────────────────────────────────────

// AwardAttempt applies every progression change for one attempt through l.
func (s *Service) AwardAttempt(ctx context.Context, l Ledger, a AttemptAward) (*RewardOutcome, error) {
	ctx, span := tracer.Start(ctx, "gamification.AwardAttempt")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", a.UserID), attribute.Int("xp", a.XP))

	user, err := l.LockUser(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	xp, err := s.reconcile(ctx, l, user)
	if err != nil {
		return nil, err
	}
	out := &RewardOutcome{XPBefore: xp, LevelBefore: LevelForXP(xp)}

	txn := &models.XPTransaction{
		UserID:   a.UserID,
		Amount:   a.XP,
		Source:   a.Source,
		Reason:   a.Reason,
		Metadata: a.Metadata,
	}
	if err := l.AppendXPTransaction(ctx, txn); err != nil {
		return nil, err
	}
	out.TransactionID = txn.ID
	xp += int64(a.XP)

	// Streak
	prev, err := l.LastCompletedAt(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	var previous time.Time
	if prev != nil {
		previous = *prev
	}
	streak := NextStreak(user.StreakDays, a.CompletedAt, previous, prev != nil, s.loc)

	// Achievements
	stats, err := l.LifetimeStats(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	stats.AttemptsCompleted++
	stats.QuestionsAnswered += a.Answered
	stats.QuestionsCorrect += a.Correct

	owned, err := l.OwnedAchievements(ctx, a.UserID)
	if err != nil {
		return nil, err
	}
	unlocked := []string{}
	for _, def := range CheckAchievements(stats, owned) {
		inserted, err := l.GrantAchievement(ctx, a.UserID, def.Key)
		if err != nil {
			return nil, err
		}
		if !inserted {
			continue
		}
		if def.XPReward > 0 {
			if err := l.AppendXPTransaction(ctx, &models.XPTransaction{
				UserID:   a.UserID,
				Amount:   def.XPReward,
				Source:   def.Name,
				Reason:   "Achievement unlocked: " + def.Name,
				Metadata: map[string]any{"achievement_key": def.Key},
			}); err != nil {
				return nil, err
			}
			xp += int64(def.XPReward)
		}
		out.Unlocked = append(out.Unlocked, def)
		unlocked = append(unlocked, def.Key)
	}

	level := LevelForXP(xp)
	if err := l.UpdateUserProgress(ctx, a.UserID, xp, level, streak); err != nil {
		return nil, err
	}

	out.Summary = models.RewardSummary{
		XPEarned:             int(xp - out.XPBefore),
		XPTotal:              xp,
		Level:                level,
		LeveledUp:            level > out.LevelBefore,
		XPToNextLevel:        XPToNextLevel(xp),
		StreakDays:           streak,
		AchievementsUnlocked: unlocked,
		NewBadge:             NewBadge(out.XPBefore, xp),
	}
	return out, nil
}

// reconcile returns the ledger sum, logging when the cached total disagrees.
func (s *Service) reconcile(ctx context.Context, r interface {
	LedgerTotal(context.Context, int64) (int64, error)
}, user *models.User) (int64, error) {
	total, err := r.LedgerTotal(ctx, user.ID)
	if err != nil {
		return 0, err
	}
	if total != user.XPTotal {
		s.log.Warn("xp_total drift, using ledger sum",
			"user_id", user.ID, "cached", user.XPTotal, "ledger", total)
	}
	return total, nil
}

// ── Topic Mastery ───────────────────────────────────────

// RecordMastery folds scored questions into the user's topic mastery rows.
func (s *Service) RecordMastery(ctx context.Context, userID int64, results []models.QuestionAttempt) error {
	deltas := AccumulateMastery(results)
	if len(deltas) == 0 {
		return nil
	}
	if err := s.store.ApplyMasteryDeltas(ctx, userID, deltas); err != nil {
		return fmt.Errorf("record mastery: %w", err)
	}
	return nil
}

func (s *Service) Mastery(ctx context.Context, userID int64) (*models.MasteryResponse, error) {
	rows, err := s.store.ListTopicMastery(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.TopicMastery{}
	}
	return &models.MasteryResponse{Topics: rows}, nil
}

// ── Progress ────────────────────────────────────────────

func (s *Service) Progress(ctx context.Context, userID int64) (*models.ProgressResponse, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	xp, err := s.reconcile(ctx, s.store, user)
	if err != nil {
		return nil, err
	}

	owned, err := s.store.ListAchievements(ctx, userID)
	if err != nil {
		return nil, err
	}
	achievements := make([]models.UserAchievement, 0, len(owned))
	for _, a := range owned {
		if def, ok := AchievementByKey(a.Key); ok {
			a.Name = def.Name
			a.Description = def.Description
			a.XPReward = def.XPReward
		}
		achievements = append(achievements, a)
	}

	return &models.ProgressResponse{
		XPTotal:       xp,
		Level:         LevelForXP(xp),
		XPToNextLevel: XPToNextLevel(xp),
		StreakDays:    user.StreakDays,
		Badge:         BadgeForXP(xp),
		Achievements:  achievements,
	}, nil
}
