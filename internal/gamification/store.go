package gamification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/database"
	"github.com/learnquest/backend/internal/models"
)

// Store is the Postgres implementation of Ledger and Reader. Bind it to a
// *sql.Tx to make its writes part of a submission transaction.
type Store struct {
	db database.Querier
}

var (
	_ Ledger = (*Store)(nil)
	_ Reader = (*Store)(nil)
)

func NewStore(db database.Querier) *Store {
	return &Store{db: db}
}

const userCols = `id, email, name, xp_total, level, streak_days, created_at, updated_at`

// completedAttempts unions both attempt tables for per-user aggregates.
const completedAttempts = `
	SELECT total_questions, correct_count, completed_at FROM quiz_attempts
	 WHERE user_id = $1 AND status = 'completed'
	UNION ALL
	SELECT total_questions, correct_count, completed_at FROM practice_test_attempts
	 WHERE user_id = $1 AND status = 'completed'`

// ── Users ───────────────────────────────────────────────

func (s *Store) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1`, userID))
}

func (s *Store) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = $1 FOR UPDATE`, userID))
}

func (s *Store) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.XPTotal, &u.Level, &u.StreakDays, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("user")
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) UpdateUserProgress(ctx context.Context, userID int64, xpTotal int64, level, streakDays int) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET xp_total = $2, level = $3, streak_days = $4, updated_at = NOW()
		 WHERE id = $1`,
		userID, xpTotal, level, streakDays,
	)
	if err != nil {
		return fmt.Errorf("update user progress: %w", err)
	}
	return nil
}

// ── XP Ledger ───────────────────────────────────────────

func (s *Store) LedgerTotal(ctx context.Context, userID int64) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount), 0) FROM xp_transactions WHERE user_id = $1`, userID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum xp transactions: %w", err)
	}
	return total, nil
}

func (s *Store) AppendXPTransaction(ctx context.Context, txn *models.XPTransaction) error {
	var metaJSON *string
	if txn.Metadata != nil {
		b, err := json.Marshal(txn.Metadata)
		if err != nil {
			return fmt.Errorf("encode xp metadata: %w", err)
		}
		m := string(b)
		metaJSON = &m
	}
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO xp_transactions (user_id, amount, source, reason, metadata)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, created_at`,
		txn.UserID, txn.Amount, txn.Source, txn.Reason, metaJSON,
	).Scan(&txn.ID, &txn.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert xp transaction: %w", err)
	}
	return nil
}

// ── Activity Aggregates ─────────────────────────────────

func (s *Store) LastCompletedAt(ctx context.Context, userID int64) (*time.Time, error) {
	var last sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(completed_at) FROM (`+completedAttempts+`) t`, userID,
	).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("last completed attempt: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	return &last.Time, nil
}

func (s *Store) LifetimeStats(ctx context.Context, userID int64) (models.LifetimeStats, error) {
	var st models.LifetimeStats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_questions), 0), COALESCE(SUM(correct_count), 0)
		 FROM (`+completedAttempts+`) t`, userID,
	).Scan(&st.AttemptsCompleted, &st.QuestionsAnswered, &st.QuestionsCorrect)
	if err != nil {
		return st, fmt.Errorf("lifetime stats: %w", err)
	}
	return st, nil
}

// ── Achievements ────────────────────────────────────────

func (s *Store) OwnedAchievements(ctx context.Context, userID int64) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT achievement_key FROM user_achievements WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("get achievements: %w", err)
	}
	defer rows.Close()

	owned := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		owned[key] = true
	}
	return owned, rows.Err()
}

// GrantAchievement records ownership and reports whether this call created it.
func (s *Store) GrantAchievement(ctx context.Context, userID int64, key string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO user_achievements (user_id, achievement_key) VALUES ($1, $2)
		 ON CONFLICT (user_id, achievement_key) DO NOTHING`,
		userID, key,
	)
	if err != nil {
		return false, fmt.Errorf("award achievement: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *Store) ListAchievements(ctx context.Context, userID int64) ([]models.UserAchievement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT achievement_key, earned_at FROM user_achievements
		 WHERE user_id = $1 ORDER BY earned_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	defer rows.Close()

	var out []models.UserAchievement
	for rows.Next() {
		var a models.UserAchievement
		if err := rows.Scan(&a.Key, &a.EarnedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ── Topic Mastery ───────────────────────────────────────

// ApplyMasteryDeltas upserts each (user, topic) row atomically. Every
// parameter carries an explicit cast.
func (s *Store) ApplyMasteryDeltas(ctx context.Context, userID int64, deltas []MasteryDelta) error {
	for _, d := range deltas {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO topic_mastery (user_id, topic_id, total_attempts, correct_attempts, accuracy, updated_at)
			 VALUES ($1::bigint, $2::bigint, $3::int, $4::int, $5::int, NOW())
			 ON CONFLICT (user_id, topic_id) DO UPDATE SET
			    total_attempts = topic_mastery.total_attempts + EXCLUDED.total_attempts,
			    correct_attempts = topic_mastery.correct_attempts + EXCLUDED.correct_attempts,
			    accuracy = ROUND((topic_mastery.correct_attempts + EXCLUDED.correct_attempts)::numeric * 100
			                     / (topic_mastery.total_attempts + EXCLUDED.total_attempts)),
			    updated_at = NOW()`,
			userID, d.TopicID, d.Attempts, d.Correct, Accuracy(d.Correct, d.Attempts),
		)
		if err != nil {
			return fmt.Errorf("upsert topic mastery %d: %w", d.TopicID, err)
		}
	}
	return nil
}

func (s *Store) ListTopicMastery(ctx context.Context, userID int64) ([]models.TopicMastery, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, topic_id, total_attempts, correct_attempts, accuracy, updated_at
		 FROM topic_mastery WHERE user_id = $1 ORDER BY topic_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list topic mastery: %w", err)
	}
	defer rows.Close()

	var out []models.TopicMastery
	for rows.Next() {
		var m models.TopicMastery
		if err := rows.Scan(&m.UserID, &m.TopicID, &m.TotalAttempts, &m.CorrectAttempts, &m.Accuracy, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
