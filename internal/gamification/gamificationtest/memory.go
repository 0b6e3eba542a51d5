// Package gamificationtest provides an in-memory progression store for tests.
package gamificationtest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/models"
)

// Activity is one completed attempt as the aggregates see it.
type Activity struct {
	UserID      int64
	Answered    int
	Correct     int
	CompletedAt time.Time
}

// Memory implements gamification.Ledger and gamification.Reader.
type Memory struct {
	mu           sync.Mutex
	users        map[int64]*models.User
	txns         []models.XPTransaction
	achievements map[int64][]models.UserAchievement
	mastery      map[int64]map[int64]models.TopicMastery
	activity     []Activity

	// MasteryErr, when set, is returned by ApplyMasteryDeltas.
	MasteryErr error
}

var (
	_ gamification.Ledger = (*Memory)(nil)
	_ gamification.Reader = (*Memory)(nil)
)

func NewMemory() *Memory {
	return &Memory{
		users:        make(map[int64]*models.User),
		achievements: make(map[int64][]models.UserAchievement),
		mastery:      make(map[int64]map[int64]models.TopicMastery),
	}
}

func (m *Memory) AddUser(u models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = &u
}

// RecordActivity registers a completed attempt.
func (m *Memory) RecordActivity(a Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, a)
}

func (m *Memory) User(id int64) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return *u
	}
	return models.User{}
}

func (m *Memory) Transactions(userID int64) []models.XPTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.XPTransaction
	for _, t := range m.txns {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

func (m *Memory) GetUser(_ context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, apperr.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) LockUser(ctx context.Context, userID int64) (*models.User, error) {
	return m.GetUser(ctx, userID)
}

func (m *Memory) LedgerTotal(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total int64
	for _, t := range m.txns {
		if t.UserID == userID {
			total += int64(t.Amount)
		}
	}
	return total, nil
}

func (m *Memory) AppendXPTransaction(_ context.Context, txn *models.XPTransaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn.ID = int64(len(m.txns) + 1)
	txn.CreatedAt = time.Now()
	m.txns = append(m.txns, *txn)
	return nil
}

func (m *Memory) UpdateUserProgress(_ context.Context, userID int64, xpTotal int64, level, streakDays int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return apperr.NotFound("user")
	}
	u.XPTotal, u.Level, u.StreakDays = xpTotal, level, streakDays
	return nil
}

func (m *Memory) LastCompletedAt(_ context.Context, userID int64) (*time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var last *time.Time
	for _, a := range m.activity {
		if a.UserID != userID {
			continue
		}
		if last == nil || a.CompletedAt.After(*last) {
			t := a.CompletedAt
			last = &t
		}
	}
	return last, nil
}

func (m *Memory) LifetimeStats(_ context.Context, userID int64) (models.LifetimeStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var st models.LifetimeStats
	for _, a := range m.activity {
		if a.UserID == userID {
			st.AttemptsCompleted++
			st.QuestionsAnswered += a.Answered
			st.QuestionsCorrect += a.Correct
		}
	}
	return st, nil
}

func (m *Memory) OwnedAchievements(_ context.Context, userID int64) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owned := make(map[string]bool)
	for _, a := range m.achievements[userID] {
		owned[a.Key] = true
	}
	return owned, nil
}

func (m *Memory) GrantAchievement(_ context.Context, userID int64, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.achievements[userID] {
		if a.Key == key {
			return false, nil
		}
	}
	m.achievements[userID] = append(m.achievements[userID], models.UserAchievement{Key: key, EarnedAt: time.Now()})
	return true, nil
}

func (m *Memory) ListAchievements(_ context.Context, userID int64) ([]models.UserAchievement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.UserAchievement(nil), m.achievements[userID]...), nil
}

func (m *Memory) ApplyMasteryDeltas(ctx context.Context, userID int64, deltas []gamification.MasteryDelta) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MasteryErr != nil {
		return m.MasteryErr
	}
	rows, ok := m.mastery[userID]
	if !ok {
		rows = make(map[int64]models.TopicMastery)
		m.mastery[userID] = rows
	}
	for _, d := range deltas {
		row := rows[d.TopicID]
		row.UserID = userID
		row.UpdatedAt = time.Now()
		rows[d.TopicID] = gamification.ApplyMastery(row, d)
	}
	return nil
}

func (m *Memory) ListTopicMastery(_ context.Context, userID int64) ([]models.TopicMastery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.TopicMastery
	for _, row := range m.mastery[userID] {
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TopicID < out[j].TopicID })
	return out, nil
}
