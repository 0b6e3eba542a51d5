package attempts

import (
	"context"
	"sync"
	"time"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/gamification/gamificationtest"
	"github.com/learnquest/backend/internal/models"
)

// memStore is an in-memory Store. RunInTx serializes transactions, which
// stands in for the row lock taken by LockAttempt.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	assessments map[models.AttemptKind]map[int64]*seededAssessment
	questions   map[int64]models.Question
	attempts    map[models.AttemptKind]map[int64]models.Attempt
	results     map[models.AttemptKind]map[int64][]models.QuestionAttempt
	nextID      int64

	ledger *gamificationtest.Memory
	// onCommit runs after a transaction commits.
	onCommit func()
}

func newMemStore(ledger *gamificationtest.Memory) *memStore {
	s := &memStore{
		assessments: make(map[models.AttemptKind]map[int64]*seededAssessment),
		questions:   make(map[int64]models.Question),
		attempts:    make(map[models.AttemptKind]map[int64]models.Attempt),
		results:     make(map[models.AttemptKind]map[int64][]models.QuestionAttempt),
		ledger:      ledger,
	}
	for _, k := range []models.AttemptKind{models.KindQuiz, models.KindPracticeTest} {
		s.assessments[k] = make(map[int64]*seededAssessment)
		s.attempts[k] = make(map[int64]models.Attempt)
		s.results[k] = make(map[int64][]models.QuestionAttempt)
	}
	return s
}

// seededAssessment is an assessment together with its ordered questions.
type seededAssessment struct {
	models.Assessment
	questions []models.Question
}

func (s *memStore) addAssessment(a seededAssessment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range a.questions {
		s.questions[q.ID] = q
	}
	s.assessments[a.Kind][a.ID] = &a
}

func (s *memStore) GetAssessment(_ context.Context, kind models.AttemptKind, id int64) (*models.Assessment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[kind][id]
	if !ok {
		return nil, apperr.NotFound(string(kind))
	}
	cp := a.Assessment
	return &cp, nil
}

func (s *memStore) AssessmentQuestionIDs(_ context.Context, kind models.AttemptKind, id int64) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.assessments[kind][id]
	if !ok {
		return nil, apperr.NotFound(string(kind))
	}
	ids := make([]int64, len(a.questions))
	for i, q := range a.questions {
		ids[i] = q.ID
	}
	return ids, nil
}

func (s *memStore) GetQuestions(_ context.Context, ids []int64) ([]models.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Question
	for _, id := range ids {
		if q, ok := s.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *memStore) CreateAttempt(_ context.Context, a *models.Attempt) error {
	if s.ledger.User(a.UserID).ID == 0 {
		return apperr.NotFound("user")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	a.ID = s.nextID
	a.StartedAt = fixedNow.Add(-10 * time.Minute)
	s.attempts[a.Kind][a.ID] = *a
	return nil
}

func (s *memStore) GetAttempt(_ context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempts[kind][id]
	if !ok {
		return nil, apperr.NotFound("attempt")
	}
	return &a, nil
}

func (s *memStore) ListQuestionAttempts(_ context.Context, kind models.AttemptKind, attemptID int64) ([]models.QuestionAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.QuestionAttempt{}, s.results[kind][attemptID]...), nil
}

func (s *memStore) RunInTx(ctx context.Context, fn func(TxStore) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	s.mu.Lock()
	attempts := cloneByKind(s.attempts)
	results := cloneByKind(s.results)
	s.mu.Unlock()

	if err := fn(memTx{s}); err != nil {
		s.mu.Lock()
		s.attempts, s.results = attempts, results
		s.mu.Unlock()
		return err
	}
	if s.onCommit != nil {
		s.onCommit()
	}
	return nil
}

func cloneByKind[V any](src map[models.AttemptKind]map[int64]V) map[models.AttemptKind]map[int64]V {
	out := make(map[models.AttemptKind]map[int64]V, len(src))
	for k, m := range src {
		out[k] = make(map[int64]V, len(m))
		for id, v := range m {
			out[k][id] = v
		}
	}
	return out
}

type memTx struct {
	*memStore
}

func (t memTx) LockAttempt(ctx context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error) {
	return t.GetAttempt(ctx, kind, id)
}

func (t memTx) ReplaceQuestionAttempts(_ context.Context, kind models.AttemptKind, attemptID int64, rows []models.QuestionAttempt) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	stored := make([]models.QuestionAttempt, len(rows))
	for i, r := range rows {
		t.nextID++
		r.ID = t.nextID
		r.AttemptID = attemptID
		r.ResponseMetadata = nil
		rows[i].ID = r.ID
		stored[i] = r
	}
	t.results[kind][attemptID] = stored
	return nil
}

func (t memTx) CompleteAttempt(_ context.Context, a *models.Attempt) error {
	t.mu.Lock()
	t.attempts[a.Kind][a.ID] = *a
	t.mu.Unlock()
	t.ledger.RecordActivity(gamificationtest.Activity{
		UserID:      a.UserID,
		Answered:    a.TotalQuestions,
		Correct:     a.CorrectCount,
		CompletedAt: *a.CompletedAt,
	})
	return nil
}

func (t memTx) Ledger() gamification.Ledger {
	return t.ledger
}

var (
	_ Store   = (*memStore)(nil)
	_ TxStore = memTx{}
)
