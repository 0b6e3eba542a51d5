package attempts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/database"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/models"
)

// Reader is the read side shared by the store and its transactions.
type Reader interface {
	GetAssessment(ctx context.Context, kind models.AttemptKind, id int64) (*models.Assessment, error)
	AssessmentQuestionIDs(ctx context.Context, kind models.AttemptKind, id int64) ([]int64, error)
	GetQuestions(ctx context.Context, ids []int64) ([]models.Question, error)
	GetAttempt(ctx context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error)
	ListQuestionAttempts(ctx context.Context, kind models.AttemptKind, attemptID int64) ([]models.QuestionAttempt, error)
}

type Store interface {
	Reader
	CreateAttempt(ctx context.Context, a *models.Attempt) error
	// RunInTx commits when fn returns nil and rolls back otherwise.
	RunInTx(ctx context.Context, fn func(TxStore) error) error
}

// TxStore is the transactional view used by Submit.
type TxStore interface {
	Reader
	LockAttempt(ctx context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error)
	ReplaceQuestionAttempts(ctx context.Context, kind models.AttemptKind, attemptID int64, rows []models.QuestionAttempt) error
	CompleteAttempt(ctx context.Context, a *models.Attempt) error
	Ledger() gamification.Ledger
}

// ── Table Mapping ───────────────────────────────────────

type tables struct {
	assessment     string
	assessmentCols string
	link           string
	linkFK         string
	attempt        string
	attemptFK      string
	questionFK     string
}

var kindTables = map[models.AttemptKind]tables{
	models.KindQuiz: {
		assessment:     "quizzes",
		assessmentCols: "id, title, difficulty, time_limit_seconds, NULL::int, 0, is_active",
		link:           "quiz_questions",
		linkFK:         "quiz_id",
		attempt:        "quiz_attempts",
		attemptFK:      "quiz_id",
		questionFK:     "quiz_attempt_id",
	},
	models.KindPracticeTest: {
		assessment:     "practice_tests",
		assessmentCols: "id, title, difficulty, time_limit_seconds, duration_minutes, xp_reward, is_active",
		link:           "practice_test_questions",
		linkFK:         "practice_test_id",
		attempt:        "practice_test_attempts",
		attemptFK:      "practice_test_id",
		questionFK:     "practice_test_attempt_id",
	},
}

func tablesFor(kind models.AttemptKind) (tables, error) {
	t, ok := kindTables[kind]
	if !ok {
		return tables{}, apperr.Validation(fmt.Sprintf("unknown attempt kind %q", kind))
	}
	return t, nil
}

// ── Postgres ────────────────────────────────────────────

type queries struct {
	db database.Querier
}

// PGStore is the Postgres Store.
type PGStore struct {
	queries
	conn *sql.DB
}

func NewStore(db *sql.DB) *PGStore {
	return &PGStore{queries: queries{db: db}, conn: db}
}

func (s *PGStore) RunInTx(ctx context.Context, fn func(TxStore) error) error {
	return database.WithTx(ctx, s.conn, func(tx *sql.Tx) error {
		return fn(&pgTx{queries: queries{db: tx}})
	})
}

type pgTx struct {
	queries
}

func (t *pgTx) Ledger() gamification.Ledger {
	return gamification.NewStore(t.db)
}

// ── Assessments ─────────────────────────────────────────

func (q *queries) GetAssessment(ctx context.Context, kind models.AttemptKind, id int64) (*models.Assessment, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	a := models.Assessment{Kind: kind}
	var timeLimit, duration sql.NullInt64
	err = q.db.QueryRowContext(ctx,
		`SELECT `+t.assessmentCols+` FROM `+t.assessment+` WHERE id = $1`, id,
	).Scan(&a.ID, &a.Title, &a.Difficulty, &timeLimit, &duration, &a.XPReward, &a.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound(string(kind))
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", kind, err)
	}
	a.TimeLimitSeconds = nullInt(timeLimit)
	a.DurationMinutes = nullInt(duration)
	return &a, nil
}

func (q *queries) AssessmentQuestionIDs(ctx context.Context, kind models.AttemptKind, id int64) ([]int64, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT question_id FROM `+t.link+` WHERE `+t.linkFK+` = $1 ORDER BY position, question_id`, id)
	if err != nil {
		return nil, fmt.Errorf("list %s questions: %w", kind, err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var qid int64
		if err := rows.Scan(&qid); err != nil {
			return nil, err
		}
		ids = append(ids, qid)
	}
	return ids, rows.Err()
}

// GetQuestions loads questions in the order of ids. Ids with no row are
// skipped.
func (q *queries) GetQuestions(ctx context.Context, ids []int64) ([]models.Question, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, topic_id, question_text, question_type, options, correct_option, correct_answers
		 FROM questions WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get questions: %w", err)
	}
	defer rows.Close()

	byID := make(map[int64]models.Question, len(ids))
	for rows.Next() {
		var qn models.Question
		var topic sql.NullInt64
		var correct sql.NullString
		if err := rows.Scan(&qn.ID, &topic, &qn.Text, &qn.Type,
			pq.Array(&qn.Options), &correct, pq.Array(&qn.CorrectAnswers)); err != nil {
			return nil, err
		}
		if topic.Valid {
			qn.TopicID = &topic.Int64
		}
		if correct.Valid {
			qn.CorrectOption = &correct.String
		}
		byID[qn.ID] = qn
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]models.Question, 0, len(ids))
	for _, id := range ids {
		if qn, ok := byID[id]; ok {
			out = append(out, qn)
		}
	}
	return out, nil
}

// ── Attempts ────────────────────────────────────────────

func (s *PGStore) CreateAttempt(ctx context.Context, a *models.Attempt) error {
	t, err := tablesFor(a.Kind)
	if err != nil {
		return err
	}
	err = s.db.QueryRowContext(ctx,
		`INSERT INTO `+t.attempt+` (`+t.attemptFK+`, user_id, status, question_ids, total_questions)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING id, started_at`,
		a.AssessmentID, a.UserID, a.Status, pq.Array(a.QuestionIDs), a.TotalQuestions,
	).Scan(&a.ID, &a.StartedAt)
	if err != nil {
		return createAttemptError(a.Kind, err)
	}
	return nil
}

// foreignKeyViolation is the Postgres SQLSTATE for a missing referenced row.
const foreignKeyViolation = "23503"

// createAttemptError reports a dangling user or assessment reference as
// not found.
func createAttemptError(kind models.AttemptKind, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		if strings.HasSuffix(pqErr.Constraint, "_user_id_fkey") {
			return apperr.NotFound("user")
		}
		return apperr.NotFound(string(kind))
	}
	return fmt.Errorf("create attempt: %w", err)
}

func (q *queries) GetAttempt(ctx context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error) {
	return q.selectAttempt(ctx, kind, id, "")
}

// LockAttempt reads the attempt row FOR UPDATE; concurrent submitters queue
// here and observe the winner's completed status.
func (q *queries) LockAttempt(ctx context.Context, kind models.AttemptKind, id int64) (*models.Attempt, error) {
	return q.selectAttempt(ctx, kind, id, " FOR UPDATE")
}

func (q *queries) selectAttempt(ctx context.Context, kind models.AttemptKind, id int64, suffix string) (*models.Attempt, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}

	a := models.Attempt{Kind: kind}
	var ids pq.Int64Array
	var duration sql.NullInt64
	var meta []byte
	var completed sql.NullTime
	err = q.db.QueryRowContext(ctx,
		`SELECT id, `+t.attemptFK+`, user_id, status, question_ids, total_questions, correct_count,
		        incorrect_count, score, xp_awarded, duration_seconds, metadata, started_at, completed_at
		 FROM `+t.attempt+` WHERE id = $1`+suffix, id,
	).Scan(&a.ID, &a.AssessmentID, &a.UserID, &a.Status, &ids, &a.TotalQuestions, &a.CorrectCount,
		&a.IncorrectCount, &a.Score, &a.XPAwarded, &duration, &meta, &a.StartedAt, &completed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("attempt")
	}
	if err != nil {
		return nil, fmt.Errorf("get attempt: %w", err)
	}

	a.QuestionIDs = []int64(ids)
	a.DurationSeconds = nullInt(duration)
	if completed.Valid {
		a.CompletedAt = &completed.Time
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &a.Metadata); err != nil {
			return nil, fmt.Errorf("decode attempt metadata: %w", err)
		}
	}
	return &a, nil
}

func (q *queries) CompleteAttempt(ctx context.Context, a *models.Attempt) error {
	t, err := tablesFor(a.Kind)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(a.Metadata)
	if err != nil {
		return fmt.Errorf("encode attempt metadata: %w", err)
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE `+t.attempt+`
		 SET status = $2, total_questions = $3, correct_count = $4, incorrect_count = $5,
		     score = $6, xp_awarded = $7, duration_seconds = $8, metadata = $9, completed_at = $10
		 WHERE id = $1`,
		a.ID, a.Status, a.TotalQuestions, a.CorrectCount, a.IncorrectCount,
		a.Score, a.XPAwarded, a.DurationSeconds, string(meta), a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("complete attempt: %w", err)
	}
	return nil
}

// ── Question Attempts ───────────────────────────────────

func (q *queries) ReplaceQuestionAttempts(ctx context.Context, kind models.AttemptKind, attemptID int64, rows []models.QuestionAttempt) error {
	t, err := tablesFor(kind)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx,
		`DELETE FROM question_attempts WHERE `+t.questionFK+` = $1`, attemptID); err != nil {
		return fmt.Errorf("clear question attempts: %w", err)
	}

	for i := range rows {
		r := &rows[i]
		selected := r.SelectedOptions
		if selected == nil {
			selected = []string{}
		}
		var meta *string
		if r.ResponseMetadata != nil {
			b, err := json.Marshal(r.ResponseMetadata)
			if err != nil {
				return fmt.Errorf("encode response metadata: %w", err)
			}
			m := string(b)
			meta = &m
		}
		err := q.db.QueryRowContext(ctx,
			`INSERT INTO question_attempts
			    (`+t.questionFK+`, question_id, selected_option, selected_options, is_correct, score, response_metadata)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)
			 RETURNING id`,
			attemptID, r.QuestionID, r.SelectedOption, pq.Array(selected), r.IsCorrect, r.Score, meta,
		).Scan(&r.ID)
		if err != nil {
			return fmt.Errorf("insert question attempt %d: %w", r.QuestionID, err)
		}
		r.AttemptID = attemptID
	}
	return nil
}

func (q *queries) ListQuestionAttempts(ctx context.Context, kind models.AttemptKind, attemptID int64) ([]models.QuestionAttempt, error) {
	t, err := tablesFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := q.db.QueryContext(ctx,
		`SELECT qa.id, qa.question_id, q.question_text, q.topic_id, qa.selected_option,
		        qa.selected_options, qa.is_correct, qa.score
		 FROM question_attempts qa
		 JOIN questions q ON q.id = qa.question_id
		 WHERE qa.`+t.questionFK+` = $1
		 ORDER BY qa.id`, attemptID)
	if err != nil {
		return nil, fmt.Errorf("list question attempts: %w", err)
	}
	defer rows.Close()

	out := []models.QuestionAttempt{}
	for rows.Next() {
		qa := models.QuestionAttempt{AttemptID: attemptID}
		var topic sql.NullInt64
		var selected sql.NullString
		if err := rows.Scan(&qa.ID, &qa.QuestionID, &qa.QuestionText, &topic, &selected,
			pq.Array(&qa.SelectedOptions), &qa.IsCorrect, &qa.Score); err != nil {
			return nil, err
		}
		if topic.Valid {
			qa.TopicID = &topic.Int64
		}
		if selected.Valid {
			qa.SelectedOption = &selected.String
		}
		out = append(out, qa)
	}
	return out, rows.Err()
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

var (
	_ Store   = (*PGStore)(nil)
	_ TxStore = (*pgTx)(nil)
)
