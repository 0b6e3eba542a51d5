package attempts

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/learnquest/backend/internal/apperr"
	"github.com/learnquest/backend/internal/gamification"
	"github.com/learnquest/backend/internal/logger"
	"github.com/learnquest/backend/internal/models"
	"github.com/learnquest/backend/internal/notify"
	"github.com/learnquest/backend/internal/scoring"
)

var tracer = otel.Tracer("github.com/learnquest/backend/internal/attempts")

const timeLimitMessage = "Time limit exceeded. This attempt has been recorded with a score of 0 and no XP."

// Emitter receives progression events after a submission commits.
type Emitter interface {
	Emit(events ...notify.Event)
}

type Service struct {
	store   Store
	rewards *gamification.Service
	eval    *scoring.Evaluator
	events  Emitter
	log     *logger.Logger
	now     func() time.Time
}

func NewService(store Store, rewards *gamification.Service, eval *scoring.Evaluator, events Emitter, log *logger.Logger) *Service {
	return &Service{
		store:   store,
		rewards: rewards,
		eval:    eval,
		events:  events,
		log:     log.With("service", "attempts"),
		now:     time.Now,
	}
}

// ── Start ───────────────────────────────────────────────

// Start opens an attempt on an active assessment and freezes its question list.
func (s *Service) Start(ctx context.Context, kind models.AttemptKind, userID, assessmentID int64) (*models.StartAttemptResponse, error) {
	ctx, span := tracer.Start(ctx, "attempts.Start", trace.WithAttributes(
		attribute.String("attempt.kind", string(kind)),
		attribute.Int64("assessment.id", assessmentID),
	))
	defer span.End()

	assessment, err := s.store.GetAssessment(ctx, kind, assessmentID)
	if err != nil {
		return nil, err
	}
	if !assessment.IsActive {
		return nil, apperr.NotFound(string(kind))
	}

	ids, err := s.store.AssessmentQuestionIDs(ctx, kind, assessmentID)
	if err != nil {
		return nil, err
	}

	a := &models.Attempt{
		Kind:           kind,
		AssessmentID:   assessmentID,
		UserID:         userID,
		Status:         models.AttemptInProgress,
		QuestionIDs:    ids,
		TotalQuestions: len(ids),
	}
	if err := s.store.CreateAttempt(ctx, a); err != nil {
		return nil, err
	}

	s.log.Info("attempt started", "kind", kind, "attempt_id", a.ID, "user_id", userID, "questions", len(ids))
	return &models.StartAttemptResponse{AttemptID: a.ID, Status: a.Status}, nil
}

// ── Submit ──────────────────────────────────────────────

// submission carries what the post-commit steps need.
type submission struct {
	attempt *models.Attempt
	results []models.QuestionAttempt
	outcome *gamification.RewardOutcome
	forfeit bool
}

// Submit scores an attempt and applies its rewards exactly once. Submitting
// an already completed attempt returns the stored result.
func (s *Service) Submit(ctx context.Context, kind models.AttemptKind, userID, attemptID int64, req models.SubmitAttemptRequest) (*models.SubmitAttemptResponse, error) {
	ctx, span := tracer.Start(ctx, "attempts.Submit", trace.WithAttributes(
		attribute.String("attempt.kind", string(kind)),
		attribute.Int64("attempt.id", attemptID),
	))
	defer span.End()

	var resp *models.SubmitAttemptResponse
	var done *submission
	err := s.store.RunInTx(ctx, func(tx TxStore) error {
		a, err := tx.LockAttempt(ctx, kind, attemptID)
		if err != nil {
			return err
		}
		if a.UserID != userID {
			return apperr.NotFound("attempt")
		}
		if a.Status == models.AttemptCompleted {
			view, err := s.view(ctx, tx, a)
			if err != nil {
				return err
			}
			resp = &models.SubmitAttemptResponse{Attempt: *view}
			if a.TimeLimitExceeded() {
				resp.Message = ptr(timeLimitMessage)
			}
			return nil
		}

		done, err = s.finalize(ctx, tx, a, req)
		if err != nil {
			return err
		}
		resp = &models.SubmitAttemptResponse{
			Attempt: models.AttemptView{Attempt: *done.attempt, Questions: done.results},
		}
		if done.forfeit {
			resp.Message = ptr(timeLimitMessage)
		}
		if done.outcome != nil {
			summary := done.outcome.Summary
			resp.Rewards = &summary
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if done != nil {
		s.afterCommit(ctx, done)
	} else {
		s.log.Debug("submit replayed completed attempt", "kind", kind, "attempt_id", attemptID)
	}
	return resp, nil
}

// finalize runs the scoring pipeline on a locked in_progress attempt.
func (s *Service) finalize(ctx context.Context, tx TxStore, a *models.Attempt, req models.SubmitAttemptRequest) (*submission, error) {
	if len(req.Responses) == 0 {
		return nil, apperr.Validation("responses must not be empty")
	}

	inSnapshot := make(map[int64]bool, len(a.QuestionIDs))
	for _, id := range a.QuestionIDs {
		inSnapshot[id] = true
	}
	byQuestion := make(map[int64]models.QuestionResponse, len(req.Responses))
	var foreign []int64
	for _, r := range req.Responses {
		if !inSnapshot[r.QuestionID] {
			foreign = append(foreign, r.QuestionID)
			continue
		}
		byQuestion[r.QuestionID] = r
	}
	if len(foreign) > 0 {
		return nil, apperr.Validation("questions are not part of this attempt", foreign...)
	}

	assessment, err := tx.GetAssessment(ctx, a.Kind, a.AssessmentID)
	if err != nil {
		return nil, err
	}
	questions, err := tx.GetQuestions(ctx, a.QuestionIDs)
	if err != nil {
		return nil, err
	}

	elapsed := req.ElapsedSeconds()
	limit := assessment.TimeLimit()
	forfeit := limit > 0 && elapsed != nil && *elapsed > limit

	results := make([]models.QuestionAttempt, 0, len(questions))
	correct := 0
	for _, q := range questions {
		qa := models.QuestionAttempt{
			AttemptID:    a.ID,
			QuestionID:   q.ID,
			QuestionText: q.Text,
			TopicID:      q.TopicID,
			ResponseMetadata: map[string]any{
				"question_type": q.Type,
			},
		}
		if q.TopicID != nil {
			qa.ResponseMetadata["topic_id"] = *q.TopicID
		}

		var resp *scoring.Response
		if r, ok := byQuestion[q.ID]; ok {
			qa.SelectedOption = r.SelectedOption
			qa.SelectedOptions = r.SelectedOptions
			resp = &scoring.Response{SelectedOption: r.SelectedOption, SelectedOptions: r.SelectedOptions}
		}
		if s.eval.Evaluate(scoring.KeyFor(q), resp).IsCorrect && !forfeit {
			qa.IsCorrect = true
			qa.Score = 1
			correct++
		}
		results = append(results, qa)
	}

	if err := tx.ReplaceQuestionAttempts(ctx, a.Kind, a.ID, results); err != nil {
		return nil, err
	}

	total := len(results)
	completedAt := s.now().UTC()
	a.Status = models.AttemptCompleted
	a.TotalQuestions = total
	a.CorrectCount = correct
	a.IncorrectCount = total - correct
	a.Score = gamification.ScorePercentage(correct, total)
	a.DurationSeconds = elapsed
	a.CompletedAt = &completedAt
	a.Metadata = map[string]any{models.MetaTimeLimitExceeded: forfeit}
	if limit > 0 {
		a.Metadata[models.MetaTimeLimitSeconds] = limit
	}
	if elapsed != nil {
		a.Metadata[models.MetaElapsedSeconds] = *elapsed
	}
	if req.Metadata != nil {
		a.Metadata[models.MetaClient] = req.Metadata
	}

	done := &submission{attempt: a, results: results, forfeit: forfeit}
	if !forfeit {
		xp, source := s.attemptXP(assessment, a.Score)
		outcome, err := s.rewards.AwardAttempt(ctx, tx.Ledger(), gamification.AttemptAward{
			UserID: a.UserID,
			Source: source,
			XP:     xp,
			Reason: fmt.Sprintf("Completed %s %q with score %d%%", assessmentLabel(a.Kind), assessment.Title, a.Score),
			Metadata: map[string]any{
				"attempt_id":    a.ID,
				"assessment_id": a.AssessmentID,
				"kind":          a.Kind,
				"score":         a.Score,
			},
			Answered:    total,
			Correct:     correct,
			CompletedAt: completedAt,
		})
		if err != nil {
			return nil, err
		}
		a.XPAwarded = xp
		a.Metadata[models.MetaXPTransactionID] = outcome.TransactionID
		done.outcome = outcome
	}

	if err := tx.CompleteAttempt(ctx, a); err != nil {
		return nil, err
	}
	return done, nil
}

// attemptXP returns the XP for a completed attempt and its ledger source.
func (s *Service) attemptXP(assessment *models.Assessment, score int) (int, string) {
	if assessment.Kind == models.KindPracticeTest {
		return max(assessment.XPReward, 0), models.SourcePracticeTest
	}
	return gamification.XPForAttempt(score, assessment.Difficulty), models.SourceQuiz
}

// afterCommit updates topic mastery and emits notifications. Failures here
// are logged only; the attempt is already final. It ignores cancellation of
// ctx since a replayed submit never repeats these steps.
func (s *Service) afterCommit(ctx context.Context, d *submission) {
	ctx = context.WithoutCancel(ctx)
	a := d.attempt
	log := s.log.With("kind", a.Kind, "attempt_id", a.ID, "user_id", a.UserID)
	log.Info("attempt completed",
		"score", a.Score, "correct", a.CorrectCount, "total", a.TotalQuestions,
		"xp_awarded", a.XPAwarded, "time_limit_exceeded", d.forfeit)

	if !d.forfeit {
		if err := s.rewards.RecordMastery(ctx, a.UserID, d.results); err != nil {
			log.Error("topic mastery update failed", "error", err)
		}
	}

	if s.events == nil {
		return
	}
	events := []notify.Event{notify.NewEvent(notify.EventAttemptCompleted, a.UserID, map[string]any{
		"attempt_id":          a.ID,
		"kind":                a.Kind,
		"assessment_id":       a.AssessmentID,
		"score":               a.Score,
		"xp_awarded":          a.XPAwarded,
		"time_limit_exceeded": d.forfeit,
	})}
	if o := d.outcome; o != nil {
		if o.Summary.LeveledUp {
			events = append(events, notify.NewEvent(notify.EventLevelUp, a.UserID, map[string]any{
				"previous_level": o.LevelBefore,
				"level":          o.Summary.Level,
			}))
		}
		for _, def := range o.Unlocked {
			events = append(events, notify.NewEvent(notify.EventAchievementUnlocked, a.UserID, map[string]any{
				"key":       def.Key,
				"name":      def.Name,
				"xp_reward": def.XPReward,
			}))
		}
		if b := o.Summary.NewBadge; b != nil {
			events = append(events, notify.NewEvent(notify.EventBadgeEarned, a.UserID, map[string]any{
				"key":  b.Key,
				"name": b.Name,
			}))
		}
	}
	s.events.Emit(events...)
}

// ── Get ─────────────────────────────────────────────────

func (s *Service) Get(ctx context.Context, kind models.AttemptKind, userID, attemptID int64) (*models.AttemptView, error) {
	a, err := s.store.GetAttempt(ctx, kind, attemptID)
	if err != nil {
		return nil, err
	}
	if a.UserID != userID {
		return nil, apperr.NotFound("attempt")
	}
	return s.view(ctx, s.store, a)
}

func (s *Service) view(ctx context.Context, r Reader, a *models.Attempt) (*models.AttemptView, error) {
	questions, err := r.ListQuestionAttempts(ctx, a.Kind, a.ID)
	if err != nil {
		return nil, err
	}
	return &models.AttemptView{Attempt: *a, Questions: questions}, nil
}

// ── Helpers ─────────────────────────────────────────────

func assessmentLabel(kind models.AttemptKind) string {
	if kind == models.KindPracticeTest {
		return "practice test"
	}
	return "quiz"
}

func ptr[T any](v T) *T { return &v }
