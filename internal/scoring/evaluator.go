// Package scoring decides correctness of a single submitted response. It does
// no I/O.
package scoring

import (
	"strings"

	"github.com/learnquest/backend/internal/models"
)

// AnswerKey is the correct-answer definition of a question. The set of
// implementations is closed: SingleChoiceKey, TextKey and SetKey.
type AnswerKey interface {
	answerKey()
}

// SingleChoiceKey covers multiple_choice and true_false.
type SingleChoiceKey struct {
	Correct string
}

// TextKey covers fill_in_blank and short_answer.
type TextKey struct {
	Accepted []string
}

// SetKey covers multi_select and any question type without a dedicated rule.
type SetKey struct {
	Accepted []string
}

func (SingleChoiceKey) answerKey() {}
func (TextKey) answerKey()         {}
func (SetKey) answerKey()          {}

// KeyFor builds the answer key for a question from its type tag.
func KeyFor(q models.Question) AnswerKey {
	switch q.Type {
	case models.QuestionMultipleChoice, models.QuestionTrueFalse:
		if q.CorrectOption != nil {
			return SingleChoiceKey{Correct: *q.CorrectOption}
		}
		if len(q.CorrectAnswers) > 0 {
			return SingleChoiceKey{Correct: q.CorrectAnswers[0]}
		}
		return SingleChoiceKey{}
	case models.QuestionFillInBlank, models.QuestionShortAnswer:
		return TextKey{Accepted: q.CorrectAnswers}
	default:
		return SetKey{Accepted: q.CorrectAnswers}
	}
}

// Response is what a learner submitted for one question.
type Response struct {
	SelectedOption  *string
	SelectedOptions []string
}

// Result is the outcome of evaluating one response. Selection holds the
// trimmed submitted values.
type Result struct {
	IsCorrect bool
	Selection []string
}

type Evaluator struct {
	// LenientText accepts a text submission that contains an accepted answer
	// as a substring, not only exact matches.
	LenientText bool
}

func NewEvaluator(lenientText bool) *Evaluator {
	return &Evaluator{LenientText: lenientText}
}

// Evaluate scores resp against key. A nil response is incorrect.
func (e *Evaluator) Evaluate(key AnswerKey, resp *Response) Result {
	if resp == nil {
		return Result{}
	}
	switch k := key.(type) {
	case SingleChoiceKey:
		sel, ok := singleSelection(resp)
		if !ok {
			return Result{}
		}
		correct := normalize(k.Correct)
		return Result{
			IsCorrect: correct != "" && normalize(sel) == correct,
			Selection: []string{strings.TrimSpace(sel)},
		}
	case TextKey:
		subs := allSelections(resp)
		return Result{IsCorrect: e.textCorrect(k.Accepted, subs), Selection: trimAll(subs)}
	case SetKey:
		subs := allSelections(resp)
		return Result{IsCorrect: setCorrect(k.Accepted, subs), Selection: trimAll(subs)}
	default:
		return Result{}
	}
}

func (e *Evaluator) textCorrect(accepted, submitted []string) bool {
	acc := normalizeAll(accepted)
	if len(acc) == 0 || len(submitted) == 0 {
		return false
	}
	for _, s := range submitted {
		sub := normalize(s)
		if sub == "" {
			return false
		}
		matched := false
		for _, a := range acc {
			if sub == a || (e.LenientText && strings.Contains(sub, a)) {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}
	return true
}

func setCorrect(accepted, submitted []string) bool {
	acc := normalizeAll(accepted)
	if len(acc) == 0 || len(acc) != len(submitted) {
		return false
	}
	got := make(map[string]struct{}, len(submitted))
	for _, s := range submitted {
		got[normalize(s)] = struct{}{}
	}
	for _, a := range acc {
		if _, ok := got[a]; !ok {
			return false
		}
	}
	return true
}

func singleSelection(resp *Response) (string, bool) {
	if resp.SelectedOption != nil {
		return *resp.SelectedOption, true
	}
	if len(resp.SelectedOptions) == 1 {
		return resp.SelectedOptions[0], true
	}
	return "", false
}

func allSelections(resp *Response) []string {
	var out []string
	if resp.SelectedOption != nil {
		out = append(out, *resp.SelectedOption)
	}
	return append(out, resp.SelectedOptions...)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeAll drops blank entries so an empty accepted answer can never
// match everything.
func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if n := normalize(s); n != "" {
			out = append(out, n)
		}
	}
	return out
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.TrimSpace(s)
	}
	return out
}
