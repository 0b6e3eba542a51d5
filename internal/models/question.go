package models

// QuestionType is the evaluation tag of a question.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionTrueFalse      QuestionType = "true_false"
	QuestionFillInBlank    QuestionType = "fill_in_blank"
	QuestionShortAnswer    QuestionType = "short_answer"
	QuestionMultiSelect    QuestionType = "multi_select"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is read-only to the engine; it is owned by the curriculum side.
type Question struct {
	ID             int64        `json:"id"`
	TopicID        *int64       `json:"topic_id,omitempty"`
	Text           string       `json:"question_text"`
	Type           QuestionType `json:"question_type"`
	Options        []string     `json:"options,omitempty"`
	CorrectOption  *string      `json:"-"`
	CorrectAnswers []string     `json:"-"`
}
