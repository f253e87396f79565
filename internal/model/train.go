// internal/model/train.go
package model

// TaskOption is one multiple-choice answer within a training task.
type TaskOption struct {
	CardID    string `json:"card_id"`
	Label     string `json:"label"`
	IsCorrect bool   `json:"is_correct"`
}

// TrainingTask is a single question of a review session: an image/word
// prompt plus 2-4 options of which exactly one is correct. Once an option
// has been selected the task is immutable.
type TrainingTask struct {
	TaskID   string       `json:"task_id"`
	Card     *Card        `json:"card"`
	Options  []TaskOption `json:"options"`
	Selected string       `json:"selected,omitempty"`
	UsedHint bool         `json:"used_hint"`
}

// Answered reports whether an option has been locked in.
func (t *TrainingTask) Answered() bool {
	return t.Selected != ""
}

// TaskOutcome classifies an answered task for the session summary.
type TaskOutcome string

const (
	OutcomeCorrect   TaskOutcome = "correct"
	OutcomeIncorrect TaskOutcome = "incorrect"
	OutcomeHint      TaskOutcome = "hint"
)

// TaskResult is one line of the end-of-session summary. CorrectWord is set
// only for incorrect outcomes so the UI can reveal the right translation.
type TaskResult struct {
	TaskID      string      `json:"task_id"`
	Word        string      `json:"word"`
	Outcome     TaskOutcome `json:"outcome"`
	CorrectWord string      `json:"correct_word,omitempty"`
}

// SessionStats aggregates all answered tasks of a training session.
type SessionStats struct {
	Total     int          `json:"total"`
	Correct   int          `json:"correct"`
	Incorrect int          `json:"incorrect"`
	WithHint  int          `json:"with_hint"`
	Tasks     []TaskResult `json:"tasks"`
}

type StartTrainingRequest struct {
	CategoryID string `json:"category_id" validate:"required"`
	CardsCount int    `json:"cards_count" validate:"required,min=1"`
}

type SelectAnswerRequest struct {
	TaskID   string `json:"task_id" validate:"required"`
	OptionID string `json:"option_id" validate:"required"`
	UsedHint bool   `json:"used_hint"`
}
