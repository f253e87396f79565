// internal/service/train_service.go
package service

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/IlyaZolotarev/wordcard/internal/config"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
)

// timeNow is swapped in tests.
var timeNow = time.Now

const maxDistractors = 3

// TrainService runs multiple-choice review sessions over the cards of one
// category. Card selection favors the weakest cards; each answer updates
// the card's mastery counters through the gateway, so the same math applies
// in local and remote mode.
type TrainService struct {
	gateway *Gateway
	cfg     *config.AppConfig
	rng     *rand.Rand

	mu      sync.Mutex
	tasks   []*model.TrainingTask
	cards   map[string]*model.Card // by task ID
	idx     int
	results []model.TaskResult
}

func NewTrainService(gateway *Gateway, cfg *config.AppConfig) *TrainService {
	return &TrainService{
		gateway: gateway,
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(timeNow().UnixNano())),
	}
}

// StartSession picks the cards most in need of review and builds one task
// per card. A previous session's tasks and results are discarded.
func (s *TrainService) StartSession(ctx context.Context, req *model.StartTrainingRequest) ([]*model.TrainingTask, error) {
	logger := middleware.GetLogger(ctx)

	count := req.CardsCount
	if count <= 0 {
		count = s.cfg.TrainCardsCount
	}

	cards, err := s.gateway.CardsForTraining(ctx, req.CategoryID, count, s.cfg.CooldownEnabled)
	if err != nil {
		return nil, err
	}
	if len(cards) < 2 {
		return nil, model.NewAppError("NOT_ENOUGH_CARDS", "The category needs at least two cards for training.", "category_id", model.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks = s.buildTasksLocked(cards)
	s.cards = make(map[string]*model.Card, len(s.tasks))
	for _, t := range s.tasks {
		s.cards[t.TaskID] = t.Card
	}
	s.idx = 0
	s.results = nil

	logger.Info("Training session started", "category_id", req.CategoryID, "tasks", len(s.tasks))
	return s.tasks, nil
}

// buildTasksLocked makes one task per card: the right translation plus up
// to three distractors drawn without replacement from the other cards, in
// shuffled order. Task order is shuffled too, so a session does not simply
// walk the cards from weakest to strongest.
func (s *TrainService) buildTasksLocked(cards []*model.Card) []*model.TrainingTask {
	cards = append([]*model.Card(nil), cards...)
	s.rng.Shuffle(len(cards), func(a, b int) {
		cards[a], cards[b] = cards[b], cards[a]
	})

	tasks := make([]*model.TrainingTask, 0, len(cards))
	for i, card := range cards {
		options := []model.TaskOption{{
			CardID:    card.ID,
			Label:     card.TransWord,
			IsCorrect: true,
		}}

		others := make([]*model.Card, 0, len(cards)-1)
		others = append(others, cards[:i]...)
		others = append(others, cards[i+1:]...)
		s.rng.Shuffle(len(others), func(a, b int) {
			others[a], others[b] = others[b], others[a]
		})
		n := maxDistractors
		if n > len(others) {
			n = len(others)
		}
		for _, other := range others[:n] {
			options = append(options, model.TaskOption{
				CardID: other.ID,
				Label:  other.TransWord,
			})
		}

		s.rng.Shuffle(len(options), func(a, b int) {
			options[a], options[b] = options[b], options[a]
		})

		tasks = append(tasks, &model.TrainingTask{
			TaskID:  uuid.New().String(),
			Card:    card,
			Options: options,
		})
	}
	return tasks
}

// CurrentTask returns the task the session currently points at, or nil
// when the session is finished or was never started.
func (s *TrainService) CurrentTask() *model.TrainingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx >= len(s.tasks) {
		return nil
	}
	return s.tasks[s.idx]
}

// NextTask advances past the current task and returns the new one, or nil
// when the session is over.
func (s *TrainService) NextTask() *model.TrainingTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.idx < len(s.tasks) {
		s.idx++
	}
	if s.idx >= len(s.tasks) {
		return nil
	}
	return s.tasks[s.idx]
}

// SelectAnswer locks in an option for a task. The first selection wins;
// repeated calls for the same task return the recorded result unchanged.
func (s *TrainService) SelectAnswer(ctx context.Context, req *model.SelectAnswerRequest) (*model.TaskResult, error) {
	logger := middleware.GetLogger(ctx)

	s.mu.Lock()
	var task *model.TrainingTask
	for _, t := range s.tasks {
		if t.TaskID == req.TaskID {
			task = t
			break
		}
	}
	if task == nil {
		s.mu.Unlock()
		return nil, model.NewAppError("NOT_FOUND", "The training task does not exist.", "task_id", model.ErrNotFound)
	}
	if task.Answered() {
		for i := range s.results {
			if s.results[i].TaskID == task.TaskID {
				result := s.results[i]
				s.mu.Unlock()
				return &result, nil
			}
		}
		s.mu.Unlock()
		return nil, model.ErrInternalServer
	}

	var correct bool
	valid := false
	for _, opt := range task.Options {
		if opt.CardID == req.OptionID {
			valid = true
			correct = opt.IsCorrect
			break
		}
	}
	if !valid {
		s.mu.Unlock()
		return nil, model.NewAppError("VALIDATION_ERROR", "The option does not belong to this task.", "option_id", model.ErrInvalidInput)
	}

	task.Selected = req.OptionID
	task.UsedHint = req.UsedHint

	card := s.cards[task.TaskID]
	applyAnswer(card, correct, req.UsedHint, s.cfg, timeNow())

	result := model.TaskResult{
		TaskID:  task.TaskID,
		Word:    task.Card.Word,
		Outcome: classifyOutcome(correct, req.UsedHint),
	}
	if !correct {
		result.CorrectWord = task.Card.TransWord
	}
	s.results = append(s.results, result)
	s.mu.Unlock()

	// Persisting the counters must not undo the answer: the task stays
	// answered even if the write fails.
	if err := s.gateway.SaveCardStats(ctx, card); err != nil {
		logger.Error("Failed to persist card stats", "error", err, "card_id", card.ID)
		return &result, err
	}

	return &result, nil
}

// Stats summarizes all answered tasks of the session.
func (s *TrainService) Stats() model.SessionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := model.SessionStats{
		Total: len(s.results),
		Tasks: append([]model.TaskResult(nil), s.results...),
	}
	for _, r := range s.results {
		switch r.Outcome {
		case model.OutcomeCorrect:
			stats.Correct++
		case model.OutcomeIncorrect:
			stats.Incorrect++
		case model.OutcomeHint:
			stats.WithHint++
		}
	}
	return stats
}

func classifyOutcome(correct, usedHint bool) model.TaskOutcome {
	switch {
	case correct && usedHint:
		return model.OutcomeHint
	case correct:
		return model.OutcomeCorrect
	default:
		return model.OutcomeIncorrect
	}
}

// applyAnswer updates the mastery counters. A hinted correct answer earns
// the success but not the streak; a wrong answer resets the streak. A card
// that stays accurate over a streak enters cooldown when that is enabled.
func applyAnswer(card *model.Card, correct, usedHint bool, cfg *config.AppConfig, now time.Time) {
	if correct {
		card.SuccessCount++
		if !usedHint {
			card.Streak++
		}
	} else {
		card.FailCount++
		card.Streak = 0
	}
	card.Accuracy = model.ComputeAccuracy(card.SuccessCount, card.FailCount)
	shown := now
	card.LastShownAt = &shown

	if cfg.CooldownEnabled &&
		card.Accuracy > cfg.CooldownAccuracy &&
		card.Streak >= cfg.CooldownStreak {
		until := now.Add(cfg.CooldownPeriod)
		card.CooldownUntil = &until
	}
}

// selectTrainingCards orders cards by review priority and takes the first
// limit of them: lowest accuracy first, never-shown cards before shown
// ones, then oldest shown first. Matches the relational query so both
// backends train the same cards.
func selectTrainingCards(cards []*model.Card, limit int, excludeCooldown bool, now time.Time) []*model.Card {
	pool := make([]*model.Card, 0, len(cards))
	for _, c := range cards {
		if excludeCooldown && c.CooldownUntil != nil && c.CooldownUntil.After(now) {
			continue
		}
		pool = append(pool, c)
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Accuracy != pool[j].Accuracy {
			return pool[i].Accuracy < pool[j].Accuracy
		}
		iShown := pool[i].LastShownAt != nil
		jShown := pool[j].LastShownAt != nil
		if iShown != jShown {
			return !iShown
		}
		if iShown && jShown {
			return pool[i].LastShownAt.Before(*pool[j].LastShownAt)
		}
		return false
	})

	if limit > 0 && len(pool) > limit {
		pool = pool[:limit]
	}
	return pool
}
