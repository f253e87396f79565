package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardRepository is the remote-mode backend for cards. Every read and
// write on individual cards is scoped to the owning user.
type CardRepository interface {
	Create(ctx context.Context, tx *gorm.DB, card *model.Card) error
	CreateBatch(ctx context.Context, tx *gorm.DB, cards []*model.Card) error
	FindByID(ctx context.Context, db *gorm.DB, userID uuid.UUID, cardID string) (*model.Card, error)
	FindByCategory(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string) ([]*model.Card, error)
	// FindPage returns cards of a category in insertion order. A non-empty
	// query filters by case-insensitive substring on word or translation.
	FindPage(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID, query string, offset, limit int) ([]*model.Card, error)
	FindForTraining(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string, limit int, excludeCooldown bool, now time.Time) ([]*model.Card, error)
	CountByCategory(ctx context.Context, db *gorm.DB, categoryID string) (int64, error)
	UpdateStats(ctx context.Context, tx *gorm.DB, userID uuid.UUID, cardID string, updates map[string]interface{}) error
	DeleteByIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []string) error
	DeleteByCategory(ctx context.Context, tx *gorm.DB, categoryID string) error
}

type gormCardRepository struct{}

func NewGormCardRepository() CardRepository {
	return &gormCardRepository{}
}

func (r *gormCardRepository) Create(ctx context.Context, tx *gorm.DB, card *model.Card) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(card)
	if result.Error != nil {
		logger.Error("Error creating card in DB",
			"error", result.Error,
			"category_id", card.CategoryID,
			"word", card.Word,
		)
		return fmt.Errorf("gormCardRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormCardRepository) CreateBatch(ctx context.Context, tx *gorm.DB, cards []*model.Card) error {
	if len(cards) == 0 {
		return nil
	}
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(cards)
	if result.Error != nil {
		logger.Error("Error batch-creating cards in DB",
			"error", result.Error,
			"count", len(cards),
		)
		return fmt.Errorf("gormCardRepository.CreateBatch: %w", result.Error)
	}
	return nil
}

func (r *gormCardRepository) FindByID(ctx context.Context, db *gorm.DB, userID uuid.UUID, cardID string) (*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var card model.Card
	result := db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, cardID).First(&card)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding card by ID in DB", "error", result.Error, "card_id", cardID)
		return nil, fmt.Errorf("gormCardRepository.FindByID: %w", result.Error)
	}
	return &card, nil
}

func (r *gormCardRepository) FindByCategory(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string) ([]*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var cards []*model.Card
	result := db.WithContext(ctx).Where("user_id = ? AND category_id = ?", userID, categoryID).Order("created_at ASC").Find(&cards)
	if result.Error != nil {
		logger.Error("Error finding cards by category in DB",
			"error", result.Error,
			"category_id", categoryID,
		)
		return nil, fmt.Errorf("gormCardRepository.FindByCategory: %w", result.Error)
	}
	return cards, nil
}

func (r *gormCardRepository) FindPage(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID, query string, offset, limit int) ([]*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var cards []*model.Card
	q := db.WithContext(ctx).Where("user_id = ? AND category_id = ?", userID, categoryID)
	if query != "" {
		// LOWER + LIKE keeps the substring match case-insensitive on both
		// postgres and the sqlite test driver.
		pattern := "%" + strings.ToLower(query) + "%"
		q = q.Where("LOWER(word) LIKE ? OR LOWER(trans_word) LIKE ?", pattern, pattern)
	}
	result := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&cards)
	if result.Error != nil {
		logger.Error("Error finding card page in DB",
			"error", result.Error,
			"category_id", categoryID,
			"offset", offset,
		)
		return nil, fmt.Errorf("gormCardRepository.FindPage: %w", result.Error)
	}
	return cards, nil
}

func (r *gormCardRepository) FindForTraining(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string, limit int, excludeCooldown bool, now time.Time) ([]*model.Card, error) {
	logger := middleware.GetLogger(ctx)
	var cards []*model.Card
	q := db.WithContext(ctx).Where("user_id = ? AND category_id = ?", userID, categoryID)
	if excludeCooldown {
		q = q.Where("cooldown_until IS NULL OR cooldown_until <= ?", now)
	}
	// Least-mastered first; within equal accuracy the least recently shown
	// first, with never-shown cards ahead of everything.
	result := q.
		Order("accuracy ASC").
		Order("last_shown_at IS NOT NULL").
		Order("last_shown_at ASC").
		Limit(limit).
		Find(&cards)
	if result.Error != nil {
		logger.Error("Error finding training cards in DB",
			"error", result.Error,
			"category_id", categoryID,
		)
		return nil, fmt.Errorf("gormCardRepository.FindForTraining: %w", result.Error)
	}
	return cards, nil
}

func (r *gormCardRepository) CountByCategory(ctx context.Context, db *gorm.DB, categoryID string) (int64, error) {
	logger := middleware.GetLogger(ctx)
	var count int64
	result := db.WithContext(ctx).Model(&model.Card{}).Where("category_id = ?", categoryID).Count(&count)
	if result.Error != nil {
		logger.Error("Error counting cards in DB", "error", result.Error, "category_id", categoryID)
		return 0, fmt.Errorf("gormCardRepository.CountByCategory: %w", result.Error)
	}
	return count, nil
}

func (r *gormCardRepository) UpdateStats(ctx context.Context, tx *gorm.DB, userID uuid.UUID, cardID string, updates map[string]interface{}) error {
	logger := middleware.GetLogger(ctx)
	if len(updates) == 0 {
		return nil
	}
	result := tx.WithContext(ctx).Model(&model.Card{}).Where("user_id = ? AND id = ?", userID, cardID).Updates(updates)
	if result.Error != nil {
		logger.Error("Error updating card stats in DB", "error", result.Error, "card_id", cardID)
		return fmt.Errorf("gormCardRepository.UpdateStats: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormCardRepository) DeleteByIDs(ctx context.Context, tx *gorm.DB, userID uuid.UUID, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("user_id = ? AND id IN ?", userID, ids).Delete(&model.Card{})
	if result.Error != nil {
		logger.Error("Error deleting cards in DB", "error", result.Error, "count", len(ids))
		return fmt.Errorf("gormCardRepository.DeleteByIDs: %w", result.Error)
	}
	return nil
}

func (r *gormCardRepository) DeleteByCategory(ctx context.Context, tx *gorm.DB, categoryID string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("category_id = ?", categoryID).Delete(&model.Card{})
	if result.Error != nil {
		logger.Error("Error deleting cards of category in DB",
			"error", result.Error,
			"category_id", categoryID,
		)
		return fmt.Errorf("gormCardRepository.DeleteByCategory: %w", result.Error)
	}
	return nil
}
