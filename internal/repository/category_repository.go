package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CategoryRepository is the remote-mode backend for categories.
type CategoryRepository interface {
	Create(ctx context.Context, tx *gorm.DB, category *model.Category) error
	FindByID(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string) (*model.Category, error)
	FindByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.Category, error)
	UpdateName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, categoryID, name string) error
	Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, categoryID string) error
}

type gormCategoryRepository struct{}

func NewGormCategoryRepository() CategoryRepository {
	return &gormCategoryRepository{}
}

func (r *gormCategoryRepository) Create(ctx context.Context, tx *gorm.DB, category *model.Category) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(category)
	if result.Error != nil {
		logger.Error("Error creating category in DB",
			"error", result.Error,
			"user_id", category.UserID,
			"name", category.Name,
		)
		return fmt.Errorf("gormCategoryRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormCategoryRepository) FindByID(ctx context.Context, db *gorm.DB, userID uuid.UUID, categoryID string) (*model.Category, error) {
	logger := middleware.GetLogger(ctx)
	var category model.Category
	result := db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, categoryID).First(&category)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding category by ID in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"category_id", categoryID,
		)
		return nil, fmt.Errorf("gormCategoryRepository.FindByID: %w", result.Error)
	}
	return &category, nil
}

func (r *gormCategoryRepository) FindByUser(ctx context.Context, db *gorm.DB, userID uuid.UUID) ([]*model.Category, error) {
	logger := middleware.GetLogger(ctx)
	var categories []*model.Category
	result := db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&categories)
	if result.Error != nil {
		logger.Error("Error finding categories by user in DB",
			"error", result.Error,
			"user_id", userID.String(),
		)
		return nil, fmt.Errorf("gormCategoryRepository.FindByUser: %w", result.Error)
	}
	return categories, nil
}

func (r *gormCategoryRepository) UpdateName(ctx context.Context, tx *gorm.DB, userID uuid.UUID, categoryID, name string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Model(&model.Category{}).
		Where("user_id = ? AND id = ?", userID, categoryID).
		Update("name", name)
	if result.Error != nil {
		logger.Error("Error updating category in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"category_id", categoryID,
		)
		return fmt.Errorf("gormCategoryRepository.UpdateName: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}

func (r *gormCategoryRepository) Delete(ctx context.Context, tx *gorm.DB, userID uuid.UUID, categoryID string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("user_id = ? AND id = ?", userID, categoryID).Delete(&model.Category{})
	if result.Error != nil {
		logger.Error("Error deleting category in DB",
			"error", result.Error,
			"user_id", userID.String(),
			"category_id", categoryID,
		)
		return fmt.Errorf("gormCategoryRepository.Delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return model.ErrNotFound
	}
	return nil
}
