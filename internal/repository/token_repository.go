package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"

	"gorm.io/gorm"
)

// TokenRepository stores single-use magic-link tokens.
type TokenRepository interface {
	Create(ctx context.Context, tx *gorm.DB, token *model.MagicLinkToken) error
	Find(ctx context.Context, db *gorm.DB, token string) (*model.MagicLinkToken, error)
	Delete(ctx context.Context, tx *gorm.DB, token string) error
}

type gormTokenRepository struct{}

func NewGormTokenRepository() TokenRepository {
	return &gormTokenRepository{}
}

func (r *gormTokenRepository) Create(ctx context.Context, tx *gorm.DB, token *model.MagicLinkToken) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Create(token)
	if result.Error != nil {
		logger.Error("Error creating magic-link token in DB", "error", result.Error)
		return fmt.Errorf("gormTokenRepository.Create: %w", result.Error)
	}
	return nil
}

func (r *gormTokenRepository) Find(ctx context.Context, db *gorm.DB, token string) (*model.MagicLinkToken, error) {
	logger := middleware.GetLogger(ctx)
	var row model.MagicLinkToken
	result := db.WithContext(ctx).Where("token = ?", token).First(&row)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, model.ErrNotFound
		}
		logger.Error("Error finding magic-link token in DB", "error", result.Error)
		return nil, fmt.Errorf("gormTokenRepository.Find: %w", result.Error)
	}
	return &row, nil
}

func (r *gormTokenRepository) Delete(ctx context.Context, tx *gorm.DB, token string) error {
	logger := middleware.GetLogger(ctx)
	result := tx.WithContext(ctx).Where("token = ?", token).Delete(&model.MagicLinkToken{})
	if result.Error != nil {
		logger.Error("Error deleting magic-link token in DB", "error", result.Error)
		return fmt.Errorf("gormTokenRepository.Delete: %w", result.Error)
	}
	return nil
}
