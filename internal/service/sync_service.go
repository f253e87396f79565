// internal/service/sync_service.go
package service

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
)

// SyncService moves everything the device accumulated while anonymous into
// the freshly authenticated user's remote account, then wipes the local
// data. It runs once per login, before the first remote fetch.
type SyncService struct {
	db       *gorm.DB
	store    *localstore.Store
	catRepo  repository.CategoryRepository
	cardRepo repository.CardRepository
	userRepo repository.UserRepository
}

func NewSyncService(
	db *gorm.DB,
	store *localstore.Store,
	catRepo repository.CategoryRepository,
	cardRepo repository.CardRepository,
	userRepo repository.UserRepository,
) *SyncService {
	return &SyncService{
		db:       db,
		store:    store,
		catRepo:  catRepo,
		cardRepo: cardRepo,
		userRepo: userRepo,
	}
}

// MergeLocalData uploads the device's language preferences and every local
// category with its cards. Categories and cards get fresh server-side IDs;
// mastery counters carry over unchanged. The merge is best effort per
// category: one failing category is logged and skipped, the rest still
// land. Local card data is cleared afterwards; the language preferences
// stay on the device.
func (s *SyncService) MergeLocalData(ctx context.Context, userID uuid.UUID) error {
	logger := middleware.GetLogger(ctx)

	native, learn, err := s.store.LangCodes(ctx)
	if err != nil {
		logger.Warn("Failed to read local language preferences", "error", err)
	} else if native != "" || learn != "" {
		updates := map[string]interface{}{}
		if native != "" {
			updates["native_lang"] = native
		}
		if learn != "" {
			updates["learn_lang"] = learn
		}
		if err := s.userRepo.Update(ctx, s.db, userID, updates); err != nil {
			logger.Warn("Failed to upload language preferences", "error", err)
		}
	}

	categories, err := s.store.Categories(ctx)
	if err != nil {
		logger.Error("Failed to read local categories", "error", err)
		return err
	}

	merged := 0
	for _, local := range categories {
		if err := s.mergeCategory(ctx, userID, local); err != nil {
			logger.Error("Failed to merge local category, skipping",
				"error", err, "category_id", local.ID, "name", local.Name)
			continue
		}
		merged++
	}

	if err := s.store.ClearExcept(ctx, localstore.KeyNativeLang, localstore.KeyLearnLang); err != nil {
		logger.Error("Failed to clear local data after merge", "error", err)
		return err
	}

	logger.Info("Local data merged", "user_id", userID, "categories", merged, "skipped", len(categories)-merged)
	return nil
}

// mergeCategory re-creates one local category remotely inside a single
// transaction: the category row plus all its cards in one batch, with new
// IDs and the authenticated user as owner.
func (s *SyncService) mergeCategory(ctx context.Context, userID uuid.UUID, local *model.Category) error {
	cards, err := s.store.Cards(ctx, local.ID)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category := &model.Category{
			ID:     uuid.New().String(),
			UserID: userID.String(),
			Name:   local.Name,
		}
		if err := s.catRepo.Create(ctx, tx, category); err != nil {
			return err
		}

		if len(cards) == 0 {
			return nil
		}
		remote := make([]*model.Card, 0, len(cards))
		for _, c := range cards {
			card := *c
			card.ID = uuid.New().String()
			card.UserID = userID.String()
			card.CategoryID = category.ID
			remote = append(remote, &card)
		}
		return s.cardRepo.CreateBatch(ctx, tx, remote)
	})
}
