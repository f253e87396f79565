package service

import (
	"context"

	"gorm.io/gorm"

	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
)

// SettingsService manages the native/learning language pair. The device
// store always holds a copy so the choice survives logout; in remote mode
// the user row is kept in sync as well.
type SettingsService struct {
	db       *gorm.DB
	store    *localstore.Store
	session  *Session
	userRepo repository.UserRepository
}

func NewSettingsService(db *gorm.DB, store *localstore.Store, session *Session, userRepo repository.UserRepository) *SettingsService {
	return &SettingsService{
		db:       db,
		store:    store,
		session:  session,
		userRepo: userRepo,
	}
}

// LangPrefs returns the language pair. Remote mode prefers the user row
// and falls back to the device copy when the row has no preference yet.
func (s *SettingsService) LangPrefs(ctx context.Context) (native, learn string, err error) {
	if userID, ok := s.session.Current(); ok {
		user, err := s.userRepo.FindByID(ctx, s.db, userID)
		if err != nil {
			return "", "", err
		}
		if user.NativeLang != "" || user.LearnLang != "" {
			return user.NativeLang, user.LearnLang, nil
		}
	}
	return s.store.LangCodes(ctx)
}

// SaveLangPrefs stores the language pair on the device and, when a session
// is active, on the user row.
func (s *SettingsService) SaveLangPrefs(ctx context.Context, native, learn string) error {
	logger := middleware.GetLogger(ctx)

	if native == "" || learn == "" {
		return model.NewAppError("VALIDATION_ERROR", "Both language codes are required.", "native_lang,learn_lang", model.ErrInvalidInput)
	}

	if err := s.store.SaveLangCodes(ctx, native, learn); err != nil {
		return err
	}

	if userID, ok := s.session.Current(); ok {
		updates := map[string]interface{}{
			"native_lang": native,
			"learn_lang":  learn,
		}
		if err := s.userRepo.Update(ctx, s.db, userID, updates); err != nil {
			logger.Error("Failed to persist language preferences remotely", "error", err)
			return err
		}
	}

	logger.Info("Language preferences saved", "native", native, "learn", learn)
	return nil
}
