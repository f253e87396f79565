// internal/repository/card_repository_test.go
package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.MagicLinkToken{}, &model.Category{}, &model.Card{}))
	return db
}

func seedCards(t *testing.T, db *gorm.DB, userID uuid.UUID, categoryID string, words ...string) []*model.Card {
	t.Helper()
	repo := NewGormCardRepository()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cards := make([]*model.Card, 0, len(words))
	for i, w := range words {
		card := &model.Card{
			ID:         uuid.New().String(),
			UserID:     userID.String(),
			CategoryID: categoryID,
			Word:       w,
			TransWord:  "trans_" + w,
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, repo.Create(context.Background(), db, card))
		cards = append(cards, card)
	}
	return cards
}

func TestGormCardRepository_FindPage(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormCardRepository()
	userID := uuid.New()
	catID := uuid.New().String()

	seedCards(t, db, userID, catID, "apple", "banana", "cherry", "Apricot", "grape")
	seedCards(t, db, userID, uuid.New().String(), "stranger")
	// Another user's card in the same category id must never page in.
	seedCards(t, db, uuid.New(), catID, "foreign")

	tests := []struct {
		name      string
		query     string
		offset    int
		limit     int
		wantWords []string
	}{
		{
			name:      "first page in insertion order",
			offset:    0,
			limit:     2,
			wantWords: []string{"apple", "banana"},
		},
		{
			name:      "second page",
			offset:    2,
			limit:     2,
			wantWords: []string{"cherry", "Apricot"},
		},
		{
			name:      "offset beyond the end is empty",
			offset:    10,
			limit:     2,
			wantWords: []string{},
		},
		{
			name:      "search is case-insensitive",
			query:     "AP",
			offset:    0,
			limit:     10,
			wantWords: []string{"apple", "Apricot", "grape"},
		},
		{
			name:      "search matches the translation too",
			query:     "trans_ban",
			offset:    0,
			limit:     10,
			wantWords: []string{"banana"},
		},
		{
			name:      "full list excludes other owners",
			offset:    0,
			limit:     10,
			wantWords: []string{"apple", "banana", "cherry", "Apricot", "grape"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.FindPage(ctx, db, userID, catID, tt.query, tt.offset, tt.limit)
			require.NoError(t, err)
			words := make([]string, 0, len(got))
			for _, c := range got {
				words = append(words, c.Word)
			}
			assert.Equal(t, tt.wantWords, words)
		})
	}
}

func TestGormCardRepository_FindForTraining(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormCardRepository()
	userID := uuid.New()
	catID := uuid.New().String()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	older := now.Add(-48 * time.Hour)
	newer := now.Add(-1 * time.Hour)
	cooling := now.Add(24 * time.Hour)

	mk := func(owner uuid.UUID, word string, accuracy float64, lastShown *time.Time, cooldown *time.Time) {
		require.NoError(t, repo.Create(ctx, db, &model.Card{
			ID:            uuid.New().String(),
			UserID:        owner.String(),
			CategoryID:    catID,
			Word:          word,
			TransWord:     "t_" + word,
			Accuracy:      accuracy,
			LastShownAt:   lastShown,
			CooldownUntil: cooldown,
		}))
	}

	mk(userID, "mastered", 0.9, &newer, nil)
	mk(userID, "fresh", 0, nil, nil)
	mk(userID, "weak_old", 0.3, &older, nil)
	mk(userID, "weak_new", 0.3, &newer, nil)
	mk(userID, "cooling", 0, nil, &cooling)
	mk(uuid.New(), "foreign", 0, nil, nil)

	t.Run("orders by accuracy, never-shown first, oldest first", func(t *testing.T) {
		got, err := repo.FindForTraining(ctx, db, userID, catID, 10, true, now)
		require.NoError(t, err)
		words := make([]string, 0, len(got))
		for _, c := range got {
			words = append(words, c.Word)
		}
		assert.Equal(t, []string{"fresh", "weak_old", "weak_new", "mastered"}, words)
	})

	t.Run("cooldown cards return when not excluded", func(t *testing.T) {
		got, err := repo.FindForTraining(ctx, db, userID, catID, 10, false, now)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("limit caps the result", func(t *testing.T) {
		got, err := repo.FindForTraining(ctx, db, userID, catID, 2, true, now)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "fresh", got[0].Word)
	})

	t.Run("expired cooldown is trainable again", func(t *testing.T) {
		later := cooling.Add(time.Hour)
		got, err := repo.FindForTraining(ctx, db, userID, catID, 10, true, later)
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})
}

func TestGormCardRepository_UpdateStats(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormCardRepository()
	userID := uuid.New()
	catID := uuid.New().String()

	cards := seedCards(t, db, userID, catID, "word")
	shown := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	err := repo.UpdateStats(ctx, db, userID, cards[0].ID, map[string]interface{}{
		"success_count": 4,
		"fail_count":    1,
		"accuracy":      0.8,
		"streak":        2,
		"last_shown_at": shown,
	})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, db, userID, cards[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.SuccessCount)
	assert.Equal(t, 1, got.FailCount)
	assert.Equal(t, 0.8, got.Accuracy)
	assert.Equal(t, 2, got.Streak)
	require.NotNil(t, got.LastShownAt)
	assert.True(t, got.LastShownAt.Equal(shown))

	t.Run("unknown card yields not found", func(t *testing.T) {
		err := repo.UpdateStats(ctx, db, userID, uuid.New().String(), map[string]interface{}{"streak": 1})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})

	t.Run("another user's card yields not found", func(t *testing.T) {
		err := repo.UpdateStats(ctx, db, uuid.New(), cards[0].ID, map[string]interface{}{"streak": 9})
		assert.ErrorIs(t, err, model.ErrNotFound)

		got, err := repo.FindByID(ctx, db, userID, cards[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Streak)
	})
}

func TestGormCardRepository_Delete(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewGormCardRepository()
	userID := uuid.New()
	catID := uuid.New().String()

	cards := seedCards(t, db, userID, catID, "one", "two", "three")
	foreign := seedCards(t, db, uuid.New(), catID, "foreign")

	// Deleting as a different user touches nothing.
	require.NoError(t, repo.DeleteByIDs(ctx, db, uuid.New(), []string{cards[0].ID}))
	count, err := repo.CountByCategory(ctx, db, catID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	require.NoError(t, repo.DeleteByIDs(ctx, db, userID, []string{cards[0].ID, cards[2].ID}))
	count, err = repo.CountByCategory(ctx, db, catID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	_, err = repo.FindByID(ctx, db, uuid.MustParse(foreign[0].UserID), foreign[0].ID)
	require.NoError(t, err)

	require.NoError(t, repo.DeleteByCategory(ctx, db, catID))
	count, err = repo.CountByCategory(ctx, db, catID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}
