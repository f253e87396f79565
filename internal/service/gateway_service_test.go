// internal/service/gateway_service_test.go
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
)

const testPageSize = 2

// fakeImageStore records uploads and deletes instead of talking to S3.
type fakeImageStore struct {
	uploaded []string
	deleted  []string
}

func (f *fakeImageStore) Upload(ctx context.Context, owner string, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("%s/%s.jpg", owner, uuid.New().String())
	f.uploaded = append(f.uploaded, key)
	return "https://images.test/" + key + "?X-Amz-Signature=sig", nil
}

func (f *fakeImageStore) SignedURL(ctx context.Context, key string) (string, error) {
	return "https://images.test/" + key + "?X-Amz-Signature=sig", nil
}

func (f *fakeImageStore) Delete(ctx context.Context, keys []string) error {
	f.deleted = append(f.deleted, keys...)
	return nil
}

func (f *fakeImageStore) KeyFromSignedURL(rawURL string) (string, bool) {
	return storageKeyFromTestURL(rawURL)
}

func storageKeyFromTestURL(rawURL string) (string, bool) {
	const prefix = "https://images.test/"
	if len(rawURL) <= len(prefix) || rawURL[:len(prefix)] != prefix {
		return "", false
	}
	rest := rawURL[len(prefix):]
	for i := range rest {
		if rest[i] == '?' {
			return rest[:i], true
		}
	}
	return rest, true
}

func setupLocalGateway(t *testing.T) *Gateway {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	return NewGateway(
		nil,
		store,
		NewSession(),
		&fakeImageStore{},
		repository.NewGormCategoryRepository(),
		repository.NewGormCardRepository(),
		testPageSize,
	)
}

func setupRemoteGateway(t *testing.T) (*Gateway, *fakeImageStore, uuid.UUID) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Category{}, &model.Card{}))

	store, err := localstore.Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	session := NewSession()
	userID := uuid.New()
	session.Set(userID)

	images := &fakeImageStore{}
	gw := NewGateway(
		db,
		store,
		session,
		images,
		repository.NewGormCategoryRepository(),
		repository.NewGormCardRepository(),
		testPageSize,
	)
	return gw, images, userID
}

func createCards(t *testing.T, gw *Gateway, words ...string) {
	t.Helper()
	for _, w := range words {
		_, err := gw.CreateCard(context.Background(), &model.CreateCardRequest{
			Word:      w,
			TransWord: "t_" + w,
		}, nil, "")
		require.NoError(t, err)
	}
}

func TestGateway_CategoryLifecycleLocal(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	snap, err := gw.FetchCategories(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Categories)
	assert.Empty(t, snap.SelectedID)

	first, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Animals"})
	require.NoError(t, err)
	assert.Equal(t, "Animals", first.Name)
	assert.NotEmpty(t, first.ID)

	// A new category becomes the selection.
	second, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Food"})
	require.NoError(t, err)
	assert.Equal(t, second.ID, gw.CategorySnapshot().SelectedID)

	// Re-fetching keeps the selection.
	snap, err = gw.FetchCategories(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Categories, 2)
	assert.Equal(t, second.ID, snap.SelectedID)

	require.NoError(t, gw.SelectCategory(ctx, first.ID))
	assert.Equal(t, first.ID, gw.CategorySnapshot().SelectedID)

	require.NoError(t, gw.UpdateCategory(ctx, first.ID, &model.UpdateCategoryRequest{Name: "Pets"}))
	snap = gw.CategorySnapshot()
	assert.Equal(t, "Pets", snap.Categories[0].Name)

	// Deleting the selected category moves the selection to the first
	// remaining one.
	require.NoError(t, gw.DeleteCategory(ctx, first.ID))
	snap = gw.CategorySnapshot()
	require.Len(t, snap.Categories, 1)
	assert.Equal(t, second.ID, snap.SelectedID)
}

func TestGateway_CreateCategoryValidation(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "   "})
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	err = gw.SelectCategory(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestGateway_CardPaginationLocal(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)

	createCards(t, gw, "one", "two", "three", "four", "five")

	// CreateCard already loaded the first page.
	snap := gw.CardSnapshot()
	require.Len(t, snap.Cards, testPageSize)
	assert.True(t, snap.HasMore)

	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 4)
	assert.True(t, snap.HasMore)

	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 5)
	assert.False(t, snap.HasMore)

	// Fetching past the last page is a no-op.
	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 5)

	// No duplicates across pages.
	seen := map[string]bool{}
	for _, c := range snap.Cards {
		assert.False(t, seen[c.ID], "card %s appeared twice", c.Word)
		seen[c.ID] = true
	}

	// Reset starts the cursor over.
	gw.ResetCardList()
	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Cards, testPageSize)
	assert.True(t, snap.HasMore)
}

func TestGateway_SearchCardsLocal(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "apple", "banana", "apricot")

	snap, err := gw.SearchCards(ctx, "AP")
	require.NoError(t, err)
	require.Len(t, snap.Cards, 2)
	assert.Equal(t, "AP", snap.Query)

	// Repeating the same query does not reload.
	again, err := gw.SearchCards(ctx, "AP")
	require.NoError(t, err)
	assert.Equal(t, snap.Cards, again.Cards)

	// Matching on the translation side.
	snap, err = gw.SearchCards(ctx, "t_ban")
	require.NoError(t, err)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "banana", snap.Cards[0].Word)

	// Empty query restores the unfiltered list.
	snap, err = gw.SearchCards(ctx, "")
	require.NoError(t, err)
	assert.Len(t, snap.Cards, testPageSize)
	assert.True(t, snap.HasMore)
}

func TestGateway_DeleteCardsLocal(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "one", "two", "three")

	snap, err := gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Cards, 3)

	require.NoError(t, gw.DeleteCards(ctx, []string{snap.Cards[0].ID, snap.Cards[2].ID}))

	snap = gw.CardSnapshot()
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "two", snap.Cards[0].Word)

	err = gw.DeleteCards(ctx, nil)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestGateway_CardEntriesPadding(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "one")

	entries := gw.CardEntries(4)
	require.Len(t, entries, 4)
	assert.Equal(t, model.EntryCard, entries[0].Kind)
	assert.Equal(t, "one", entries[0].Card.Word)
	for _, e := range entries[1:] {
		assert.Equal(t, model.EntryPlaceholder, e.Kind)
		assert.Nil(t, e.Card)
	}
}

func TestGateway_RemoteLifecycle(t *testing.T) {
	ctx := context.Background()
	gw, images, userID := setupRemoteGateway(t)

	category, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Animals"})
	require.NoError(t, err)
	assert.Equal(t, userID.String(), category.UserID)
	// Remote IDs are UUIDs.
	_, err = uuid.Parse(category.ID)
	assert.NoError(t, err)

	card, err := gw.CreateCard(ctx, &model.CreateCardRequest{
		Word:      "cat",
		TransWord: "Katze",
	}, []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)
	require.Len(t, images.uploaded, 1)
	assert.Contains(t, card.ImageURL, images.uploaded[0])

	createCards(t, gw, "dog", "bird")

	snap, err := gw.SearchCards(ctx, "kat")
	require.NoError(t, err)
	require.Len(t, snap.Cards, 1)
	assert.Equal(t, "cat", snap.Cards[0].Word)

	_, err = gw.SearchCards(ctx, "")
	require.NoError(t, err)

	// Deleting the category removes the rows and the stored image.
	require.NoError(t, gw.DeleteCategory(ctx, category.ID))
	assert.Equal(t, images.uploaded, images.deleted)

	snap2 := gw.CategorySnapshot()
	assert.Empty(t, snap2.Categories)
}

func TestGateway_RemoteDeleteCardsCleansImages(t *testing.T) {
	ctx := context.Background()
	gw, images, _ := setupRemoteGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Animals"})
	require.NoError(t, err)

	card, err := gw.CreateCard(ctx, &model.CreateCardRequest{
		Word:      "cat",
		TransWord: "Katze",
	}, []byte{0xff, 0xd8}, "image/jpeg")
	require.NoError(t, err)

	require.NoError(t, gw.DeleteCards(ctx, []string{card.ID}))
	assert.Equal(t, images.uploaded, images.deleted)
	assert.Empty(t, gw.CardSnapshot().Cards)
}

func TestGateway_FetchCardsPageWhileLoadingIsNoOp(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "one", "two", "three")
	gw.ResetCardList()

	// A second fetch issued while the first still holds the in-flight
	// guard must return the untouched snapshot and append nothing.
	var overlapping CardListSnapshot
	gw.pageLoadStarted = func() {
		gw.pageLoadStarted = nil
		overlapping, _ = gw.FetchCardsPage(ctx)
	}

	snap, err := gw.FetchCardsPage(ctx)
	require.NoError(t, err)

	assert.True(t, overlapping.Loading)
	assert.Empty(t, overlapping.Cards)

	require.Len(t, snap.Cards, testPageSize)
	seen := map[string]bool{}
	for _, c := range snap.Cards {
		assert.False(t, seen[c.ID], "card appended twice")
		seen[c.ID] = true
	}

	// Both calls resolved; the next fetch continues from page two.
	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Cards, 3)
}

func TestGateway_ResetDiscardsInFlightPage(t *testing.T) {
	ctx := context.Background()
	gw := setupLocalGateway(t)

	_, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "one", "two", "three")
	gw.ResetCardList()

	// The list is reset while the page is loading; the late result belongs
	// to the old list and must be dropped.
	gw.pageLoadStarted = func() {
		gw.pageLoadStarted = nil
		gw.ResetCardList()
	}

	snap, err := gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Cards)
	assert.False(t, snap.Loading)
	assert.True(t, snap.HasMore)

	// The fresh list starts over cleanly from the first page.
	snap, err = gw.FetchCardsPage(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Cards, testPageSize)
	assert.Equal(t, "one", snap.Cards[0].Word)
	assert.Equal(t, "two", snap.Cards[1].Word)
}

func TestGateway_RemoteTrainingCardsRequireOwnedCategory(t *testing.T) {
	ctx := context.Background()
	gw, _, _ := setupRemoteGateway(t)

	category, err := gw.CreateCategory(ctx, &model.CreateCategoryRequest{Name: "Words"})
	require.NoError(t, err)
	createCards(t, gw, "one", "two")

	cards, err := gw.CardsForTraining(ctx, category.ID, 10, false)
	require.NoError(t, err)
	assert.Len(t, cards, 2)

	_, err = gw.CardsForTraining(ctx, uuid.New().String(), 10, false)
	assert.ErrorIs(t, err, model.ErrNotFound)
}
