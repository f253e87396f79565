// internal/localstore/store_test.go
package localstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	_, ok, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "key", []byte("value")))

	value, ok, err := store.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("value"), value)

	require.NoError(t, store.Remove(ctx, "key"))
	_, ok, err = store.Get(ctx, "key")
	require.NoError(t, err)
	assert.False(t, ok)

	// Removing a missing key is not an error.
	require.NoError(t, store.Remove(ctx, "key"))
}

func TestStore_CategoriesRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	// Empty store yields an empty list, not an error.
	cats, err := store.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)

	in := []*model.Category{
		{ID: "c1", Name: "Animals"},
		{ID: "c2", Name: "Food"},
	}
	require.NoError(t, store.SaveCategories(ctx, in))

	out, err := store.Categories(ctx)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Animals", out[0].Name)
	assert.Equal(t, "c2", out[1].ID)
}

func TestStore_CardsRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	cards, err := store.Cards(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, cards)

	in := []*model.Card{
		{ID: "w1", CategoryID: "c1", Word: "cat", TransWord: "Katze", SuccessCount: 3, FailCount: 1, Accuracy: 0.75},
		{ID: "w2", CategoryID: "c1", Word: "dog", TransWord: "Hund"},
	}
	require.NoError(t, store.SaveCards(ctx, "c1", in))

	out, err := store.Cards(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, 3, out[0].SuccessCount)
	assert.Equal(t, 0.75, out[0].Accuracy)

	// Cards of another category live under their own key.
	other, err := store.Cards(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, other)

	require.NoError(t, store.RemoveCards(ctx, "c1"))
	out, err = store.Cards(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestStore_LangCodes(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	native, learn, err := store.LangCodes(ctx)
	require.NoError(t, err)
	assert.Empty(t, native)
	assert.Empty(t, learn)

	require.NoError(t, store.SaveLangCodes(ctx, "de", "en"))

	native, learn, err = store.LangCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de", native)
	assert.Equal(t, "en", learn)
}

func TestStore_ClearExcept(t *testing.T) {
	ctx := context.Background()
	store := setupStore(t)

	require.NoError(t, store.SaveCategories(ctx, []*model.Category{{ID: "c1", Name: "Animals"}}))
	require.NoError(t, store.SaveCards(ctx, "c1", []*model.Card{{ID: "w1", Word: "cat", TransWord: "Katze"}}))
	require.NoError(t, store.SaveLangCodes(ctx, "de", "en"))

	require.NoError(t, store.ClearExcept(ctx, KeyNativeLang, KeyLearnLang))

	cats, err := store.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, cats)

	cards, err := store.Cards(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, cards)

	native, learn, err := store.LangCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, "de", native)
	assert.Equal(t, "en", learn)
}
