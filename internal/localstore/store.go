// internal/localstore/store.go
package localstore

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

// Storage keys. The category list is one JSON blob, cards are one JSON blob
// per category, and the two language keys survive the sync merge.
const (
	KeyCategories = "local_categories"
	KeyNativeLang = "native_lang"
	KeyLearnLang  = "learn_lang"

	cardsKeyPrefix = "local_cards_"
)

var bucketDevice = []byte("device")

// CardsKey returns the storage key of a category's card blob.
func CardsKey(categoryID string) string {
	return cardsKeyPrefix + categoryID
}

// Store is the device-local string-keyed persistent store used while no
// authenticated session exists. Values are JSON.
type Store struct {
	db *bbolt.DB
}

// Open opens (and if needed creates) the store file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("localstore.Open: %w", err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketDevice)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("localstore.Open: init bucket: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the raw value under key, or ok=false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketDevice).Get([]byte(key))
		if v != nil {
			value = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, false, fmt.Errorf("localstore.Get %q: %w", key, err)
	}
	return value, value != nil, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDevice).Put([]byte(key), value)
	})
	if err != nil {
		return fmt.Errorf("localstore.Set %q: %w", key, err)
	}
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDevice).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("localstore.Remove %q: %w", key, err)
	}
	return nil
}

// ClearExcept deletes every key except the named ones, whose values are
// carried over verbatim. The sync merger uses it to drop category/card
// blobs while keeping the language preferences.
func (s *Store) ClearExcept(ctx context.Context, keep ...string) error {
	keepSet := make(map[string]bool, len(keep))
	for _, k := range keep {
		keepSet[k] = true
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDevice)
		var doomed [][]byte
		cur := b.Cursor()
		for k, _ := cur.First(); k != nil; k, _ = cur.Next() {
			if !keepSet[string(k)] {
				doomed = append(doomed, append([]byte(nil), k...))
			}
		}
		for _, k := range doomed {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("localstore.ClearExcept: %w", err)
	}
	return nil
}

// Categories reads the local category list. An absent key yields an empty
// slice.
func (s *Store) Categories(ctx context.Context) ([]*model.Category, error) {
	raw, ok, err := s.Get(ctx, KeyCategories)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*model.Category{}, nil
	}
	var categories []*model.Category
	if err := json.Unmarshal(raw, &categories); err != nil {
		return nil, fmt.Errorf("localstore.Categories: decode: %w", err)
	}
	return categories, nil
}

func (s *Store) SaveCategories(ctx context.Context, categories []*model.Category) error {
	raw, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("localstore.SaveCategories: encode: %w", err)
	}
	return s.Set(ctx, KeyCategories, raw)
}

// Cards reads the card blob of one category. An absent key yields an empty
// slice.
func (s *Store) Cards(ctx context.Context, categoryID string) ([]*model.Card, error) {
	raw, ok, err := s.Get(ctx, CardsKey(categoryID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*model.Card{}, nil
	}
	var cards []*model.Card
	if err := json.Unmarshal(raw, &cards); err != nil {
		return nil, fmt.Errorf("localstore.Cards: decode: %w", err)
	}
	return cards, nil
}

func (s *Store) SaveCards(ctx context.Context, categoryID string, cards []*model.Card) error {
	raw, err := json.Marshal(cards)
	if err != nil {
		return fmt.Errorf("localstore.SaveCards: encode: %w", err)
	}
	return s.Set(ctx, CardsKey(categoryID), raw)
}

func (s *Store) RemoveCards(ctx context.Context, categoryID string) error {
	return s.Remove(ctx, CardsKey(categoryID))
}

// LangCodes returns the persisted language preferences; absent keys come
// back empty.
func (s *Store) LangCodes(ctx context.Context) (native, learn string, err error) {
	rawNative, _, err := s.Get(ctx, KeyNativeLang)
	if err != nil {
		return "", "", err
	}
	rawLearn, _, err := s.Get(ctx, KeyLearnLang)
	if err != nil {
		return "", "", err
	}
	return string(rawNative), string(rawLearn), nil
}

func (s *Store) SaveLangCodes(ctx context.Context, native, learn string) error {
	if err := s.Set(ctx, KeyNativeLang, []byte(native)); err != nil {
		return err
	}
	return s.Set(ctx, KeyLearnLang, []byte(learn))
}
