// internal/model/card.go
package model

import (
	"time"
)

// Card is a single vocabulary flashcard. The same struct is stored as a row
// in the remote "cards" table (authenticated mode) and as JSON inside the
// per-category device blob (anonymous mode), which is why the identifier is
// a string: remotely it is a UUID assigned at insert, locally a nanoid.
type Card struct {
	ID         string `gorm:"type:uuid;primaryKey" json:"id"`
	UserID     string `gorm:"type:uuid;index" json:"-"`
	CategoryID string `gorm:"type:uuid;not null;index" json:"category_id"`

	Word              string `gorm:"not null" json:"word"`
	WordLangCode      string `json:"word_lang_code"`
	TransWord         string `gorm:"not null" json:"trans_word"`
	TransWordLangCode string `json:"trans_word_lang_code"`

	// Signed object-storage URL in remote mode, file path or external URL
	// in local mode.
	ImageURL string `json:"image_url"`

	SuccessCount  int        `gorm:"not null;default:0" json:"success_count"`
	FailCount     int        `gorm:"not null;default:0" json:"fail_count"`
	Accuracy      float64    `gorm:"not null;default:0" json:"accuracy"`
	Streak        int        `gorm:"not null;default:0" json:"streak"`
	LastShownAt   *time.Time `json:"last_shown_at"`
	CooldownUntil *time.Time `json:"cooldown_until"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Card) TableName() string {
	return "cards"
}

// ComputeAccuracy returns success/(success+fail), or 0 when the card has
// never been answered.
func ComputeAccuracy(successCount, failCount int) float64 {
	total := successCount + failCount
	if total <= 0 {
		return 0
	}
	return float64(successCount) / float64(total)
}

// CreateCardRequest carries the fields of a card to be saved.
type CreateCardRequest struct {
	Word              string `json:"word" validate:"required,min=1"`
	WordLangCode      string `json:"word_lang_code"`
	TransWord         string `json:"trans_word" validate:"required,min=1"`
	TransWordLangCode string `json:"trans_word_lang_code"`
	ImageURL          string `json:"image_url"`
}

// DeleteCardsRequest lists card identifiers selected for deletion.
type DeleteCardsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// ListEntryKind distinguishes real cards from grid placeholders in a card
// list rendered by the UI.
type ListEntryKind string

const (
	EntryCard        ListEntryKind = "card"
	EntryPlaceholder ListEntryKind = "placeholder"
)

// ListEntry is the tagged variant the facade hands to the UI instead of the
// original's duck-typed card-or-template union.
type ListEntry struct {
	Kind ListEntryKind `json:"kind"`
	Card *Card         `json:"card,omitempty"`
}

// PadWithPlaceholders wraps cards as entries and appends placeholders until
// the list reaches min entries.
func PadWithPlaceholders(cards []*Card, min int) []ListEntry {
	entries := make([]ListEntry, 0, len(cards))
	for _, c := range cards {
		entries = append(entries, ListEntry{Kind: EntryCard, Card: c})
	}
	for len(entries) < min {
		entries = append(entries, ListEntry{Kind: EntryPlaceholder})
	}
	return entries
}
