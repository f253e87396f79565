package service

import (
	"sync"

	"github.com/IlyaZolotarev/wordcard/internal/model"
)

// CategoryListSnapshot is an immutable view of the category list state.
type CategoryListSnapshot struct {
	Categories []*model.Category `json:"categories"`
	SelectedID string            `json:"selected_id"`
	Loading    bool              `json:"loading"`
}

// CardListSnapshot is an immutable view of the card list state. HasMore
// reports whether another page may exist; Query is the active search filter.
type CardListSnapshot struct {
	Cards   []*model.Card `json:"cards"`
	Loading bool          `json:"loading"`
	HasMore bool          `json:"has_more"`
	Query   string        `json:"query"`
}

// notifier fans out change signals to subscribers. Each subscriber gets a
// buffered channel; a pending signal is never duplicated and a slow
// subscriber never blocks the publisher.
type notifier struct {
	mu   sync.Mutex
	subs []chan struct{}
}

// Subscribe registers a new subscriber channel. The returned cancel
// function removes it again; calling cancel more than once is harmless.
func (n *notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := make(chan struct{}, 1)
	n.subs = append(n.subs, ch)

	cancel := func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, sub := range n.subs {
			if sub == ch {
				n.subs = append(n.subs[:i], n.subs[i+1:]...)
				break
			}
		}
	}
	return ch, cancel
}

func (n *notifier) Notify() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
