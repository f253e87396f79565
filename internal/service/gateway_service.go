// internal/service/gateway_service.go
package service

import (
	"context"
	"errors"
	"strings"
	"sync"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
	"github.com/IlyaZolotarev/wordcard/internal/storage"
)

// Gateway routes every category and card operation to the backend the
// current session dictates: the device store when anonymous, the relational
// and object stores when authenticated. Callers never name a backend.
//
// The gateway also owns the list state the UI renders: the category list
// with its selection and the paged card list of the selected category.
type Gateway struct {
	db         *gorm.DB
	store      *localstore.Store
	session    *Session
	imageStore storage.ImageStore
	catRepo    repository.CategoryRepository
	cardRepo   repository.CardRepository
	pageSize   int

	mu         sync.Mutex
	categories []*model.Category
	selectedID string
	cards      []*model.Card
	query      string
	page       int
	loading    bool
	hasMore    bool
	// reqToken invalidates in-flight page loads: a reset bumps it, and a
	// completion whose captured token no longer matches is discarded.
	reqToken uint64

	// pageLoadStarted, when set, runs after a page load has claimed the
	// in-flight guard and before the backend read. Tests use it to
	// interleave calls deterministically.
	pageLoadStarted func()

	notifier notifier
}

func NewGateway(
	db *gorm.DB,
	store *localstore.Store,
	session *Session,
	imageStore storage.ImageStore,
	catRepo repository.CategoryRepository,
	cardRepo repository.CardRepository,
	pageSize int,
) *Gateway {
	return &Gateway{
		db:         db,
		store:      store,
		session:    session,
		imageStore: imageStore,
		catRepo:    catRepo,
		cardRepo:   cardRepo,
		pageSize:   pageSize,
		hasMore:    true,
	}
}

// Subscribe returns a channel that receives a signal whenever the list
// state changes, and a cancel function that releases the subscription.
func (g *Gateway) Subscribe() (<-chan struct{}, func()) {
	return g.notifier.Subscribe()
}

// ---- snapshots ----

func (g *Gateway) CategorySnapshot() CategoryListSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.categorySnapshotLocked()
}

func (g *Gateway) CardSnapshot() CardListSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cardSnapshotLocked()
}

// CardEntries returns the card list padded with placeholders up to min
// entries, the shape the grid UI renders.
func (g *Gateway) CardEntries(min int) []model.ListEntry {
	g.mu.Lock()
	defer g.mu.Unlock()
	return model.PadWithPlaceholders(g.cards, min)
}

func (g *Gateway) categorySnapshotLocked() CategoryListSnapshot {
	cats := make([]*model.Category, len(g.categories))
	copy(cats, g.categories)
	return CategoryListSnapshot{
		Categories: cats,
		SelectedID: g.selectedID,
	}
}

func (g *Gateway) cardSnapshotLocked() CardListSnapshot {
	cards := make([]*model.Card, len(g.cards))
	copy(cards, g.cards)
	return CardListSnapshot{
		Cards:   cards,
		Loading: g.loading,
		HasMore: g.hasMore,
		Query:   g.query,
	}
}

// ---- categories ----

// FetchCategories reloads the category list from the active backend. The
// previous selection survives when the category still exists; otherwise
// the first category becomes selected.
func (g *Gateway) FetchCategories(ctx context.Context) (CategoryListSnapshot, error) {
	cats, err := g.loadCategories(ctx)
	if err != nil {
		return g.CategorySnapshot(), err
	}

	g.mu.Lock()
	g.applyCategoriesLocked(cats)
	snap := g.categorySnapshotLocked()
	g.mu.Unlock()

	g.notifier.Notify()
	return snap, nil
}

func (g *Gateway) applyCategoriesLocked(cats []*model.Category) {
	g.categories = cats
	if g.findCategoryLocked(g.selectedID) == nil {
		if len(cats) > 0 {
			g.selectedID = cats[0].ID
		} else {
			g.selectedID = ""
		}
		g.resetCardListLocked()
	}
}

func (g *Gateway) findCategoryLocked(id string) *model.Category {
	if id == "" {
		return nil
	}
	for _, c := range g.categories {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// SelectCategory switches the selection and resets the card list so the
// next page fetch starts from the top of the new category.
func (g *Gateway) SelectCategory(ctx context.Context, categoryID string) error {
	g.mu.Lock()
	if g.findCategoryLocked(categoryID) == nil {
		g.mu.Unlock()
		return model.NewAppError("NOT_FOUND", "The category does not exist.", "category_id", model.ErrNotFound)
	}
	if g.selectedID != categoryID {
		g.selectedID = categoryID
		g.resetCardListLocked()
	}
	g.mu.Unlock()

	g.notifier.Notify()
	return nil
}

// CreateCategory stores a new category under the active backend and makes
// it the current selection.
func (g *Gateway) CreateCategory(ctx context.Context, req *model.CreateCategoryRequest) (*model.Category, error) {
	logger := middleware.GetLogger(ctx)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "The category name must not be empty.", "name", model.ErrInvalidInput)
	}

	var created *model.Category

	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return nil, model.ErrForbidden
		}
		category := &model.Category{
			ID:     uuid.New().String(),
			UserID: userID.String(),
			Name:   name,
		}
		if err := g.catRepo.Create(ctx, g.db, category); err != nil {
			return nil, err
		}
		created = category

	default:
		id, err := gonanoid.New()
		if err != nil {
			logger.Error("Failed to generate category id", "error", err)
			return nil, model.ErrInternalServer
		}
		category := &model.Category{ID: id, Name: name}
		cats, err := g.store.Categories(ctx)
		if err != nil {
			return nil, err
		}
		cats = append(cats, category)
		if err := g.store.SaveCategories(ctx, cats); err != nil {
			return nil, err
		}
		created = category
	}

	cats, err := g.loadCategories(ctx)
	if err != nil {
		return nil, err
	}

	g.mu.Lock()
	g.categories = cats
	g.selectedID = created.ID
	g.resetCardListLocked()
	g.mu.Unlock()

	g.notifier.Notify()
	logger.Info("Category created", "category_id", created.ID, "mode", g.session.Mode())
	return created, nil
}

// UpdateCategory renames a category.
func (g *Gateway) UpdateCategory(ctx context.Context, categoryID string, req *model.UpdateCategoryRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return model.NewAppError("VALIDATION_ERROR", "The category name must not be empty.", "name", model.ErrInvalidInput)
	}

	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return model.ErrForbidden
		}
		if err := g.catRepo.UpdateName(ctx, g.db, userID, categoryID, name); err != nil {
			return err
		}

	default:
		cats, err := g.store.Categories(ctx)
		if err != nil {
			return err
		}
		found := false
		for _, c := range cats {
			if c.ID == categoryID {
				c.Name = name
				found = true
				break
			}
		}
		if !found {
			return model.ErrNotFound
		}
		if err := g.store.SaveCategories(ctx, cats); err != nil {
			return err
		}
	}

	g.mu.Lock()
	if c := g.findCategoryLocked(categoryID); c != nil {
		c.Name = name
	}
	g.mu.Unlock()

	g.notifier.Notify()
	return nil
}

// DeleteCategory removes a category together with its cards and, in remote
// mode, their stored images. Image cleanup is best effort: a failed object
// delete is logged and does not block the row deletes.
func (g *Gateway) DeleteCategory(ctx context.Context, categoryID string) error {
	logger := middleware.GetLogger(ctx)

	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return model.ErrForbidden
		}
		cards, err := g.cardRepo.FindByCategory(ctx, g.db, userID, categoryID)
		if err != nil {
			return err
		}
		g.deleteCardImages(ctx, cards)

		err = g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := g.cardRepo.DeleteByCategory(ctx, tx, categoryID); err != nil {
				return err
			}
			return g.catRepo.Delete(ctx, tx, userID, categoryID)
		})
		if err != nil {
			return err
		}

	default:
		if err := g.store.RemoveCards(ctx, categoryID); err != nil {
			return err
		}
		cats, err := g.store.Categories(ctx)
		if err != nil {
			return err
		}
		kept := cats[:0]
		for _, c := range cats {
			if c.ID != categoryID {
				kept = append(kept, c)
			}
		}
		if err := g.store.SaveCategories(ctx, kept); err != nil {
			return err
		}
	}

	cats, err := g.loadCategories(ctx)
	if err != nil {
		return err
	}

	g.mu.Lock()
	if g.selectedID == categoryID {
		g.selectedID = ""
	}
	g.applyCategoriesLocked(cats)
	g.mu.Unlock()

	g.notifier.Notify()
	logger.Info("Category deleted", "category_id", categoryID)
	return nil
}

func (g *Gateway) loadCategories(ctx context.Context) ([]*model.Category, error) {
	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return nil, model.ErrForbidden
		}
		return g.catRepo.FindByUser(ctx, g.db, userID)
	default:
		return g.store.Categories(ctx)
	}
}

// ---- cards ----

func (g *Gateway) resetCardListLocked() {
	g.reqToken++
	g.cards = nil
	g.page = 0
	g.loading = false
	g.hasMore = true
}

// ResetCardList clears the paged card list. Any in-flight page load
// completes without effect.
func (g *Gateway) ResetCardList() {
	g.mu.Lock()
	g.resetCardListLocked()
	g.mu.Unlock()
	g.notifier.Notify()
}

// FetchCardsPage loads the next page of the selected category into the
// list. Calling it while a load is running, or after the last page, is a
// no-op that returns the current snapshot.
func (g *Gateway) FetchCardsPage(ctx context.Context) (CardListSnapshot, error) {
	g.mu.Lock()
	if g.loading || !g.hasMore || g.selectedID == "" {
		snap := g.cardSnapshotLocked()
		g.mu.Unlock()
		return snap, nil
	}
	g.loading = true
	token := g.reqToken
	categoryID := g.selectedID
	query := g.query
	offset := g.page * g.pageSize
	hook := g.pageLoadStarted
	g.mu.Unlock()

	if hook != nil {
		hook()
	}

	cards, err := g.loadPage(ctx, categoryID, query, offset, g.pageSize)

	g.mu.Lock()
	if token != g.reqToken {
		// The list was reset while this page was loading; the result
		// belongs to a list that no longer exists.
		snap := g.cardSnapshotLocked()
		g.mu.Unlock()
		return snap, nil
	}
	g.loading = false
	if err != nil {
		snap := g.cardSnapshotLocked()
		g.mu.Unlock()
		return snap, err
	}
	g.cards = append(g.cards, cards...)
	g.page++
	g.hasMore = len(cards) == g.pageSize
	snap := g.cardSnapshotLocked()
	g.mu.Unlock()

	g.notifier.Notify()
	return snap, nil
}

// SearchCards filters the card list by a case-insensitive substring on the
// word or its translation. An empty query restores the unfiltered list.
// A changed query resets the cursor and loads the first page.
func (g *Gateway) SearchCards(ctx context.Context, query string) (CardListSnapshot, error) {
	query = strings.TrimSpace(query)

	g.mu.Lock()
	if query == g.query {
		snap := g.cardSnapshotLocked()
		g.mu.Unlock()
		return snap, nil
	}
	g.query = query
	g.resetCardListLocked()
	g.mu.Unlock()

	g.notifier.Notify()
	return g.FetchCardsPage(ctx)
}

func (g *Gateway) loadPage(ctx context.Context, categoryID, query string, offset, limit int) ([]*model.Card, error) {
	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return nil, model.ErrForbidden
		}
		return g.cardRepo.FindPage(ctx, g.db, userID, categoryID, query, offset, limit)
	default:
		cards, err := g.store.Cards(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		cards = filterCards(cards, query)
		if offset >= len(cards) {
			return nil, nil
		}
		end := offset + limit
		if end > len(cards) {
			end = len(cards)
		}
		return cards[offset:end], nil
	}
}

func filterCards(cards []*model.Card, query string) []*model.Card {
	if query == "" {
		return cards
	}
	q := strings.ToLower(query)
	out := make([]*model.Card, 0, len(cards))
	for _, c := range cards {
		if strings.Contains(strings.ToLower(c.Word), q) ||
			strings.Contains(strings.ToLower(c.TransWord), q) {
			out = append(out, c)
		}
	}
	return out
}

// CreateCard saves a card into the selected category. In remote mode a
// non-nil image is uploaded to object storage first and the card stores
// the signed URL; in local mode the image reference is kept as given.
func (g *Gateway) CreateCard(ctx context.Context, req *model.CreateCardRequest, image []byte, imageContentType string) (*model.Card, error) {
	logger := middleware.GetLogger(ctx)

	g.mu.Lock()
	categoryID := g.selectedID
	g.mu.Unlock()
	if categoryID == "" {
		return nil, model.NewAppError("NO_CATEGORY", "No category is selected.", "", model.ErrInvalidInput)
	}

	word := strings.TrimSpace(req.Word)
	transWord := strings.TrimSpace(req.TransWord)
	if word == "" || transWord == "" {
		return nil, model.NewAppError("VALIDATION_ERROR", "Both the word and its translation are required.", "word,trans_word", model.ErrInvalidInput)
	}

	card := &model.Card{
		CategoryID:        categoryID,
		Word:              word,
		WordLangCode:      req.WordLangCode,
		TransWord:         transWord,
		TransWordLangCode: req.TransWordLangCode,
		ImageURL:          req.ImageURL,
	}

	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return nil, model.ErrForbidden
		}
		card.ID = uuid.New().String()
		card.UserID = userID.String()
		if len(image) > 0 {
			signedURL, err := g.imageStore.Upload(ctx, userID.String(), image, imageContentType)
			if err != nil {
				return nil, err
			}
			card.ImageURL = signedURL
		}
		if err := g.cardRepo.Create(ctx, g.db, card); err != nil {
			return nil, err
		}

	default:
		id, err := gonanoid.New()
		if err != nil {
			logger.Error("Failed to generate card id", "error", err)
			return nil, model.ErrInternalServer
		}
		card.ID = id
		cards, err := g.store.Cards(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		cards = append(cards, card)
		if err := g.store.SaveCards(ctx, categoryID, cards); err != nil {
			return nil, err
		}
	}

	g.ResetCardList()
	if _, err := g.FetchCardsPage(ctx); err != nil {
		logger.Warn("Card list refresh after create failed", "error", err)
	}

	logger.Info("Card created", "card_id", card.ID, "category_id", categoryID)
	return card, nil
}

// DeleteCards removes the given cards from the selected category. Remote
// images are deleted best effort before the rows. Afterwards the list is
// reset and the first page reloaded.
func (g *Gateway) DeleteCards(ctx context.Context, ids []string) error {
	logger := middleware.GetLogger(ctx)

	if len(ids) == 0 {
		return model.NewAppError("VALIDATION_ERROR", "No cards were selected.", "ids", model.ErrInvalidInput)
	}

	g.mu.Lock()
	categoryID := g.selectedID
	g.mu.Unlock()
	if categoryID == "" {
		return model.NewAppError("NO_CATEGORY", "No category is selected.", "", model.ErrInvalidInput)
	}

	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return model.ErrForbidden
		}
		var cards []*model.Card
		for _, id := range ids {
			card, err := g.cardRepo.FindByID(ctx, g.db, userID, id)
			if err != nil {
				if errors.Is(err, model.ErrNotFound) {
					continue
				}
				return err
			}
			cards = append(cards, card)
		}
		g.deleteCardImages(ctx, cards)
		if err := g.cardRepo.DeleteByIDs(ctx, g.db, userID, ids); err != nil {
			return err
		}

	default:
		cards, err := g.store.Cards(ctx, categoryID)
		if err != nil {
			return err
		}
		drop := make(map[string]bool, len(ids))
		for _, id := range ids {
			drop[id] = true
		}
		kept := cards[:0]
		for _, c := range cards {
			if !drop[c.ID] {
				kept = append(kept, c)
			}
		}
		if err := g.store.SaveCards(ctx, categoryID, kept); err != nil {
			return err
		}
	}

	g.ResetCardList()
	if _, err := g.FetchCardsPage(ctx); err != nil {
		logger.Warn("Card list refresh after delete failed", "error", err)
	}

	logger.Info("Cards deleted", "count", len(ids), "category_id", categoryID)
	return nil
}

// deleteCardImages removes the stored objects behind the cards' signed
// URLs. Failures are logged and skipped.
func (g *Gateway) deleteCardImages(ctx context.Context, cards []*model.Card) {
	logger := middleware.GetLogger(ctx)
	for _, card := range cards {
		key, ok := g.imageStore.KeyFromSignedURL(card.ImageURL)
		if !ok {
			continue
		}
		if err := g.imageStore.Delete(ctx, []string{key}); err != nil {
			logger.Warn("Failed to delete card image", "error", err, "card_id", card.ID)
		}
	}
}

// SaveCardStats persists updated mastery counters for a card under the
// active backend. The training service calls this after each answer.
func (g *Gateway) SaveCardStats(ctx context.Context, card *model.Card) error {
	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return model.ErrForbidden
		}
		updates := map[string]interface{}{
			"success_count":  card.SuccessCount,
			"fail_count":     card.FailCount,
			"accuracy":       card.Accuracy,
			"streak":         card.Streak,
			"last_shown_at":  card.LastShownAt,
			"cooldown_until": card.CooldownUntil,
		}
		return g.cardRepo.UpdateStats(ctx, g.db, userID, card.ID, updates)

	default:
		cards, err := g.store.Cards(ctx, card.CategoryID)
		if err != nil {
			return err
		}
		found := false
		for i, c := range cards {
			if c.ID == card.ID {
				cards[i] = card
				found = true
				break
			}
		}
		if !found {
			return model.ErrNotFound
		}
		return g.store.SaveCards(ctx, card.CategoryID, cards)
	}
}

// CardsForTraining returns up to limit cards of a category ordered by how
// much they need review: lowest accuracy first, never-shown before
// recently shown. Cards still in cooldown are excluded when requested.
// In remote mode the category must exist and belong to the session user.
func (g *Gateway) CardsForTraining(ctx context.Context, categoryID string, limit int, excludeCooldown bool) ([]*model.Card, error) {
	now := timeNow()
	switch g.session.Mode() {
	case model.ModeRemote:
		userID, ok := g.session.Current()
		if !ok {
			return nil, model.ErrForbidden
		}
		if _, err := g.catRepo.FindByID(ctx, g.db, userID, categoryID); err != nil {
			if errors.Is(err, model.ErrNotFound) {
				return nil, model.NewAppError("NOT_FOUND", "The category does not exist.", "category_id", model.ErrNotFound)
			}
			return nil, err
		}
		return g.cardRepo.FindForTraining(ctx, g.db, userID, categoryID, limit, excludeCooldown, now)
	default:
		cards, err := g.store.Cards(ctx, categoryID)
		if err != nil {
			return nil, err
		}
		return selectTrainingCards(cards, limit, excludeCooldown, now), nil
	}
}
