// internal/service/auth_service_test.go
package service

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/IlyaZolotarev/wordcard/internal/config"
	"github.com/IlyaZolotarev/wordcard/internal/localstore"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"
)

type recordingMailer struct {
	to      string
	subject string
	body    string
}

func (m *recordingMailer) Send(_ context.Context, to, subject, body string) error {
	m.to = to
	m.subject = subject
	m.body = body
	return nil
}

type authFixture struct {
	svc     AuthService
	db      *gorm.DB
	store   *localstore.Store
	session *Session
	mailer  *recordingMailer
	cfg     *config.Config
}

func setupAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.MagicLinkToken{}, &model.Category{}, &model.Card{}))

	store, err := localstore.Open(filepath.Join(t.TempDir(), "device.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.App.Name = "wordcard-test"
	cfg.App.FrontendURL = "https://wordcard.test"
	cfg.JWT.SecretKey = "test-secret"
	cfg.JWT.AccessTokenTTL = time.Hour

	userRepo := repository.NewGormUserRepository()
	cardRepo := repository.NewGormCardRepository()
	catRepo := repository.NewGormCategoryRepository()
	session := NewSession()
	mailer := &recordingMailer{}

	svc := NewAuthService(
		db,
		userRepo,
		repository.NewGormTokenRepository(),
		mailer,
		session,
		NewSyncService(db, store, catRepo, cardRepo, userRepo),
		cfg,
	)
	return &authFixture{svc: svc, db: db, store: store, session: session, mailer: mailer, cfg: cfg}
}

func (f *authFixture) register(t *testing.T, email, password string) *model.User {
	t.Helper()
	user, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return user
}

func (f *authFixture) magicToken(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	var token model.MagicLinkToken
	require.NoError(t, f.db.Where("user_id = ?", userID).First(&token).Error)
	return token.Token
}

func TestAuthService_Register(t *testing.T) {
	f := setupAuthFixture(t)

	user := f.register(t, "new@example.com", "password123")
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "password123", user.PasswordHash)

	// The mail carries the activation link with the stored token.
	assert.Equal(t, "new@example.com", f.mailer.to)
	token := f.magicToken(t, user.UserID)
	assert.Contains(t, f.mailer.body, "https://wordcard.test/auth/callback?token="+token)
}

func TestAuthService_RegisterDuplicateEmail(t *testing.T) {
	f := setupAuthFixture(t)
	f.register(t, "dup@example.com", "password123")

	_, err := f.svc.Register(context.Background(), &model.RegisterRequest{
		Email:    "dup@example.com",
		Password: "other-password",
	})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func TestAuthService_VerifyMagicLink(t *testing.T) {
	ctx := context.Background()
	f := setupAuthFixture(t)
	user := f.register(t, "verify@example.com", "password123")
	token := f.magicToken(t, user.UserID)

	resp, err := f.svc.VerifyMagicLink(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.UserID.String(), resp.UserID)

	// Account is active and the engine switched to remote mode.
	var activated model.User
	require.NoError(t, f.db.Where("user_id = ?", user.UserID).First(&activated).Error)
	assert.True(t, activated.IsActive)
	assert.Equal(t, model.ModeRemote, f.session.Mode())

	// The access token is a valid HS256 JWT for this user.
	parsed, err := jwt.Parse(resp.AccessToken, func(*jwt.Token) (interface{}, error) {
		return []byte(f.cfg.JWT.SecretKey), nil
	})
	require.NoError(t, err)
	subject, err := parsed.Claims.GetSubject()
	require.NoError(t, err)
	assert.Equal(t, user.UserID.String(), subject)

	// The link is single-use.
	_, err = f.svc.VerifyMagicLink(ctx, token)
	assert.ErrorIs(t, err, model.ErrInvalidInput)
}

func TestAuthService_VerifyMagicLinkExpired(t *testing.T) {
	ctx := context.Background()
	f := setupAuthFixture(t)
	user := f.register(t, "late@example.com", "password123")
	token := f.magicToken(t, user.UserID)

	require.NoError(t, f.db.Model(&model.MagicLinkToken{}).
		Where("token = ?", token).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	_, err := f.svc.VerifyMagicLink(ctx, token)
	assert.ErrorIs(t, err, model.ErrInvalidInput)

	// The expired token was removed.
	var count int64
	require.NoError(t, f.db.Model(&model.MagicLinkToken{}).Where("token = ?", token).Count(&count).Error)
	assert.Zero(t, count)
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	f := setupAuthFixture(t)
	user := f.register(t, "login@example.com", "password123")

	t.Run("inactive account is rejected", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &model.LoginRequest{Email: "login@example.com", Password: "password123"})
		assert.ErrorIs(t, err, model.ErrForbidden)
	})

	_, err := f.svc.VerifyMagicLink(ctx, f.magicToken(t, user.UserID))
	require.NoError(t, err)
	f.session.Clear()

	t.Run("wrong password", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &model.LoginRequest{Email: "login@example.com", Password: "nope"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
		assert.Equal(t, model.ModeLocal, f.session.Mode())
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := f.svc.Login(ctx, &model.LoginRequest{Email: "ghost@example.com", Password: "password123"})
		assert.ErrorIs(t, err, model.ErrInvalidInput)
	})

	t.Run("success establishes the session", func(t *testing.T) {
		resp, err := f.svc.Login(ctx, &model.LoginRequest{Email: "login@example.com", Password: "password123"})
		require.NoError(t, err)
		assert.Equal(t, user.UserID.String(), resp.UserID)
		assert.Equal(t, model.ModeRemote, f.session.Mode())

		f.svc.Logout(ctx)
		assert.Equal(t, model.ModeLocal, f.session.Mode())
	})
}

func TestAuthService_LoginMergesDeviceData(t *testing.T) {
	ctx := context.Background()
	f := setupAuthFixture(t)
	user := f.register(t, "merge@example.com", "password123")
	_, err := f.svc.VerifyMagicLink(ctx, f.magicToken(t, user.UserID))
	require.NoError(t, err)
	f.session.Clear()

	// Data collected on the device while logged out.
	require.NoError(t, f.store.SaveCategories(ctx, []*model.Category{
		{ID: "local-cat", Name: "Travel"},
	}))
	require.NoError(t, f.store.SaveCards(ctx, "local-cat", []*model.Card{
		{ID: "lw1", CategoryID: "local-cat", Word: "train", TransWord: "Zug"},
		{ID: "lw2", CategoryID: "local-cat", Word: "plane", TransWord: "Flugzeug"},
	}))

	_, err = f.svc.Login(ctx, &model.LoginRequest{Email: "merge@example.com", Password: "password123"})
	require.NoError(t, err)

	var categories []model.Category
	require.NoError(t, f.db.Where("user_id = ?", user.UserID.String()).Find(&categories).Error)
	require.Len(t, categories, 1)
	assert.Equal(t, "Travel", categories[0].Name)

	var cards []model.Card
	require.NoError(t, f.db.Where("category_id = ?", categories[0].ID).Find(&cards).Error)
	words := make([]string, 0, len(cards))
	for _, c := range cards {
		words = append(words, c.Word)
	}
	assert.ElementsMatch(t, []string{"train", "plane"}, words)

	// The device store was drained.
	local, err := f.store.Categories(ctx)
	require.NoError(t, err)
	assert.Empty(t, local)
}
