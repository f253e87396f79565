package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/IlyaZolotarev/wordcard/internal/config"
	"github.com/IlyaZolotarev/wordcard/internal/middleware"
	"github.com/IlyaZolotarev/wordcard/internal/model"
	"github.com/IlyaZolotarev/wordcard/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// AuthService registers users, verifies magic-link tokens and logs users
// in. Every path that ends in an authenticated session also merges the
// device's local data into the account before the session goes live.
type AuthService interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	VerifyMagicLink(ctx context.Context, tokenString string) (*model.SessionResponse, error)
	Login(ctx context.Context, req *model.LoginRequest) (*model.SessionResponse, error)
	Logout(ctx context.Context)
	GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error)
}

type authService struct {
	db        *gorm.DB
	userRepo  repository.UserRepository
	tokenRepo repository.TokenRepository
	mailer    Mailer
	session   *Session
	sync      *SyncService
	cfg       *config.Config
}

func NewAuthService(
	db *gorm.DB,
	userRepo repository.UserRepository,
	tokenRepo repository.TokenRepository,
	mailer Mailer,
	session *Session,
	sync *SyncService,
	cfg *config.Config,
) AuthService {
	return &authService{
		db:        db,
		userRepo:  userRepo,
		tokenRepo: tokenRepo,
		mailer:    mailer,
		session:   session,
		sync:      sync,
		cfg:       cfg,
	}
}

// Register creates an inactive user and sends the magic link that
// activates the account.
func (s *authService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	logger := middleware.GetLogger(ctx)
	var newUser *model.User

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		_, err := s.userRepo.FindByEmail(ctx, tx, req.Email)
		if err == nil {
			logger.Warn("Email already exists", "email", req.Email)
			return model.NewAppError("DUPLICATE_EMAIL", "This email address is already registered.", "email", model.ErrConflict)
		}
		if !errors.Is(err, model.ErrNotFound) {
			logger.Error("Failed to check email existence", "error", err)
			return model.NewAppError("INTERNAL_SERVER_ERROR", "An internal server error occurred.", "", err)
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.Error("Failed to hash password", "error", err)
			return model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to process the password.", "", err)
		}

		user := &model.User{
			UserID:       uuid.New(),
			Email:        req.Email,
			PasswordHash: string(hashedPassword),
			IsActive:     false,
		}

		if err := s.userRepo.Create(ctx, tx, user); err != nil {
			if errors.Is(err, model.ErrConflict) {
				logger.Warn("Conflict during user creation (race condition)", "error", err)
				return model.NewAppError("DUPLICATE_EMAIL", "This email address is already registered.", "email", model.ErrConflict)
			}
			logger.Error("Failed to create user in DB", "error", err)
			return model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to create the user.", "", err)
		}
		newUser = user

		tokenString, err := s.generateAndSaveMagicLinkToken(ctx, tx, user.UserID)
		if err != nil {
			return err
		}

		if err := s.sendMagicLinkEmail(ctx, user.Email, tokenString); err != nil {
			return model.NewAppError("EMAIL_SEND_FAILED", "Failed to send the confirmation email. Please try again later.", "", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	logger.Info("User registered and magic link sent", "user_id", newUser.UserID, "email", newUser.Email)
	return newUser, nil
}

// VerifyMagicLink validates a magic-link token, activates the account and
// establishes the session. The device's local data is merged into the
// account before the response is returned.
func (s *authService) VerifyMagicLink(ctx context.Context, tokenString string) (*model.SessionResponse, error) {
	logger := middleware.GetLogger(ctx)

	var userID uuid.UUID
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		token, err := s.tokenRepo.Find(ctx, tx, tokenString)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				logger.Warn("Magic link token not found")
				return model.NewAppError("INVALID_TOKEN", "This link is invalid or has already been used.", "token", model.ErrInvalidInput)
			}
			logger.Error("Error finding magic link token", "error", err)
			return model.NewAppError("INTERNAL_SERVER_ERROR", "An error occurred.", "", err)
		}

		if time.Now().After(token.ExpiresAt) {
			logger.Warn("Magic link token expired", "expires_at", token.ExpiresAt)
			_ = s.tokenRepo.Delete(ctx, tx, tokenString)
			return model.NewAppError("INVALID_TOKEN", "This link has expired.", "token", model.ErrInvalidInput)
		}

		if err := s.userRepo.Update(ctx, tx, token.UserID, map[string]interface{}{"is_active": true}); err != nil {
			logger.Error("Failed to activate user account", "error", err, "user_id", token.UserID)
			return model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to activate the account.", "", err)
		}

		if err := s.tokenRepo.Delete(ctx, tx, tokenString); err != nil {
			logger.Error("Failed to delete used magic link token", "error", err)
			// Not fatal; the token will simply fail the not-found check
			// next time.
		}

		userID = token.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Account verified via magic link", "user_id", userID)
	return s.establishSession(ctx, userID)
}

// Login authenticates with email and password, establishes the session and
// merges the device's local data into the account.
func (s *authService) Login(ctx context.Context, req *model.LoginRequest) (*model.SessionResponse, error) {
	logger := middleware.GetLogger(ctx).With("email", req.Email)

	user, err := s.userRepo.FindByEmail(ctx, s.db, req.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("Login failed: user not found")
			return nil, model.NewAppError("AUTHENTICATION_FAILED", "The email address or password is incorrect.", "", model.ErrInvalidInput)
		}
		logger.Error("Login failed: db error on FindByEmail", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "An internal server error occurred.", "", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		logger.Warn("Login failed: password mismatch", "user_id", user.UserID)
		return nil, model.NewAppError("AUTHENTICATION_FAILED", "The email address or password is incorrect.", "", model.ErrInvalidInput)
	}

	if !user.IsActive {
		logger.Warn("Login failed: account not active", "user_id", user.UserID)
		return nil, model.NewAppError("ACCOUNT_NOT_ACTIVE", "The account has not been activated. Please check the email sent at registration.", "", model.ErrForbidden)
	}

	logger.Info("Login successful", "user_id", user.UserID)
	return s.establishSession(ctx, user.UserID)
}

// Logout drops the session; the engine falls back to local mode.
func (s *authService) Logout(ctx context.Context) {
	logger := middleware.GetLogger(ctx)
	s.session.Clear()
	logger.Info("Session cleared")
}

func (s *authService) GetUser(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	logger := middleware.GetLogger(ctx)
	user, err := s.userRepo.FindByID(ctx, s.db, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			logger.Warn("User not found", "user_id", userID.String())
			return nil, model.NewAppError("USER_NOT_FOUND", "The user does not exist.", "", model.ErrNotFound)
		}
		logger.Error("Error finding user by ID", "error", err)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "An internal server error occurred.", "", err)
	}
	return user, nil
}

// establishSession merges the device's local data into the account, then
// switches the engine to remote mode and signs the access token. The merge
// runs before the session is set so it still sees the local store as the
// active backend.
func (s *authService) establishSession(ctx context.Context, userID uuid.UUID) (*model.SessionResponse, error) {
	logger := middleware.GetLogger(ctx)

	if err := s.sync.MergeLocalData(ctx, userID); err != nil {
		// Login still succeeds; the local data stays on the device for
		// the next attempt.
		logger.Error("Local data merge failed during login", "error", err, "user_id", userID)
	}

	s.session.Set(userID)

	claims := &jwt.RegisteredClaims{
		Issuer:    s.cfg.App.Name,
		Subject:   userID.String(),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.cfg.JWT.AccessTokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(s.cfg.JWT.SecretKey))
	if err != nil {
		logger.Error("Failed to sign JWT", "error", err, "user_id", userID)
		return nil, model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to issue the access token.", "", err)
	}

	return &model.SessionResponse{
		AccessToken: signedToken,
		UserID:      userID.String(),
	}, nil
}

func (s *authService) generateAndSaveMagicLinkToken(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (string, error) {
	logger := middleware.GetLogger(ctx)
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		logger.Error("Failed to generate random bytes for token", "error", err)
		return "", model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to generate the token.", "", err)
	}
	tokenString := hex.EncodeToString(tokenBytes)

	magicLinkToken := &model.MagicLinkToken{
		Token:     tokenString,
		UserID:    userID,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}
	if err := s.tokenRepo.Create(ctx, tx, magicLinkToken); err != nil {
		return "", model.NewAppError("INTERNAL_SERVER_ERROR", "Failed to store the token.", "", err)
	}
	return tokenString, nil
}

func (s *authService) sendMagicLinkEmail(ctx context.Context, email, token string) error {
	logger := middleware.GetLogger(ctx)
	verifyURL := fmt.Sprintf("%s/auth/callback?token=%s", s.cfg.App.FrontendURL, token)
	subject := "Activate your wordcard account"
	body := fmt.Sprintf("Thanks for signing up.\n\nClick the link below to activate your account:\n%s\n\nThe link is valid for 24 hours.", verifyURL)

	logger.Info("Sending magic link email", "to", email)
	return s.mailer.Send(ctx, email, subject, body)
}
