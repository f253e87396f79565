package model

import (
	"github.com/golang-jwt/jwt/v5"
)

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// SessionResponse is returned whenever a session is established. The token
// is what the UI hands back on the deep-link callback path.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
}

// JWTCustomClaims holds the session token payload.
type JWTCustomClaims struct {
	jwt.RegisteredClaims
}

type ContextKey string

// UserIDKey is the request-context key the auth middleware stores the
// authenticated user's ID under.
const UserIDKey ContextKey = "userID"
