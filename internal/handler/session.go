package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/alexmt/plus2flickr/internal/domain"
	"github.com/alexmt/plus2flickr/internal/service"
)

const sessionTTL = 30 * 24 * time.Hour

// TokenSigner issues and validates signed session tokens carrying a user id.
type TokenSigner struct {
	secret []byte
}

// NewTokenSigner creates a TokenSigner with the given HMAC secret.
func NewTokenSigner(secret string) *TokenSigner {
	return &TokenSigner{secret: []byte(secret)}
}

// Sign issues a session token for the given user id.
func (s *TokenSigner) Sign(userID string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  userID,
		"type": "session",
		"iat":  now.Unix(),
		"exp":  now.Add(sessionTTL).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// Parse validates a session token and returns the user id it carries.
func (s *TokenSigner) Parse(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", domain.ErrUnauthorized
	}
	if tokenType, _ := claims["type"].(string); tokenType != "session" {
		return "", domain.ErrUnauthorized
	}
	userID, ok := claims["sub"].(string)
	if !ok || userID == "" {
		return "", domain.ErrUnauthorized
	}
	return userID, nil
}

// SessionHandler issues sessions for new users.
type SessionHandler struct {
	users  *service.UserService
	signer *TokenSigner
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(users *service.UserService, signer *TokenSigner) *SessionHandler {
	return &SessionHandler{users: users, signer: signer}
}

// Create makes a fresh user with no linked accounts and returns a session
// token for it. Linking the first provider account happens afterwards
// through the authorization endpoints.
func (h *SessionHandler) Create(c echo.Context) error {
	user, err := h.users.CreateUser(c.Request().Context())
	if err != nil {
		return err
	}
	token, err := h.signer.Sign(user.ID)
	if err != nil {
		return err
	}
	return JSON(c, http.StatusCreated, map[string]string{
		"user_id": user.ID,
		"token":   token,
	})
}
