// Package auth is the gate between a raw connection handshake and a
// verified user identity. It delegates credential checks to the JWT
// verifier and user existence to the store; it has no other side effects.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"github.com/chatfabric/chatfabric/internal/models"
)

var (
	ErrMissingCredential = errors.New("no credential provided")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnknownUser       = errors.New("credential does not resolve to a user")
)

// AppClaims is the expected JWT claims structure; the subject carries the
// user id.
type AppClaims struct {
	jwt.RegisteredClaims
}

// Verifier turns an opaque bearer credential into a user id or rejects it.
type Verifier interface {
	Verify(ctx context.Context, credential string) (userID string, err error)
}

// UserLookup is the slice of the store the gate needs.
type UserLookup interface {
	UserByID(ctx context.Context, id string) (*models.User, error)
}

// JWTVerifier validates HMAC-signed tokens and checks the subject against
// the store.
type JWTVerifier struct {
	secret string
	users  UserLookup
	logger *slog.Logger
}

func NewJWTVerifier(secret string, users UserLookup, logger *slog.Logger) *JWTVerifier {
	return &JWTVerifier{
		secret: secret,
		users:  users,
		logger: logger.With(slog.String("component", "auth_gate")),
	}
}

var _ Verifier = (*JWTVerifier)(nil)

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (string, error) {
	if credential == "" {
		return "", ErrMissingCredential
	}

	token, err := jwt.ParseWithClaims(credential, &AppClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(v.secret), nil
	})
	if err != nil || !token.Valid {
		v.logger.Warn("Invalid credential presented", slog.Any("error", err))
		return "", ErrInvalidCredential
	}

	claims, ok := token.Claims.(*AppClaims)
	if !ok || claims.Subject == "" {
		v.logger.Warn("Valid token missing 'sub' claim")
		return "", ErrInvalidCredential
	}

	user, err := v.users.UserByID(ctx, claims.Subject)
	if err != nil {
		return "", fmt.Errorf("user lookup: %w", err)
	}
	if user == nil {
		return "", ErrUnknownUser
	}

	return user.ID, nil
}
