package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/isdelr/bookshelf-be/internal/models"
	"github.com/rs/zerolog/log"
)

// TokenTTL is how long an issued token stays valid.
const TokenTTL = 15 * 24 * time.Hour

// ErrInvalidToken is returned for any token that fails verification:
// malformed, wrong signature, wrong signing method, or expired.
var ErrInvalidToken = errors.New("invalid token")

// Claims defines the JWT claims structure.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// userKey is the context key for the authenticated user.
type contextKey string

const userKey = contextKey("authUser")

// TokenService issues and verifies signed auth tokens. The signing secret is
// injected once at construction and never read from the environment here.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService signing with the given secret.
func NewTokenService(secret string) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: TokenTTL}
}

// Issue creates a new signed token for the given user ID.
func (ts *TokenService) Issue(userID string) (string, error) {
	now := time.Now()
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(ts.secret)
}

// Verify parses and validates a token string and returns the user ID it was
// issued for. Verification is binary: any defect yields ErrInvalidToken.
func (ts *TokenService) Verify(tokenStr string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return ts.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

// UserResolver looks up the account a verified token belongs to.
type UserResolver interface {
	GetUserByID(ctx context.Context, id string) (models.User, error)
}

// Middleware creates a middleware for protecting routes. It verifies the
// bearer token, resolves the account it belongs to, and stores the user in
// the request context. It performs no writes of its own.
func Middleware(tokens *TokenService, users UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// An absent Authorization header is an ordinary missing token.
			var tokenStr string
			if authHeader := r.Header.Get("Authorization"); authHeader != "" {
				if parts := strings.SplitN(authHeader, " ", 2); len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
					tokenStr = parts[1]
				}
			}
			if tokenStr == "" {
				unauthorized(w, "No token provided, authorization denied")
				return
			}

			userID, err := tokens.Verify(tokenStr)
			if err != nil {
				unauthorized(w, "Invalid token, authorization denied")
				return
			}

			// The token may outlive the account.
			user, err := users.GetUserByID(r.Context(), userID)
			if err != nil {
				log.Warn().Err(err).Str("user_id", userID).Msg("Token valid but user lookup failed")
				unauthorized(w, "User not found, authorization denied")
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the authenticated user stored by Middleware.
func UserFromContext(ctx context.Context) (models.User, bool) {
	user, ok := ctx.Value(userKey).(models.User)
	return user, ok
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"message": message})
}
