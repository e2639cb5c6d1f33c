package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/siteguardhq/siteguard/internal/storage"
)

type contextKey string

const ownerContextKey contextKey = "owner"

// apiKeyPrefixLen is how many leading characters of a raw key are stored in
// clear for lookup. The rest is only ever compared against the bcrypt hash.
const apiKeyPrefixLen = 8

// OwnerFromContext returns the authenticated owner id set by AuthMiddleware.
func OwnerFromContext(ctx context.Context) string {
	owner, _ := ctx.Value(ownerContextKey).(string)
	return owner
}

// WithOwner returns a context carrying the owner id. Exposed for tests.
func WithOwner(ctx context.Context, ownerID string) context.Context {
	return context.WithValue(ctx, ownerContextKey, ownerID)
}

// AuthMiddleware resolves the owner identity from a JWT bearer token or an
// X-API-Key header. Token issuance lives in the account service; this side
// only validates.
func AuthMiddleware(jwtSecret string, keys storage.APIKeyStore, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rawKey := r.Header.Get("X-API-Key"); rawKey != "" {
				ownerID, err := authenticateAPIKey(r.Context(), keys, rawKey)
				if err != nil {
					logger.Debug("api key rejected", zap.Error(err))
					writeError(w, http.StatusUnauthorized, "invalid API key")
					return
				}
				ctx := context.WithValue(r.Context(), ownerContextKey, ownerID)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")
			if tokenString == authHeader {
				writeError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			ownerID, err := validateJWT(tokenString, jwtSecret)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), ownerContextKey, ownerID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func validateJWT(tokenString, secret string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected signing algorithm: %v", token.Method.Alg())
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing sub claim")
	}
	return sub, nil
}

func authenticateAPIKey(ctx context.Context, keys storage.APIKeyStore, rawKey string) (string, error) {
	if len(rawKey) <= apiKeyPrefixLen {
		return "", fmt.Errorf("key too short")
	}

	candidates, err := keys.ListAPIKeysByPrefix(ctx, rawKey[:apiKeyPrefixLen])
	if err != nil {
		return "", fmt.Errorf("lookup failed: %w", err)
	}

	for _, key := range candidates {
		if key.IsExpired() {
			continue
		}
		if bcrypt.CompareHashAndPassword([]byte(key.KeyHash), []byte(rawKey)) == nil {
			// Best effort, a failed touch never rejects the request.
			keys.TouchAPIKey(ctx, key.ID, time.Now().UTC())
			return key.OwnerID, nil
		}
	}

	return "", fmt.Errorf("no matching key")
}
