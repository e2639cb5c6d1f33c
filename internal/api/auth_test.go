package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/siteguardhq/siteguard/internal/models"
	"github.com/siteguardhq/siteguard/internal/storage"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func signToken(t *testing.T, sub string, expiresIn time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(expiresIn).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatal(err)
	}
	return signed
}

func authHandler(t *testing.T, keys storage.APIKeyStore) (http.Handler, *string) {
	t.Helper()
	var gotOwner string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOwner = OwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return AuthMiddleware(testSecret, keys, zap.NewNop())(inner), &gotOwner
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	h, _ := authHandler(t, storage.NewMemoryStore())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/sites", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddlewareValidJWT(t *testing.T) {
	h, gotOwner := authHandler(t, storage.NewMemoryStore())

	req := httptest.NewRequest("GET", "/api/sites", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "owner-1", time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *gotOwner != "owner-1" {
		t.Errorf("owner = %q, want owner-1", *gotOwner)
	}
}

func TestAuthMiddlewareExpiredJWT(t *testing.T) {
	h, _ := authHandler(t, storage.NewMemoryStore())

	req := httptest.NewRequest("GET", "/api/sites", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "owner-1", -time.Hour))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for expired token", rec.Code)
	}
}

func TestAuthMiddlewareAPIKey(t *testing.T) {
	store := storage.NewMemoryStore()
	rawKey := "sg_test_0123456789abcdefghijklmnop"
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.CreateAPIKey(context.Background(), &models.APIKey{
		OwnerID: "owner-1", Name: "ci", KeyHash: string(hash),
		Prefix: rawKey[:apiKeyPrefixLen], CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	h, gotOwner := authHandler(t, store)

	req := httptest.NewRequest("GET", "/api/sites", nil)
	req.Header.Set("X-API-Key", rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if *gotOwner != "owner-1" {
		t.Errorf("owner = %q, want owner-1", *gotOwner)
	}
}

func TestAuthMiddlewareExpiredAPIKey(t *testing.T) {
	store := storage.NewMemoryStore()
	rawKey := "sg_test_0123456789abcdefghijklmnop"
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	expired := time.Now().Add(-time.Hour)
	if err := store.CreateAPIKey(context.Background(), &models.APIKey{
		OwnerID: "owner-1", Name: "ci", KeyHash: string(hash),
		Prefix: rawKey[:apiKeyPrefixLen], ExpiresAt: &expired, CreatedAt: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	h, _ := authHandler(t, store)

	req := httptest.NewRequest("GET", "/api/sites", nil)
	req.Header.Set("X-API-Key", rawKey)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for expired key", rec.Code)
	}
}
