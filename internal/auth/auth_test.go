package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"savium-invest-go/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-jwt-secret"

func signToken(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}
	return s
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":   "u1",
		"email": "alice@example.com",
		"iss":   "savium",
		"aud":   "savium-api",
		"exp":   time.Now().Add(time.Hour).Unix(),
	}
}

func TestVerifier(t *testing.T) {
	v, err := NewVerifier(models.AuthConfig{JWTSecret: testSecret, Issuer: "savium", Audience: "savium-api"})
	if err != nil {
		t.Fatalf("NewVerifier failed: %v", err)
	}

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()
	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "someone-else"
	wrongAudience := validClaims()
	wrongAudience["aud"] = "other-api"
	noSubject := validClaims()
	delete(noSubject, "sub")
	noExpiry := validClaims()
	delete(noExpiry, "exp")

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims()), false},
		{"wrong secret", signToken(t, jwt.SigningMethodHS256, []byte("other"), validClaims()), true},
		{"expired", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), expired), true},
		{"wrong issuer", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongIssuer), true},
		{"wrong audience", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), wrongAudience), true},
		{"no subject", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noSubject), true},
		{"no expiry", signToken(t, jwt.SigningMethodHS256, []byte(testSecret), noExpiry), true},
		{"unsigned", signToken(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, validClaims()), true},
		{"garbage", "not.a.token", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := v.Verify(context.Background(), tt.token)
			if tt.wantErr {
				if !errors.Is(err, ErrUnauthenticated) {
					t.Fatalf("Expected ErrUnauthenticated, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Verify failed: %v", err)
			}
			if id.UserId != "u1" || id.Email != "alice@example.com" {
				t.Errorf("Unexpected identity %+v", id)
			}
		})
	}

	if _, err := NewVerifier(models.AuthConfig{}); err == nil {
		t.Error("Expected empty secret to be rejected")
	}
}

func TestMiddleware(t *testing.T) {
	v, _ := NewVerifier(models.AuthConfig{JWTSecret: testSecret})
	var seen string
	handler := Middleware(v)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	token := signToken(t, jwt.SigningMethodHS256, []byte(testSecret), validClaims())
	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/api/portfolio", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("Expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusNoContent && seen != "u1" {
				t.Errorf("Expected user id in context, got %q", seen)
			}
			if tt.status == http.StatusUnauthorized && seen != "" {
				t.Error("Handler must not run for rejected requests")
			}
		})
	}
}

func TestFromContext_Empty(t *testing.T) {
	if _, ok := FromContext(context.Background()); ok {
		t.Error("Expected no identity in empty context")
	}
	ctx := WithIdentity(context.Background(), Identity{UserId: "u9"})
	if UserIDFromContext(ctx) != "u9" {
		t.Error("Expected identity round trip")
	}
}
