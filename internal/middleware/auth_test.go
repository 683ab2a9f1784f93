package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/missionhub/missionhub-api/internal/pkg/jwt"
)

func TestAuthPassesClaimsIntoContext(t *testing.T) {
	jwtService := jwt.NewService("secret", time.Minute)
	userID := uuid.New()
	token, err := jwtService.GenerateAccessToken(userID, RoleAdvertiser)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	var gotID uuid.UUID
	var gotRole string
	handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = GetUserID(r.Context())
		gotRole = GetRole(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotID != userID {
		t.Fatalf("expected user id %s, got %s", userID, gotID)
	}
	if gotRole != RoleAdvertiser {
		t.Fatalf("expected advertiser role, got %s", gotRole)
	}
}

func TestAuthRejectsMissingAndMalformedHeaders(t *testing.T) {
	jwtService := jwt.NewService("secret", time.Minute)
	handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without valid auth")
	}))

	cases := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"no bearer prefix", "token abc"},
		{"garbage token", "Bearer not.a.token"},
	}
	for _, c := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if c.header != "" {
			req.Header.Set("Authorization", c.header)
		}
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected 401, got %d", c.name, rec.Code)
		}
	}
}

func TestAuthRejectsExpiredToken(t *testing.T) {
	jwtService := jwt.NewService("secret", -time.Minute)
	token, err := jwtService.GenerateAccessToken(uuid.New(), RoleMember)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	handler := Auth(jwtService)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run with expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	jwtService := jwt.NewService("secret", time.Minute)
	token, err := jwtService.GenerateAccessToken(uuid.New(), RoleMember)
	if err != nil {
		t.Fatalf("generate token failed: %v", err)
	}

	ok := func(w http.ResponseWriter, r *http.Request) {}
	adminOnly := Auth(jwtService)(RequireAdmin()(http.HandlerFunc(ok)))
	memberOnly := Auth(jwtService)(RequireMember()(http.HandlerFunc(ok)))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	adminOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for member on admin route, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	memberOnly.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for member route, got %d", rec.Code)
	}
}
