package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func TestMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(tm)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handler := Middleware(tm)(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})

	err := handler(c)
	httpErr, ok := err.(*echo.HTTPError)
	if !ok || httpErr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %v", err)
	}
}

func TestMiddleware_ValidToken(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	userID := uuid.New()
	token, err := tm.Issue(userID, "elder")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	var gotID uuid.UUID
	handler := Middleware(tm)(func(c echo.Context) error {
		gotID = UserIDFromContext(c.Request().Context())
		return c.NoContent(http.StatusOK)
	})

	if err := handler(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotID != userID {
		t.Errorf("expected user id %s in context, got %s", userID, gotID)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	if UserIDFromContext(context.Background()) != uuid.Nil {
		t.Error("expected uuid.Nil from empty context")
	}
}
