package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"safetrack-backend/internal/errs"
)

func TestRegisterAndLogin(t *testing.T) {
	svc := NewAuthService(newMemUserStore(), "test-secret")
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2", "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID == "" || token == "" {
		t.Fatalf("register must return an id and a token: %+v", user)
	}

	gotID, err := svc.ValidateJWT(token)
	if err != nil || gotID != user.ID {
		t.Fatalf("token must round-trip to the user id, got %q err=%v", gotID, err)
	}

	if _, _, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2", "Alice Again"); !errors.Is(err, errs.ErrEmailTaken) {
		t.Fatalf("duplicate email: expected ErrEmailTaken, got %v", err)
	}

	if _, _, err := svc.Login(ctx, "alice@example.com", "wrong-password"); !errors.Is(err, errs.ErrBadCredentials) {
		t.Fatalf("wrong password: expected ErrBadCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "hunter2hunter2"); !errors.Is(err, errs.ErrBadCredentials) {
		t.Fatalf("unknown email: expected ErrBadCredentials, got %v", err)
	}

	loggedIn, token2, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2")
	if err != nil || loggedIn.ID != user.ID || token2 == "" {
		t.Fatalf("login failed: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	svc := NewAuthService(newMemUserStore(), "test-secret")
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "not-an-email", "hunter2hunter2", "X"); err == nil {
		t.Fatalf("expected an error for a malformed email")
	}
	if _, _, err := svc.Register(ctx, "short@example.com", "short", "X"); err == nil {
		t.Fatalf("expected an error for a short password")
	}
}

func TestPasswordReset(t *testing.T) {
	store := newMemUserStore()
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "alice@example.com", "hunter2hunter2", "Alice")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	// Unknown emails get the same answer as known ones.
	if err := svc.RequestPasswordReset(ctx, "nobody@example.com"); err != nil {
		t.Fatalf("unknown email must not error, got %v", err)
	}

	if err := svc.RequestPasswordReset(ctx, "alice@example.com"); err != nil {
		t.Fatalf("reset request failed: %v", err)
	}
	stored, _ := store.GetByID(ctx, user.ID)
	if stored.ResetToken == nil || stored.ResetTokenExpires == nil {
		t.Fatalf("reset request must store a token with an expiry: %+v", stored)
	}
	token := *stored.ResetToken

	if err := svc.ResetPassword(ctx, token, "short"); err == nil {
		t.Fatalf("expected an error for a short password")
	}
	if err := svc.ResetPassword(ctx, "bogus-token", "newpassword123"); !errors.Is(err, errs.ErrInvalidResetToken) {
		t.Fatalf("bogus token: expected ErrInvalidResetToken, got %v", err)
	}

	if err := svc.ResetPassword(ctx, token, "newpassword123"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "hunter2hunter2"); !errors.Is(err, errs.ErrBadCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "alice@example.com", "newpassword123"); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}

	// Tokens are single-use.
	if err := svc.ResetPassword(ctx, token, "anotherpassword1"); !errors.Is(err, errs.ErrInvalidResetToken) {
		t.Fatalf("consumed token: expected ErrInvalidResetToken, got %v", err)
	}
}

func TestResetPasswordExpiredToken(t *testing.T) {
	store := newMemUserStore()
	svc := NewAuthService(store, "test-secret")
	ctx := context.Background()

	user, _, err := svc.Register(ctx, "bob@example.com", "hunter2hunter2", "Bob")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if err := store.SetResetToken(ctx, user.ID, "stale-token", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("SetResetToken: %v", err)
	}

	if err := svc.ResetPassword(ctx, "stale-token", "newpassword123"); !errors.Is(err, errs.ErrInvalidResetToken) {
		t.Fatalf("expired token: expected ErrInvalidResetToken, got %v", err)
	}
}

func TestValidateJWTRejectsForgedToken(t *testing.T) {
	svc := NewAuthService(newMemUserStore(), "test-secret")
	other := NewAuthService(newMemUserStore(), "different-secret")

	token, err := other.GenerateJWT("mallory")
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := svc.ValidateJWT(token); err == nil {
		t.Fatalf("token signed with a different secret must be rejected")
	}
}
