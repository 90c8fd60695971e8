package api

import (
	"context"
	"testing"
)

// TestWithUserID_RoundTrip verifies the user ID can be added and extracted from context.
func TestWithUserID_RoundTrip(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")

	got, err := UserIDFromContext(ctx)
	if err != nil {
		t.Fatalf("UserIDFromContext returned error: %v", err)
	}
	if got != "user-42" {
		t.Errorf("UserIDFromContext() = %q, want %q", got, "user-42")
	}
}

func TestUserIDFromContext_Missing(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	if err != ErrNoUserInContext {
		t.Errorf("error = %v, want ErrNoUserInContext", err)
	}
}

func TestUserIDFromContext_Empty(t *testing.T) {
	ctx := WithUserID(context.Background(), "")

	_, err := UserIDFromContext(ctx)
	if err != ErrNoUserInContext {
		t.Errorf("error = %v, want ErrNoUserInContext", err)
	}
}

func TestMustUserIDFromContext_Panics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("MustUserIDFromContext did not panic")
		}
	}()

	MustUserIDFromContext(context.Background())
}

func TestMustUserIDFromContext_Success(t *testing.T) {
	ctx := WithUserID(context.Background(), "user-42")

	if got := MustUserIDFromContext(ctx); got != "user-42" {
		t.Errorf("MustUserIDFromContext() = %q, want %q", got, "user-42")
	}
}
