package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryTokenStore()

	limit := 30
	record := &ClientToken{
		ID:           "tok-1",
		TokenPrefix:  "abcdef012345",
		TokenHash:    "deadbeef",
		Description:  "first",
		AllowedTools: []string{"tavily_search"},
		RateLimit:    &limit,
		CreatedAt:    time.Now(),
	}

	t.Run("put and lookup", func(t *testing.T) {
		if err := store.Put(ctx, record); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		got, err := store.LookupByPrefix(ctx, "abcdef012345")
		if err != nil {
			t.Fatalf("LookupByPrefix() error = %v", err)
		}
		if got == nil || got.ID != "tok-1" {
			t.Fatalf("LookupByPrefix() = %v", got)
		}
	})

	t.Run("lookup returns a copy", func(t *testing.T) {
		got, _ := store.LookupByPrefix(ctx, "abcdef012345")
		got.AllowedTools[0] = "mutated"
		*got.RateLimit = 999

		again, _ := store.LookupByPrefix(ctx, "abcdef012345")
		if again.AllowedTools[0] != "tavily_search" {
			t.Error("store record aliased through AllowedTools")
		}
		if *again.RateLimit != 30 {
			t.Error("store record aliased through RateLimit")
		}
	})

	t.Run("lookup not found", func(t *testing.T) {
		got, err := store.LookupByPrefix(ctx, "nothere")
		if err != nil {
			t.Fatalf("LookupByPrefix() error = %v", err)
		}
		if got != nil {
			t.Errorf("LookupByPrefix() = %v, want nil", got)
		}
	})

	t.Run("mark revoked unknown", func(t *testing.T) {
		if err := store.MarkRevoked(ctx, "missing", time.Now()); !errors.Is(err, ErrTokenUnknown) {
			t.Errorf("MarkRevoked() error = %v, want ErrTokenUnknown", err)
		}
	})

	t.Run("list creation order", func(t *testing.T) {
		if err := store.Put(ctx, &ClientToken{ID: "tok-2", TokenPrefix: "222222222222"}); err != nil {
			t.Fatal(err)
		}
		tokens, err := store.List(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(tokens) != 2 || tokens[0].ID != "tok-1" || tokens[1].ID != "tok-2" {
			t.Errorf("List() order wrong: %v", tokens)
		}
	})
}

func TestClientToken_Lifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	tok := &ClientToken{}
	if tok.Revoked() {
		t.Error("zero RevokedAt reported as revoked")
	}
	if tok.Expired(now) {
		t.Error("zero ExpiresAt reported as expired")
	}

	tok.ExpiresAt = now.Add(time.Minute)
	if tok.Expired(now) {
		t.Error("future expiry reported as expired")
	}
	if !tok.Expired(now.Add(2 * time.Minute)) {
		t.Error("past expiry not reported")
	}
}

func TestClientToken_IdentityOptionalFields(t *testing.T) {
	t.Run("absent stays absent", func(t *testing.T) {
		id := (&ClientToken{ID: "t"}).Identity()
		if id.AllowedTools != nil {
			t.Errorf("AllowedTools = %v, want nil", id.AllowedTools)
		}
		if id.RateLimit != nil {
			t.Errorf("RateLimit = %v, want nil", id.RateLimit)
		}
		if !id.Unrestricted() {
			t.Error("identity without allowlist not unrestricted")
		}
	})

	t.Run("empty allowlist preserved", func(t *testing.T) {
		id := (&ClientToken{ID: "t", AllowedTools: []string{}}).Identity()
		if id.AllowedTools == nil {
			t.Error("empty allowlist collapsed to nil")
		}
		if id.ToolAllowed("anything") {
			t.Error("empty allowlist permitted a tool")
		}
	})
}
