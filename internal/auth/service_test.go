package auth

import (
	"context"
	"errors"
	"testing"
)

func TestRegisterAndLogin(t *testing.T) {
	svc := NewService(NewInMemoryUsers())
	ctx := context.Background()

	u, err := svc.Register(ctx, "alice", "alice@example.org", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.PasswordHash == "pw123" {
		t.Fatal("password must not be stored in plaintext")
	}
	if u.IsStaff || u.IsSuperuser {
		t.Fatal("fresh accounts must not carry admin flags")
	}

	got, err := svc.Login(ctx, "alice", "pw123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("login resolved wrong user: %s != %s", got.ID, u.ID)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc := NewService(NewInMemoryUsers())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "alice@example.org", "pw123"); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "alice", "other@example.org", "pw456"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if _, err := svc.Register(ctx, "bob", "alice@example.org", "pw456"); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate email, got %v", err)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewService(NewInMemoryUsers())
	ctx := context.Background()

	if _, err := svc.Register(ctx, "alice", "", "pw123"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	cases := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "alice", "nope"},
		{"unknown user", "mallory", "pw123"},
		{"empty password", "alice", ""},
		{"empty username", "", "pw123"},
	}
	for _, tc := range cases {
		if _, err := svc.Login(ctx, tc.username, tc.password); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("%s: expected ErrInvalidCredentials, got %v", tc.name, err)
		}
	}
}

func TestResolveReadsRolesFromStore(t *testing.T) {
	store := NewInMemoryUsers()
	svc := NewService(store)
	ctx := context.Background()

	u, err := svc.Register(ctx, "carol", "carol@example.org", "pw123")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	p, err := svc.Resolve(ctx, u.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.IsAdmin() {
		t.Fatal("unexpected admin capability")
	}
	if _, err := svc.Resolve(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestEnsureAdmin(t *testing.T) {
	store := NewInMemoryUsers()
	svc := NewService(store)
	ctx := context.Background()

	if err := svc.EnsureAdmin(ctx, "root", "root@example.org", "pw123"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	u, err := store.FindByUsername(ctx, "root")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if !u.IsStaff || !u.IsSuperuser {
		t.Fatal("bootstrap admin must carry both role flags")
	}

	// Second call is a no-op.
	if err := svc.EnsureAdmin(ctx, "root", "root@example.org", "different"); err != nil {
		t.Fatalf("EnsureAdmin (repeat): %v", err)
	}
	again, _ := store.FindByUsername(ctx, "root")
	if again.PasswordHash != u.PasswordHash {
		t.Fatal("repeat bootstrap must not rewrite the password")
	}

	// Blank config disables bootstrap entirely.
	if err := svc.EnsureAdmin(ctx, "", "", ""); err != nil {
		t.Fatalf("EnsureAdmin (blank): %v", err)
	}
}
