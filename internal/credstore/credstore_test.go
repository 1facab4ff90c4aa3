package credstore

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMemory_Lookup(t *testing.T) {
	store := NewMemory(&Record{
		Identifier: "alice",
		SecretHash: "$2a$12$hash",
		Role:       "user",
	})

	r, err := store.Lookup("alice")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r == nil || r.Identifier != "alice" {
		t.Fatalf("expected alice record, got %+v", r)
	}

	r, err = store.Lookup("bob")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if r != nil {
		t.Errorf("expected nil for unknown identifier, got %+v", r)
	}
}

func TestFileStore_Load(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	content := `users:
  - username: alice
    password_hash: "$2a$12$abcdefghijklmnopqrstuv"
    role: user
    permissions: [ssh:connect, ssh:data]
  - username: bob
    password_hash: "$2a$12$abcdefghijklmnopqrstuv"
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	store, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if store.Len() != 2 {
		t.Fatalf("expected 2 users, got %d", store.Len())
	}

	alice, err := store.Lookup("alice")
	if err != nil || alice == nil {
		t.Fatalf("Lookup alice: %v, %+v", err, alice)
	}
	want := []string{"ssh:connect", "ssh:data"}
	if !reflect.DeepEqual(alice.Permissions, want) {
		t.Errorf("expected permissions %v, got %v", want, alice.Permissions)
	}

	// Role defaults to user when omitted.
	bob, _ := store.Lookup("bob")
	if bob == nil || bob.Role != "user" {
		t.Errorf("expected default role user, got %+v", bob)
	}
}

func TestFileStore_MissingFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yaml")
	if err := os.WriteFile(path, []byte("users:\n  - username: alice\n"), 0600); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for entry without password_hash")
	}
}

func TestSplitPermissions(t *testing.T) {
	got := SplitPermissions("ssh:connect, ssh:data ,,ssh:disconnect")
	want := []string{"ssh:connect", "ssh:data", "ssh:disconnect"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if got := SplitPermissions(""); got != nil {
		t.Errorf("expected nil for empty string, got %v", got)
	}
}
