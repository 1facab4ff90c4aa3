package auth

import (
	"errors"
	"testing"

	"github.com/euem/sshbridge/internal/credstore"
)

func testStore(t *testing.T) credstore.Store {
	t.Helper()
	hash, err := HashPassword("correct")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return credstore.NewMemory(&credstore.Record{
		Identifier:  "alice",
		SecretHash:  hash,
		Role:        "user",
		Permissions: []string{"ssh:connect", "ssh:data", "ssh:disconnect"},
	})
}

func TestVerifier_Success(t *testing.T) {
	v := NewVerifier(testStore(t))

	p, err := v.Verify("alice", "correct")
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if p.Identifier != "alice" {
		t.Errorf("expected identifier alice, got %q", p.Identifier)
	}
	if p.Role != "user" {
		t.Errorf("expected role user, got %q", p.Role)
	}
	if len(p.Permissions) != 3 {
		t.Errorf("expected 3 permissions, got %v", p.Permissions)
	}
}

func TestVerifier_WrongSecret(t *testing.T) {
	v := NewVerifier(testStore(t))

	if _, err := v.Verify("alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestVerifier_UnknownIdentifier(t *testing.T) {
	v := NewVerifier(testStore(t))

	if _, err := v.Verify("mallory", "correct"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestPrincipal_HasPermission(t *testing.T) {
	p := &Principal{
		Identifier:  "alice",
		Role:        "user",
		Permissions: []string{"ssh:connect", "ssh:data"},
	}

	if !p.HasPermission("ssh:connect") {
		t.Error("expected ssh:connect to be granted")
	}
	if p.HasPermission("system:monitor") {
		t.Error("expected system:monitor to be denied")
	}
}

func TestCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if !CheckPassword("s3cret", hash) {
		t.Error("expected matching password to verify")
	}
	if CheckPassword("other", hash) {
		t.Error("expected mismatched password to fail")
	}
}
