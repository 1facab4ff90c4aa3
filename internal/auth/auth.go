// Package auth verifies user credentials against a credential store and
// models the authenticated principal carried through a session.
package auth

import (
	"errors"

	"github.com/euem/sshbridge/internal/credstore"
	"golang.org/x/crypto/bcrypt"
)

const BcryptCost = 12

// ErrInvalidCredentials is returned for an unknown identifier or a secret
// that does not match the stored hash. Callers must not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Principal is an authenticated identity with its role and permission set.
// It is immutable once issued; privileged operations reconstruct it from a
// verified token rather than trusting session memory.
type Principal struct {
	Identifier  string
	Role        string
	Permissions []string
}

// HasPermission reports whether the principal's permission set contains the
// given capability token.
func (p *Principal) HasPermission(perm string) bool {
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a plaintext password against a bcrypt hash.
// bcrypt.CompareHashAndPassword is constant-time in the password.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// Verifier authenticates identifier/secret pairs against a credential store.
type Verifier struct {
	store credstore.Store
}

func NewVerifier(store credstore.Store) *Verifier {
	return &Verifier{store: store}
}

// dummyHash is compared against when the identifier is unknown so that
// lookup misses cost the same as a mismatched secret.
var dummyHash, _ = HashPassword("sshbridge-dummy-password")

// Verify looks up the identifier and checks the secret against the stored
// hash. Both a missing record and a mismatched secret yield
// ErrInvalidCredentials.
func (v *Verifier) Verify(identifier, secret string) (*Principal, error) {
	record, err := v.store.Lookup(identifier)
	if err != nil {
		return nil, err
	}
	if record == nil {
		CheckPassword(secret, dummyHash)
		return nil, ErrInvalidCredentials
	}
	if !CheckPassword(secret, record.SecretHash) {
		return nil, ErrInvalidCredentials
	}
	return &Principal{
		Identifier:  record.Identifier,
		Role:        record.Role,
		Permissions: record.Permissions,
	}, nil
}
