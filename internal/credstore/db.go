package credstore

import (
	"errors"
	"strings"

	"github.com/euem/sshbridge/internal/database"
	"gorm.io/gorm"
)

// DBStore looks up users in the sqlite database. database.Init must have
// been called before use.
type DBStore struct{}

func NewDBStore() *DBStore {
	return &DBStore{}
}

func (s *DBStore) Lookup(identifier string) (*Record, error) {
	user, err := database.GetUserByUsername(identifier)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &Record{
		Identifier:  user.Username,
		SecretHash:  user.PasswordHash,
		Role:        user.Role,
		Permissions: SplitPermissions(user.Permissions),
	}, nil
}

// SplitPermissions parses the comma-separated permissions column into a
// clean slice, dropping empty entries.
func SplitPermissions(s string) []string {
	var perms []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			perms = append(perms, p)
		}
	}
	return perms
}
