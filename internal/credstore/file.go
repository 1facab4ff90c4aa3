package credstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type fileUser struct {
	Username     string   `yaml:"username"`
	PasswordHash string   `yaml:"password_hash"`
	Role         string   `yaml:"role"`
	Permissions  []string `yaml:"permissions"`
}

type fileConfig struct {
	Users []fileUser `yaml:"users"`
}

// FileStore is a read-only Store loaded from a YAML user file at startup.
type FileStore struct {
	records map[string]*Record
}

// LoadFile reads and parses the YAML user file at path.
func LoadFile(path string) (*FileStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse credentials file: %w", err)
	}

	fs := &FileStore{records: make(map[string]*Record, len(cfg.Users))}
	for _, u := range cfg.Users {
		if u.Username == "" || u.PasswordHash == "" {
			return nil, fmt.Errorf("credentials file: entry missing username or password_hash")
		}
		role := u.Role
		if role == "" {
			role = "user"
		}
		fs.records[u.Username] = &Record{
			Identifier:  u.Username,
			SecretHash:  u.PasswordHash,
			Role:        role,
			Permissions: u.Permissions,
		}
	}
	return fs, nil
}

func (s *FileStore) Lookup(identifier string) (*Record, error) {
	return s.records[identifier], nil
}

// Len returns the number of loaded user records.
func (s *FileStore) Len() int {
	return len(s.records)
}
