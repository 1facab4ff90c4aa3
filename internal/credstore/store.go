// Package credstore provides lookup of stored user credentials by identifier.
//
// Two production implementations exist: a sqlite-backed store (the default)
// and a read-only YAML file store for deployments that manage users outside
// the database. Both return the same Record shape consumed by the credential
// verifier.
package credstore

// Record is one stored credential entry.
type Record struct {
	Identifier  string
	SecretHash  string
	Role        string
	Permissions []string
}

// Store looks up credential records. Lookup returns (nil, nil) when no
// record exists for the identifier; a non-nil error means the store itself
// failed.
type Store interface {
	Lookup(identifier string) (*Record, error)
}

// Memory is an in-memory Store keyed by identifier.
type Memory struct {
	records map[string]*Record
}

// NewMemory builds an in-memory store from the given records.
func NewMemory(records ...*Record) *Memory {
	m := &Memory{records: make(map[string]*Record, len(records))}
	for _, r := range records {
		m.records[r.Identifier] = r
	}
	return m
}

func (m *Memory) Lookup(identifier string) (*Record, error) {
	return m.records[identifier], nil
}
