package trace

import "time"

// Vault identifies one instrumented run of a user project. All records pushed
// by the CLI for that run share the vault key.
type Vault struct {
	Key         string    `json:"key"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count,omitempty"`
}

// Store persists trace records per vault.
type Store interface {
	// CreateVault registers a new vault key.
	CreateVault(key string) error
	// AppendRecords adds records to a vault.
	AppendRecords(vaultKey string, records []Record) error
	// Records returns all records of a vault, in insertion order.
	Records(vaultKey string) ([]Record, error)
	// ListVaults returns vaults newest first, with record counts, plus the
	// total vault count.
	ListVaults(limit, offset int) ([]Vault, int, error)
	Close() error
}
