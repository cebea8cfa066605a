package trace

import (
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx" driver
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// maxVaults bounds how many vaults are retained; old runs are pruned on
// vault creation.
const maxVaults = 100

// PGStore persists trace data to PostgreSQL.
type PGStore struct {
	db *sql.DB
}

// Open connects to a PostgreSQL trace database at connStr.
func Open(connStr string) (*PGStore, error) {
	db, err := sql.Open("pgx", connStr)
	if err != nil {
		return nil, fmt.Errorf("trace open: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace ping: %w", err)
	}
	if err = migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace migrate: %w", err)
	}
	return &PGStore{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`)
	if err != nil {
		return err
	}

	var current int
	row := db.QueryRow(`SELECT COALESCE(MAX(version), -1) FROM schema_version`)
	if err = row.Scan(&current); err != nil {
		return err
	}

	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	for i := current + 1; i < len(entries); i++ {
		data, readErr := migrationFS.ReadFile("migrations/" + entries[i].Name())
		if readErr != nil {
			return fmt.Errorf("read migration %d: %w", i, readErr)
		}
		if _, execErr := db.Exec(string(data)); execErr != nil {
			return fmt.Errorf("migration %d: %w", i, execErr)
		}
		if _, execErr := db.Exec(`INSERT INTO schema_version (version) VALUES ($1)`, i); execErr != nil {
			return fmt.Errorf("migration %d record: %w", i, execErr)
		}
	}
	return nil
}

// Close closes the database.
func (s *PGStore) Close() error {
	return s.db.Close()
}

// CreateVault inserts a new vault and prunes old ones.
func (s *PGStore) CreateVault(key string) error {
	_, err := s.db.Exec(
		`INSERT INTO vaults (key, created_at) VALUES ($1, $2)`,
		key, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`DELETE FROM vaults WHERE key NOT IN (SELECT key FROM vaults ORDER BY created_at DESC LIMIT $1)`,
		maxVaults,
	)
	return err
}

// AppendRecords inserts a batch of records in one transaction.
func (s *PGStore) AppendRecords(vaultKey string, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO trace_records
		 (vault_key, trace_id, parent_id, trace_type, filepath, start_line, start_col, end_line, end_col, ts, duration_ns, return_value, error_msg)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		var dur sql.NullInt64
		if rec.DurationNs != nil {
			dur = sql.NullInt64{Int64: *rec.DurationNs, Valid: true}
		}
		_, err = stmt.Exec(
			vaultKey, rec.TraceID, rec.ParentID, rec.Kind.String(),
			rec.StartPos.Filepath, rec.StartPos.Line, rec.StartPos.Column,
			rec.EndPos.Line, rec.EndPos.Column,
			rec.Timestamp, dur, rec.ReturnValue, rec.ErrorMessage,
		)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Records returns all records of a vault in insertion order.
func (s *PGStore) Records(vaultKey string) ([]Record, error) {
	rows, err := s.db.Query(
		`SELECT trace_id, parent_id, trace_type, filepath, start_line, start_col, end_line, end_col, ts, duration_ns, return_value, error_msg
		 FROM trace_records WHERE vault_key = $1 ORDER BY id ASC`,
		vaultKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var rec Record
		var kind string
		var dur sql.NullInt64
		err = rows.Scan(
			&rec.TraceID, &rec.ParentID, &kind,
			&rec.StartPos.Filepath, &rec.StartPos.Line, &rec.StartPos.Column,
			&rec.EndPos.Line, &rec.EndPos.Column,
			&rec.Timestamp, &dur, &rec.ReturnValue, &rec.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}
		rec.Kind = ParseKind(kind)
		if dur.Valid {
			d := dur.Int64
			rec.DurationNs = &d
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVaults returns vaults newest first, with record counts.
func (s *PGStore) ListVaults(limit, offset int) ([]Vault, int, error) {
	var total int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM vaults`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.Query(`
		SELECT v.key, v.created_at, COUNT(r.id) as record_count
		FROM vaults v
		LEFT JOIN trace_records r ON r.vault_key = v.key
		GROUP BY v.key, v.created_at
		ORDER BY v.created_at DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var vaults []Vault
	for rows.Next() {
		var v Vault
		if err = rows.Scan(&v.Key, &v.CreatedAt, &v.RecordCount); err != nil {
			return nil, 0, err
		}
		vaults = append(vaults, v)
	}
	return vaults, total, rows.Err()
}
