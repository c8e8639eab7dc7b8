package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Durable is the single-blob-per-component contract from the durable
// entity design: each stateful component (coordinator, sync engine,
// healer) hydrates its whole state from one row on construction and
// writes it back whole on every mutation.
type Durable interface {
	Load(ctx context.Context, component string, out interface{}) (bool, error)
	Save(ctx context.Context, component string, state interface{}) error
}

// PgDurable implements Durable on top of a single Postgres table,
// generalizing the upsert-by-id pattern from the backup store's
// PgStore.SaveJob into a one-row-per-component JSONB blob.
type PgDurable struct {
	pool *pgxpool.Pool
}

// NewPgDurable creates a PgDurable backed by the given pool. The caller is
// responsible for ensuring the component_state table exists:
//
//	CREATE TABLE IF NOT EXISTS component_state (
//		name TEXT PRIMARY KEY,
//		data JSONB NOT NULL,
//		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
func NewPgDurable(pool *pgxpool.Pool) *PgDurable {
	return &PgDurable{pool: pool}
}

// Load reads the component's state blob into out. It returns (false, nil)
// if no row exists yet, so callers can distinguish "never persisted" from
// an actual error.
func (d *PgDurable) Load(ctx context.Context, component string, out interface{}) (bool, error) {
	var raw []byte
	err := d.pool.QueryRow(ctx,
		`SELECT data FROM component_state WHERE name = $1`, component).Scan(&raw)
	if err != nil {
		if isNoRows(err) {
			return false, nil
		}
		return false, fmt.Errorf("durable: load %q: %w", component, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("durable: unmarshal %q: %w", component, err)
	}
	return true, nil
}

// Save writes the component's entire state blob, replacing any prior value.
func (d *PgDurable) Save(ctx context.Context, component string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("durable: marshal %q: %w", component, err)
	}
	_, err = d.pool.Exec(ctx, `
		INSERT INTO component_state (name, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET data = $2, updated_at = now()`,
		component, raw)
	if err != nil {
		return fmt.Errorf("durable: save %q: %w", component, err)
	}
	return nil
}

func isNoRows(err error) bool {
	return err != nil && err.Error() == "no rows in result set"
}

// MemDurable is an in-memory Durable used in tests and as a local-dev
// fallback when no database pool is configured, mirroring the
// dbPool-may-be-nil pattern in the teacher's cmd/main.go.
type MemDurable struct {
	blobs map[string][]byte
}

// NewMemDurable creates an empty MemDurable.
func NewMemDurable() *MemDurable {
	return &MemDurable{blobs: make(map[string][]byte)}
}

func (m *MemDurable) Load(ctx context.Context, component string, out interface{}) (bool, error) {
	raw, ok := m.blobs[component]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("durable: unmarshal %q: %w", component, err)
	}
	return true, nil
}

func (m *MemDurable) Save(ctx context.Context, component string, state interface{}) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("durable: marshal %q: %w", component, err)
	}
	m.blobs[component] = raw
	return nil
}
