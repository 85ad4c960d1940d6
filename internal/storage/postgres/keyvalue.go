package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyNetworkSecret is the key holding the shared handshake secret.
const KeyNetworkSecret = "network-secret"

// ErrKeyNotFound is returned when a key-value lookup yields no results.
var ErrKeyNotFound = errors.New("key not found")

// KeyValueRepository persists broker-wide key-value settings, most notably
// the network secret checked during the connection handshake. It implements
// gateway.SecretSource.
type KeyValueRepository struct {
	db *pgxpool.Pool
}

// NewKeyValueRepository creates a KeyValueRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewKeyValueRepository(db *pgxpool.Pool) *KeyValueRepository {
	return &KeyValueRepository{db: db}
}

// Get returns the value stored under key.
//
// Postcondition: Returns the value, or ErrKeyNotFound when the key is absent.
func (r *KeyValueRepository) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRow(ctx,
		`SELECT value FROM key_values WHERE key = $1`,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("key %q: %w", key, ErrKeyNotFound)
		}
		return "", fmt.Errorf("querying key: %w", err)
	}
	return value, nil
}

// Set upserts the value stored under key.
func (r *KeyValueRepository) Set(ctx context.Context, key, value string) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO key_values (key, value)
		 VALUES ($1, $2)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("upserting key: %w", err)
	}
	return nil
}

// NetworkSecret returns the stored handshake secret. Read on every
// handshake so rotations through the admin API apply immediately.
func (r *KeyValueRepository) NetworkSecret(ctx context.Context) (string, error) {
	return r.Get(ctx, KeyNetworkSecret)
}

// SetNetworkSecret stores a new handshake secret.
//
// Precondition: secret must be non-empty.
func (r *KeyValueRepository) SetNetworkSecret(ctx context.Context, secret string) error {
	return r.Set(ctx, KeyNetworkSecret, secret)
}
