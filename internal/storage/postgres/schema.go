package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

// SchemaRecord is one stored schema set with its bookkeeping columns.
type SchemaRecord struct {
	GameType  string
	Set       validation.SchemaSet
	UpdatedAt time.Time
}

// SchemaRepository persists per-game-type JSON Schema sets. It implements
// validation.Store for the broker's read path; the admin API uses the
// mutating methods and flushes the schema cache afterwards.
type SchemaRepository struct {
	db *pgxpool.Pool
}

// NewSchemaRepository creates a SchemaRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewSchemaRepository(db *pgxpool.Pool) *SchemaRepository {
	return &SchemaRepository{db: db}
}

// Get returns the schema set for the game type.
//
// Postcondition: Returns the set, or validation.ErrSchemaNotFound when no
// row exists.
func (r *SchemaRepository) Get(ctx context.Context, gameType string) (validation.SchemaSet, error) {
	var set validation.SchemaSet
	err := r.db.QueryRow(ctx,
		`SELECT init_schema, action_schema, end_schema
		 FROM game_schemas WHERE game_type = $1`,
		gameType,
	).Scan(&set.Init, &set.Action, &set.End)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return validation.SchemaSet{}, fmt.Errorf("game type %q: %w", gameType, validation.ErrSchemaNotFound)
		}
		return validation.SchemaSet{}, fmt.Errorf("querying schema set: %w", err)
	}
	return set, nil
}

// Exists reports whether a schema set is stored for the game type.
func (r *SchemaRepository) Exists(ctx context.Context, gameType string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM game_schemas WHERE game_type = $1)`,
		gameType,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking schema set: %w", err)
	}
	return exists, nil
}

// Save upserts the schema set for the game type.
//
// Precondition: gameType must be non-empty; callers must have compiled the
// set to reject malformed schemas.
// Postcondition: A subsequent Get returns the given set.
func (r *SchemaRepository) Save(ctx context.Context, gameType string, set validation.SchemaSet) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO game_schemas (game_type, init_schema, action_schema, end_schema, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (game_type) DO UPDATE
		 SET init_schema = EXCLUDED.init_schema,
		     action_schema = EXCLUDED.action_schema,
		     end_schema = EXCLUDED.end_schema,
		     updated_at = now()`,
		gameType, set.Init, set.Action, set.End,
	)
	if err != nil {
		return fmt.Errorf("upserting schema set: %w", err)
	}
	return nil
}

// Delete removes the schema set for the game type.
//
// Postcondition: Returns validation.ErrSchemaNotFound when no row existed.
func (r *SchemaRepository) Delete(ctx context.Context, gameType string) error {
	tag, err := r.db.Exec(ctx,
		`DELETE FROM game_schemas WHERE game_type = $1`,
		gameType,
	)
	if err != nil {
		return fmt.Errorf("deleting schema set: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("game type %q: %w", gameType, validation.ErrSchemaNotFound)
	}
	return nil
}

// ListGameTypes returns every stored game type, ordered.
func (r *SchemaRepository) ListGameTypes(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT game_type FROM game_schemas ORDER BY game_type`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing game types: %w", err)
	}
	defer rows.Close()

	var types []string
	for rows.Next() {
		var gameType string
		if err := rows.Scan(&gameType); err != nil {
			return nil, fmt.Errorf("scanning game type: %w", err)
		}
		types = append(types, gameType)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating game types: %w", err)
	}
	return types, nil
}
