// Package validation provides per-game-type JSON Schema validation of game
// payloads, backed by a lazily populated compiled-schema cache.
package validation

import (
	"context"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

// ErrSchemaNotFound is returned when the schema store has no entry for a
// game type. It is the only error the cache surfaces for missing types;
// payload violations are reported as strings, not errors.
var ErrSchemaNotFound = errors.New("no schema set for game type")

// SchemaSet holds the three raw schema documents of one game type, one per
// protocol phase.
type SchemaSet struct {
	Init   string
	Action string
	End    string
}

// Store is the boundary to wherever schema sets live. The broker reads
// through it on cache misses; admin mutations happen behind it and must be
// followed by a cache flush.
type Store interface {
	// Get returns the schema set for the game type, or ErrSchemaNotFound.
	Get(ctx context.Context, gameType string) (SchemaSet, error)
	// Exists reports whether the store holds a set for the game type.
	Exists(ctx context.Context, gameType string) (bool, error)
}

// Compile checks that all three documents are well-formed JSON Schemas.
// Used to reject bad uploads before they reach the store.
//
// Postcondition: Returns nil if every document compiles, or an error naming
// the first offending phase.
func (s SchemaSet) Compile() error {
	for _, doc := range []struct {
		phase string
		text  string
	}{
		{"init", s.Init},
		{"action", s.Action},
		{"end", s.End},
	} {
		if _, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc.text)); err != nil {
			return fmt.Errorf("compiling %s schema: %w", doc.phase, err)
		}
	}
	return nil
}
