package validation

import (
	"context"
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/protocol"
)

// compiledSet is the per-game-type triple of compiled validators.
type compiledSet struct {
	init   *gojsonschema.Schema
	action *gojsonschema.Schema
	end    *gojsonschema.Schema
}

func (s *compiledSet) forPhase(phase protocol.Phase) *gojsonschema.Schema {
	switch phase {
	case protocol.PhaseInit:
		return s.init
	case protocol.PhaseEnd:
		return s.end
	default:
		return s.action
	}
}

// Cache validates game payloads against compiled schemas, compiling each
// game type's set once on first use. Flush drops every compiled set; a
// validation already in flight may still finish against the pre-flush
// compilation.
// All methods are safe for concurrent use.
type Cache struct {
	mu     sync.RWMutex
	store  Store
	sets   map[string]*compiledSet // game type → compiled triple
	logger *zap.Logger
}

// NewCache creates an empty Cache reading through the given store.
//
// Precondition: store and logger must be non-nil.
func NewCache(store Store, logger *zap.Logger) *Cache {
	return &Cache{
		store:  store,
		sets:   make(map[string]*compiledSet),
		logger: logger,
	}
}

// Validate checks a payload against the game type's schema for the given
// phase.
//
// Postcondition: Returns a nil or empty slice when the payload is valid, a
// non-empty slice of human-readable violations when it is not,
// ErrSchemaNotFound when the store has no entry for the game type, or a
// wrapped error when the stored schemas fail to load or compile.
func (c *Cache) Validate(ctx context.Context, gameType string, phase protocol.Phase, payload string) ([]string, error) {
	set, err := c.compiled(ctx, gameType)
	if err != nil {
		return nil, err
	}

	result, err := set.forPhase(phase).Validate(gojsonschema.NewStringLoader(payload))
	if err != nil {
		// The payload itself is not parseable JSON. Report it as a
		// violation rather than a server fault.
		return []string{fmt.Sprintf("payload is not valid JSON: %v", err)}, nil
	}
	if result.Valid() {
		return nil, nil
	}

	violations := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		violations = append(violations, resultErr.String())
	}
	return violations, nil
}

// Flush drops every compiled schema set. Called whenever a stored schema is
// created, updated or deleted.
func (c *Cache) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := len(c.sets)
	c.sets = make(map[string]*compiledSet)
	c.logger.Info("schema cache flushed",
		zap.Int("dropped", dropped),
	)
}

// Len returns the number of cached game types.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sets)
}

// compiled returns the compiled set for the game type, loading and
// compiling it from the store on a miss.
func (c *Cache) compiled(ctx context.Context, gameType string) (*compiledSet, error) {
	c.mu.RLock()
	set, ok := c.sets[gameType]
	c.mu.RUnlock()
	if ok {
		return set, nil
	}

	raw, err := c.store.Get(ctx, gameType)
	if err != nil {
		return nil, err
	}
	set, err = compile(raw)
	if err != nil {
		return nil, fmt.Errorf("compiling schemas for game type %q: %w", gameType, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another handler may have compiled the same set while we were; keep
	// the first one so both goroutines observe a single compilation.
	if existing, ok := c.sets[gameType]; ok {
		return existing, nil
	}
	c.sets[gameType] = set

	c.logger.Debug("compiled schema set",
		zap.String("game_type", gameType),
	)
	return set, nil
}

func compile(raw SchemaSet) (*compiledSet, error) {
	initSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw.Init))
	if err != nil {
		return nil, fmt.Errorf("init schema: %w", err)
	}
	actionSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw.Action))
	if err != nil {
		return nil, fmt.Errorf("action schema: %w", err)
	}
	endSchema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(raw.End))
	if err != nil {
		return nil, fmt.Errorf("end schema: %w", err)
	}
	return &compiledSet{init: initSchema, action: actionSchema, end: endSchema}, nil
}
