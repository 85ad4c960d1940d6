package game

import (
	"fmt"
	"sync"
)

// ConnectionRegistry maps live connection handles to players. It is pure
// bookkeeping: the gateway registers a player when a connection is accepted
// and unregisters it when the connection closes.
// All methods are safe for concurrent use.
type ConnectionRegistry struct {
	mu      sync.RWMutex
	players map[string]*Player // connection handle → player
}

// NewConnectionRegistry creates an empty ConnectionRegistry.
func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		players: make(map[string]*Player),
	}
}

// Register adds a player keyed by its connection handle.
//
// Postcondition: The player is tracked, or an error if the handle is
// already registered.
func (r *ConnectionRegistry) Register(p *Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.players[p.ID()]; exists {
		return fmt.Errorf("connection %q already registered", p.ID())
	}
	r.players[p.ID()] = p
	return nil
}

// Unregister removes and returns the player for the given handle.
//
// Postcondition: Returns (player, true) if it was registered, (nil, false)
// otherwise.
func (r *ConnectionRegistry) Unregister(id string) (*Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[id]
	if !ok {
		return nil, false
	}
	delete(r.players, id)
	return p, true
}

// Get returns the player for the given connection handle.
func (r *ConnectionRegistry) Get(id string) (*Player, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.players[id]
	return p, ok
}

// All returns a snapshot of every registered player.
func (r *ConnectionRegistry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Count returns the number of registered players.
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// GameRegistry owns the canonical map from session ID to game instance.
// Session IDs are the only uniqueness constraint: game types may repeat
// across instances.
// All methods are safe for concurrent use; the Coordinator additionally
// serializes every mutation against its own create/join/leave/reap cycle.
type GameRegistry struct {
	mu    sync.RWMutex
	games map[string]*GameInstance // session ID → instance
}

// NewGameRegistry creates an empty GameRegistry.
func NewGameRegistry() *GameRegistry {
	return &GameRegistry{
		games: make(map[string]*GameInstance),
	}
}

// Add inserts an instance if its session ID is not yet present. The
// existence check and the insert are a single atomic step.
//
// Postcondition: Returns true and tracks the instance, or false if the
// session ID is already taken.
func (r *GameRegistry) Add(g *GameInstance) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.games[g.SessionID()]; exists {
		return false
	}
	r.games[g.SessionID()] = g
	return true
}

// Remove deletes the instance from the registry.
func (r *GameRegistry) Remove(g *GameInstance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.games, g.SessionID())
}

// BySessionID returns the instance for the given session ID.
func (r *GameRegistry) BySessionID(id string) (*GameInstance, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	g, ok := r.games[id]
	return g, ok
}

// All returns a snapshot of every live instance.
func (r *GameRegistry) All() []*GameInstance {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*GameInstance, 0, len(r.games))
	for _, g := range r.games {
		out = append(out, g)
	}
	return out
}

// Len returns the number of live instances.
func (r *GameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.games)
}
