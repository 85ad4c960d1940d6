package game

import (
	"github.com/google/uuid"
)

// Player is one connected, named participant. A player's name is unique
// within its current game instance, not globally.
type Player struct {
	// id is the connection handle: opaque, unique per live connection.
	id   string
	name string

	outbox *Outbox

	// current is the game instance the player belongs to, or nil while
	// unassociated. Read and written only by the Coordinator while holding
	// its mutex.
	current *GameInstance
}

// NewPlayer creates a Player for a freshly accepted connection. The
// connection handle is a generated UUID.
//
// Precondition: name must be non-blank (enforced at the gateway handshake).
func NewPlayer(name string, outboxSize int) *Player {
	id := uuid.NewString()
	return &Player{
		id:     id,
		name:   name,
		outbox: NewOutbox(id, outboxSize),
	}
}

// ID returns the player's connection handle.
func (p *Player) ID() string { return p.id }

// Name returns the player's display name.
func (p *Player) Name() string { return p.name }

// Outbox returns the player's outbound frame buffer.
func (p *Player) Outbox() *Outbox { return p.outbox }
