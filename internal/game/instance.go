package game

import (
	"time"
)

// GameInstance is one active play session. It is identified by a globally
// unique, caller-supplied session ID and typed by a game type that selects
// the schema set its payloads are validated against. Two instances of the
// same game type with different session IDs may coexist.
//
// The member list and the orphan timestamp are guarded by the Coordinator's
// mutex; instances are never mutated outside it.
type GameInstance struct {
	gameType    string
	sessionID   string
	initializer string

	members []*Player

	// orphanSince is the moment the last member left. Zero while the
	// instance has members. An instance orphaned for longer than the
	// configured threshold is removed by the reaper.
	orphanSince time.Time
}

// NewGameInstance creates an instance with the initializer as its first
// member.
//
// Precondition: gameType and sessionID must be non-empty; initializer must
// be non-nil.
func NewGameInstance(gameType, sessionID string, initializer *Player) *GameInstance {
	return &GameInstance{
		gameType:    gameType,
		sessionID:   sessionID,
		initializer: initializer.Name(),
		members:     []*Player{initializer},
	}
}

// GameType returns the instance's game type identifier.
func (g *GameInstance) GameType() string { return g.gameType }

// SessionID returns the instance's unique session identifier.
func (g *GameInstance) SessionID() string { return g.sessionID }

// Initializer returns the name of the player who created the instance.
func (g *GameInstance) Initializer() string { return g.initializer }

// add appends a member and refreshes the orphan timestamp.
// Caller must hold the Coordinator's mutex.
func (g *GameInstance) add(p *Player, now time.Time) {
	g.members = append(g.members, p)
	g.updateOrphaned(now)
}

// remove deletes a member and refreshes the orphan timestamp. Returns false
// when the player was not a member. Caller must hold the Coordinator's mutex.
func (g *GameInstance) remove(p *Player, now time.Time) bool {
	for i, m := range g.members {
		if m == p {
			g.members = append(g.members[:i], g.members[i+1:]...)
			g.updateOrphaned(now)
			return true
		}
	}
	return false
}

// updateOrphaned stamps the instance as an orphan candidate when the member
// list has just emptied and clears the stamp on any other membership change.
func (g *GameInstance) updateOrphaned(now time.Time) {
	if len(g.members) == 0 && g.orphanSince.IsZero() {
		g.orphanSince = now
	} else if len(g.members) > 0 {
		g.orphanSince = time.Time{}
	}
}

// nameTaken reports whether any current member carries the given name.
// Caller must hold the Coordinator's mutex.
func (g *GameInstance) nameTaken(name string) bool {
	for _, m := range g.members {
		if m.Name() == name {
			return true
		}
	}
	return false
}

// snapshot returns a copy of the member list, excluding the given player if
// non-nil. Caller must hold the Coordinator's mutex.
func (g *GameInstance) snapshot(except *Player) []*Player {
	out := make([]*Player, 0, len(g.members))
	for _, m := range g.members {
		if m != except {
			out = append(out, m)
		}
	}
	return out
}
