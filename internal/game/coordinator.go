package game

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/protocol"
)

// Coordinator owns the state transitions between players and game
// instances: create, join, leave and orphan reaping. A player is in one of
// three states — unassociated, hosting, or joined — and can never belong to
// two instances at once.
//
// One coarse mutex serializes every operation and every access to
// Player.current, GameInstance.members and the orphan timestamps. Under
// expected load (tens of concurrent sessions) this is deliberate; nothing
// here blocks on I/O while holding the lock.
type Coordinator struct {
	mu     sync.Mutex
	games  *GameRegistry
	logger *zap.Logger

	orphanTimeout time.Duration
	now           func() time.Time
}

// NewCoordinator creates a Coordinator over the given registry.
//
// Precondition: games and logger must be non-nil; orphanTimeout must be
// positive.
func NewCoordinator(games *GameRegistry, orphanTimeout time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		games:         games,
		logger:        logger,
		orphanTimeout: orphanTimeout,
		now:           time.Now,
	}
}

// CreateGame opens a new instance with the initiator as its first member.
// The duplicate-session check and the insert are one atomic unit: of any
// number of simultaneous creates with the same session ID, exactly one
// succeeds.
//
// Postcondition: Returns SUCCESS and associates the initiator, or
// ALREADY_ASSOCIATED_WITH_GAME / SESSION_ID_ALREADY_EXISTS without side
// effects.
func (c *Coordinator) CreateGame(gameType, sessionID string, initiator *Player) protocol.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	if initiator.current != nil {
		return protocol.StatusAlreadyAssociated
	}

	g := NewGameInstance(gameType, sessionID, initiator)
	if !c.games.Add(g) {
		return protocol.StatusSessionIDExists
	}
	initiator.current = g

	c.logger.Info("game created",
		zap.String("session_id", sessionID),
		zap.String("game_type", gameType),
		zap.String("initializer", initiator.Name()),
	)
	return protocol.StatusSuccess
}

// JoinGame adds the player to the instance with the given session ID. On
// SUCCESS the orphan timestamp is cleared in the same exclusive region and
// the other members are returned for notification fan-out.
//
// Postcondition: Returns SUCCESS with the other members, or
// ALREADY_ASSOCIATED_WITH_GAME / INVALID_SESSION_ID /
// PLAYER_NAME_ALREADY_TAKEN with a nil slice.
func (c *Coordinator) JoinGame(p *Player, sessionID string) (protocol.Status, []*Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.current != nil {
		return protocol.StatusAlreadyAssociated, nil
	}
	g, ok := c.games.BySessionID(sessionID)
	if !ok {
		return protocol.StatusInvalidSessionID, nil
	}
	if g.nameTaken(p.Name()) {
		return protocol.StatusNameTaken, nil
	}

	g.add(p, c.now())
	p.current = g

	c.logger.Info("player joined game",
		zap.String("session_id", sessionID),
		zap.String("player", p.Name()),
		zap.Int("members", len(g.members)),
	)
	return protocol.StatusSuccess, g.snapshot(p)
}

// LeaveGame removes the player from its current instance. If the member
// list empties, the instance becomes an orphan candidate but is not
// removed; only the reaper destroys orphans.
//
// Postcondition: Returns SUCCESS with the remaining members, or
// NO_ASSOCIATED_GAME with a nil slice. The player is unassociated either
// way.
func (c *Coordinator) LeaveGame(p *Player) (protocol.Status, []*Player) {
	c.mu.Lock()
	defer c.mu.Unlock()

	g := p.current
	if g == nil {
		return protocol.StatusNoGame, nil
	}

	g.remove(p, c.now())
	p.current = nil

	c.logger.Info("player left game",
		zap.String("session_id", g.SessionID()),
		zap.String("player", p.Name()),
		zap.Int("members", len(g.members)),
	)
	return protocol.StatusSuccess, g.snapshot(nil)
}

// GameOf returns the game type of the player's current instance and the
// other members, for payload validation and broadcast fan-out.
//
// Postcondition: Returns ("", nil, false) when the player is unassociated.
func (c *Coordinator) GameOf(p *Player) (string, []*Player, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p.current == nil {
		return "", nil, false
	}
	return p.current.GameType(), p.current.snapshot(p), true
}

// ReapOrphans removes every instance that has been empty of members for
// longer than the orphan timeout. It runs under the same exclusion as
// join, so a join that clears the orphan timestamp can never interleave
// with the read-then-remove here.
//
// Postcondition: Returns the number of instances removed. Reaping is
// idempotent: a second immediate scan removes nothing new.
func (c *Coordinator) ReapOrphans() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	now := c.now()
	for _, g := range c.games.All() {
		if g.orphanSince.IsZero() {
			continue
		}
		if now.Sub(g.orphanSince) > c.orphanTimeout {
			c.games.Remove(g)
			removed++
			c.logger.Info("removed orphaned game",
				zap.String("session_id", g.SessionID()),
				zap.String("game_type", g.GameType()),
				zap.Duration("orphaned_for", now.Sub(g.orphanSince)),
			)
		}
	}
	return removed
}
