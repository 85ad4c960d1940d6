// Package dispatch decodes inbound protocol frames, drives the session
// coordinator and schema cache, and fans replies and broadcasts out to
// player outboxes.
package dispatch

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/game"
	"github.com/cory-johannsen/tabletop-net/internal/protocol"
	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

// Dispatcher handles every inbound text frame for a connection. Frames from
// one connection arrive serialized (the gateway runs a single read loop per
// connection); frames from different connections run concurrently, bounded
// only by the coordinator's mutual exclusion.
//
// For every request the reply to the sender is pushed before any broadcast
// to the other members. A fault while handling one frame is confined to a
// logged SERVER_ERROR response; it never crosses to another connection.
type Dispatcher struct {
	coordinator *game.Coordinator
	schemas     *validation.Cache
	store       validation.Store
	logger      *zap.Logger
}

// NewDispatcher creates a Dispatcher.
//
// Precondition: all arguments must be non-nil.
func NewDispatcher(coordinator *game.Coordinator, schemas *validation.Cache, store validation.Store, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		coordinator: coordinator,
		schemas:     schemas,
		store:       store,
		logger:      logger,
	}
}

// HandleFrame processes one inbound text frame from the given player.
// Malformed frames and non-request kinds are logged and dropped without a
// reply; the connection stays open.
func (d *Dispatcher) HandleFrame(ctx context.Context, p *game.Player, raw []byte) {
	req, err := protocol.Decode(raw)
	if err != nil {
		d.logger.Warn("dropping undecodable frame",
			zap.String("player", p.Name()),
			zap.String("connection", p.ID()),
			zap.Error(err),
		)
		return
	}

	switch msg := req.(type) {
	case protocol.CreateGameMessage:
		d.handleCreate(ctx, p, msg)
	case protocol.JoinGameMessage:
		d.handleJoin(p, msg)
	case protocol.LeaveGameMessage:
		d.handleLeave(p, msg)
	case protocol.GameMessage:
		d.handleGameMessage(ctx, p, msg)
	}
}

// HandlePlayerExit treats a closed connection as a normal leave: the player
// is removed from its instance (if any) and the remaining members are told
// it disconnected.
func (d *Dispatcher) HandlePlayerExit(p *game.Player) {
	status, remaining := d.coordinator.LeaveGame(p)
	if status != protocol.StatusSuccess {
		return
	}
	d.broadcast(remaining, protocol.NewPlayerLeft("disconnected", p.Name()))
}

// handleCreate requires the schema store to already know the game type
// before the coordinator is consulted.
func (d *Dispatcher) handleCreate(ctx context.Context, p *game.Player, msg protocol.CreateGameMessage) {
	exists, err := d.store.Exists(ctx, msg.GameType)
	if err != nil {
		d.logger.Error("schema store lookup failed",
			zap.String("game_type", msg.GameType),
			zap.Error(err),
		)
		d.push(p, protocol.NewCreateGameResponse(protocol.StatusServerError))
		return
	}

	var status protocol.Status
	if !exists {
		status = protocol.StatusGameTypeUnknown
	} else {
		status = d.coordinator.CreateGame(msg.GameType, msg.SessionID, p)
	}
	d.push(p, protocol.NewCreateGameResponse(status))
}

func (d *Dispatcher) handleJoin(p *game.Player, msg protocol.JoinGameMessage) {
	status, others := d.coordinator.JoinGame(p, msg.SessionID)
	d.push(p, protocol.NewJoinGameResponse(status))

	if status == protocol.StatusSuccess {
		d.broadcast(others, protocol.NewPlayerJoined(msg.Greeting, p.Name()))
	}
}

func (d *Dispatcher) handleLeave(p *game.Player, msg protocol.LeaveGameMessage) {
	status, remaining := d.coordinator.LeaveGame(p)
	d.push(p, protocol.NewLeaveGameResponse(status))

	if status == protocol.StatusSuccess {
		d.broadcast(remaining, protocol.NewPlayerLeft(msg.Goodbye, p.Name()))
	}
}

// handleGameMessage validates the opaque payload against the schema for
// the message's phase and, on success, forwards the message — annotated
// with the sender's name — to every other member.
func (d *Dispatcher) handleGameMessage(ctx context.Context, p *game.Player, msg protocol.GameMessage) {
	gameType, others, ok := d.coordinator.GameOf(p)
	if !ok {
		d.push(p, protocol.GameMessageResponse{
			Type:   msg.ResponseType(),
			Status: protocol.StatusNoGame,
		})
		return
	}

	violations, err := d.schemas.Validate(ctx, gameType, msg.Phase(), msg.Payload)
	if err != nil {
		if errors.Is(err, validation.ErrSchemaNotFound) {
			d.logger.Error("schema set missing for live game type",
				zap.String("game_type", gameType),
			)
		} else {
			d.logger.Error("payload validation failed",
				zap.String("game_type", gameType),
				zap.Error(err),
			)
		}
		d.push(p, protocol.GameMessageResponse{
			Type:   msg.ResponseType(),
			Status: protocol.StatusServerError,
		})
		return
	}

	if len(violations) > 0 {
		d.push(p, protocol.GameMessageResponse{
			Type:   msg.ResponseType(),
			Status: protocol.StatusInvalidJSON,
			Errors: violations,
		})
		return
	}

	d.push(p, protocol.GameMessageResponse{
		Type:   msg.ResponseType(),
		Status: protocol.StatusSuccess,
	})

	forward := msg
	forward.Sender = p.Name()
	d.broadcast(others, forward)
}

// push encodes a message and enqueues it on the player's outbox. Sends are
// best effort; failures are logged, never returned to the caller.
func (d *Dispatcher) push(p *game.Player, msg any) {
	data, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error("encoding outbound message",
			zap.String("player", p.Name()),
			zap.Error(err),
		)
		return
	}
	if err := p.Outbox().Push(data); err != nil {
		d.logger.Warn("dropping outbound message",
			zap.String("player", p.Name()),
			zap.Error(err),
		)
	}
}

// broadcast pushes a message to every listed player. An empty target list
// is a no-op, not an error.
func (d *Dispatcher) broadcast(targets []*game.Player, msg any) {
	if len(targets) == 0 {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error("encoding broadcast", zap.Error(err))
		return
	}
	for _, target := range targets {
		if err := target.Outbox().Push(data); err != nil {
			d.logger.Warn("dropping broadcast for member",
				zap.String("player", target.Name()),
				zap.Error(err),
			)
		}
	}
}
