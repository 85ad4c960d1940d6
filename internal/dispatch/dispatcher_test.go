package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/tabletop-net/internal/game"
	"github.com/cory-johannsen/tabletop-net/internal/protocol"
	"github.com/cory-johannsen/tabletop-net/internal/validation"
)

// fakeStore is an in-memory validation.Store for dispatcher tests.
type fakeStore struct {
	sets map[string]validation.SchemaSet
	err  error
}

func (s *fakeStore) Get(_ context.Context, gameType string) (validation.SchemaSet, error) {
	if s.err != nil {
		return validation.SchemaSet{}, s.err
	}
	set, ok := s.sets[gameType]
	if !ok {
		return validation.SchemaSet{}, validation.ErrSchemaNotFound
	}
	return set, nil
}

func (s *fakeStore) Exists(_ context.Context, gameType string) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	_, ok := s.sets[gameType]
	return ok, nil
}

const anySchema = `{"type":"object"}`

const actionSchema = `{
	"type": "object",
	"properties": {"card": {"type": "string"}},
	"required": ["card"]
}`

func newTestDispatcher(t *testing.T) (*Dispatcher, *fakeStore) {
	t.Helper()
	store := &fakeStore{sets: map[string]validation.SchemaSet{
		"maumau": {Init: anySchema, Action: actionSchema, End: anySchema},
	}}
	logger := zap.NewNop()
	coordinator := game.NewCoordinator(game.NewGameRegistry(), time.Minute, logger)
	cache := validation.NewCache(store, logger)
	return NewDispatcher(coordinator, cache, store, logger), store
}

// frames drains and decodes every frame currently buffered in the player's
// outbox.
func frames(t *testing.T, p *game.Player) []map[string]any {
	t.Helper()
	var out []map[string]any
	for {
		select {
		case raw := <-p.Outbox().Frames():
			var decoded map[string]any
			require.NoError(t, json.Unmarshal(raw, &decoded))
			out = append(out, decoded)
		default:
			return out
		}
	}
}

func send(d *Dispatcher, p *game.Player, msg any) {
	raw, _ := json.Marshal(msg)
	d.HandleFrame(context.Background(), p, raw)
}

func createGame(t *testing.T, d *Dispatcher, p *game.Player, gameType, sessionID string) {
	t.Helper()
	send(d, p, protocol.CreateGameMessage{Type: protocol.TypeCreateGame, GameType: gameType, SessionID: sessionID})
	got := frames(t, p)
	require.Len(t, got, 1)
	require.Equal(t, string(protocol.StatusSuccess), got[0]["status"])
}

func joinGame(t *testing.T, d *Dispatcher, p *game.Player, sessionID, greeting string) {
	t.Helper()
	send(d, p, protocol.JoinGameMessage{Type: protocol.TypeJoinGame, SessionID: sessionID, Greeting: greeting})
	got := frames(t, p)
	require.Len(t, got, 1)
	require.Equal(t, string(protocol.StatusSuccess), got[0]["status"])
}

func TestCreateGameReply(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)

	send(d, alice, protocol.CreateGameMessage{Type: protocol.TypeCreateGame, GameType: "maumau", SessionID: "table-1"})

	got := frames(t, alice)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeCreateGameResponse, got[0]["type"])
	assert.Equal(t, string(protocol.StatusSuccess), got[0]["status"])
}

func TestCreateGameUnknownGameType(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)

	send(d, alice, protocol.CreateGameMessage{Type: protocol.TypeCreateGame, GameType: "ghost", SessionID: "table-1"})

	got := frames(t, alice)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusGameTypeUnknown), got[0]["status"])

	// The rejected create must not open an instance.
	bob := game.NewPlayer("Bob", 8)
	send(d, bob, protocol.JoinGameMessage{Type: protocol.TypeJoinGame, SessionID: "table-1"})
	got = frames(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusInvalidSessionID), got[0]["status"])
}

func TestCreateGameStoreError(t *testing.T) {
	d, store := newTestDispatcher(t)
	store.err = errors.New("connection refused")
	alice := game.NewPlayer("Alice", 8)

	send(d, alice, protocol.CreateGameMessage{Type: protocol.TypeCreateGame, GameType: "maumau", SessionID: "table-1"})

	got := frames(t, alice)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusServerError), got[0]["status"])
}

func TestJoinGameBroadcastExcludesJoiner(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")

	send(d, bob, protocol.JoinGameMessage{Type: protocol.TypeJoinGame, SessionID: "table-1", Greeting: "hello"})

	// Bob gets exactly the response, never his own join notification.
	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, protocol.TypeJoinGameResponse, bobFrames[0]["type"])
	assert.Equal(t, string(protocol.StatusSuccess), bobFrames[0]["status"])

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, protocol.TypePlayerJoined, aliceFrames[0]["type"])
	assert.Equal(t, "hello", aliceFrames[0]["greeting"])
	assert.Equal(t, "Bob", aliceFrames[0]["sender"])
}

func TestJoinGameFailureNoBroadcast(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	impostor := game.NewPlayer("Alice", 8)
	createGame(t, d, alice, "maumau", "table-1")

	send(d, impostor, protocol.JoinGameMessage{Type: protocol.TypeJoinGame, SessionID: "table-1"})

	got := frames(t, impostor)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusNameTaken), got[0]["status"])
	assert.Empty(t, frames(t, alice), "failed join must not notify members")
}

func TestLeaveGameBroadcastsGoodbye(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")
	frames(t, alice) // discard the join notification

	send(d, bob, protocol.LeaveGameMessage{Type: protocol.TypeLeaveGame, Goodbye: "gg"})

	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, protocol.TypeLeaveGameResponse, bobFrames[0]["type"])
	assert.Equal(t, string(protocol.StatusSuccess), bobFrames[0]["status"])

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, protocol.TypePlayerLeft, aliceFrames[0]["type"])
	assert.Equal(t, "gg", aliceFrames[0]["goodbye"])
	assert.Equal(t, "Bob", aliceFrames[0]["sender"])
}

func TestLeaveGameWithoutGame(t *testing.T) {
	d, _ := newTestDispatcher(t)
	bob := game.NewPlayer("Bob", 8)

	send(d, bob, protocol.LeaveGameMessage{Type: protocol.TypeLeaveGame})

	got := frames(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusNoGame), got[0]["status"])
}

func TestGameMessageForwardedWithSender(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")
	frames(t, alice)

	send(d, bob, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":"H7"}`})

	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, protocol.TypeGameActionResponse, bobFrames[0]["type"])
	assert.Equal(t, string(protocol.StatusSuccess), bobFrames[0]["status"])

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, protocol.TypeGameAction, aliceFrames[0]["type"])
	assert.Equal(t, `{"card":"H7"}`, aliceFrames[0]["payload"])
	assert.Equal(t, "Bob", aliceFrames[0]["sender"])
}

func TestGameMessageBroadcastExcludesSenderOnly(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	carol := game.NewPlayer("Carol", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")
	joinGame(t, d, carol, "table-1", "hi")
	frames(t, alice)
	frames(t, bob)

	send(d, bob, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":"H7"}`})

	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, protocol.TypeGameActionResponse, bobFrames[0]["type"])

	for _, member := range []*game.Player{alice, carol} {
		got := frames(t, member)
		require.Len(t, got, 1, "member %s", member.Name())
		assert.Equal(t, protocol.TypeGameAction, got[0]["type"])
		assert.Equal(t, "Bob", got[0]["sender"])
	}
}

func TestGameMessageInvalidPayloadNotForwarded(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")
	frames(t, alice)

	send(d, bob, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":42}`})

	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, string(protocol.StatusInvalidJSON), bobFrames[0]["status"])
	assert.NotEmpty(t, bobFrames[0]["errors"])

	assert.Empty(t, frames(t, alice), "invalid payload must not reach other members")
}

func TestGameMessageWithoutGame(t *testing.T) {
	d, _ := newTestDispatcher(t)
	bob := game.NewPlayer("Bob", 8)

	send(d, bob, protocol.GameMessage{Type: protocol.TypeInitGame, Payload: `{}`})

	got := frames(t, bob)
	require.Len(t, got, 1)
	assert.Equal(t, protocol.TypeInitGameResponse, got[0]["type"])
	assert.Equal(t, string(protocol.StatusNoGame), got[0]["status"])
}

func TestGameMessageSchemaVanishedIsServerError(t *testing.T) {
	d, store := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	createGame(t, d, alice, "maumau", "table-1")

	// Schema set deleted while the game is live; the cache has not been
	// populated for it yet.
	delete(store.sets, "maumau")

	send(d, alice, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":"H7"}`})

	got := frames(t, alice)
	require.Len(t, got, 1)
	assert.Equal(t, string(protocol.StatusServerError), got[0]["status"])
}

func TestReplyOrderedBeforeBroadcast(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")

	// Alice's outbox holds her join notification; Bob now acts twice. Every
	// frame Bob triggers lands on Alice's outbox after the frames already
	// there, so her view of the session is ordered.
	send(d, bob, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":"H7"}`})
	send(d, bob, protocol.LeaveGameMessage{Type: protocol.TypeLeaveGame, Goodbye: "gg"})

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 3)
	assert.Equal(t, protocol.TypePlayerJoined, aliceFrames[0]["type"])
	assert.Equal(t, protocol.TypeGameAction, aliceFrames[1]["type"])
	assert.Equal(t, protocol.TypePlayerLeft, aliceFrames[2]["type"])
}

func TestMalformedFrameDropped(t *testing.T) {
	d, _ := newTestDispatcher(t)
	bob := game.NewPlayer("Bob", 8)

	d.HandleFrame(context.Background(), bob, []byte(`{"type":"CREATE_GAME"`))
	d.HandleFrame(context.Background(), bob, []byte(`{"type":"NOT_A_THING"}`))
	d.HandleFrame(context.Background(), bob, []byte(`{"type":"CREATE_GAME_RESPONSE","status":"SUCCESS"}`))

	assert.Empty(t, frames(t, bob), "undecodable frames get no reply")
}

func TestPlayerExitNotifiesRemaining(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 8)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")
	frames(t, alice)

	d.HandlePlayerExit(bob)

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, protocol.TypePlayerLeft, aliceFrames[0]["type"])
	assert.Equal(t, "disconnected", aliceFrames[0]["goodbye"])
	assert.Equal(t, "Bob", aliceFrames[0]["sender"])

	assert.Empty(t, frames(t, bob), "the exiting player gets no frames")
}

func TestPlayerExitWithoutGame(t *testing.T) {
	d, _ := newTestDispatcher(t)
	bob := game.NewPlayer("Bob", 8)

	d.HandlePlayerExit(bob)
	assert.Empty(t, frames(t, bob))
}

func TestFullOutboxDoesNotBlockDispatch(t *testing.T) {
	d, _ := newTestDispatcher(t)
	alice := game.NewPlayer("Alice", 1)
	bob := game.NewPlayer("Bob", 8)
	createGame(t, d, alice, "maumau", "table-1")
	joinGame(t, d, bob, "table-1", "hi")

	// Alice's single-slot outbox now holds the join notification; further
	// broadcasts to her are dropped, but Bob's flow is unaffected.
	send(d, bob, protocol.GameMessage{Type: protocol.TypeGameAction, Payload: `{"card":"H7"}`})

	bobFrames := frames(t, bob)
	require.Len(t, bobFrames, 1)
	assert.Equal(t, string(protocol.StatusSuccess), bobFrames[0]["status"])

	aliceFrames := frames(t, alice)
	require.Len(t, aliceFrames, 1)
	assert.Equal(t, protocol.TypePlayerJoined, aliceFrames[0]["type"])
}
