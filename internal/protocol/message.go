// Package protocol defines the wire messages exchanged between the broker
// and connected game clients, and the JSON codec for them.
//
// Every frame is a JSON object carrying a "type" discriminator. Requests
// travel client to server, responses are sent back to the originating
// sender only, and notifications are broadcast to the other members of a
// game instance. The set of message kinds is closed.
package protocol

// Message type discriminators.
const (
	TypeCreateGame = "CREATE_GAME"
	TypeJoinGame   = "JOIN_GAME"
	TypeLeaveGame  = "LEAVE_GAME"
	TypeInitGame   = "INIT_GAME"
	TypeGameAction = "GAME_ACTION"
	TypeEndGame    = "END_GAME"

	TypeCreateGameResponse = "CREATE_GAME_RESPONSE"
	TypeJoinGameResponse   = "JOIN_GAME_RESPONSE"
	TypeLeaveGameResponse  = "LEAVE_GAME_RESPONSE"
	TypeInitGameResponse   = "INIT_GAME_RESPONSE"
	TypeGameActionResponse = "GAME_ACTION_RESPONSE"
	TypeEndGameResponse    = "END_GAME_RESPONSE"

	TypePlayerJoined = "PLAYER_JOINED"
	TypePlayerLeft   = "PLAYER_LEFT"
)

// Status enumerates the business outcomes reported in responses.
// Each response kind uses a closed subset of these values.
type Status string

// Status values.
const (
	StatusSuccess           Status = "SUCCESS"
	StatusAlreadyAssociated Status = "ALREADY_ASSOCIATED_WITH_GAME"
	StatusSessionIDExists   Status = "SESSION_ID_ALREADY_EXISTS"
	StatusInvalidSessionID  Status = "INVALID_SESSION_ID"
	StatusNameTaken         Status = "PLAYER_NAME_ALREADY_TAKEN"
	StatusNoGame            Status = "NO_ASSOCIATED_GAME"
	StatusGameTypeUnknown   Status = "GAME_TYPE_DOES_NOT_EXIST"
	StatusInvalidJSON       Status = "INVALID_JSON"
	StatusServerError       Status = "SERVER_ERROR"
)

// Phase identifies which schema of a game type's set a payload is
// validated against.
type Phase string

// Phase values.
const (
	PhaseInit   Phase = "init"
	PhaseAction Phase = "action"
	PhaseEnd    Phase = "end"
)

// Request is implemented by every message kind a client may send.
type Request interface {
	isRequest()
}

// CreateGameMessage asks the broker to open a new game instance.
type CreateGameMessage struct {
	Type      string `json:"type"`
	GameType  string `json:"gameType"`
	SessionID string `json:"sessionId"`
}

// JoinGameMessage asks the broker to add the sender to an existing instance.
type JoinGameMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Greeting  string `json:"greeting"`
}

// LeaveGameMessage removes the sender from its current instance.
type LeaveGameMessage struct {
	Type    string `json:"type"`
	Goodbye string `json:"goodbye"`
}

// GameMessage carries an opaque game payload for one of the three phases.
// Inbound the Sender field is empty; the broker fills it in before
// forwarding the message to the other members.
type GameMessage struct {
	Type    string `json:"type"`
	Payload string `json:"payload"`
	Sender  string `json:"sender,omitempty"`
}

func (CreateGameMessage) isRequest() {}
func (JoinGameMessage) isRequest()   {}
func (LeaveGameMessage) isRequest()  {}
func (GameMessage) isRequest()       {}

// Phase maps the message's type discriminator to its validation phase.
func (m GameMessage) Phase() Phase {
	switch m.Type {
	case TypeInitGame:
		return PhaseInit
	case TypeEndGame:
		return PhaseEnd
	default:
		return PhaseAction
	}
}

// ResponseType returns the response discriminator matching the message's
// own type.
func (m GameMessage) ResponseType() string {
	switch m.Type {
	case TypeInitGame:
		return TypeInitGameResponse
	case TypeEndGame:
		return TypeEndGameResponse
	default:
		return TypeGameActionResponse
	}
}

// CreateGameResponse reports the outcome of a CreateGameMessage.
// Status is one of SUCCESS, ALREADY_ASSOCIATED_WITH_GAME,
// SESSION_ID_ALREADY_EXISTS or GAME_TYPE_DOES_NOT_EXIST.
type CreateGameResponse struct {
	Type   string `json:"type"`
	Status Status `json:"status"`
}

// JoinGameResponse reports the outcome of a JoinGameMessage.
// Status is one of SUCCESS, ALREADY_ASSOCIATED_WITH_GAME,
// INVALID_SESSION_ID or PLAYER_NAME_ALREADY_TAKEN.
type JoinGameResponse struct {
	Type   string `json:"type"`
	Status Status `json:"status"`
}

// LeaveGameResponse reports the outcome of a LeaveGameMessage.
// Status is either SUCCESS or NO_ASSOCIATED_GAME.
type LeaveGameResponse struct {
	Type   string `json:"type"`
	Status Status `json:"status"`
}

// GameMessageResponse reports the outcome of an init, action or end
// GameMessage. Errors carries the schema violations when Status is
// INVALID_JSON and is empty otherwise.
type GameMessageResponse struct {
	Type   string   `json:"type"`
	Status Status   `json:"status"`
	Errors []string `json:"errors,omitempty"`
}

// PlayerJoinedNotification tells the existing members of an instance that
// a new player joined.
type PlayerJoinedNotification struct {
	Type     string `json:"type"`
	Greeting string `json:"greeting"`
	Sender   string `json:"sender"`
}

// PlayerLeftNotification tells the remaining members of an instance that a
// player left or disconnected.
type PlayerLeftNotification struct {
	Type    string `json:"type"`
	Goodbye string `json:"goodbye"`
	Sender  string `json:"sender"`
}

// NewCreateGameResponse builds a typed CreateGameResponse.
func NewCreateGameResponse(status Status) CreateGameResponse {
	return CreateGameResponse{Type: TypeCreateGameResponse, Status: status}
}

// NewJoinGameResponse builds a typed JoinGameResponse.
func NewJoinGameResponse(status Status) JoinGameResponse {
	return JoinGameResponse{Type: TypeJoinGameResponse, Status: status}
}

// NewLeaveGameResponse builds a typed LeaveGameResponse.
func NewLeaveGameResponse(status Status) LeaveGameResponse {
	return LeaveGameResponse{Type: TypeLeaveGameResponse, Status: status}
}

// NewPlayerJoined builds a PlayerJoinedNotification.
func NewPlayerJoined(greeting, sender string) PlayerJoinedNotification {
	return PlayerJoinedNotification{Type: TypePlayerJoined, Greeting: greeting, Sender: sender}
}

// NewPlayerLeft builds a PlayerLeftNotification.
func NewPlayerLeft(goodbye, sender string) PlayerLeftNotification {
	return PlayerLeftNotification{Type: TypePlayerLeft, Goodbye: goodbye, Sender: sender}
}
