package protocol

import (
	"encoding/json"
	"fmt"
)

// ErrNotARequest is returned by Decode when a frame carries a response or
// notification discriminator. Clients must never send those to the broker.
var ErrNotARequest = fmt.Errorf("message is not a client request")

// Decode parses a raw text frame into one of the closed set of request
// variants.
//
// Postcondition: Returns exactly one of CreateGameMessage, JoinGameMessage,
// LeaveGameMessage or GameMessage, or a non-nil error for malformed JSON,
// unknown discriminators, and non-request kinds.
func Decode(raw []byte) (Request, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("parsing message envelope: %w", err)
	}

	switch head.Type {
	case TypeCreateGame:
		var msg CreateGameMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		return msg, nil
	case TypeJoinGame:
		var msg JoinGameMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		return msg, nil
	case TypeLeaveGame:
		var msg LeaveGameMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		return msg, nil
	case TypeInitGame, TypeGameAction, TypeEndGame:
		var msg GameMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", head.Type, err)
		}
		return msg, nil
	case TypeCreateGameResponse, TypeJoinGameResponse, TypeLeaveGameResponse,
		TypeInitGameResponse, TypeGameActionResponse, TypeEndGameResponse,
		TypePlayerJoined, TypePlayerLeft:
		return nil, fmt.Errorf("%w: %s", ErrNotARequest, head.Type)
	case "":
		return nil, fmt.Errorf("message has no type discriminator")
	default:
		return nil, fmt.Errorf("unknown message type %q", head.Type)
	}
}

// Encode serializes a response or notification for the wire.
//
// Precondition: msg must be one of the protocol message structs with its
// Type field populated.
func Encode(msg any) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encoding message: %w", err)
	}
	return data, nil
}
