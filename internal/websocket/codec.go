package websocket

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/algopatterns/collab/internal/buffer"
)

// returned by Decode for any frame the room cannot act on
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	return e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var jsonNull = json.RawMessage("null")

// parses a client frame; every failure is a *DecodeError
func Decode(raw []byte) (*Inbound, error) {
	raw = bytes.TrimSpace(raw)

	if len(raw) == 0 {
		return nil, &DecodeError{Reason: "message is empty"}
	}

	if !json.Valid(raw) {
		return nil, &DecodeError{Reason: "message is not valid JSON"}
	}

	if raw[0] != '{' {
		return nil, &DecodeError{Reason: "message must be a JSON object"}
	}

	var msg Inbound
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &DecodeError{Reason: "invalid message format", Err: err}
	}

	switch msg.Type {
	case TypeUpdate, TypeCursor, TypeSelection, TypePing:
	case "":
		return nil, &DecodeError{Reason: "message type is required"}
	default:
		return nil, &DecodeError{Reason: fmt.Sprintf("unsupported message type %q", msg.Type)}
	}

	if len(msg.Data) == 0 {
		msg.Data = jsonNull
	}

	return &msg, nil
}

// serializes an outbound envelope
func Encode(msg *Outbound) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s message: %w", msg.Type, err)
	}

	return data, nil
}

// builds the broadcast event for an accepted client message
func NewEvent(kind, userID string, data json.RawMessage, at time.Time) buffer.Event {
	if len(data) == 0 {
		data = jsonNull
	}

	return buffer.Event{
		Kind:      kind,
		UserID:    userID,
		Data:      data,
		Timestamp: at.UnixMilli(),
	}
}

func NewInit(documentID string, participants []Participant) *Outbound {
	return &Outbound{
		Type: TypeInit,
		Data: InitPayload{
			DocumentID:   documentID,
			Participants: nonNilParticipants(participants),
			SessionCount: len(participants),
		},
	}
}

func NewSync(updates []buffer.Event) *Outbound {
	if updates == nil {
		updates = []buffer.Event{}
	}

	return &Outbound{
		Type: TypeSync,
		Data: SyncPayload{Updates: updates},
	}
}

func NewPresence(participants []Participant) *Outbound {
	return &Outbound{
		Type: TypePresence,
		Data: PresencePayload{
			Participants: nonNilParticipants(participants),
			SessionCount: len(participants),
		},
	}
}

// relays an event to other sessions in the shape it is stored in
func NewBroadcast(e buffer.Event) *Outbound {
	data := e.Data
	if len(data) == 0 {
		data = jsonNull
	}

	return &Outbound{
		Type:      e.Kind,
		UserID:    e.UserID,
		Data:      data,
		Timestamp: e.Timestamp,
	}
}

func NewPong() *Outbound {
	return &Outbound{Type: TypePong}
}

func NewError(code, message string) *Outbound {
	return &Outbound{
		Type:    TypeError,
		Code:    code,
		Message: message,
	}
}

func NewServerShutdown(reason string) *Outbound {
	return &Outbound{
		Type: TypeServerShutdown,
		Data: ServerShutdownPayload{Reason: reason},
	}
}

func nonNilParticipants(p []Participant) []Participant {
	if p == nil {
		return []Participant{}
	}

	return p
}
