package streaming

import (
	"encoding/json"
	"fmt"
)

// MarshalEnvelope builds a JSON-encoded Envelope from a message type and
// payload.
func MarshalEnvelope(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", msgType, err)
	}
	env := Envelope{Type: msgType, Payload: raw}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal %s envelope: %w", msgType, err)
	}
	return data, nil
}

// MarshalAck builds the server's acknowledgement for a message type.
func MarshalAck(forType string) ([]byte, error) {
	return json.Marshal(AckMessage{Type: "ack", For: forType})
}
