package tibber

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Category is the measurement name under which every forwarded point is stored.
const Category = "liveMeasurement"

// AckType is the message type the server sends once connection_init is accepted.
const AckType = "connection_ack"

// Kind tags the shape of an inbound frame.
type Kind int

const (
	// KindInvalid: the frame is not JSON.
	KindInvalid Kind = iota
	// KindUnrecognized: JSON that matches neither the data nor the ack shape.
	KindUnrecognized
	// KindData: payload.data.liveMeasurement is an object.
	KindData
	// KindAck: type == "connection_ack".
	KindAck
	// KindAnomaly: some other string type, e.g. "ka", "error", "complete".
	KindAnomaly
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnrecognized:
		return "unrecognized"
	case KindData:
		return "data"
	case KindAck:
		return "ack"
	case KindAnomaly:
		return "anomaly"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is the classified form of one inbound frame.
type Message struct {
	Kind Kind
	// Type is the top-level "type" member when it is a string.
	Type string
	// Measurement holds the raw liveMeasurement members for KindData.
	Measurement map[string]json.RawMessage
	// Errors carries server-reported errors: payload.errors, or the payload
	// itself when it is an array.
	Errors []json.RawMessage
	// Err is the decode error for KindInvalid.
	Err error
}

type envelope struct {
	Type    json.RawMessage `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type dataPayload struct {
	Data *struct {
		LiveMeasurement json.RawMessage `json:"liveMeasurement"`
	} `json:"data"`
	Errors []json.RawMessage `json:"errors"`
}

// Classify decodes a frame and reports which shape it has. Every member is
// shape-checked before use; a frame never causes a panic.
func Classify(frame []byte) Message {
	var raw json.RawMessage
	if err := json.Unmarshal(frame, &raw); err != nil {
		return Message{Kind: KindInvalid, Err: err}
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return Message{Kind: KindUnrecognized}
	}

	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return Message{Kind: KindUnrecognized}
	}

	var msg Message
	payload := bytes.TrimSpace(env.Payload)
	switch {
	case len(payload) > 0 && payload[0] == '{':
		// The payload shape only matters for the data path; a mismatch
		// still leaves the frame classifiable by its type.
		var p dataPayload
		if json.Unmarshal(payload, &p) == nil {
			msg.Errors = p.Errors
			if p.Data != nil {
				if m, ok := decodeObject(p.Data.LiveMeasurement); ok {
					msg.Kind = KindData
					msg.Measurement = m
					return msg
				}
			}
		}
	case len(payload) > 0 && payload[0] == '[':
		// graphql-transport-ws error frames carry the errors array directly.
		var errs []json.RawMessage
		if json.Unmarshal(payload, &errs) == nil {
			msg.Errors = errs
		}
	}

	var typ string
	if len(env.Type) == 0 || env.Type[0] != '"' || json.Unmarshal(env.Type, &typ) != nil {
		msg.Kind = KindUnrecognized
		return msg
	}
	msg.Type = typ
	if typ == AckType {
		msg.Kind = KindAck
	} else {
		msg.Kind = KindAnomaly
	}
	return msg
}

func decodeObject(raw json.RawMessage) (map[string]json.RawMessage, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, false
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, false
	}
	return m, true
}
