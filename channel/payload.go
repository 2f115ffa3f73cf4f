package channel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/infodancer/shellauth"
	autherrors "github.com/infodancer/shellauth/errors"
)

// Payload is the posted value of a message: either a structured object or a
// string. Exactly two implementations exist, ObjectPayload and StringPayload.
type Payload interface {
	payload()
}

// ObjectPayload is a structured value posted as-is.
type ObjectPayload map[string]any

// StringPayload is a string value, usually JSON-encoded.
type StringPayload string

func (ObjectPayload) payload() {}
func (StringPayload) payload() {}

// ParsePayload interprets p as a session event: an object is read
// structurally, a string is parsed as JSON. Anything without a known status
// fails closed with errors.ErrMalformedMessage.
func ParsePayload(p Payload) (ServerEvent, error) {
	var data []byte
	switch v := p.(type) {
	case ObjectPayload:
		if v == nil {
			return ServerEvent{}, fmt.Errorf("%w: empty object", autherrors.ErrMalformedMessage)
		}
		encoded, err := json.Marshal(map[string]any(v))
		if err != nil {
			return ServerEvent{}, fmt.Errorf("%w: %v", autherrors.ErrMalformedMessage, err)
		}
		data = encoded
	case StringPayload:
		data = []byte(v)
	default:
		return ServerEvent{}, fmt.Errorf("%w: unsupported payload %T", autherrors.ErrMalformedMessage, p)
	}

	ev, err := shellauth.DecodeSession(data)
	if err != nil {
		return ServerEvent{}, fmt.Errorf("%w: %v", autherrors.ErrMalformedMessage, err)
	}
	if !ev.Status.Valid() {
		return ServerEvent{}, fmt.Errorf("%w: unknown status %q", autherrors.ErrMalformedMessage, ev.Status)
	}
	return ev, nil
}

// PayloadFromFrame converts a transport frame into a Payload. A JSON object
// becomes an ObjectPayload, a JSON string becomes the StringPayload it
// encodes, and anything else is kept verbatim as a StringPayload.
func PayloadFromFrame(frame []byte) Payload {
	trimmed := bytes.TrimSpace(frame)
	if len(trimmed) > 0 {
		switch trimmed[0] {
		case '{':
			var obj map[string]any
			if err := json.Unmarshal(trimmed, &obj); err == nil {
				return ObjectPayload(obj)
			}
		case '"':
			var s string
			if err := json.Unmarshal(trimmed, &s); err == nil {
				return StringPayload(s)
			}
		}
	}
	return StringPayload(frame)
}
