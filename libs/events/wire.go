package events

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Kafka headers set on every published entry event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

// Schema Registry wire format: magic byte 0, 4 byte big-endian schema id,
// then the JSON payload.
const (
	wireMagic     byte = 0
	wireHeaderLen      = 5
)

// ErrUnframed is returned by Unframe for values without the wire header.
var ErrUnframed = errors.New("value lacks schema registry framing")

// Frame prefixes payload with the wire header for schemaID.
func Frame(schemaID int, payload []byte) []byte {
	out := make([]byte, wireHeaderLen+len(payload))
	out[0] = wireMagic
	binary.BigEndian.PutUint32(out[1:wireHeaderLen], uint32(schemaID))
	copy(out[wireHeaderLen:], payload)
	return out
}

// Unframe splits a framed value into its schema id and payload. The payload
// aliases value.
func Unframe(value []byte) (int, []byte, error) {
	if len(value) < wireHeaderLen {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrUnframed, len(value))
	}
	if value[0] != wireMagic {
		return 0, nil, fmt.Errorf("%w: magic byte %d", ErrUnframed, value[0])
	}
	return int(binary.BigEndian.Uint32(value[1:wireHeaderLen])), value[wireHeaderLen:], nil
}
