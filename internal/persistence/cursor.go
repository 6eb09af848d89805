// Package persistence contains helpers shared by the entry store
// implementations.
package persistence

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"example.com/ecotrack/internal/domain"
)

// ErrInvalidCursor is returned for tokens that do not decode to a cursor.
var ErrInvalidCursor = errors.New("invalid cursor format")

// cursorToken is the wire shape of a page token. Nanosecond precision keeps
// entries logged within the same second on separate pages.
type cursorToken struct {
	At int64  `json:"t"`
	ID string `json:"id"`
}

// EncodeCursor renders c as an opaque URL-safe token. A nil cursor encodes
// to the empty string, which means "no further pages".
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw, _ := json.Marshal(cursorToken{At: c.Timestamp.UnixNano(), ID: c.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. Blank tokens yield a nil cursor.
func DecodeCursor(token string) (*domain.Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var ct cursorToken
	if err := json.Unmarshal(raw, &ct); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if ct.ID == "" || ct.At == 0 {
		return nil, ErrInvalidCursor
	}
	return &domain.Cursor{Timestamp: time.Unix(0, ct.At).UTC(), ID: ct.ID}, nil
}
