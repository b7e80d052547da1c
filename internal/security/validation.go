package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Validation limits for webhook update bodies. The Bot API keeps real
// updates far below a mebibyte, so anything larger is hostile or broken.
const (
	DefaultMaxUpdateSize = 1 << 20 // 1 MiB
	DefaultMaxJSONDepth  = 32      // deepest legitimate update nesting observed is ~10
)

// Validation errors.
var (
	ErrUpdateTooLarge = errors.New("update exceeds maximum size")
	ErrJSONTooDeep    = errors.New("JSON nesting exceeds maximum depth")
	ErrInvalidJSON    = errors.New("invalid JSON")
)

// ValidateUpdateSize checks that a webhook body does not exceed limit
// bytes. If limit is <= 0, DefaultMaxUpdateSize is used.
func ValidateUpdateSize(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxUpdateSize
	}
	if len(data) > limit {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrUpdateTooLarge, len(data), limit)
	}
	return nil
}

// ValidateJSONDepth checks that the JSON in data does not nest deeper
// than limit levels, so a crafted update cannot exhaust the stack in
// the decoder. If limit is <= 0, DefaultMaxJSONDepth is used.
func ValidateJSONDepth(data []byte, limit int) error {
	if limit <= 0 {
		limit = DefaultMaxJSONDepth
	}
	if len(data) == 0 {
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > limit {
				return fmt.Errorf("%w: depth %d (max %d)", ErrJSONTooDeep, depth, limit)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
