// Package pagination provides the opaque page token codec shared by the
// repository list operations.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPageToken signals a page token that cannot be decoded. Callers
// should treat it as client input error rather than a backend failure.
var ErrInvalidPageToken = errors.New("pagination: invalid page token")

// EncodeToken serialises a cursor payload into a URL-safe opaque token.
// Tokens are not signed; they only carry resume positions, never data the
// caller could not already read.
func EncodeToken(cursor any) (string, error) {
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken parses a token produced by EncodeToken back into the cursor
// type it was encoded from. An empty token yields a nil cursor.
func DecodeToken[T any](token string) (*T, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor T
	if err := json.Unmarshal(data, &cursor); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return &cursor, nil
}
