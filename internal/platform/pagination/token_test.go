package pagination

import (
	"errors"
	"testing"
	"time"
)

type testCursor struct {
	ID        string
	CreatedAt time.Time
}

func TestTokenRoundTrip(t *testing.T) {
	original := testCursor{ID: "ord_01H", CreatedAt: time.Date(2025, 7, 14, 12, 0, 0, 0, time.UTC)}

	token, err := EncodeToken(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	decoded, err := DecodeToken[testCursor](token)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded == nil || decoded.ID != original.ID || !decoded.CreatedAt.Equal(original.CreatedAt) {
		t.Fatalf("unexpected cursor: %+v", decoded)
	}
}

func TestDecodeTokenEmptyYieldsNil(t *testing.T) {
	decoded, err := DecodeToken[testCursor]("  ")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != nil {
		t.Fatalf("expected nil cursor, got %+v", decoded)
	}
}

func TestDecodeTokenRejectsGarbage(t *testing.T) {
	for _, token := range []string{"not base64!!", "bm90IGpzb24"} {
		if _, err := DecodeToken[testCursor](token); !errors.Is(err, ErrInvalidPageToken) {
			t.Fatalf("token %q: expected ErrInvalidPageToken, got %v", token, err)
		}
	}
}
