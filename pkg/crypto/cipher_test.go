package crypto

import (
	"errors"
	"testing"
)

func TestSealRoundTrip(t *testing.T) {
	sealed, err := SealString("key", "token-123")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if sealed == "token-123" {
		t.Fatalf("expected ciphertext")
	}
	plain, err := OpenString("key", sealed)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if plain != "token-123" {
		t.Fatalf("unexpected plaintext %q", plain)
	}
}

func TestOpenRejectsWrongKey(t *testing.T) {
	sealed, _ := SealString("key", "token-123")
	if _, err := OpenString("other", sealed); err == nil {
		t.Fatalf("expected authentication failure")
	}
	if _, err := OpenString("key", "%%%"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}
