// ABOUTME: Tests for AES-GCM sealing of secure variable values.
// ABOUTME: Covers round trips, nonce freshness, wrong keys, and malformed ciphertext.
package secret

import (
	"errors"
	"testing"
)

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New("k3y")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sealed, err := s.Seal("hunter2")
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if sealed == "hunter2" {
		t.Fatal("sealed value must not equal plaintext")
	}
	plain, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if plain != "hunter2" {
		t.Errorf("Open() = %q, want hunter2", plain)
	}

	again, _ := s.Seal("hunter2")
	if again == sealed {
		t.Error("expected a fresh nonce per Seal call")
	}
}

func TestOpenWithWrongKeyFails(t *testing.T) {
	a, _ := New("a")
	b, _ := New("b")
	sealed, _ := a.Seal("x")
	if _, err := b.Open(sealed); err == nil {
		t.Fatal("expected failure opening with the wrong key")
	}
}

func TestOpenMalformed(t *testing.T) {
	s, _ := New("k")
	if _, err := s.Open("!!!not base64"); err == nil {
		t.Error("expected base64 error")
	}
	if _, err := s.Open("YQ=="); err == nil {
		t.Error("expected short payload error")
	}
}

func TestNewRejectsEmptySecret(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrEmptySecret) {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}
