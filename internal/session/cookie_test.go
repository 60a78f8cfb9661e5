package session

import (
	"strings"
	"testing"
	"time"
)

func TestCookieCodec_RoundTrip(t *testing.T) {
	codec := NewCookieCodec("quern_session", "secret-key", time.Hour)

	value, err := codec.Issue("session-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	id, err := codec.Verify(value)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "session-123" {
		t.Errorf("expected session-123, got %q", id)
	}
}

func TestCookieCodec_RejectsTampering(t *testing.T) {
	codec := NewCookieCodec("quern_session", "secret-key", time.Hour)

	value, err := codec.Issue("session-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Flip a character in the signature segment.
	parts := strings.Split(value, ".")
	if len(parts) != 3 {
		t.Fatalf("expected a three-part token, got %d parts", len(parts))
	}
	sig := []byte(parts[2])
	if sig[0] == 'A' {
		sig[0] = 'B'
	} else {
		sig[0] = 'A'
	}
	tampered := parts[0] + "." + parts[1] + "." + string(sig)

	if _, err := codec.Verify(tampered); err == nil {
		t.Errorf("expected tampered cookie to be rejected")
	}
}

func TestCookieCodec_RejectsWrongSecret(t *testing.T) {
	issuer := NewCookieCodec("quern_session", "secret-a", time.Hour)
	verifier := NewCookieCodec("quern_session", "secret-b", time.Hour)

	value, err := issuer.Issue("session-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := verifier.Verify(value); err == nil {
		t.Errorf("expected cookie signed with another secret to be rejected")
	}
}

func TestCookieCodec_RejectsExpired(t *testing.T) {
	codec := NewCookieCodec("quern_session", "secret-key", -time.Minute)

	value, err := codec.Issue("session-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := codec.Verify(value); err == nil {
		t.Errorf("expected expired cookie to be rejected")
	}
}

func TestCookieCodec_RejectsGarbage(t *testing.T) {
	codec := NewCookieCodec("quern_session", "secret-key", time.Hour)
	if _, err := codec.Verify("not-a-jwt"); err == nil {
		t.Errorf("expected garbage to be rejected")
	}
}
