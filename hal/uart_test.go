package hal

import (
	"bytes"
	"testing"

	"github.com/pkg/errors"
)

func TestUARTPassThrough(t *testing.T) {
	var out bytes.Buffer
	u := NewUART(&out, 0)

	for _, s := range []string{"one ", "two"} {
		if n, err := u.Write([]byte(s)); err != nil || n != len(s) {
			t.Fatalf("Write(%q) = %d, %v", s, n, err)
		}
	}
	if out.String() != "one two" {
		t.Fatalf("out = %q, want %q", out.String(), "one two")
	}
	if u.Busy() {
		t.Fatal("Busy() = true for an unlimited line")
	}
}

func TestUARTOneWriteInFlight(t *testing.T) {
	var out, mirror bytes.Buffer
	u := NewUART(&out, 4)
	u.AddSink(&mirror)

	if _, err := u.Write([]byte("abcdefghij")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := u.Write([]byte("x")); !errors.Is(err, ErrNotReady) {
		t.Fatalf("second Write() error = %v, want ErrNotReady", err)
	}

	u.Tick()
	if out.String() != "abcd" {
		t.Fatalf("after 1 tick out = %q, want %q", out.String(), "abcd")
	}
	u.Tick()
	u.Tick()
	if u.Busy() {
		t.Fatal("Busy() = true after draining")
	}
	if out.String() != "abcdefghij" || mirror.String() != out.String() {
		t.Fatalf("out = %q, mirror = %q", out.String(), mirror.String())
	}

	if _, err := u.Write([]byte("k")); err != nil {
		t.Fatalf("Write() after drain error = %v", err)
	}
	sent, rejected := u.Stats()
	if sent != 10 || rejected != 1 {
		t.Fatalf("Stats() = %d, %d, want 10, 1", sent, rejected)
	}
}

func TestUARTDoesNotAliasCallerBuffer(t *testing.T) {
	var out bytes.Buffer
	u := NewUART(&out, 2)

	msg := []byte("ab")
	_, _ = u.Write(msg)
	msg[0] = 'z'
	u.Tick()
	if out.String() != "ab" {
		t.Fatalf("out = %q, want %q", out.String(), "ab")
	}
}
