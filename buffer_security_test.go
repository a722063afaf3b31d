package cookiesession

import (
	"bytes"
	"testing"
)

func TestPutBuffer_WipesBackingArray(t *testing.T) {
	tests := []struct {
		name string
		read int // bytes consumed before release
	}{
		{"unread", 0},
		{"partially read", 10},
		{"fully read", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := getBuffer()
			if buf.Len() != 0 {
				t.Fatalf("getBuffer returned %d stale bytes", buf.Len())
			}

			plaintext := []byte(`{"secretData":"My Secret Data","savedText":"hello"}`)
			buf.Write(plaintext)
			backing := buf.Bytes()[:buf.Cap()]

			n := tt.read
			if n < 0 {
				n = len(plaintext)
			}
			buf.Next(n)

			PutBuffer(buf)

			for i, b := range backing {
				if b != 0 {
					t.Fatalf("byte %d not zeroed: %q", i, b)
				}
			}
			// Reading buf after release is only safe because nothing else
			// uses the pool in this test.
			if buf.Len() != 0 {
				t.Errorf("buffer not reset, Len = %d", buf.Len())
			}
		})
	}
}

func TestSeal_BindsToEnvelopeID(t *testing.T) {
	aead, err := newSealer(testSecret)
	if err != nil {
		t.Fatalf("newSealer failed: %v", err)
	}
	values := map[string]Value{"secretData": String("do not keep me around")}

	sealed, err := seal(aead, "0123456789abcdef0123456789abcdef", values)
	if err != nil {
		t.Fatalf("seal failed: %v", err)
	}
	if bytes.Contains([]byte(sealed), []byte("do not keep me")) {
		t.Error("sealed payload contains plaintext")
	}

	got, err := open(aead, "0123456789abcdef0123456789abcdef", sealed)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if !got["secretData"].Equal(values["secretData"]) {
		t.Errorf("round trip mismatch: %v", got)
	}

	if _, err := open(aead, "fedcba9876543210fedcba9876543210", sealed); err == nil {
		t.Error("payload bound to one envelope id opened under another")
	}
}
