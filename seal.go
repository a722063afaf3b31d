package cookiesession

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const sealInfo = "cookiesession payload seal v1"

var errSealedPayload = errors.New("sealed payload cannot be opened")

// newSealer derives the payload encryption key for one signing secret.
func newSealer(secret []byte) (cipher.AEAD, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(sealInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive seal key: %w", err)
	}
	aead, err := chacha20poly1305.NewX(key)
	clear(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create seal cipher: %w", err)
	}
	return aead, nil
}

// seal encrypts the JSON encoding of values, bound to the envelope id.
// The result is base64url(nonce || ciphertext).
func seal(aead cipher.AEAD, id string, values map[string]Value) (string, error) {
	buf := getBuffer()
	defer PutBuffer(buf)

	if err := json.NewEncoder(buf).Encode(values); err != nil {
		return "", fmt.Errorf("failed to encode session data: %w", err)
	}

	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+buf.Len()+aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	out := aead.Seal(nonce, nonce, buf.Bytes(), []byte(id))
	return base64.RawURLEncoding.EncodeToString(out), nil
}

func open(aead cipher.AEAD, id string, sealed string) (map[string]Value, error) {
	data, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return nil, errSealedPayload
	}
	if len(data) < aead.NonceSize()+aead.Overhead() {
		return nil, errSealedPayload
	}
	nonce, ct := data[:aead.NonceSize()], data[aead.NonceSize():]

	plain, err := aead.Open(nil, nonce, ct, []byte(id))
	if err != nil {
		return nil, errSealedPayload
	}
	defer clear(plain)

	var values map[string]Value
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, fmt.Errorf("failed to decode session data: %w", err)
	}
	return values, nil
}
