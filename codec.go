package cookiesession

import (
	"crypto/cipher"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Parse outcomes, used as the metrics "outcome" label.
const (
	outcomeOK               = "ok"
	outcomeMissing          = "missing"
	outcomeMalformed        = "malformed"
	outcomeInvalidSignature = "invalid_signature"
	outcomeExpired          = "expired"
	outcomeRevoked          = "revoked"
	outcomeStoreError       = "store_error"
)

// envelopeClaims is the signed body of a session cookie. Exactly one of Data
// and Sealed is set for a non-empty session.
type envelopeClaims struct {
	Data   map[string]Value `json:"d,omitempty"`
	Sealed string           `json:"s,omitempty"`
	jwt.RegisteredClaims
}

type envelope struct {
	token     string
	id        string
	issuedAt  time.Time
	expiresAt time.Time
}

// codec signs and verifies session envelopes. secrets[0] signs; every secret
// verifies, newest first.
type codec struct {
	secrets [][]byte
	sealers []cipher.AEAD
	encrypt bool
	ttl     time.Duration
	now     func() time.Time
	parser  *jwt.Parser
}

func newCodec(secrets [][]byte, encrypt bool, ttl time.Duration) (*codec, error) {
	c := &codec{
		secrets: secrets,
		encrypt: encrypt,
		ttl:     ttl,
		now:     time.Now,
	}
	for _, secret := range secrets {
		aead, err := newSealer(secret)
		if err != nil {
			return nil, err
		}
		c.sealers = append(c.sealers, aead)
	}
	c.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	return c, nil
}

func (c *codec) encode(values map[string]Value) (envelope, error) {
	id, err := generateID()
	if err != nil {
		return envelope{}, err
	}
	now := c.now()
	claims := envelopeClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if len(values) > 0 {
		if c.encrypt {
			claims.Sealed, err = seal(c.sealers[0], id, values)
			if err != nil {
				return envelope{}, err
			}
		} else {
			claims.Data = values
		}
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secrets[0])
	if err != nil {
		return envelope{}, fmt.Errorf("failed to sign session: %w", err)
	}

	return envelope{
		token:     token,
		id:        id,
		issuedAt:  claims.IssuedAt.Time,
		expiresAt: claims.ExpiresAt.Time,
	}, nil
}

// decode verifies token and returns the session it carries together with the
// parse outcome. The session is nil unless the outcome is outcomeOK.
func (c *codec) decode(token string) (*Session, string, error) {
	var lastErr error
	for i, secret := range c.secrets {
		claims := &envelopeClaims{}
		_, err := c.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		switch {
		case err == nil:
			return c.open(i, claims)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			lastErr = err
			continue
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, outcomeExpired, err
		default:
			return nil, outcomeMalformed, err
		}
	}
	return nil, outcomeInvalidSignature, lastErr
}

func (c *codec) open(i int, claims *envelopeClaims) (*Session, string, error) {
	if !isValidID(claims.ID) {
		return nil, outcomeMalformed, errors.New("invalid envelope id")
	}
	if claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return nil, outcomeMalformed, errors.New("missing envelope timestamps")
	}

	values := claims.Data
	if claims.Sealed != "" {
		var err error
		values, err = open(c.sealers[i], claims.ID, claims.Sealed)
		if err != nil {
			return nil, outcomeMalformed, err
		}
	}
	if values == nil {
		values = make(map[string]Value)
	}

	return &Session{
		Values:    values,
		id:        claims.ID,
		issuedAt:  claims.IssuedAt.Time,
		expiresAt: claims.ExpiresAt.Time,
	}, outcomeOK, nil
}
