package cookiesession

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ErrNoSecrets is returned by NewManager when no signing secret is configured.
	ErrNoSecrets = errors.New("no signing secret configured")

	// ErrWeakSecret is returned by NewManager when a secret is shorter than MinSecretBytes.
	ErrWeakSecret = errors.New("signing secret too short")

	// ErrInvalidCookieName is returned by NewManager when the cookie name is not a valid token.
	ErrInvalidCookieName = errors.New("invalid cookie name")

	// ErrCookieTooLarge is returned when the committed cookie exceeds the configured MaxCookieBytes.
	ErrCookieTooLarge = errors.New("session cookie too large")
)

// MinSecretBytes is the minimum length of a signing secret.
const MinSecretBytes = 32

type Manager struct {
	codec          *codec
	store          Store
	cookie         string
	cookiePath     string
	cookieDomain   string
	ttl            time.Duration
	cleanup        time.Duration
	stopChan       chan struct{}
	closeOnce      sync.Once
	httpOnly       bool
	secure         bool
	sameSite       http.SameSite
	maxCookieBytes int
	logger         *slog.Logger
	metrics        *metrics
}

type Config struct {
	CookieName   string
	CookiePath   string
	CookieDomain string
	// Secrets sign and verify session cookies. The first secret signs, every
	// secret verifies, so a new secret is rotated in by prepending it.
	Secrets         [][]byte
	TTL             time.Duration
	HttpOnly        *bool
	Secure          *bool
	SameSite        http.SameSite
	Encrypt         bool // Seal the session fields so the cookie is not readable by the client.
	MaxCookieBytes  int  // Maximum size of the Set-Cookie value. 0 means 4096.
	Store           Store
	CleanupInterval time.Duration
	Logger          *slog.Logger
	Registerer      prometheus.Registerer
}

func NewManager(cfg Config) (*Manager, error) {
	if cfg.CookieName == "" {
		cfg.CookieName = "session"
	}
	if cfg.CookiePath == "" {
		cfg.CookiePath = "/"
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = 10 * time.Minute
	}
	if cfg.MaxCookieBytes == 0 {
		cfg.MaxCookieBytes = 4096
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}

	if !isValidCookieName(cfg.CookieName) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCookieName, cfg.CookieName)
	}
	if cfg.TTL < 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.CleanupInterval < 0 {
		return nil, errors.New("invalid cleanup interval configuration")
	}
	// Max-Age is whole seconds; round up so it never collapses to zero.
	if rem := cfg.TTL % time.Second; rem != 0 {
		cfg.TTL += time.Second - rem
	}
	if len(cfg.Secrets) == 0 {
		return nil, ErrNoSecrets
	}

	// Copy the secrets so later changes to the caller's slices cannot reach us.
	secrets := make([][]byte, len(cfg.Secrets))
	for i, s := range cfg.Secrets {
		if len(s) < MinSecretBytes {
			return nil, fmt.Errorf("%w: secret %d has %d bytes, need %d", ErrWeakSecret, i, len(s), MinSecretBytes)
		}
		secrets[i] = append([]byte(nil), s...)
	}

	c, err := newCodec(secrets, cfg.Encrypt, cfg.TTL)
	if err != nil {
		return nil, err
	}

	met, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	m := &Manager{
		codec:          c,
		store:          cfg.Store,
		cookie:         cfg.CookieName,
		cookiePath:     cfg.CookiePath,
		cookieDomain:   cfg.CookieDomain,
		ttl:            cfg.TTL,
		cleanup:        cfg.CleanupInterval,
		stopChan:       make(chan struct{}),
		httpOnly:       true, // Default
		secure:         true, // Default
		sameSite:       http.SameSiteLaxMode,
		maxCookieBytes: cfg.MaxCookieBytes,
		logger:         cfg.Logger,
		metrics:        met,
	}

	if cfg.HttpOnly != nil {
		m.httpOnly = *cfg.HttpOnly
	}
	if cfg.Secure != nil {
		m.secure = *cfg.Secure
	}
	if cfg.SameSite != 0 {
		m.sameSite = cfg.SameSite
	}

	// Browsers reject SameSite=None cookies without the Secure attribute.
	if m.sameSite == http.SameSiteNoneMode {
		m.secure = true
	}

	if m.store != nil {
		go m.cleanupWorker()
	}

	return m, nil
}

func (m *Manager) cleanupWorker() {
	ticker := time.NewTicker(m.cleanup)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := m.store.Cleanup(ctx); err != nil {
				m.logger.Warn("revocation cleanup failed", "error", err)
			}
			cancel()
		case <-m.stopChan:
			return
		}
	}
}

// Close stops the cleanup worker and closes the configured Store.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.stopChan)
		if m.store != nil {
			err = m.store.Close()
		}
	})
	return err
}

// CookieName returns the name of the session cookie.
func (m *Manager) CookieName() string {
	return m.cookie
}

// Parse decodes the session carried by a raw Cookie request header.
//
// Parse never fails: a missing, malformed, tampered, expired or revoked
// cookie yields an empty session so that a bad cookie only resets session
// state instead of breaking the request.
func (m *Manager) Parse(ctx context.Context, cookieHeader string) *Session {
	if cookieHeader == "" {
		m.metrics.parsed.WithLabelValues(outcomeMissing).Inc()
		return newSession()
	}
	r := &http.Request{Header: http.Header{"Cookie": {cookieHeader}}}
	return m.parseRequest(ctx, r)
}

// Get decodes the session carried by r. See Parse.
func (m *Manager) Get(r *http.Request) *Session {
	return m.parseRequest(r.Context(), r)
}

func (m *Manager) parseRequest(ctx context.Context, r *http.Request) *Session {
	cookie, err := r.Cookie(m.cookie)
	if err != nil || cookie.Value == "" {
		m.metrics.parsed.WithLabelValues(outcomeMissing).Inc()
		return newSession()
	}

	s, outcome, err := m.codec.decode(cookie.Value)
	if err != nil {
		m.metrics.parsed.WithLabelValues(outcome).Inc()
		m.logger.DebugContext(ctx, "session cookie rejected", "outcome", outcome, "error", err)
		return newSession()
	}

	if m.store != nil {
		revoked, err := m.store.IsRevoked(ctx, s.id)
		if err != nil {
			// Keep the session when the revocation backend is unavailable.
			m.metrics.parsed.WithLabelValues(outcomeStoreError).Inc()
			m.logger.WarnContext(ctx, "revocation lookup failed", "session_id", s.id, "error", err)
			return s
		}
		if revoked {
			m.metrics.parsed.WithLabelValues(outcomeRevoked).Inc()
			m.logger.DebugContext(ctx, "session cookie revoked", "session_id", s.id)
			return newSession()
		}
	}

	m.metrics.parsed.WithLabelValues(outcomeOK).Inc()
	return s
}

// Commit serializes and signs s with the newest secret and returns the
// Set-Cookie header value. s itself is not modified.
func (m *Manager) Commit(s *Session) (string, error) {
	env, err := m.codec.encode(s.Values)
	if err != nil {
		return "", err
	}

	cookie := m.newCookie(env.token)
	cookie.Expires = env.expiresAt
	cookie.MaxAge = int(m.ttl / time.Second)

	v := cookie.String()
	if len(v) > m.maxCookieBytes {
		return "", fmt.Errorf("%w: %d bytes, limit %d", ErrCookieTooLarge, len(v), m.maxCookieBytes)
	}

	m.metrics.committed.Inc()
	m.metrics.cookieBytes.Observe(float64(len(v)))
	return v, nil
}

// Destroy returns a Set-Cookie header value that clears the session cookie
// and wipes s. When a Store is configured the envelope s was decoded from is
// revoked; the clearing cookie is returned even if revocation fails.
func (m *Manager) Destroy(ctx context.Context, s *Session) (string, error) {
	cookie := m.newCookie("")
	cookie.MaxAge = -1
	cookie.Expires = time.Unix(0, 0)
	v := cookie.String()

	m.metrics.destroyed.Inc()

	id, expiresAt := s.id, s.expiresAt
	s.Clear()
	s.id = ""

	if m.store == nil || id == "" {
		return v, nil
	}
	if err := m.store.Revoke(ctx, id, expiresAt); err != nil {
		m.logger.ErrorContext(ctx, "failed to revoke session", "session_id", id, "error", err)
		return v, err
	}
	return v, nil
}

// Save commits s and adds the cookie to w.
func (m *Manager) Save(w http.ResponseWriter, s *Session) error {
	v, err := m.Commit(s)
	if err != nil {
		return err
	}
	w.Header().Add("Set-Cookie", v)
	return nil
}

// Clear destroys s and adds the clearing cookie to w, even when revocation fails.
func (m *Manager) Clear(ctx context.Context, w http.ResponseWriter, s *Session) error {
	v, err := m.Destroy(ctx, s)
	w.Header().Add("Set-Cookie", v)
	return err
}

// SetField parses the session from cookieHeader, stores value under field and
// commits the result.
func (m *Manager) SetField(ctx context.Context, cookieHeader, field string, value Value) (string, error) {
	s := m.Parse(ctx, cookieHeader)
	s.Set(field, value)
	return m.Commit(s)
}

func (m *Manager) newCookie(value string) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie,
		Value:    value,
		Path:     m.cookiePath,
		Domain:   m.cookieDomain,
		HttpOnly: m.httpOnly,
		Secure:   m.secure,
		SameSite: m.sameSite,
	}
}

// isValidCookieName reports whether name is an RFC 6265 token.
func isValidCookieName(name string) bool {
	if name == "" {
		return false
	}
	return !strings.ContainsFunc(name, func(r rune) bool {
		return r <= ' ' || r >= 0x7f || strings.ContainsRune("()<>@,;:\\\"/[]?={}", r)
	})
}
