/*
Package cookiesession keeps small key-value sessions entirely inside a signed,
optionally encrypted, HTTP cookie.

The session never touches a server-side database: each request decodes the
Cookie header into a Session, handlers read and mutate its fields, and the
Manager commits the result back into a Set-Cookie value.

Key Features:

  - Signed envelopes: the session is carried as a compact HS256 JWS with an
    expiry, verified on every request.
  - Secret rotation: the newest secret signs, every configured secret verifies.
  - Optional encryption: with Encrypt set, fields are sealed with
    XChaCha20-Poly1305 so the client cannot read them.
  - Fail soft: a missing, tampered or expired cookie decodes to an empty
    session instead of failing the request.
  - Revocation: an optional Store (SQLite, PostgreSQL, Memcached, Redis or
    memory) remembers destroyed cookies until they expire, so a replayed
    cookie also decodes to an empty session.
  - Prometheus metrics for parse outcomes, commits and cookie sizes.

Usage:

	mgr, err := cookiesession.NewManager(cookiesession.Config{
		CookieName: "app_session",
		Secrets:    [][]byte{newSecret, oldSecret},
		TTL:        time.Hour,
	})
	if err != nil {
		log.Fatal(err)
	}
	defer mgr.Close()

	http.HandleFunc("/visit", func(w http.ResponseWriter, r *http.Request) {
		s := mgr.Get(r)
		n, _ := s.Get("visits")
		count, _ := n.AsInt()
		s.Set("visits", cookiesession.Int(count+1))
		if err := mgr.Save(w, s); err != nil {
			http.Error(w, "Failed to save session", http.StatusInternalServerError)
		}
	})

Thread Safety:

The Manager and Store implementations are safe for concurrent use by multiple goroutines.
Individual Session objects are not thread-safe and should be handled within the scope of a single request.
*/
package cookiesession
