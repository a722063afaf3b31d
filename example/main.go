package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/Morditux/cookiesession"
)

func main() {
	// Revoked sessions are remembered in SQLite so a logged out cookie
	// cannot be replayed. Without a Store the manager is fully stateless.
	store, err := cookiesession.NewSQLiteStore("revoked.db")
	if err != nil {
		log.Fatalf("failed to create store: %v", err)
	}

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		secret = "development-only-secret-change-me-please!"
	}

	secure := false // plain http on localhost
	mgr, err := cookiesession.NewManager(cookiesession.Config{
		Secrets:         [][]byte{[]byte(secret)},
		TTL:             time.Hour,
		CookieName:      "my_app_session",
		Secure:          &secure,
		Encrypt:         true,
		Store:           store,
		CleanupInterval: 5 * time.Minute,
	})
	if err != nil {
		log.Fatalf("failed to create manager: %v", err)
	}
	defer mgr.Close()

	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		session := mgr.Get(r)

		count := int64(0)
		if val, ok := session.Get("count"); ok {
			count, _ = val.AsInt()
		}
		count++
		session.Set("count", cookiesession.Int(count))

		if err := mgr.Save(w, session); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Fprintf(w, "Hello! You have visited this page %d times.", count)
	})

	http.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		session := mgr.Get(r)
		if err := mgr.Clear(r.Context(), w, session); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		fmt.Fprint(w, "Logged out!")
	})

	fmt.Println("Server starting on :8080...")
	log.Fatal(http.ListenAndServe(":8080", nil))
}
