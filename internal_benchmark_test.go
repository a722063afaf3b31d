package cookiesession

import (
	"context"
	"testing"
)

func BenchmarkIsValidID(b *testing.B) {
	// A valid 32-char hex ID
	id := "0123456789abcdef0123456789abcdef"

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if !isValidID(id) {
			b.Fatal("should be valid")
		}
	}
}

func BenchmarkGenerateID(b *testing.B) {
	for i := 0; i < b.N; i++ {
		_, err := generateID()
		if err != nil {
			b.Fatal(err)
		}
	}
}

func benchmarkCommitParse(b *testing.B, encrypt bool) {
	mgr := newTestManager(b, Config{Encrypt: encrypt})
	ctx := context.Background()

	s := newSession()
	s.Set("savedText", String("hello"))
	s.Set("secretData", String("This is some secret cookie data that was set when you visited the site!"))
	s.Set("pageLoads", Int(42))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		v, err := mgr.Commit(s)
		if err != nil {
			b.Fatal(err)
		}
		if got := mgr.Parse(ctx, cookieHeader(b, v)); got.IsNew() {
			b.Fatal("round trip failed")
		}
	}
}

func BenchmarkCommitParse(b *testing.B) {
	benchmarkCommitParse(b, false)
}

func BenchmarkCommitParse_Encrypted(b *testing.B) {
	benchmarkCommitParse(b, true)
}
