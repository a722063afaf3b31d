package cookiesession

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
)

// TestConcurrentRequests runs the parse/mutate/commit cycle for many clients
// at once against one Manager. Each client must only ever see its own data.
func TestConcurrentRequests(t *testing.T) {
	mgr := newTestManager(t, Config{Store: NewMemoryStore(), Encrypt: true})
	ctx := context.Background()

	const clients = 16
	const rounds = 50

	var wg sync.WaitGroup
	errs := make(chan error, clients)
	start := make(chan struct{})

	for c := 0; c < clients; c++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start

			header := ""
			for i := 1; i <= rounds; i++ {
				s := mgr.Parse(ctx, header)
				if i > 1 {
					owner, _ := s.Get("owner")
					if owner.String() != fmt.Sprint(id) {
						errs <- fmt.Errorf("client %d saw owner %q", id, owner.String())
						return
					}
				}
				n, _ := s.Get("count")
				count, _ := n.AsInt()
				if count != int64(i-1) {
					errs <- fmt.Errorf("client %d round %d: count %d", id, i, count)
					return
				}
				s.Set("owner", String(fmt.Sprint(id)))
				s.Set("count", Int(count+1))

				v, err := mgr.Commit(s)
				if err != nil {
					errs <- err
					return
				}
				cookie, err := http.ParseSetCookie(v)
				if err != nil {
					errs <- err
					return
				}
				header = cookie.Name + "=" + cookie.Value
			}
		}(c)
	}

	close(start)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}
