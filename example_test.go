package sessionlock_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/sessionlock"
	"github.com/aretw0/sessionlock/pkg/domain"
)

// Example shows two front ends contending for the same session.
func Example() {
	ctx := context.Background()
	svc, err := sessionlock.Open(ctx, sessionlock.DefaultConfig())
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()
	store := svc.Store

	rec := domain.NewRecord("s1", "shop", 20, []byte("cart=1"), 1, domain.ActionNone, time.Now())
	if err := store.Insert(ctx, rec); err != nil {
		log.Fatal(err)
	}

	// 1. Front end A acquires the lock
	a, err := store.Fetch(ctx, "s1", "shop", true)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("A locked=%v token=%d payload=%s\n", a.Locked, a.LockToken, a.Record.Payload)

	// 2. Front end B is told the session is busy
	b, err := store.Fetch(ctx, "s1", "shop", true)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("B locked=%v token=%d\n", b.Locked, b.LockToken)

	// 3. A writes back and releases
	if err := store.ReleaseAndUpdate(ctx, "s1", "shop", a.LockToken, []byte("cart=2"), 1, 20); err != nil {
		log.Fatal(err)
	}

	// 4. B retries and gets the next token
	b, err = store.Fetch(ctx, "s1", "shop", true)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("B locked=%v token=%d payload=%s\n", b.Locked, b.LockToken, b.Record.Payload)

	// Output:
	// A locked=false token=1 payload=cart=1
	// B locked=true token=1
	// B locked=false token=2 payload=cart=2
}
