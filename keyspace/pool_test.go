package keyspace

import (
	"context"
	"testing"
)

func TestPoolBorrowReturnReuse(t *testing.T) {
	s := startTestServer(t)
	s.seed("k", "v")
	ctx := context.Background()

	p := NewPool(ctx, s.addr())
	t.Cleanup(func() { p.Close(ctx) })

	conn, err := p.Borrow(ctx)
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	exists, err := conn.Exists("k").Await(awaitTimeout)
	if err != nil || !exists {
		t.Fatalf("command over pooled connection: %v %v", exists, err)
	}
	if err := p.Return(ctx, conn); err != nil {
		t.Fatalf("return: %v", err)
	}

	again, err := p.Borrow(ctx)
	if err != nil {
		t.Fatalf("second borrow: %v", err)
	}
	if exists, err := again.Exists("k").Await(awaitTimeout); err != nil || !exists {
		t.Errorf("command over reused connection: %v %v", exists, err)
	}
	if err := p.Return(ctx, again); err != nil {
		t.Fatalf("second return: %v", err)
	}
}
