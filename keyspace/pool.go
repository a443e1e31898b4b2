package keyspace

import (
	"context"
	"errors"

	pool "github.com/jolestar/go-commons-pool/v2"

	"github.com/winguse/lettuce/resp/client"
)

// connectionFactory implements pool.PooledObjectFactory over
// AsyncConnection so a pool can create, validate and destroy connections
type connectionFactory struct {
	Addr string
}

// MakeObject dials and starts one connection
func (f *connectionFactory) MakeObject(ctx context.Context) (*pool.PooledObject, error) {
	c, err := client.MakeClient(f.Addr)
	if err != nil {
		return nil, err
	}
	c.Start()
	return pool.NewPooledObject(Wrap(c)), nil
}

// DestroyObject closes the pooled connection
func (f *connectionFactory) DestroyObject(ctx context.Context, object *pool.PooledObject) error {
	conn, ok := object.Object.(*AsyncConnection)
	if !ok {
		return errors.New("type mismatch")
	}
	conn.Close()
	return nil
}

// ValidateObject validates the pooled connection
func (f *connectionFactory) ValidateObject(ctx context.Context, object *pool.PooledObject) bool {
	// do validate
	return true
}

// ActivateObject activates the pooled connection
func (f *connectionFactory) ActivateObject(ctx context.Context, object *pool.PooledObject) error {
	// do activate
	return nil
}

// PassivateObject passivates the pooled connection
func (f *connectionFactory) PassivateObject(ctx context.Context, object *pool.PooledObject) error {
	// do passivate
	return nil
}

// Pool hands out AsyncConnections to callers who need more than one
// pipeline, or who want strict inter-command ordering without sharing a
// connection with other submitters
type Pool struct {
	inner *pool.ObjectPool
}

// NewPool creates a connection pool for addr
func NewPool(ctx context.Context, addr string) *Pool {
	factory := &connectionFactory{Addr: addr}
	return &Pool{
		inner: pool.NewObjectPoolWithDefaultConfig(ctx, factory),
	}
}

// Borrow takes a connection from the pool
func (p *Pool) Borrow(ctx context.Context) (*AsyncConnection, error) {
	object, err := p.inner.BorrowObject(ctx)
	if err != nil {
		return nil, err
	}
	conn, ok := object.(*AsyncConnection)
	if !ok {
		return nil, errors.New("type mismatch")
	}
	return conn, nil
}

// Return gives a borrowed connection back
func (p *Pool) Return(ctx context.Context, conn *AsyncConnection) error {
	return p.inner.ReturnObject(ctx, conn)
}

// Close destroys the pool and every idle connection
func (p *Pool) Close(ctx context.Context) {
	p.inner.Close(ctx)
}
