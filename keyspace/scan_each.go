package keyspace

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// ScanEach drives a full traversal and calls fn once per returned key.
// fn runs on its own goroutine, fed through a bounded channel, so a slow
// fn never stalls the connection's reply path. The traversal stops at
// the terminal cursor, on the first error from fn, or when ctx is done.
// Keys may repeat; see Scan.
func ScanEach(ctx context.Context, conn *AsyncConnection, args *ScanArgs, fn func(key string) error) error {
	keys := make(chan string, 64)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(keys)
		cursor := ScanCursor{}
		for {
			batch, err := conn.Scan(cursor, args).Get(ctx)
			if err != nil {
				return err
			}
			for _, key := range batch.Keys {
				select {
				case keys <- key:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			if batch.IsFinished() {
				return nil
			}
			cursor = batch.ScanCursor
		}
	})

	g.Go(func() error {
		for key := range keys {
			if err := fn(key); err != nil {
				return err
			}
		}
		return nil
	})

	return g.Wait()
}
