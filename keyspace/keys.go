package keyspace

import (
	"strconv"
	"time"

	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/lib/future"
	"github.com/winguse/lettuce/resp/client"
)

// AsyncConnection exposes the keyspace command family over one pipelined
// connection. Every method enqueues its command and returns a future
// immediately; nothing here blocks on the network. Results are typed per
// command by the mapper, and error replies fail the future with
// *CommandError.
type AsyncConnection struct {
	c *client.Client
}

// Dial connects to addr and starts the connection's goroutines
func Dial(addr string) (*AsyncConnection, error) {
	c, err := client.MakeClient(addr)
	if err != nil {
		return nil, err
	}
	c.Start()
	return Wrap(c), nil
}

// Wrap builds an AsyncConnection over an already started client
func Wrap(c *client.Client) *AsyncConnection {
	return &AsyncConnection{c: c}
}

// Close closes the underlying connection
func (k *AsyncConnection) Close() {
	k.c.Close()
}

func cmdLine(parts ...string) [][]byte {
	args := make([][]byte, len(parts))
	for i, part := range parts {
		args[i] = []byte(part)
	}
	return args
}

func run[T any](c *client.Client, mapFn func(resp.Reply) (T, error), args [][]byte) *future.Future[T] {
	return future.Then(c.Submit(args), mapFn)
}

// Del deletes keys and resolves to the number actually removed
func (k *AsyncConnection) Del(keys ...string) *future.Future[int64] {
	return run(k.c, mapInt("DEL"), cmdLine(append([]string{"DEL"}, keys...)...))
}

// Dump resolves to the serialized form of the value at key, or nil when
// the key does not exist
func (k *AsyncConnection) Dump(key string) *future.Future[[]byte] {
	return run(k.c, mapBytes("DUMP"), cmdLine("DUMP", key))
}

// Exists resolves to whether key exists
func (k *AsyncConnection) Exists(key string) *future.Future[bool] {
	return run(k.c, mapBool("EXISTS"), cmdLine("EXISTS", key))
}

// expireCmd is the one encoder behind the four expire variants: each
// variant is the same operation with its own wire unit
func (k *AsyncConnection) expireCmd(cmd, key string, n int64) *future.Future[bool] {
	return run(k.c, mapBool(cmd), cmdLine(cmd, key, strconv.FormatInt(n, 10)))
}

// Expire sets a relative time to live, truncated to whole seconds.
// Resolves to false when the key does not exist.
func (k *AsyncConnection) Expire(key string, ttl time.Duration) *future.Future[bool] {
	return k.expireCmd("EXPIRE", key, int64(ttl/time.Second))
}

// PExpire sets a relative time to live with millisecond resolution
func (k *AsyncConnection) PExpire(key string, ttl time.Duration) *future.Future[bool] {
	return k.expireCmd("PEXPIRE", key, int64(ttl/time.Millisecond))
}

// ExpireAt sets an absolute expiration with second resolution
func (k *AsyncConnection) ExpireAt(key string, at time.Time) *future.Future[bool] {
	return k.expireCmd("EXPIREAT", key, at.Unix())
}

// PExpireAt sets an absolute expiration with millisecond resolution
func (k *AsyncConnection) PExpireAt(key string, at time.Time) *future.Future[bool] {
	return k.expireCmd("PEXPIREAT", key, at.UnixMilli())
}

// Keys resolves to all keys matching pattern. The whole listing is
// materialized; prefer KeysStream or Scan on large keyspaces.
func (k *AsyncConnection) Keys(pattern string) *future.Future[[]string] {
	return run(k.c, mapStrings("KEYS"), cmdLine("KEYS", pattern))
}

// KeysStream delivers every matching key to ch in server order and
// resolves to the delivered count. ch runs on the reply-read goroutine.
func (k *AsyncConnection) KeysStream(ch KeyStreamingChannel, pattern string) *future.Future[int64] {
	return run(k.c, mapStreamed("KEYS", ch.OnKey), cmdLine("KEYS", pattern))
}

// Migrate transfers key to another instance, resolving to the server's
// status string
func (k *AsyncConnection) Migrate(host string, port int, key string, db int, timeout time.Duration) *future.Future[string] {
	return run(k.c, mapStatus("MIGRATE"), cmdLine("MIGRATE",
		host,
		strconv.Itoa(port),
		key,
		strconv.Itoa(db),
		strconv.FormatInt(int64(timeout/time.Millisecond), 10)))
}

// Move moves key to another database, resolving to whether it moved
func (k *AsyncConnection) Move(key string, db int) *future.Future[bool] {
	return run(k.c, mapBool("MOVE"), cmdLine("MOVE", key, strconv.Itoa(db)))
}

// ObjectEncoding resolves to the internal representation of the value at
// key
func (k *AsyncConnection) ObjectEncoding(key string) *future.Future[string] {
	return run(k.c, mapBulkString("OBJECT"), cmdLine("OBJECT", "ENCODING", key))
}

// ObjectIdletime resolves to the seconds since the value at key was last
// touched
func (k *AsyncConnection) ObjectIdletime(key string) *future.Future[int64] {
	return run(k.c, mapInt("OBJECT"), cmdLine("OBJECT", "IDLETIME", key))
}

// ObjectRefcount resolves to the reference count of the value at key
func (k *AsyncConnection) ObjectRefcount(key string) *future.Future[int64] {
	return run(k.c, mapInt("OBJECT"), cmdLine("OBJECT", "REFCOUNT", key))
}

// Persist removes the expiration from key, resolving to whether one was
// removed
func (k *AsyncConnection) Persist(key string) *future.Future[bool] {
	return run(k.c, mapBool("PERSIST"), cmdLine("PERSIST", key))
}

// PTTL resolves to the remaining time to live in milliseconds, -1 when
// key has no expiration and -2 when key does not exist
func (k *AsyncConnection) PTTL(key string) *future.Future[int64] {
	return run(k.c, mapInt("PTTL"), cmdLine("PTTL", key))
}

// RandomKey resolves to a random key, or the empty string when the
// keyspace is empty
func (k *AsyncConnection) RandomKey() *future.Future[string] {
	return run(k.c, mapBulkString("RANDOMKEY"), cmdLine("RANDOMKEY"))
}

// Rename renames key to newKey, resolving to the server's status string
func (k *AsyncConnection) Rename(key, newKey string) *future.Future[string] {
	return run(k.c, mapStatus("RENAME"), cmdLine("RENAME", key, newKey))
}

// RenameNX renames key to newKey only if newKey does not exist,
// resolving to whether the rename happened
func (k *AsyncConnection) RenameNX(key, newKey string) *future.Future[bool] {
	return run(k.c, mapBool("RENAMENX"), cmdLine("RENAMENX", key, newKey))
}

// Restore recreates key from a value previously produced by Dump.
// ttl 0 means no expiration.
func (k *AsyncConnection) Restore(key string, ttl time.Duration, value []byte) *future.Future[string] {
	args := cmdLine("RESTORE", key, strconv.FormatInt(int64(ttl/time.Millisecond), 10))
	args = append(args, value)
	return run(k.c, mapStatus("RESTORE"), args)
}

// Sort resolves to the sorted elements of the collection at key
func (k *AsyncConnection) Sort(key string, args *SortArgs) *future.Future[[]string] {
	return run(k.c, mapStrings("SORT"), args.appendArgs(cmdLine("SORT", key)))
}

// SortStream delivers the sorted elements to ch in server order and
// resolves to the delivered count
func (k *AsyncConnection) SortStream(ch ValueStreamingChannel, key string, args *SortArgs) *future.Future[int64] {
	return run(k.c, mapStreamed("SORT", ch.OnValue), args.appendArgs(cmdLine("SORT", key)))
}

// SortStore sorts the collection at key into destination, resolving to
// the stored element count
func (k *AsyncConnection) SortStore(key string, args *SortArgs, destination string) *future.Future[int64] {
	line := args.appendArgs(cmdLine("SORT", key))
	line = append(line, []byte("STORE"), []byte(destination))
	return run(k.c, mapInt("SORT"), line)
}

// TTL resolves to the remaining time to live in seconds, -1 when key has
// no expiration and -2 when key does not exist
func (k *AsyncConnection) TTL(key string) *future.Future[int64] {
	return run(k.c, mapInt("TTL"), cmdLine("TTL", key))
}

// Type resolves to the type of the value at key, or the literal string
// "none" when key does not exist
func (k *AsyncConnection) Type(key string) *future.Future[string] {
	return run(k.c, mapStatus("TYPE"), cmdLine("TYPE", key))
}

// Scan issues one step of an incremental keyspace traversal. Pass the
// zero cursor to start and the returned cursor to continue until
// IsFinished reports true.
//
// The traversal is deliberately weak: a key present from start to finish
// is returned at least once, a key may be returned more than once, and
// keys added or removed while scanning may or may not appear. Callers
// needing exactly-once semantics dedupe themselves. args must stay the
// same across all calls of one traversal.
func (k *AsyncConnection) Scan(cursor ScanCursor, args *ScanArgs) *future.Future[*KeyScanCursor] {
	return run(k.c, func(re resp.Reply) (*KeyScanCursor, error) {
		next, keys, err := mapScanBatch(re)
		if err != nil {
			return nil, err
		}
		return &KeyScanCursor{ScanCursor: next, Keys: keys}, nil
	}, args.appendArgs(cmdLine("SCAN", cursor.token())))
}

// ScanStream is Scan with the batch delivered to ch key by key instead
// of materialized; the result carries only the delivered count
func (k *AsyncConnection) ScanStream(ch KeyStreamingChannel, cursor ScanCursor, args *ScanArgs) *future.Future[*StreamScanCursor] {
	return run(k.c, func(re resp.Reply) (*StreamScanCursor, error) {
		next, keys, err := mapScanBatch(re)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			ch.OnKey(key)
		}
		return &StreamScanCursor{ScanCursor: next, Count: int64(len(keys))}, nil
	}, args.appendArgs(cmdLine("SCAN", cursor.token())))
}
