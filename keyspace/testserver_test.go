package keyspace

import (
	"math/rand"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/lib/wildcard"
	"github.com/winguse/lettuce/resp/parser"
	"github.com/winguse/lettuce/resp/reply"
)

// testServer is a minimal in-memory keyspace speaking enough of the
// protocol to exercise every command of the async surface. Expiration is
// lazy: expired entries vanish on next touch.
type testServer struct {
	ln net.Listener

	mu   sync.Mutex
	data map[string]*testEntry
}

type testEntry struct {
	value    string
	list     []string
	expireAt time.Time
}

func (e *testEntry) kind() string {
	if e.list != nil {
		return "list"
	}
	return "string"
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	s := &testServer{
		ln:   ln,
		data: make(map[string]*testEntry),
	}
	go s.serve()
	t.Cleanup(func() { _ = ln.Close() })
	return s
}

func (s *testServer) addr() string {
	return s.ln.Addr().String()
}

func (s *testServer) serve() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		go s.handle(conn)
	}
}

func (s *testServer) handle(conn net.Conn) {
	defer conn.Close()
	ch := parser.ParseStream(conn)
	for payload := range ch {
		if payload.Err != nil {
			return
		}
		multi, ok := payload.Data.(*reply.MultiBulkReply)
		if !ok || len(multi.Args) == 0 {
			continue
		}
		if _, err := conn.Write(s.exec(multi.Args).ToBytes()); err != nil {
			return
		}
	}
}

// seed installs a string key directly, outside the protocol
func (s *testServer) seed(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &testEntry{value: value}
}

// seedList installs a list key directly
func (s *testServer) seedList(key string, elems ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = &testEntry{list: elems}
}

// get fetches a live entry, reaping it if expired. Callers hold mu.
func (s *testServer) get(key string) (*testEntry, bool) {
	entry, ok := s.data[key]
	if !ok {
		return nil, false
	}
	if !entry.expireAt.IsZero() && time.Now().After(entry.expireAt) {
		delete(s.data, key)
		return nil, false
	}
	return entry, true
}

func (s *testServer) liveKeys() []string {
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		if _, ok := s.get(key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func (s *testServer) exec(args [][]byte) resp.Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := strings.ToUpper(string(args[0]))
	rest := args[1:]
	switch cmd {
	case "PING":
		return reply.MakeStatusReply("PONG")
	case "DEL":
		deleted := int64(0)
		for _, raw := range rest {
			if _, ok := s.get(string(raw)); ok {
				delete(s.data, string(raw))
				deleted++
			}
		}
		return reply.MakeIntReply(deleted)
	case "EXISTS":
		if _, ok := s.get(string(rest[0])); ok {
			return reply.MakeIntReply(1)
		}
		return reply.MakeIntReply(0)
	case "EXPIRE", "PEXPIRE", "EXPIREAT", "PEXPIREAT":
		return s.execExpire(cmd, rest)
	case "TTL":
		return s.execTTL(string(rest[0]), time.Second)
	case "PTTL":
		return s.execTTL(string(rest[0]), time.Millisecond)
	case "PERSIST":
		entry, ok := s.get(string(rest[0]))
		if !ok || entry.expireAt.IsZero() {
			return reply.MakeIntReply(0)
		}
		entry.expireAt = time.Time{}
		return reply.MakeIntReply(1)
	case "RENAME":
		entry, ok := s.get(string(rest[0]))
		if !ok {
			return reply.MakeErrReply("ERR no such key")
		}
		delete(s.data, string(rest[0]))
		s.data[string(rest[1])] = entry
		return reply.MakeOkReply()
	case "RENAMENX":
		if _, ok := s.get(string(rest[1])); ok {
			return reply.MakeIntReply(0)
		}
		entry, ok := s.get(string(rest[0]))
		if !ok {
			return reply.MakeErrReply("ERR no such key")
		}
		delete(s.data, string(rest[0]))
		s.data[string(rest[1])] = entry
		return reply.MakeIntReply(1)
	case "TYPE":
		entry, ok := s.get(string(rest[0]))
		if !ok {
			return reply.MakeStatusReply("none")
		}
		return reply.MakeStatusReply(entry.kind())
	case "KEYS":
		pattern := wildcard.CompilePattern(string(rest[0]))
		matched := make([][]byte, 0)
		for _, key := range s.liveKeys() {
			if pattern.IsMatch(key) {
				matched = append(matched, []byte(key))
			}
		}
		return reply.MakeMultiBulkReply(matched)
	case "RANDOMKEY":
		keys := s.liveKeys()
		if len(keys) == 0 {
			return reply.MakeNullBulkReply()
		}
		return reply.MakeBulkReply([]byte(keys[rand.Intn(len(keys))]))
	case "SCAN":
		return s.execScan(rest)
	case "SORT":
		return s.execSort(rest)
	case "MOVE":
		if _, ok := s.get(string(rest[0])); !ok {
			return reply.MakeIntReply(0)
		}
		delete(s.data, string(rest[0]))
		return reply.MakeIntReply(1)
	case "DUMP":
		entry, ok := s.get(string(rest[0]))
		if !ok {
			return reply.MakeNullBulkReply()
		}
		return reply.MakeBulkReply([]byte(entry.value))
	case "RESTORE":
		if _, ok := s.get(string(rest[0])); ok {
			return reply.MakeErrReply("BUSYKEY Target key name already exists.")
		}
		entry := &testEntry{value: string(rest[2])}
		if ms, _ := strconv.ParseInt(string(rest[1]), 10, 64); ms > 0 {
			entry.expireAt = time.Now().Add(time.Duration(ms) * time.Millisecond)
		}
		s.data[string(rest[0])] = entry
		return reply.MakeOkReply()
	case "OBJECT":
		return s.execObject(rest)
	case "MIGRATE":
		key := string(rest[2])
		if _, ok := s.get(key); !ok {
			return reply.MakeStatusReply("NOKEY")
		}
		delete(s.data, key)
		return reply.MakeOkReply()
	default:
		return reply.MakeErrReply("ERR unknown command '" + cmd + "'")
	}
}

func (s *testServer) execExpire(cmd string, rest [][]byte) resp.Reply {
	entry, ok := s.get(string(rest[0]))
	if !ok {
		return reply.MakeIntReply(0)
	}
	n, err := strconv.ParseInt(string(rest[1]), 10, 64)
	if err != nil {
		return reply.MakeErrReply("ERR value is not an integer or out of range")
	}
	switch cmd {
	case "EXPIRE":
		entry.expireAt = time.Now().Add(time.Duration(n) * time.Second)
	case "PEXPIRE":
		entry.expireAt = time.Now().Add(time.Duration(n) * time.Millisecond)
	case "EXPIREAT":
		entry.expireAt = time.Unix(n, 0)
	case "PEXPIREAT":
		entry.expireAt = time.UnixMilli(n)
	}
	return reply.MakeIntReply(1)
}

func (s *testServer) execTTL(key string, unit time.Duration) resp.Reply {
	entry, ok := s.get(key)
	if !ok {
		return reply.MakeIntReply(-2)
	}
	if entry.expireAt.IsZero() {
		return reply.MakeIntReply(-1)
	}
	remaining := time.Until(entry.expireAt)
	// round up so a live ttl never reads as zero
	return reply.MakeIntReply(int64((remaining + unit - 1) / unit))
}

// execScan pages through the sorted key snapshot; the cursor is the
// decimal offset of the next page. MATCH filters output without
// affecting how far the cursor advances, same as the real server.
func (s *testServer) execScan(rest [][]byte) resp.Reply {
	offset, err := strconv.Atoi(string(rest[0]))
	if err != nil {
		return reply.MakeErrReply("ERR invalid cursor")
	}
	count := 10
	var pattern *wildcard.Pattern
	typeFilter := ""
	for i := 1; i+1 < len(rest); i += 2 {
		switch strings.ToUpper(string(rest[i])) {
		case "MATCH":
			pattern = wildcard.CompilePattern(string(rest[i+1]))
		case "COUNT":
			count, _ = strconv.Atoi(string(rest[i+1]))
		case "TYPE":
			typeFilter = string(rest[i+1])
		default:
			return reply.MakeSyntaxErrReply()
		}
	}
	keys := s.liveKeys()
	end := offset + count
	if end > len(keys) {
		end = len(keys)
	}
	batch := make([][]byte, 0)
	for _, key := range keys[offset:end] {
		if pattern != nil && !pattern.IsMatch(key) {
			continue
		}
		if typeFilter != "" {
			if entry, ok := s.get(key); !ok || entry.kind() != typeFilter {
				continue
			}
		}
		batch = append(batch, []byte(key))
	}
	next := "0"
	if end < len(keys) {
		next = strconv.Itoa(end)
	}
	var batchReply resp.Reply = reply.MakeEmptyMultiBulkReply()
	if len(batch) > 0 {
		batchReply = reply.MakeMultiBulkReply(batch)
	}
	return reply.MakeArrayReply([]resp.Reply{
		reply.MakeBulkReply([]byte(next)),
		batchReply,
	})
}

func (s *testServer) execSort(rest [][]byte) resp.Reply {
	entry, ok := s.get(string(rest[0]))
	if !ok {
		return reply.MakeEmptyMultiBulkReply()
	}
	if entry.list == nil {
		return &reply.WrongTypeErrReply{}
	}
	elems := append([]string(nil), entry.list...)

	alpha := false
	desc := false
	hasLimit := false
	offset, count := 0, 0
	store := ""
	for i := 1; i < len(rest); i++ {
		switch strings.ToUpper(string(rest[i])) {
		case "ALPHA":
			alpha = true
		case "ASC":
		case "DESC":
			desc = true
		case "LIMIT":
			hasLimit = true
			offset, _ = strconv.Atoi(string(rest[i+1]))
			count, _ = strconv.Atoi(string(rest[i+2]))
			i += 2
		case "STORE":
			store = string(rest[i+1])
			i++
		default:
			return reply.MakeSyntaxErrReply()
		}
	}

	if alpha {
		sort.Strings(elems)
	} else {
		var parseErr error
		sort.Slice(elems, func(i, j int) bool {
			a, errA := strconv.ParseFloat(elems[i], 64)
			b, errB := strconv.ParseFloat(elems[j], 64)
			if errA != nil || errB != nil {
				parseErr = errA
				if parseErr == nil {
					parseErr = errB
				}
			}
			return a < b
		})
		if parseErr != nil {
			return reply.MakeErrReply("ERR One or more scores can't be converted into double")
		}
	}
	if desc {
		for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
			elems[i], elems[j] = elems[j], elems[i]
		}
	}
	if hasLimit {
		if offset > len(elems) {
			offset = len(elems)
		}
		end := offset + count
		if end > len(elems) {
			end = len(elems)
		}
		elems = elems[offset:end]
	}

	if store != "" {
		s.data[store] = &testEntry{list: elems}
		return reply.MakeIntReply(int64(len(elems)))
	}
	out := make([][]byte, len(elems))
	for i, elem := range elems {
		out[i] = []byte(elem)
	}
	return reply.MakeMultiBulkReply(out)
}

func (s *testServer) execObject(rest [][]byte) resp.Reply {
	sub := strings.ToUpper(string(rest[0]))
	entry, ok := s.get(string(rest[1]))
	if !ok {
		return reply.MakeErrReply("ERR no such key")
	}
	switch sub {
	case "ENCODING":
		if entry.list != nil {
			return reply.MakeBulkReply([]byte("listpack"))
		}
		return reply.MakeBulkReply([]byte("embstr"))
	case "IDLETIME":
		return reply.MakeIntReply(0)
	case "REFCOUNT":
		return reply.MakeIntReply(1)
	default:
		return reply.MakeErrReply("ERR unknown OBJECT subcommand")
	}
}
