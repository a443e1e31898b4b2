package keyspace

import (
	"strconv"

	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/resp/reply"
)

// scanTerminal is the token the server returns when a traversal is
// complete. It happens to equal the start token; the two are
// distinguished by position in the call sequence, never by value alone.
const scanTerminal = "0"

// ScanCursor is the opaque continuation token of one keyspace traversal.
// The zero value starts a new traversal. The token is meaningful only to
// the server and only within the traversal that issued it: compare it
// against nothing, persist it unchanged between calls, and never feed a
// cursor from one scan into another.
type ScanCursor struct {
	Cursor   string
	Finished bool
}

// token returns the wire form of the cursor
func (c ScanCursor) token() string {
	if c.Cursor == "" {
		return scanTerminal
	}
	return c.Cursor
}

// IsFinished reports whether the traversal reached the terminal cursor
func (c ScanCursor) IsFinished() bool {
	return c.Finished
}

// KeyScanCursor is one scan batch with its keys materialized
type KeyScanCursor struct {
	ScanCursor
	Keys []string
}

// StreamScanCursor is one scan batch whose keys went to a streaming
// channel; only the delivered count is retained
type StreamScanCursor struct {
	ScanCursor
	Count int64
}

// ScanArgs configures a traversal. Redis treats COUNT as an advisory
// batch-size hint, not a limit, and applies MATCH server side before the
// hint is counted. The same args must be supplied on every call of one
// logical traversal; changing them mid-way voids the coverage guarantee.
type ScanArgs struct {
	match      string
	count      int64
	typeFilter string
}

// NewScanArgs creates empty ScanArgs
func NewScanArgs() *ScanArgs {
	return &ScanArgs{}
}

// Match sets the server-side glob filter
func (a *ScanArgs) Match(pattern string) *ScanArgs {
	a.match = pattern
	return a
}

// Count sets the advisory batch size hint
func (a *ScanArgs) Count(count int64) *ScanArgs {
	a.count = count
	return a
}

// Type restricts the traversal to keys holding the given value type,
// where the server supports it
func (a *ScanArgs) Type(typeName string) *ScanArgs {
	a.typeFilter = typeName
	return a
}

func (a *ScanArgs) appendArgs(dst [][]byte) [][]byte {
	if a == nil {
		return dst
	}
	if a.match != "" {
		dst = append(dst, []byte("MATCH"), []byte(a.match))
	}
	if a.count > 0 {
		dst = append(dst, []byte("COUNT"), []byte(strconv.FormatInt(a.count, 10)))
	}
	if a.typeFilter != "" {
		dst = append(dst, []byte("TYPE"), []byte(a.typeFilter))
	}
	return dst
}

// mapScanBatch decodes the two-element scan reply: the next cursor
// followed by the key batch
func mapScanBatch(re resp.Reply) (ScanCursor, []string, error) {
	if err := unwrapErr(re); err != nil {
		return ScanCursor{}, nil, err
	}
	arr, ok := re.(*reply.ArrayReply)
	if !ok || len(arr.Elems) != 2 {
		return ScanCursor{}, nil, shapeErr("SCAN", re)
	}
	cursorBulk, ok := arr.Elems[0].(*reply.BulkReply)
	if !ok {
		return ScanCursor{}, nil, shapeErr("SCAN", re)
	}
	keys, err := elements("SCAN", arr.Elems[1])
	if err != nil {
		return ScanCursor{}, nil, err
	}
	token := string(cursorBulk.Arg)
	cursor := ScanCursor{
		Cursor:   token,
		Finished: token == scanTerminal,
	}
	return cursor, keys, nil
}
