package keyspace

import (
	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/resp/reply"
)

// The mapper converts primitive reply shapes into the typed result each
// command declares. Error replies become *CommandError regardless of the
// expected shape; any other mismatch is a *ProtocolError.

// unwrapErr intercepts server error replies before shape mapping
func unwrapErr(re resp.Reply) error {
	if errReply, ok := re.(reply.ErrorReply); ok {
		return &CommandError{Message: errReply.Error()}
	}
	return nil
}

func shapeErr(cmd string, re resp.Reply) error {
	return &ProtocolError{Cmd: cmd, Got: string(re.ToBytes())}
}

// mapBool maps the 0/1 integer convention onto bool. Any other integer
// is a protocol violation, not a truthy value.
func mapBool(cmd string) func(resp.Reply) (bool, error) {
	return func(re resp.Reply) (bool, error) {
		if err := unwrapErr(re); err != nil {
			return false, err
		}
		intReply, ok := re.(*reply.IntReply)
		if !ok {
			return false, shapeErr(cmd, re)
		}
		switch intReply.Code {
		case 0:
			return false, nil
		case 1:
			return true, nil
		default:
			return false, shapeErr(cmd, re)
		}
	}
}

// mapInt passes integer replies through untouched. Negative TTL
// sentinels (-1 no expiration, -2 no such key) must reach the caller
// distinct, so no clamping happens here.
func mapInt(cmd string) func(resp.Reply) (int64, error) {
	return func(re resp.Reply) (int64, error) {
		if err := unwrapErr(re); err != nil {
			return 0, err
		}
		intReply, ok := re.(*reply.IntReply)
		if !ok {
			return 0, shapeErr(cmd, re)
		}
		return intReply.Code, nil
	}
}

// mapStatus maps simple status replies ("OK", type names) to their text.
// TYPE on a missing key answers the status "none": that is a value the
// caller receives, not an absence.
func mapStatus(cmd string) func(resp.Reply) (string, error) {
	return func(re resp.Reply) (string, error) {
		if err := unwrapErr(re); err != nil {
			return "", err
		}
		switch typed := re.(type) {
		case *reply.StatusReply:
			return typed.Status, nil
		case *reply.OkReply:
			return "OK", nil
		default:
			return "", shapeErr(cmd, re)
		}
	}
}

// mapBulkString maps bulk replies to a string; a nil reply maps to the
// empty string (RANDOMKEY on an empty keyspace)
func mapBulkString(cmd string) func(resp.Reply) (string, error) {
	return func(re resp.Reply) (string, error) {
		if err := unwrapErr(re); err != nil {
			return "", err
		}
		switch typed := re.(type) {
		case *reply.BulkReply:
			return string(typed.Arg), nil
		case *reply.NullBulkReply:
			return "", nil
		default:
			return "", shapeErr(cmd, re)
		}
	}
}

// mapBytes maps bulk replies to a byte slice; a nil reply maps to a nil
// slice (DUMP on a missing key)
func mapBytes(cmd string) func(resp.Reply) ([]byte, error) {
	return func(re resp.Reply) ([]byte, error) {
		if err := unwrapErr(re); err != nil {
			return nil, err
		}
		switch typed := re.(type) {
		case *reply.BulkReply:
			return typed.Arg, nil
		case *reply.NullBulkReply:
			return nil, nil
		default:
			return nil, shapeErr(cmd, re)
		}
	}
}

// mapStrings maps array replies to an ordered string slice, preserving
// server order
func mapStrings(cmd string) func(resp.Reply) ([]string, error) {
	return func(re resp.Reply) ([]string, error) {
		if err := unwrapErr(re); err != nil {
			return nil, err
		}
		return elements(cmd, re)
	}
}

// elements extracts the string elements of any array-shaped reply
func elements(cmd string, re resp.Reply) ([]string, error) {
	switch typed := re.(type) {
	case *reply.MultiBulkReply:
		out := make([]string, len(typed.Args))
		for i, arg := range typed.Args {
			out[i] = string(arg)
		}
		return out, nil
	case *reply.EmptyMultiBulkReply:
		return []string{}, nil
	case *reply.ArrayReply:
		out := make([]string, 0, len(typed.Elems))
		for _, elem := range typed.Elems {
			bulk, ok := elem.(*reply.BulkReply)
			if !ok {
				return nil, shapeErr(cmd, re)
			}
			out = append(out, string(bulk.Arg))
		}
		return out, nil
	default:
		return nil, shapeErr(cmd, re)
	}
}

// mapStreamed feeds every element of an array reply to deliver in server
// order and yields the delivered count as the command's scalar result.
// It runs on the reply-read goroutine. A failed future upstream means
// deliver saw only a prefix; totality holds only on success.
func mapStreamed(cmd string, deliver func(string)) func(resp.Reply) (int64, error) {
	return func(re resp.Reply) (int64, error) {
		if err := unwrapErr(re); err != nil {
			return 0, err
		}
		elems, err := elements(cmd, re)
		if err != nil {
			return 0, err
		}
		for _, elem := range elems {
			deliver(elem)
		}
		return int64(len(elems)), nil
	}
}
