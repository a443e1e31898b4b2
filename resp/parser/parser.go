package parser

import (
	"bufio"
	"io"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/lib/logger"
	"github.com/winguse/lettuce/resp/reply"
)

// Payload stores resp.Reply or error
type Payload struct {
	Data resp.Reply
	Err  error
}

// protocolError marks a malformed reply on an otherwise healthy stream.
// The parser recovers from it and keeps reading; io errors end the stream.
type protocolError struct {
	msg string
}

func (e *protocolError) Error() string {
	return "protocol error: " + e.msg
}

// IsProtocolError reports whether err is a recoverable protocol error
// rather than a stream-level io failure
func IsProtocolError(err error) bool {
	_, ok := err.(*protocolError)
	return ok
}

// ParseStream reads data from io.Reader and sends payloads through channel.
// One payload per complete reply; the channel is closed after the first io
// error, whose payload is the last one sent.
func ParseStream(reader io.Reader) <-chan *Payload {
	ch := make(chan *Payload)
	go parse0(reader, ch)
	return ch
}

func parse0(reader io.Reader, ch chan<- *Payload) {
	defer func() {
		if err := recover(); err != nil {
			logger.Error(string(debug.Stack()))
		}
	}()

	bufReader := bufio.NewReader(reader)
	for {
		data, err := parseReply(bufReader)
		if err != nil {
			ch <- &Payload{
				Err: err,
			}
			if IsProtocolError(err) {
				// malformed reply, resync at the next line
				continue
			}
			close(ch)
			return
		}
		ch <- &Payload{
			Data: data,
		}
	}
}

// parseReply reads one complete reply, recursing into array elements so
// nested shapes (SCAN's cursor + key batch) come back as a tree
func parseReply(bufReader *bufio.Reader) (resp.Reply, error) {
	line, err := readLine(bufReader)
	if err != nil {
		return nil, err
	}
	switch line[0] {
	case '+':
		return reply.MakeStatusReply(line[1:]), nil
	case '-':
		return reply.MakeErrReply(line[1:]), nil
	case ':':
		val, err := strconv.ParseInt(line[1:], 10, 64)
		if err != nil {
			return nil, &protocolError{msg: line}
		}
		return reply.MakeIntReply(val), nil
	case '$':
		return parseBulk(bufReader, line)
	case '*':
		return parseArray(bufReader, line)
	default:
		return nil, &protocolError{msg: line}
	}
}

// readLine reads a CRLF terminated header line
func readLine(bufReader *bufio.Reader) (string, error) {
	msg, err := bufReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	if len(msg) < 3 || msg[len(msg)-2] != '\r' {
		return "", &protocolError{msg: strings.TrimSuffix(msg, "\n")}
	}
	return msg[:len(msg)-2], nil
}

// parseBulk reads the body of a bulk string whose $n header is in line.
// The body is read strictly by length so CRLF inside the data survives.
func parseBulk(bufReader *bufio.Reader, line string) (resp.Reply, error) {
	bulkLen, err := strconv.ParseInt(line[1:], 10, 64)
	if err != nil || bulkLen < -1 {
		return nil, &protocolError{msg: line}
	}
	if bulkLen == -1 { // null bulk reply
		return reply.MakeNullBulkReply(), nil
	}
	body := make([]byte, bulkLen+2)
	_, err = io.ReadFull(bufReader, body)
	if err != nil {
		return nil, err
	}
	if body[len(body)-2] != '\r' || body[len(body)-1] != '\n' {
		return nil, &protocolError{msg: string(body[:len(body)-2])}
	}
	return reply.MakeBulkReply(body[:len(body)-2]), nil
}

// parseArray reads the elements of an array whose *n header is in line
func parseArray(bufReader *bufio.Reader, line string) (resp.Reply, error) {
	n, err := strconv.ParseInt(line[1:], 10, 32)
	if err != nil || n < -1 {
		return nil, &protocolError{msg: line}
	}
	if n <= 0 { // null array and empty array both decode as empty
		return reply.MakeEmptyMultiBulkReply(), nil
	}
	elems := make([]resp.Reply, 0, n)
	flat := true
	for i := int64(0); i < n; i++ {
		elem, err := parseReply(bufReader)
		if err != nil {
			// a broken element poisons the whole array
			if IsProtocolError(err) {
				return nil, &protocolError{msg: line}
			}
			return nil, err
		}
		if _, ok := elem.(*reply.BulkReply); !ok {
			flat = false
		}
		elems = append(elems, elem)
	}
	if flat {
		args := make([][]byte, len(elems))
		for i, elem := range elems {
			args[i] = elem.(*reply.BulkReply).Arg
		}
		return reply.MakeMultiBulkReply(args), nil
	}
	return reply.MakeArrayReply(elems), nil
}
