package client

import (
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/winguse/lettuce/interface/resp"
	"github.com/winguse/lettuce/lib/future"
	"github.com/winguse/lettuce/lib/logger"
	"github.com/winguse/lettuce/lib/sync/wait"
	"github.com/winguse/lettuce/resp/parser"
	"github.com/winguse/lettuce/resp/reply"
)

var (
	// ErrConnectionLost fails every future still pending when the
	// transport is severed. Inspect with errors.Is; the wrapped cause
	// carries the underlying network error.
	ErrConnectionLost = errors.New("client: connection lost")

	// ErrClosed fails submissions made after Close
	ErrClosed = errors.New("client: closed")
)

// Client is a pipeline mode redis client. Many commands may be outstanding
// at once on the single connection; replies correlate to them strictly by
// submission order. Submission is safe from multiple goroutines, but the
// order in which concurrent Submit calls enqueue is the order their sends
// reach the pending channel.
type Client struct {
	conn        net.Conn
	id          string
	addr        string
	pendingReqs chan *request // wait to send
	waiting     *registry     // sent, awaiting replies in FIFO order
	ticker      *time.Ticker
	closed      atomic.Bool
	closeOnce   sync.Once

	// its counter presents unfinished requests (pending and waiting)
	working *wait.Wait
}

// request is a message sent to the redis server
type request struct {
	args      [][]byte
	fut       *future.Future[resp.Reply]
	heartbeat bool
}

// Config carries the tunables of a client. The zero value is usable.
type Config struct {
	QueueSize int           // pending send buffer, default 256
	Heartbeat time.Duration // PING interval, 0 disables the heartbeat
}

const (
	defaultChanSize  = 256
	closeGracePeriod = 5 * time.Second
)

// MakeClient creates a client connected to addr with default config
func MakeClient(addr string) (*Client, error) {
	return MakeClientWithConfig(addr, Config{})
}

// MakeClientWithConfig creates a client connected to addr
func MakeClientWithConfig(addr string, cfg Config) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultChanSize
	}
	client := &Client{
		id:          uuid.NewString(),
		addr:        addr,
		conn:        conn,
		pendingReqs: make(chan *request, queueSize),
		waiting:     &registry{},
		working:     &wait.Wait{},
	}
	if cfg.Heartbeat > 0 {
		client.ticker = time.NewTicker(cfg.Heartbeat)
	}
	logger.Debug("client", client.id, "connected to", addr)
	return client, nil
}

// Start starts asynchronous goroutines
func (client *Client) Start() {
	go client.handleWrite()
	go client.handleRead()
	if client.ticker != nil {
		go client.heartbeat()
	}
}

// Close stops asynchronous goroutines and closes the connection. Commands
// already submitted are given a grace period to finish; anything the
// server never answered fails with ErrClosed.
func (client *Client) Close() {
	client.closeOnce.Do(func() {
		if client.ticker != nil {
			client.ticker.Stop()
		}
		client.closed.Store(true)
		// stop new request
		close(client.pendingReqs)

		// wait stop process
		if client.working.WaitWithTimeout(closeGracePeriod) {
			logger.Warn("client", client.id, "closed with unfinished requests")
		}

		// clean
		_ = client.conn.Close()
		for _, req := range client.waiting.fail(ErrClosed) {
			req.fut.Fail(ErrClosed)
			client.working.Done()
		}
	})
}

// Submit enqueues one command and returns its completion handle without
// touching the network on the calling goroutine. The returned future is
// completed with the decoded reply, or failed, by the reader goroutine.
func (client *Client) Submit(args [][]byte) *future.Future[resp.Reply] {
	req := &request{
		args: args,
		fut:  future.New[resp.Reply](),
	}
	if len(args) == 0 {
		req.fut.Fail(errors.New("client: empty command line"))
		return req.fut
	}
	client.enqueue(req)
	return req.fut
}

func (client *Client) enqueue(req *request) {
	if client.closed.Load() {
		req.fut.Fail(ErrClosed)
		return
	}
	client.working.Add(1)
	defer func() {
		// pendingReqs may close between the check above and the send
		if err := recover(); err != nil {
			req.fut.Fail(ErrClosed)
			client.working.Done()
		}
	}()
	client.pendingReqs <- req
}

// heartbeat keeps the connection warm with periodic PINGs. Heartbeats
// travel the same FIFO pipeline as commands, so a stalled heartbeat means
// stalled replies.
func (client *Client) heartbeat() {
	for range client.ticker.C {
		client.doHeartbeat()
	}
}

func (client *Client) doHeartbeat() {
	req := &request{
		args:      [][]byte{[]byte("PING")},
		fut:       future.New[resp.Reply](),
		heartbeat: true,
	}
	req.fut.OnComplete(func(_ resp.Reply, err error) {
		if err != nil && !client.closed.Load() {
			logger.Warn("client", client.id, "heartbeat failed:", err)
		}
	})
	client.enqueue(req)
}

// handleWrite serializes queued requests onto the connection
func (client *Client) handleWrite() {
	for req := range client.pendingReqs {
		client.doRequest(req)
	}
}

// doRequest writes one encoded command and moves it to the waiting
// registry. A write failure fails only this request; the broken stream
// surfaces through the reader goroutine, which fails the rest. No retry
// and no reconnect here: that policy belongs to whoever owns the client.
func (client *Client) doRequest(req *request) {
	if req == nil || len(req.args) == 0 {
		return
	}
	re := reply.MakeMultiBulkReply(req.args)
	_, err := client.conn.Write(re.ToBytes())
	if err != nil {
		req.fut.Fail(fmt.Errorf("%w: %v", ErrConnectionLost, err))
		client.working.Done()
		return
	}
	if err := client.waiting.push(req); err != nil {
		req.fut.Fail(err)
		client.working.Done()
	}
}

// finishRequest resolves the oldest waiting request with one decoded
// reply. Error replies from the server are still replies: they complete
// the future and the typed layer above turns them into errors. A future
// the caller cancelled swallows its outcome here.
func (client *Client) finishRequest(data resp.Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			debug.PrintStack()
			logger.Error(r)
		}
	}()
	req := client.waiting.pop()
	if req == nil {
		logger.Error("client", client.id, "received reply with no pending request")
		return
	}
	if err != nil {
		req.fut.Fail(err)
	} else {
		req.fut.Complete(data)
	}
	client.working.Done()
}

// handleRead drives the decode loop. Protocol errors fail the request at
// the head of the pipeline and keep reading; an io error fails every
// still-pending request in submission order and ends the loop.
func (client *Client) handleRead() {
	ch := parser.ParseStream(client.conn)
	for payload := range ch {
		if payload.Err != nil {
			if parser.IsProtocolError(payload.Err) {
				client.finishRequest(nil, payload.Err)
				continue
			}
			client.onConnectionLost(payload.Err)
			return
		}
		client.finishRequest(payload.Data, nil)
	}
	client.onConnectionLost(nil)
}

// onConnectionLost fails all waiting requests in submission order and
// poisons the registry so later pushes fail fast
func (client *Client) onConnectionLost(cause error) {
	failure := ErrClosed
	if !client.closed.Load() {
		if cause != nil {
			failure = fmt.Errorf("%w: %v", ErrConnectionLost, cause)
		} else {
			failure = ErrConnectionLost
		}
		logger.Error("client", client.id, "connection to", client.addr, "lost:", cause)
	}
	client.closed.Store(true)
	_ = client.conn.Close()
	for _, req := range client.waiting.fail(failure) {
		req.fut.Fail(failure)
		client.working.Done()
	}
}
