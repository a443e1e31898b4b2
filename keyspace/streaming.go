package keyspace

// KeyStreamingChannel consumes keys one at a time as they are decoded,
// instead of materializing the full listing. OnKey runs on the
// connection's reply-read goroutine: a slow sink stalls every reply
// pipelined behind it, so heavy work must be handed off (see ScanEach).
type KeyStreamingChannel interface {
	OnKey(key string)
}

// ValueStreamingChannel consumes values one at a time, same contract as
// KeyStreamingChannel
type ValueStreamingChannel interface {
	OnValue(value string)
}

// KeyChannelFunc adapts a function to KeyStreamingChannel
type KeyChannelFunc func(key string)

// OnKey implements KeyStreamingChannel
func (f KeyChannelFunc) OnKey(key string) {
	f(key)
}

// ValueChannelFunc adapts a function to ValueStreamingChannel
type ValueChannelFunc func(value string)

// OnValue implements ValueStreamingChannel
func (f ValueChannelFunc) OnValue(value string) {
	f(value)
}
