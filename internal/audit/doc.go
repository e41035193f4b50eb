// Package audit buffers security events and hands them to a sink off the request path.
//
// [Dispatcher] owns a bounded channel and one delivery goroutine. When DropIfFull is
// set a full buffer drops the event and counts it; otherwise Emit waits for room or
// for the caller's context.
//
// Sinks: [ChannelSink] for tests, [JSONWriterSink] for append-only files and
// [LogSink] for structured logs.
package audit
