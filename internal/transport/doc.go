// Package transport delivers raw notification lines from the injection bridge.
//
// Sources:
//   - ReaderSource: newline-delimited JSON from any reader (stdin, pipes)
//   - OpenFile: a capture file, zstd-compressed captures are detected by magic
//   - FollowSource: a capture file that is still being written (tail -f)
//   - WebSocketSource: one notification per websocket message
//
// Open picks the source from a single input string.
//
// Sources are not safe for concurrent use. eventstream reads from one
// goroutine and hands lines to the processor through a channel.
package transport
