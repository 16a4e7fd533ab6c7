// Package events provides status event bus implementations.
//
// Implementations:
//   - redis: Redis Streams, every subscriber reads the stream from its own cursor
//   - memory: In-process, ordered delivery per subscriber
package events
