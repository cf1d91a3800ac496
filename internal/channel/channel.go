// Package channel wraps a buffered Go channel with the small surface the
// store's snapshot fanout needs: non-blocking sends for slow subscribers
// and a countable buffer for the monitor.
package channel

// Buffered is a buffered channel of T.
type Buffered[T any] struct {
	ch chan T
}

// NewBuffered creates a channel with the given buffer size.
func NewBuffered[T any](size int) *Buffered[T] {
	return &Buffered[T]{ch: make(chan T, size)}
}

// Send blocks until the value is buffered or received.
func (b *Buffered[T]) Send(v T) {
	b.ch <- v
}

// TrySend sends without blocking and reports whether the value was
// accepted. Subscribers that stop draining lose snapshots instead of
// stalling the publisher; the next accepted snapshot supersedes anything
// missed because snapshots are total replacements.
func (b *Buffered[T]) TrySend(v T) bool {
	select {
	case b.ch <- v:
		return true
	default:
		return false
	}
}

// Receive returns the receive side.
func (b *Buffered[T]) Receive() <-chan T {
	return b.ch
}

// Len returns the number of buffered values not yet received.
func (b *Buffered[T]) Len() int {
	return len(b.ch)
}

// Close closes the channel. Only the owning sender may call this.
func (b *Buffered[T]) Close() {
	close(b.ch)
}
