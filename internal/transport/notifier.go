package transport

import "sync/atomic"

// Result is the outcome delivered to a Notifier.
type Result struct {
	Route Route
	Err   error
}

// OK reports whether the send succeeded.
func (r Result) OK() bool {
	return r.Err == nil
}

// Notifier is a single-consume completion token. The callback is claimed
// with an atomic swap, so it runs at most once however many times Fire is
// called. A nil *Notifier is valid and does nothing.
type Notifier struct {
	fn atomic.Pointer[func(Result)]
}

// NewNotifier wraps fn in a one-shot token.
func NewNotifier(fn func(Result)) *Notifier {
	n := &Notifier{}
	if fn != nil {
		n.fn.Store(&fn)
	}
	return n
}

// Fire runs the callback if it has not run yet. It reports whether this
// call was the one that ran it.
func (n *Notifier) Fire(res Result) bool {
	if n == nil {
		return false
	}
	fn := n.fn.Swap(nil)
	if fn == nil {
		return false
	}
	(*fn)(res)
	return true
}

// Fired reports whether the callback has been claimed.
func (n *Notifier) Fired() bool {
	return n == nil || n.fn.Load() == nil
}
