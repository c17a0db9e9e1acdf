package transport

import "sync"

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// HealthState is the local hub's reachability as last observed.
type HealthState string

// HealthState values.
const (
	StateReachable HealthState = "reachable"
	StateDisabled  HealthState = "disabled"
)

// Tracker records whether the local hub is reachable.
//
// There is no probing state. Recovery is detected from the next successful
// send on either route.
type Tracker struct {
	mu        sync.Mutex
	state     HealthState
	onRecover func()
	onChange  func(HealthState)
	logger    Logger
}

// NewTracker creates a Tracker in the Reachable state.
func NewTracker() *Tracker {
	return &Tracker{
		state:  StateReachable,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for state transitions.
func (t *Tracker) SetLogger(logger Logger) {
	t.logger = logger
}

// OnRecover registers fn to run once per Disabled → Reachable transition.
// fn runs on the reporting goroutine after the tracker lock is released.
func (t *Tracker) OnRecover(fn func()) {
	t.mu.Lock()
	t.onRecover = fn
	t.mu.Unlock()
}

// OnChange registers fn to run on every state transition with the new
// state. It runs before the OnRecover hook, outside the tracker lock.
func (t *Tracker) OnChange(fn func(HealthState)) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

// State returns the current state.
func (t *Tracker) State() HealthState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Reachable reports whether the state is Reachable.
func (t *Tracker) Reachable() bool {
	return t.State() == StateReachable
}

// ReportFailure records a failed local send. Only FailureTimeout disables
// local dispatch. It reports whether the state changed.
func (t *Tracker) ReportFailure(kind FailureKind) bool {
	if kind != FailureTimeout {
		return false
	}

	t.mu.Lock()
	if t.state == StateDisabled {
		t.mu.Unlock()
		return false
	}
	t.state = StateDisabled
	changed := t.onChange
	t.mu.Unlock()

	t.logger.Warn("local hub unreachable, falling back to remote commands; device events may not arrive")
	if changed != nil {
		changed(StateDisabled)
	}
	return true
}

// ReportSuccess records a successful send on any route. It reports whether
// the state changed, in which case the OnRecover hook has run.
func (t *Tracker) ReportSuccess() bool {
	t.mu.Lock()
	if t.state == StateReachable {
		t.mu.Unlock()
		return false
	}
	t.state = StateReachable
	hook := t.onRecover
	changed := t.onChange
	t.mu.Unlock()

	t.logger.Info("local hub reachable again, restoring local commands")
	if changed != nil {
		changed(StateReachable)
	}
	if hook != nil {
		hook()
	}
	return true
}
