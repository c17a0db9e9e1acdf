package transport

import (
	"sync"
	"testing"
)

// recordingLogger captures log calls for assertions.
type recordingLogger struct {
	mu    sync.Mutex
	warns []string
	infos []string
}

func (l *recordingLogger) Debug(string, ...any) {}
func (l *recordingLogger) Error(string, ...any) {}

func (l *recordingLogger) Info(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(msg string, _ ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, msg)
}

func TestTracker_InitialState(t *testing.T) {
	if got := NewTracker().State(); got != StateReachable {
		t.Errorf("State() = %v, want %v", got, StateReachable)
	}
}

func TestTracker_FailureKinds(t *testing.T) {
	tests := []struct {
		kind        FailureKind
		wantChanged bool
	}{
		{FailureTimeout, true},
		{FailureRejected, false},
		{FailureUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			tr := NewTracker()
			if got := tr.ReportFailure(tt.kind); got != tt.wantChanged {
				t.Errorf("ReportFailure() = %v, want %v", got, tt.wantChanged)
			}
			if tr.Reachable() == tt.wantChanged {
				t.Errorf("Reachable() = %v after %v", tr.Reachable(), tt.kind)
			}
		})
	}
}

func TestTracker_WarnsOnce(t *testing.T) {
	log := &recordingLogger{}
	tr := NewTracker()
	tr.SetLogger(log)

	tr.ReportFailure(FailureTimeout)
	if tr.ReportFailure(FailureTimeout) {
		t.Error("second ReportFailure() = true, want false")
	}
	tr.ReportFailure(FailureTimeout)

	if len(log.warns) != 1 {
		t.Errorf("warnings = %d, want 1", len(log.warns))
	}
}

func TestTracker_RecoverOnce(t *testing.T) {
	log := &recordingLogger{}
	tr := NewTracker()
	tr.SetLogger(log)

	hooks := 0
	tr.OnRecover(func() { hooks++ })

	if tr.ReportSuccess() {
		t.Error("ReportSuccess() while reachable = true, want false")
	}

	tr.ReportFailure(FailureTimeout)
	if !tr.ReportSuccess() {
		t.Error("ReportSuccess() while disabled = false, want true")
	}
	tr.ReportSuccess()
	tr.ReportSuccess()

	if hooks != 1 {
		t.Errorf("recover hook calls = %d, want 1", hooks)
	}
	if len(log.infos) != 1 {
		t.Errorf("recovery notices = %d, want 1", len(log.infos))
	}
	if tr.State() != StateReachable {
		t.Errorf("State() = %v, want reachable", tr.State())
	}
}

func TestTracker_HookMayReenter(t *testing.T) {
	tr := NewTracker()
	tr.OnRecover(func() {
		// The hook runs outside the lock and can report again.
		tr.ReportSuccess()
	})

	tr.ReportFailure(FailureTimeout)
	tr.ReportSuccess()

	if !tr.Reachable() {
		t.Error("Reachable() = false after recovery")
	}
}

func TestTracker_OnChange(t *testing.T) {
	tr := NewTracker()

	var order []string
	tr.OnChange(func(s HealthState) { order = append(order, "change:"+string(s)) })
	tr.OnRecover(func() { order = append(order, "recover") })

	tr.ReportFailure(FailureRejected)
	tr.ReportFailure(FailureTimeout)
	tr.ReportFailure(FailureTimeout)
	tr.ReportSuccess()
	tr.ReportSuccess()

	want := []string{"change:disabled", "change:reachable", "recover"}
	if len(order) != len(want) {
		t.Fatalf("hook calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("hook calls = %v, want %v", order, want)
			break
		}
	}
}
