package transport

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type localCall struct {
	address   string
	eventType string
	body      any
}

// mockLocal is a test implementation of LocalSender.
type mockLocal struct {
	mu    sync.Mutex
	calls []localCall
	err   error

	// holdAnnounce, when set, blocks announce events until closed.
	holdAnnounce chan struct{}
}

func (m *mockLocal) SendEvent(_ context.Context, address, eventType string, body any) error {
	if m.holdAnnounce != nil && eventType == EventTypeAnnounce {
		<-m.holdAnnounce
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, localCall{address: address, eventType: eventType, body: body})
	return m.err
}

func (m *mockLocal) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockRemote is a test implementation of RemoteSender.
type mockRemote struct {
	mu        sync.Mutex
	commands  []Command
	announces []AnnounceInfo
	err       error
}

func (m *mockRemote) SendCommand(_ context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, cmd)
	return m.err
}

func (m *mockRemote) Announce(_ context.Context, info AnnounceInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.announces = append(m.announces, info)
	return m.err
}

// mockMetrics records dispatch observations.
type mockMetrics struct {
	mu   sync.Mutex
	seen []string
}

func (m *mockMetrics) RecordDispatch(route, op string, _ bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, route+"/"+op)
}

var testAnnounce = AnnounceInfo{IP: "10.0.0.50", Port: 8000, Version: "1.0.0"}

func newTestDispatcher(enabled bool, address string) (*Dispatcher, *Tracker, *mockLocal, *mockRemote) {
	tracker := NewTracker()
	local := &mockLocal{}
	remote := &mockRemote{}
	d := NewDispatcher(NewSettings(enabled, address), tracker, local, remote, testAnnounce)
	return d, tracker, local, remote
}

func TestDispatcher_LocalRoute(t *testing.T) {
	d, _, local, remote := newTestDispatcher(true, "10.0.0.2")

	var got Result
	n := NewNotifier(func(r Result) { got = r })
	cmd := Command{DeviceID: "D", Name: "setLevel", Values: map[string]any{"level": 50}}

	if err := d.SendCommand(context.Background(), cmd, n); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}

	if local.count() != 1 || len(remote.commands) != 0 {
		t.Fatalf("local calls = %d, remote calls = %d", local.count(), len(remote.commands))
	}
	call := local.calls[0]
	if call.address != "10.0.0.2" || call.eventType != EventTypeCommand {
		t.Errorf("call = %+v", call)
	}
	body, ok := call.body.(localCommandBody)
	if !ok || body.DeviceID != "D" || body.Command != "setLevel" {
		t.Errorf("body = %+v", call.body)
	}
	if !got.OK() || got.Route != RouteLocal {
		t.Errorf("notifier result = %+v", got)
	}
}

func TestDispatcher_RouteSelection(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		address  string
		disabled bool
		want     Route
	}{
		{name: "all conditions", enabled: true, address: "10.0.0.2", want: RouteLocal},
		{name: "local disabled by config", enabled: false, address: "10.0.0.2", want: RouteRemote},
		{name: "no address", enabled: true, address: "", want: RouteRemote},
		{name: "health disabled", enabled: true, address: "10.0.0.2", disabled: true, want: RouteRemote},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, tracker, _, _ := newTestDispatcher(tt.enabled, tt.address)
			if tt.disabled {
				tracker.ReportFailure(FailureTimeout)
			}
			if got := d.Route(); got != tt.want {
				t.Errorf("Route() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDispatcher_LocalTimeoutFailsOver(t *testing.T) {
	d, tracker, local, remote := newTestDispatcher(true, "10.0.0.2")
	local.err = context.DeadlineExceeded

	var order []string
	var got Result
	tracker.SetLogger(&orderLogger{order: &order})
	n := NewNotifier(func(r Result) {
		got = r
		order = append(order, "notify")
	})

	err := d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, n)
	if Classify(err) != FailureTimeout {
		t.Fatalf("error kind = %v, want timeout", Classify(err))
	}
	if got.OK() || got.Route != RouteLocal {
		t.Errorf("notifier result = %+v, want local failure", got)
	}
	if tracker.State() != StateDisabled {
		t.Fatalf("State() = %v, want disabled", tracker.State())
	}
	if len(order) != 2 || order[0] != "notify" || order[1] != "warn" {
		t.Errorf("order = %v, want [notify warn]", order)
	}

	// Next command for any device goes remote.
	if err := d.SendCommand(context.Background(), Command{DeviceID: "B", Name: "off"}, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if len(remote.commands) != 1 || remote.commands[0].DeviceID != "B" {
		t.Errorf("remote commands = %+v", remote.commands)
	}
}

// orderLogger appends "warn" on Warn so ordering against the notifier is observable.
type orderLogger struct {
	order *[]string
}

func (l *orderLogger) Debug(string, ...any) {}
func (l *orderLogger) Info(string, ...any)  {}
func (l *orderLogger) Error(string, ...any) {}
func (l *orderLogger) Warn(string, ...any)  { *l.order = append(*l.order, "warn") }

func TestDispatcher_RejectionDoesNotDisable(t *testing.T) {
	d, tracker, local, _ := newTestDispatcher(true, "10.0.0.2")
	local.err = &StatusError{StatusCode: 500}

	fired := 0
	_ = d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, NewNotifier(func(Result) { fired++ }))

	if tracker.State() != StateReachable {
		t.Errorf("State() = %v, want reachable", tracker.State())
	}
	if fired != 1 {
		t.Errorf("notifier fired %d times, want 1", fired)
	}
}

func TestDispatcher_RemoteTimeoutDoesNotDisable(t *testing.T) {
	d, tracker, _, remote := newTestDispatcher(false, "")
	remote.err = context.DeadlineExceeded

	_ = d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, nil)
	if tracker.State() != StateReachable {
		t.Errorf("State() = %v, want reachable", tracker.State())
	}
}

func TestDispatcher_RecoveryAnnouncesOnce(t *testing.T) {
	d, tracker, local, remote := newTestDispatcher(true, "10.0.0.2")
	tracker.ReportFailure(FailureTimeout)

	// Remote success while disabled recovers and re-announces.
	if err := d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, nil); err != nil {
		t.Fatalf("SendCommand() error = %v", err)
	}
	if tracker.State() != StateReachable {
		t.Fatalf("State() = %v, want reachable", tracker.State())
	}
	if len(remote.commands) != 1 {
		t.Errorf("remote commands = %d, want 1", len(remote.commands))
	}
	d.Wait()

	// The re-announce runs after recovery, so it takes the local route.
	if local.count() != 1 || local.calls[0].eventType != EventTypeAnnounce {
		t.Fatalf("local calls = %+v, want one announce", local.calls)
	}
	if info, ok := local.calls[0].body.(AnnounceInfo); !ok || info != testAnnounce {
		t.Errorf("announce body = %+v", local.calls[0].body)
	}

	// Further successes do not announce again.
	_ = d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "off"}, nil)
	d.Wait()
	announces := 0
	for _, c := range local.calls {
		if c.eventType == EventTypeAnnounce {
			announces++
		}
	}
	if announces != 1 {
		t.Errorf("announces = %d, want 1", announces)
	}
}

func TestDispatcher_RecoveryDoesNotBlockSender(t *testing.T) {
	d, tracker, local, _ := newTestDispatcher(true, "10.0.0.2")
	local.holdAnnounce = make(chan struct{})
	tracker.ReportFailure(FailureTimeout)

	done := make(chan error, 1)
	go func() {
		done <- d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, nil)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("SendCommand() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendCommand() blocked on the re-announce")
	}

	if local.count() != 0 {
		t.Errorf("announce finished before release, local calls = %d", local.count())
	}
	close(local.holdAnnounce)
	d.Wait()
	if local.count() != 1 {
		t.Errorf("local calls after Wait = %d, want 1", local.count())
	}
}

func TestDispatcher_AnnounceRemote(t *testing.T) {
	d, _, local, remote := newTestDispatcher(false, "10.0.0.2")
	metrics := &mockMetrics{}
	d.SetMetrics(metrics)

	if err := d.Announce(context.Background()); err != nil {
		t.Fatalf("Announce() error = %v", err)
	}
	if len(remote.announces) != 1 || remote.announces[0] != testAnnounce {
		t.Errorf("remote announces = %+v", remote.announces)
	}
	if local.count() != 0 {
		t.Errorf("local calls = %d, want 0", local.count())
	}
	if len(metrics.seen) != 1 || metrics.seen[0] != "remote/announce" {
		t.Errorf("metrics = %v", metrics.seen)
	}
}

func TestDispatcher_NotifierExactlyOnce(t *testing.T) {
	errBoom := errors.New("boom")
	tests := []struct {
		name      string
		enabled   bool
		localErr  error
		remoteErr error
	}{
		{name: "local ok", enabled: true},
		{name: "local timeout", enabled: true, localErr: context.DeadlineExceeded},
		{name: "local other", enabled: true, localErr: errBoom},
		{name: "remote ok", enabled: false},
		{name: "remote rejected", enabled: false, remoteErr: &StatusError{StatusCode: 401}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, local, remote := newTestDispatcher(tt.enabled, "10.0.0.2")
			local.err = tt.localErr
			remote.err = tt.remoteErr

			fired := 0
			n := NewNotifier(func(Result) { fired++ })
			_ = d.SendCommand(context.Background(), Command{DeviceID: "A", Name: "on"}, n)
			n.Fire(Result{})

			if fired != 1 {
				t.Errorf("notifier fired %d times, want 1", fired)
			}
		})
	}
}
