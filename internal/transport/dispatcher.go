package transport

import (
	"context"
	"sync"
	"time"
)

// Command is one outgoing device command.
type Command struct {
	// DeviceID is the hub's device identifier.
	DeviceID string

	// DeviceName is used for logging only.
	DeviceName string

	// Name is the command name (e.g. "on", "setLevel").
	Name string

	// Values is the command argument payload. May be nil.
	Values any
}

// AnnounceInfo describes this endpoint to the hub for start-direct.
type AnnounceInfo struct {
	IP      string `json:"ip"`
	Port    int    `json:"port"`
	Version string `json:"version"`
}

// localCommandBody is the local route's command envelope.
type localCommandBody struct {
	DeviceID string `json:"deviceid"`
	Command  string `json:"command"`
	Values   any    `json:"values"`
}

// LocalSender delivers events over the LAN route.
type LocalSender interface {
	SendEvent(ctx context.Context, address, eventType string, body any) error
}

// RemoteSender delivers commands and announcements over the cloud API.
type RemoteSender interface {
	SendCommand(ctx context.Context, cmd Command) error
	Announce(ctx context.Context, info AnnounceInfo) error
}

// Metrics receives one observation per send. Optional.
type Metrics interface {
	RecordDispatch(route string, operation string, success bool, latency time.Duration)
}

// Dispatcher routes commands and announcements to the local or remote
// transport and feeds outcomes to the health Tracker.
//
// The route is chosen per call, so a health transition takes effect on
// the very next send. The Dispatcher never retries.
type Dispatcher struct {
	settings *Settings
	tracker  *Tracker
	local    LocalSender
	remote   RemoteSender
	announce AnnounceInfo
	metrics  Metrics
	logger   Logger

	// announcing tracks background re-announcements.
	announcing sync.WaitGroup
}

// reannounceTimeout bounds a re-announcement after recovery.
const reannounceTimeout = 30 * time.Second

// NewDispatcher creates a Dispatcher and registers its re-announce on
// the tracker's recovery hook.
func NewDispatcher(settings *Settings, tracker *Tracker, local LocalSender, remote RemoteSender, announce AnnounceInfo) *Dispatcher {
	d := &Dispatcher{
		settings: settings,
		tracker:  tracker,
		local:    local,
		remote:   remote,
		announce: announce,
		logger:   noopLogger{},
	}
	tracker.OnRecover(d.recovered)
	return d
}

// SetLogger sets the logger for the dispatcher.
func (d *Dispatcher) SetLogger(logger Logger) {
	d.logger = logger
}

// SetMetrics sets the dispatch metrics sink.
func (d *Dispatcher) SetMetrics(m Metrics) {
	d.metrics = m
}

// Route returns the route the next send would use.
func (d *Dispatcher) Route() Route {
	if d.settings.Snapshot().LocalUsable() && d.tracker.Reachable() && d.local != nil {
		return RouteLocal
	}
	return RouteRemote
}

// SendCommand sends cmd over the selected route.
//
// notify, if non-nil, fires exactly once: on failure before the tracker
// is told, on success before recovery handling runs.
func (d *Dispatcher) SendCommand(ctx context.Context, cmd Command, notify *Notifier) error {
	route := d.Route()
	address := d.settings.Snapshot().LocalAddress

	d.logger.Info("sending device command",
		"command", cmd.Name,
		"device_id", cmd.DeviceID,
		"device_name", cmd.DeviceName,
		"route", route,
	)

	start := time.Now()
	var err error
	if route == RouteLocal {
		err = d.local.SendEvent(ctx, address, EventTypeCommand, localCommandBody{
			DeviceID: cmd.DeviceID,
			Command:  cmd.Name,
			Values:   cmd.Values,
		})
	} else if d.remote == nil {
		err = ErrNoRemote
	} else {
		err = d.remote.SendCommand(ctx, cmd)
	}
	err = NewSendError(route, err)
	d.record(route, "command", err, time.Since(start))

	notify.Fire(Result{Route: route, Err: err})
	d.settle(route, err, "command", cmd.DeviceID)
	return err
}

// Announce tells the hub where to push events (start-direct). It follows
// the same routing and health rules as SendCommand.
func (d *Dispatcher) Announce(ctx context.Context) error {
	route := d.Route()
	address := d.settings.Snapshot().LocalAddress

	d.logger.Info("sending start-direct announcement",
		"ip", d.announce.IP,
		"port", d.announce.Port,
		"route", route,
	)

	start := time.Now()
	var err error
	if route == RouteLocal {
		err = d.local.SendEvent(ctx, address, EventTypeAnnounce, d.announce)
	} else if d.remote == nil {
		err = ErrNoRemote
	} else {
		err = d.remote.Announce(ctx, d.announce)
	}
	err = NewSendError(route, err)
	d.record(route, "announce", err, time.Since(start))

	d.settle(route, err, "announce", "")
	return err
}

// settle reports the outcome to the tracker.
func (d *Dispatcher) settle(route Route, err error, op, deviceID string) {
	if err == nil {
		d.tracker.ReportSuccess()
		return
	}

	kind := Classify(err)
	d.logger.Error("send failed",
		"operation", op,
		"device_id", deviceID,
		"route", route,
		"kind", kind.String(),
		"error", err,
	)
	if route == RouteLocal {
		d.tracker.ReportFailure(kind)
	}
}

// Wait blocks until background re-announcements have finished.
func (d *Dispatcher) Wait() {
	d.announcing.Wait()
}

// recovered runs on Disabled → Reachable. The re-announce happens in the
// background so the send that observed recovery returns immediately.
func (d *Dispatcher) recovered() {
	d.announcing.Add(1)
	go func() {
		defer d.announcing.Done()
		d.reannounce()
	}()
}

func (d *Dispatcher) reannounce() {
	ctx, cancel := context.WithTimeout(context.Background(), reannounceTimeout)
	defer cancel()
	if err := d.Announce(ctx); err != nil {
		d.logger.Warn("re-announce after recovery failed", "error", err)
	}
}

func (d *Dispatcher) record(route Route, op string, err error, latency time.Duration) {
	if d.metrics == nil {
		return
	}
	d.metrics.RecordDispatch(string(route), op, err == nil, latency)
}
