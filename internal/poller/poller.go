// Package poller runs reconciliation cycles against the hub's device list.
//
// A cycle fetches a full snapshot, applies the hub's location metadata,
// computes a reconcile.Plan against the cache and applies it in order:
// removals, then updates, then creates. Only one cycle runs at a time.
package poller

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
	"github.com/nerrad567/gray-logic-hublink/internal/reconcile"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// Logger defines the logging interface used by the Poller.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Source values for cycle logging.
const (
	SourceStartup  = "first launch"
	SourceInterval = "interval"
	SourcePush     = "hub requested"
)

// SnapshotSource fetches the authoritative device list.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (device.Snapshot, error)
}

// Presenter owns the presentation object for each device.
type Presenter interface {
	// Create builds the presentation object for a new device and returns its handle.
	Create(rec device.Record) device.Handle

	// Refresh pushes a full record to an existing presentation object.
	Refresh(h device.Handle, rec device.Record)

	// Release tears down a presentation object.
	Release(h device.Handle)
}

// UnitSetter is implemented by presenters that render temperatures.
type UnitSetter interface {
	SetTemperatureUnit(unit string)
}

// HistoryRecorder receives attribute changes found by a refresh.
type HistoryRecorder interface {
	RecordAttributeChange(ctx context.Context, deviceID, attribute string, value any, source string) error
}

// CycleMetrics receives one observation per completed cycle. Optional.
type CycleMetrics interface {
	WriteCycleMetric(source string, created, updated, removed, cacheSize int, duration time.Duration)
}

// Config holds poller settings.
type Config struct {
	// Interval between scheduled cycles.
	Interval time.Duration

	// ExcludedCapabilities maps device IDs to capabilities hidden from presentation.
	ExcludedCapabilities map[string][]string
}

// Result summarises one completed cycle.
type Result struct {
	Source    string           `json:"source"`
	Counts    reconcile.Counts `json:"counts"`
	CacheSize int              `json:"cache_size"`
	Duration  time.Duration    `json:"duration"`
}

// Poller reconciles the device cache with the hub.
type Poller struct {
	cfg       Config
	source    SnapshotSource
	cache     *device.Cache
	settings  *transport.Settings
	presenter Presenter
	history   HistoryRecorder
	metrics   CycleMetrics
	logger    Logger

	running atomic.Bool
	wg      sync.WaitGroup

	mu      sync.Mutex
	baseCtx context.Context
	stopped bool
}

// New creates a Poller. presenter may be nil.
func New(cfg Config, source SnapshotSource, cache *device.Cache, settings *transport.Settings, presenter Presenter) *Poller {
	return &Poller{
		cfg:       cfg,
		source:    source,
		cache:     cache,
		settings:  settings,
		presenter: presenter,
		logger:    noopLogger{},
		baseCtx:   context.Background(),
	}
}

// SetLogger sets the logger for the poller.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// SetHistory sets the sink for attribute changes found during refresh.
func (p *Poller) SetHistory(h HistoryRecorder) {
	p.history = h
}

// SetMetrics sets the cycle metrics sink.
func (p *Poller) SetMetrics(m CycleMetrics) {
	p.metrics = m
}

// Running reports whether a cycle is in flight.
func (p *Poller) Running() bool {
	return p.running.Load()
}

// Run executes one cycle immediately, then one per Interval until ctx is
// cancelled. Ticks that land while a cycle is running are skipped.
func (p *Poller) Run(ctx context.Context) {
	p.mu.Lock()
	p.baseCtx = ctx
	p.mu.Unlock()

	p.runLogged(ctx, SourceStartup)

	if p.cfg.Interval <= 0 {
		<-ctx.Done()
		p.stop()
		return
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.stop()
			return
		case <-ticker.C:
			p.runLogged(ctx, SourceInterval)
		}
	}
}

// stop refuses further triggers and waits for in-flight ones.
func (p *Poller) stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.wg.Wait()
}

// Trigger starts an out-of-band cycle in the background. It is ignored
// once Run has returned or its context is done.
func (p *Poller) Trigger(source string) {
	p.mu.Lock()
	ctx := p.baseCtx
	if p.stopped || ctx.Err() != nil {
		p.mu.Unlock()
		p.logger.Debug("ignoring device refresh request, poller stopped", "source", source)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.runLogged(ctx, source)
	}()
}

// Wait blocks until every triggered cycle has returned.
func (p *Poller) Wait() {
	p.wg.Wait()
}

func (p *Poller) runLogged(ctx context.Context, source string) {
	res, err := p.RunCycle(ctx, source)
	switch {
	case err == nil:
		p.logger.Info("device refresh complete",
			"source", source,
			"created", res.Counts.Created,
			"updated", res.Counts.Updated,
			"removed", res.Counts.Removed,
			"cache_size", res.CacheSize,
			"duration", res.Duration,
		)
		if p.metrics != nil {
			p.metrics.WriteCycleMetric(source, res.Counts.Created, res.Counts.Updated, res.Counts.Removed, res.CacheSize, res.Duration)
		}
	case errors.Is(err, ErrCycleInProgress):
		p.logger.Debug("skipping device refresh, cycle in progress", "source", source)
	default:
		p.logger.Error("device refresh failed", "source", source, "error", err)
	}
}

// RunCycle performs one reconciliation cycle.
//
// Returns ErrCycleInProgress without doing anything if another cycle is
// running, ErrFetchFailed if the snapshot could not be fetched (cache
// untouched) and ErrCyclePanicked if applying the plan panicked.
func (p *Poller) RunCycle(ctx context.Context, source string) (res Result, err error) {
	if !p.running.CompareAndSwap(false, true) {
		return Result{}, ErrCycleInProgress
	}
	defer p.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("recovered panic in device refresh", "source", source, "panic", r)
			err = fmt.Errorf("%w: %v", ErrCyclePanicked, r)
		}
	}()

	start := time.Now()
	p.logger.Info("refreshing all device data", "source", source)

	snap, fetchErr := p.source.FetchSnapshot(ctx)
	if fetchErr != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrFetchFailed, fetchErr)
	}

	p.applyLocation(snap.Location)

	plan := reconcile.Diff(p.cache.Keys(), snap.Devices)
	counts := plan.Counts()
	p.logger.Info("device refresh plan",
		"to_remove", counts.Removed,
		"to_update", counts.Updated,
		"to_create", counts.Created,
	)

	for _, step := range plan.Steps() {
		switch step {
		case reconcile.StepRemove:
			for _, id := range plan.ToRemove {
				p.remove(id)
			}
		case reconcile.StepUpdate:
			for _, entry := range plan.ToUpdate {
				p.update(ctx, entry)
			}
		case reconcile.StepCreate:
			for _, entry := range plan.ToCreate {
				p.create(entry)
			}
		}
	}

	return Result{
		Source:    source,
		Counts:    counts,
		CacheSize: p.cache.Count(),
		Duration:  time.Since(start),
	}, nil
}

// applyLocation pushes hub-wide settings from the snapshot.
func (p *Poller) applyLocation(loc device.Location) {
	if loc.TemperatureUnit != "" {
		if us, ok := p.presenter.(UnitSetter); ok {
			us.SetTemperatureUnit(loc.TemperatureUnit)
		}
	}

	if loc.LocalAddress != "" && p.settings != nil {
		address, enabled := loc.LocalAddress, loc.LocalCommands
		p.settings.ApplyPreferences(transport.Preferences{
			LocalAddress: &address,
			LocalEnabled: &enabled,
		})
	}
}

func (p *Poller) remove(id string) {
	rec, ok := p.cache.Get(id)
	if !p.cache.Remove(id) {
		return
	}
	if ok && p.presenter != nil && !rec.Handle.IsZero() {
		p.presenter.Release(rec.Handle)
	}
	p.logger.Info("removed device", "device_id", id, "name", rec.Name)
}

func (p *Poller) update(ctx context.Context, entry device.SnapshotEntry) {
	previous, _ := p.cache.Get(entry.DeviceID)

	rec := device.NewRecord(entry, p.cfg.ExcludedCapabilities[entry.DeviceID])
	rec.Handle = previous.Handle
	if rec.Handle.IsZero() && p.presenter != nil {
		rec.Handle = p.presenter.Create(rec)
	}
	stored := p.cache.Put(rec)

	if p.presenter != nil && !stored.Handle.IsZero() {
		p.presenter.Refresh(stored.Handle, stored)
	}

	p.recordChanges(ctx, previous.Attributes, stored)
	p.logger.Debug("updated device", "device_id", stored.DeviceID, "name", stored.Name)
}

func (p *Poller) create(entry device.SnapshotEntry) {
	rec := device.NewRecord(entry, p.cfg.ExcludedCapabilities[entry.DeviceID])
	if p.presenter != nil {
		rec.Handle = p.presenter.Create(rec)
	}
	stored := p.cache.Put(rec)
	p.logger.Info("added device", "device_id", stored.DeviceID, "name", stored.Name)
}

// recordChanges writes attributes whose value differs from before.
func (p *Poller) recordChanges(ctx context.Context, before device.Attributes, after device.Record) {
	if p.history == nil {
		return
	}
	for name, value := range after.Attributes {
		if old, ok := before[name]; ok && reflect.DeepEqual(old, value) {
			continue
		}
		if err := p.history.RecordAttributeChange(ctx, after.DeviceID, name, value, device.HistorySourceSnapshot); err != nil {
			p.logger.Warn("failed to record attribute history", "device_id", after.DeviceID, "error", err)
			return
		}
	}
}
