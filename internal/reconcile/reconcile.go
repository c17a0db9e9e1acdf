// Package reconcile computes the difference between the device cache and
// a freshly fetched hub snapshot.
//
// Diff is pure: it reads its inputs, returns a Plan and has no failure
// modes. Applying the plan is the poller's job.
package reconcile

import (
	"sort"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
)

// StepKind identifies one phase of applying a Plan.
type StepKind string

// Plan phases in apply order.
const (
	StepRemove StepKind = "remove"
	StepUpdate StepKind = "update"
	StepCreate StepKind = "create"
)

// Plan is the set of changes that brings the cache in line with a snapshot.
//
// The three sets are pairwise disjoint by device ID, and together they
// cover every ID present in either the cache or the snapshot.
type Plan struct {
	// ToCreate holds snapshot entries not yet cached, in snapshot order.
	ToCreate []device.SnapshotEntry

	// ToUpdate holds snapshot entries already cached, in snapshot order.
	ToUpdate []device.SnapshotEntry

	// ToRemove holds cached IDs absent from the snapshot, sorted.
	ToRemove []string
}

// Counts summarises a Plan for logging.
type Counts struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Removed int `json:"removed"`
}

// Diff classifies every device into exactly one of create, update or remove.
//
// When the snapshot carries the same ID more than once, the first
// occurrence is used and later ones are ignored.
func Diff(cached []string, snapshot []device.SnapshotEntry) Plan {
	inCache := make(map[string]bool, len(cached))
	for _, id := range cached {
		inCache[id] = true
	}

	var plan Plan
	seen := make(map[string]bool, len(snapshot))
	for _, entry := range snapshot {
		if seen[entry.DeviceID] {
			continue
		}
		seen[entry.DeviceID] = true

		if inCache[entry.DeviceID] {
			plan.ToUpdate = append(plan.ToUpdate, entry)
		} else {
			plan.ToCreate = append(plan.ToCreate, entry)
		}
	}

	for id := range inCache {
		if !seen[id] {
			plan.ToRemove = append(plan.ToRemove, id)
		}
	}
	sort.Strings(plan.ToRemove)

	return plan
}

// Counts returns the size of each set.
func (p Plan) Counts() Counts {
	return Counts{
		Created: len(p.ToCreate),
		Updated: len(p.ToUpdate),
		Removed: len(p.ToRemove),
	}
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool {
	return len(p.ToCreate) == 0 && len(p.ToUpdate) == 0 && len(p.ToRemove) == 0
}

// Steps returns the phases in the order they must be applied.
//
// Removals go first so a released presentation object is gone before any
// refresh or create runs in the same cycle.
func (p Plan) Steps() []StepKind {
	return []StepKind{StepRemove, StepUpdate, StepCreate}
}
