// Package device provides the Device Cache for HubLink.
//
// The cache holds one Record per device reported by the hub's latest
// snapshot. The poller reconciles it against each new snapshot; push
// updates modify single attributes in place. Nothing here performs I/O
// except the optional SQLite attribute history.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────┐
//	│                        Device Cache                           │
//	│                                                               │
//	│  ┌──────────────────┐              ┌──────────────────────┐   │
//	│  │      Cache       │              │  HistoryRepository   │   │
//	│  │    (cache.go)    │              │ (history_sqlite.go)  │   │
//	│  │                  │              │                      │   │
//	│  │ • Get / GetAll   │              │ • append-only audit  │   │
//	│  │ • Put / Remove   │              │ • prune by age       │   │
//	│  │ • UpdateAttribute│              │                      │   │
//	│  └──────────────────┘              └──────────────────────┘   │
//	└──────────────────────────────────────────────────────────────┘
//
// # Key Types
//
//   - SnapshotEntry: One device as described by the hub's device list
//   - Record: The cached state of one device
//   - Handle: Non-owning reference to the device's presentation object
//
// # Usage
//
//	cache := device.NewCache()
//	cache.SetLogger(logger)
//
//	stored := cache.Put(device.NewRecord(entry, excluded))
//	rec, ok := cache.UpdateAttribute("dev-1", "switch", "on", time.Now())
//
// # Thread Safety
//
// All Cache methods are safe for concurrent use. Records returned are deep
// copies; mutating them never affects cached state.
package device
