// Package transport sends device commands to the hub over one of two routes.
//
// The local route posts directly to the hub's LAN listener. The remote route
// goes through the cloud API. The Dispatcher chooses a route per command:
// local only when it is enabled, a local address is known and the Tracker
// reports the local hub as reachable.
//
// # Health
//
// The Tracker is a two-state machine (Reachable, Disabled). A timeout on the
// local route disables local dispatch; the next successful send on either
// route re-enables it and re-announces this endpoint to the hub.
//
// # Completion
//
// Each command may carry a Notifier. It fires exactly once, whichever route
// was used and whether the send succeeded or failed.
//
// # Failure classification
//
// Transports return *SendError values tagged with a FailureKind. Classify
// derives the kind from error types (net.Error, *net.OpError, context
// deadlines, *StatusError), never from error text.
package transport
