// Package cli implements the hublink command line: serve runs the bridge,
// devices inspects the hub's device list, version prints build information.
package cli
