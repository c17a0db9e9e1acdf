// Package hub is the client for the hub's cloud SmartApp API.
//
// Every request is addressed to {app_url}{app_id}/... and authenticated
// with the access_token query parameter. The client fetches full device
// snapshots for the poller and implements transport.RemoteSender for the
// dispatcher's remote route.
//
// # Endpoints
//
//	GET  {base}/devices                                 full snapshot
//	GET  {base}/{deviceid}/query                        one device
//	POST {base}/{deviceid}/command/{cmd}                device command
//	POST {base}/startDirect/{ip}/{port}/{version}       start-direct announce
//	POST {base}/pluginStatus                            version report
//
// Non-2xx responses are returned as *transport.StatusError; connection
// failures are wrapped in *transport.SendError with RouteRemote.
package hub
