// Package api implements the HubLink push listener.
//
// The hub's SmartApp posts to this server in "direct" mode:
//
//	POST /initial          first contact
//	POST /update           one attribute change (change_device, change_attribute, change_value)
//	POST /updateprefs      local_commands / local_hub_ip preferences
//	POST /refreshDevices   run a reconciliation cycle now
//	POST /restartService   exit after a short delay so the supervisor restarts us
//
// Every push body carries app_id and access_token. When hub.validate_token_id
// is set, requests whose credentials do not match the configuration are
// rejected with {"status":"Failed: Missing access_token or app_id"}.
//
// Operators get GET /health, GET /metrics and GET /debugOpts?option=allAccData,
// and automation clients can follow accessory events on the WebSocket at /ws.
//
//	srv, err := api.New(deps)
//	if err := srv.Start(ctx); err != nil { ... }
//	defer srv.Close()
package api
