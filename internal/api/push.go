package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nerrad567/gray-logic-hublink/internal/ingest"
	"github.com/nerrad567/gray-logic-hublink/internal/poller"
	"github.com/nerrad567/gray-logic-hublink/internal/transport"
)

// Push response statuses understood by the hub.
const (
	statusOK           = "OK"
	statusFailed       = "Failed"
	statusBadRequestor = "Failed: Missing access_token or app_id"
)

// pushResponse is the body of every push endpoint reply.
type pushResponse struct {
	Status string `json:"status"`
}

// requestor carries the credentials the hub includes in every push body.
type requestor struct {
	AccessToken string `json:"access_token"`
	AppID       string `json:"app_id"`
}

func (q *requestor) credentials() *requestor { return q }

type credentialed interface {
	credentials() *requestor
}

// updateRequest is the /update body: one attribute change.
type updateRequest struct {
	requestor
	DeviceID  string `json:"change_device"`
	Name      string `json:"change_name"`
	Attribute string `json:"change_attribute"`
	Value     any    `json:"change_value"`
	Date      string `json:"change_date"`
}

// prefsRequest is the /updateprefs body. Absent fields leave the current
// preference untouched.
type prefsRequest struct {
	requestor
	LocalCommands *bool   `json:"local_commands"`
	LocalHubIP    *string `json:"local_hub_ip"`
}

// bareRequest is the body of endpoints that carry only credentials.
type bareRequest struct {
	requestor
}

// decodePush reads a push body into v and validates its credentials. It
// writes the failure response itself and reports whether the handler
// should continue.
func (s *Server) decodePush(w http.ResponseWriter, r *http.Request, v credentialed, endpoint string) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.logger.Warn("invalid push body", "endpoint", endpoint, "error", err)
		writeJSON(w, http.StatusBadRequest, pushResponse{Status: statusFailed})
		return false
	}
	if !s.validRequestor(v.credentials()) {
		s.logger.Error("push request without a valid access_token and app_id", "endpoint", endpoint)
		writeJSON(w, http.StatusUnauthorized, pushResponse{Status: statusBadRequestor})
		return false
	}
	return true
}

// validRequestor accepts everything unless token validation is enabled.
func (s *Server) validRequestor(q *requestor) bool {
	if !s.hubCfg.ValidateTokenID {
		return true
	}
	if q.AccessToken == "" || q.AppID == "" {
		return false
	}
	tokenOK := subtle.ConstantTimeCompare([]byte(q.AccessToken), []byte(s.hubCfg.AccessToken)) == 1
	appOK := subtle.ConstantTimeCompare([]byte(q.AppID), []byte(s.hubCfg.AppID)) == 1
	return tokenOK && appOK
}

// handleRoot answers liveness probes from the hub.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "HubLink is running...") //nolint:errcheck // best-effort write
}

// handleInitial acknowledges the hub's first contact.
func (s *Server) handleInitial(w http.ResponseWriter, r *http.Request) {
	var req bareRequest
	if !s.decodePush(w, r, &req, "initial") {
		return
	}
	s.logger.Info("hub communication established")
	writeJSON(w, http.StatusOK, pushResponse{Status: statusOK})
}

// handleUpdate applies one pushed attribute change.
func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !s.decodePush(w, r, &req, "update") {
		return
	}
	if req.DeviceID == "" || req.Attribute == "" {
		writeJSON(w, http.StatusOK, pushResponse{Status: statusFailed})
		return
	}

	ok := s.ingestor.Apply(r.Context(), ingest.Event{
		DeviceID:   req.DeviceID,
		Attribute:  req.Attribute,
		Value:      req.Value,
		Timestamp:  parseChangeDate(req.Date),
		DeviceName: req.Name,
	})

	status := statusOK
	if !ok {
		status = statusFailed
	}
	writeJSON(w, http.StatusOK, pushResponse{Status: status})
}

// handleUpdatePrefs applies local-dispatch preferences sent by the hub.
func (s *Server) handleUpdatePrefs(w http.ResponseWriter, r *http.Request) {
	var req prefsRequest
	if !s.decodePush(w, r, &req, "updateprefs") {
		return
	}

	s.logger.Info("hub sent preference updates")
	prefs := transport.Preferences{LocalEnabled: req.LocalCommands}
	if req.LocalHubIP != nil && *req.LocalHubIP != "" {
		prefs.LocalAddress = req.LocalHubIP
	}
	s.settings.ApplyPreferences(prefs)
	writeJSON(w, http.StatusOK, pushResponse{Status: statusOK})
}

// handleRefreshDevices starts a reconciliation cycle in the background.
func (s *Server) handleRefreshDevices(w http.ResponseWriter, r *http.Request) {
	var req bareRequest
	if !s.decodePush(w, r, &req, "refreshDevices") {
		return
	}
	if s.poller == nil {
		writeJSON(w, http.StatusServiceUnavailable, pushResponse{Status: statusFailed})
		return
	}

	s.logger.Info("hub requested a device refresh")
	s.poller.Trigger(poller.SourcePush)
	writeJSON(w, http.StatusOK, pushResponse{Status: statusOK})
}

// handleRestartService schedules a process restart.
func (s *Server) handleRestartService(w http.ResponseWriter, r *http.Request) {
	var req bareRequest
	if !s.decodePush(w, r, &req, "restartService") {
		return
	}
	if s.scheduleRestart() {
		s.logger.Info("hub requested a service restart", "delay", s.restartDelay.String())
	}
	writeJSON(w, http.StatusOK, pushResponse{Status: statusOK})
}

// handleDebugOpts dumps internal state for troubleshooting.
func (s *Server) handleDebugOpts(w http.ResponseWriter, r *http.Request) {
	option := r.URL.Query().Get("option")
	s.logger.Info("debug option requested", "option", option)

	switch option {
	case "":
		writeBadRequest(w, "Error: Missing Valid Debug Query Parameter")
	case "allAccData":
		writeJSON(w, http.StatusOK, s.cache.GetAll())
	default:
		writeBadRequest(w, "unknown debug option: "+option)
	}
}

// parseChangeDate parses the hub's change timestamp, falling back to now.
func parseChangeDate(v string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000-0700", "2006-01-02T15:04:05-0700"} {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC()
		}
	}
	return time.Now().UTC()
}
