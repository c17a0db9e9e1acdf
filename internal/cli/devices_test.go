package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nerrad567/gray-logic-hublink/internal/device"
)

const testSnapshot = `{
  "deviceList": [
    {"deviceid": "dev-2", "name": "Porch Light", "capabilities": ["Switch"], "attributes": {"switch": "off"}},
    {"deviceid": "dev-1", "name": "Hall Thermostat", "capabilities": {"Thermostat": 1, "Temperature Measurement": 1}, "attributes": {"temperature": 21.5}}
  ],
  "location": {"temperature_scale": "C", "hubIP": "192.168.1.20", "local_commands": true}
}`

// newFakeHub serves the remote API paths the devices command calls.
func newFakeHub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/app-1/devices", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(testSnapshot)) //nolint:errcheck // test server
	})
	mux.HandleFunc("/app-1/dev-1/query", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"deviceid":"dev-1","name":"Hall Thermostat","capabilities":["Thermostat"],"attributes":{"temperature":21.5,"mode":"heat"}}`)) //nolint:errcheck // test server
	})
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)
	return ts
}

func writeTestConfig(t *testing.T, appURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "hub:\n  app_url: \"" + appURL + "/\"\n  app_id: app-1\n  access_token: tok-1\n"
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(testBuild(), noopServe)
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestDevicesTable(t *testing.T) {
	t.Setenv("HUBLINK_HUB_APP_URL", "")
	ts := newFakeHub(t)
	cfgPath := writeTestConfig(t, ts.URL)

	out, err := runCLI(t, "devices", "--config", cfgPath)
	if err != nil {
		t.Fatalf("devices error: %v", err)
	}

	lines := strings.Split(out, "\n")
	if !strings.HasPrefix(lines[0], "ID") {
		t.Errorf("header = %q", lines[0])
	}
	// Sorted by name: Hall Thermostat before Porch Light.
	if !strings.HasPrefix(lines[1], "dev-1") || !strings.HasPrefix(lines[2], "dev-2") {
		t.Errorf("rows = %q", lines[1:3])
	}
	if !strings.Contains(lines[1], "Temperature Measurement, Thermostat") {
		t.Errorf("capabilities row = %q", lines[1])
	}
	if !strings.Contains(out, "2 devices, hub at 192.168.1.20 (local commands true)") {
		t.Errorf("summary missing from %q", out)
	}
}

func TestDevicesJSON(t *testing.T) {
	t.Setenv("HUBLINK_HUB_APP_URL", "")
	ts := newFakeHub(t)
	cfgPath := writeTestConfig(t, ts.URL)

	out, err := runCLI(t, "devices", "--config", cfgPath, "--format", "json")
	if err != nil {
		t.Fatalf("devices error: %v", err)
	}

	var snap device.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(snap.Devices) != 2 || snap.Location.TemperatureUnit != "C" {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDevicesSingle(t *testing.T) {
	t.Setenv("HUBLINK_HUB_APP_URL", "")
	ts := newFakeHub(t)
	cfgPath := writeTestConfig(t, ts.URL)

	out, err := runCLI(t, "devices", "--config", cfgPath, "--id", "dev-1")
	if err != nil {
		t.Fatalf("devices --id error: %v", err)
	}
	for _, want := range []string{"Hall Thermostat", "mode", "heat", "temperature", "21.5"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDevicesRemoteError(t *testing.T) {
	t.Setenv("HUBLINK_HUB_APP_URL", "")
	t.Setenv("HUBLINK_HUB_ACCESS_TOKEN", "wrong")
	ts := newFakeHub(t)
	cfgPath := writeTestConfig(t, ts.URL)

	_, err := runCLI(t, "devices", "--config", cfgPath)
	if err == nil {
		t.Fatal("devices should fail on a rejected token")
	}
	if GetExitCode(err) != ExitFailure {
		t.Errorf("exit code = %d, want %d", GetExitCode(err), ExitFailure)
	}
}

func TestDevicesMissingConfig(t *testing.T) {
	_, err := runCLI(t, "devices", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	if GetExitCode(err) != ExitCommandError {
		t.Errorf("exit code = %d, want %d (err %v)", GetExitCode(err), ExitCommandError, err)
	}
}
