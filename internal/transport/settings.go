package transport

import "sync"

// Preferences is a partial update to Settings. Nil fields are left unchanged.
type Preferences struct {
	LocalAddress *string
	LocalEnabled *bool
}

// SettingsSnapshot is a value copy of Settings.
type SettingsSnapshot struct {
	LocalEnabled bool   `json:"local_commands"`
	LocalAddress string `json:"local_hub_ip"`
}

// LocalUsable reports whether local dispatch is enabled and has an address.
func (s SettingsSnapshot) LocalUsable() bool {
	return s.LocalEnabled && s.LocalAddress != ""
}

// Settings owns the mutable local-dispatch preferences.
//
// ApplyPreferences is the only way to change them. Both the poller (from
// snapshot location metadata) and the push listener (from /updateprefs)
// go through it.
type Settings struct {
	mu           sync.RWMutex
	localEnabled bool
	localAddress string
	logger       Logger
}

// NewSettings creates Settings with initial values from configuration.
func NewSettings(localEnabled bool, localAddress string) *Settings {
	return &Settings{
		localEnabled: localEnabled,
		localAddress: localAddress,
		logger:       noopLogger{},
	}
}

// SetLogger sets the logger for settings changes.
func (s *Settings) SetLogger(logger Logger) {
	s.logger = logger
}

// ApplyPreferences applies the non-nil fields of p and reports whether
// anything changed.
func (s *Settings) ApplyPreferences(p Preferences) bool {
	s.mu.Lock()
	changed := false
	if p.LocalAddress != nil && *p.LocalAddress != s.localAddress {
		s.localAddress = *p.LocalAddress
		changed = true
	}
	if p.LocalEnabled != nil && *p.LocalEnabled != s.localEnabled {
		s.localEnabled = *p.LocalEnabled
		changed = true
	}
	address, enabled := s.localAddress, s.localEnabled
	s.mu.Unlock()

	if changed {
		s.logger.Info("local dispatch settings updated",
			"local_hub_ip", address,
			"local_commands", enabled,
		)
	}
	return changed
}

// Snapshot returns the current values.
func (s *Settings) Snapshot() SettingsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return SettingsSnapshot{
		LocalEnabled: s.localEnabled,
		LocalAddress: s.localAddress,
	}
}
