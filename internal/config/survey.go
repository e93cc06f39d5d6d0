package config

import "time"

// SurveyConfig holds session engine timing and handoff settings
type SurveyConfig struct {
	// AutosaveInterval is how often dirty sessions are snapshotted
	AutosaveInterval time.Duration `mapstructure:"autosave_interval" json:"autosaveInterval"`

	// IdleEviction drops in-memory sessions untouched for this long; their snapshot remains
	IdleEviction time.Duration `mapstructure:"idle_eviction" json:"idleEviction"`

	// SnapshotTTL bounds how long a resume snapshot is kept
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl" json:"snapshotTtl"`

	// WatchdogWindow is how long a session may sit in a phase with nothing to render
	WatchdogWindow time.Duration `mapstructure:"watchdog_window" json:"watchdogWindow"`

	// AdvanceDelay is the debounce clients show before an auto-advance
	AdvanceDelay time.Duration `mapstructure:"advance_delay" json:"advanceDelay"`

	HandoffKey string `mapstructure:"handoff_key" json:"-"` // Never serialize

	// DeviceSalt salts the stored client IP hash
	DeviceSalt string `mapstructure:"device_salt" json:"-"`
}

// DefaultSurveyConfig returns the default survey configuration
func DefaultSurveyConfig() SurveyConfig {
	return SurveyConfig{
		AutosaveInterval: 15 * time.Second,
		IdleEviction:     30 * time.Minute,
		SnapshotTTL:      7 * 24 * time.Hour,
		WatchdogWindow:   3 * time.Second,
		AdvanceDelay:     300 * time.Millisecond,
		HandoffKey:       "majorcompass",
		DeviceSalt:       "majorcompass-device",
	}
}
