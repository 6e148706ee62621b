package config

// Defaults.
const (
	ConfigDir  = ".muge"
	ConfigFile = "config.yaml"

	DefaultSpeed     = "high"
	DefaultMDIX      = "auto"
	DefaultLogLevel  = "warn"
	DefaultLogFormat = "auto"
	DefaultSnapshots = "snapshots.db"
)
