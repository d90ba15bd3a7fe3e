package domain

// Config mirrors ~/.grimoire/config.yaml.
type Config struct {
	ConfigFormatVersion string          `yaml:"config_format_version"`
	Preferences         Preferences     `yaml:"preferences"`
	Cache               CacheSettings   `yaml:"cache"`
	Refresh             RefreshSettings `yaml:"refresh"`
	Remote              RemoteSettings  `yaml:"remote"`
	Storage             StorageSettings `yaml:"storage"`
}

// Preferences captures user level toggles.
type Preferences struct {
	DefaultView          string `yaml:"default_view"`
	ConfirmBeforePromote bool   `yaml:"confirm_before_promote"`
	TimeoutSeconds       int    `yaml:"timeout"`
}

// CacheSettings bounds the remote resource cache.
type CacheSettings struct {
	TTL        string `yaml:"ttl"`
	MaxEntries int    `yaml:"max_entries"`
}

// RefreshSettings drives the background refresh cadence for the remote view.
type RefreshSettings struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// RemoteSettings tunes the git platform client.
type RemoteSettings struct {
	CommitHistoryLimit int `yaml:"commit_history_limit"`
}

// StorageSettings locates the local record database.
type StorageSettings struct {
	Path string `yaml:"path"`
}
