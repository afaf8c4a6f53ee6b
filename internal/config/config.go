// Package config loads and saves the daemon's configuration, accepting
// either HCL or JSON (selected by file extension), matching the dual
// format the rest of this codebase's configuration lineage supports.
package config

// Config is the daemon's full configuration.
type Config struct {
	DataDir       string              `hcl:"data_dir,optional" json:"data_dir,omitempty"`
	SocketPath    string              `hcl:"socket_path,optional" json:"socket_path,omitempty"`
	Privacy       PrivacyConfig       `hcl:"privacy,block" json:"privacy"`
	Scan          ScanConfig          `hcl:"scan,block" json:"scan"`
	Matcher       MatcherConfig       `hcl:"matcher,block" json:"matcher"`
	Transition    TransitionConfig    `hcl:"transition,block" json:"transition"`
	Executor      ExecutorConfig      `hcl:"executor,block" json:"executor"`
	Log           LogConfig           `hcl:"log,block" json:"log"`
	Metrics       MetricsConfig       `hcl:"metrics,block" json:"metrics"`
	Events        EventsConfig        `hcl:"events,block" json:"events"`
	Notifications NotificationsConfig `hcl:"notifications,block" json:"notifications"`
}

// PrivacyConfig controls how aggressively raw signal identity is hashed.
type PrivacyConfig struct {
	Mode string `hcl:"mode,optional" json:"mode,omitempty"` // "low", "medium", "high"
	Salt string `hcl:"salt,optional" json:"salt,omitempty"`
}

// ScanConfig bounds the adaptive scan interval.
type ScanConfig struct {
	MinIntervalSeconds int `hcl:"min_interval_seconds,optional" json:"min_interval_seconds,omitempty"`
	MaxIntervalSeconds int `hcl:"max_interval_seconds,optional" json:"max_interval_seconds,omitempty"`
}

// MatcherConfig overrides the similarity-scoring weights.
type MatcherConfig struct {
	WeightWifi      float64 `hcl:"weight_wifi,optional" json:"weight_wifi,omitempty"`
	WeightConnected float64 `hcl:"weight_connected,optional" json:"weight_connected,omitempty"`
	WeightSignal    float64 `hcl:"weight_signal,optional" json:"weight_signal,omitempty"`
	WeightBluetooth float64 `hcl:"weight_bluetooth,optional" json:"weight_bluetooth,omitempty"`
}

// TransitionConfig exposes the two Open-Question decisions as toggles.
type TransitionConfig struct {
	DebounceScans       int    `hcl:"debounce_scans,optional" json:"debounce_scans,omitempty"`
	ReenterRunsActions  bool   `hcl:"reenter_runs_actions,optional" json:"reenter_runs_actions,omitempty"`
	UnknownSafeFallback bool   `hcl:"unknown_safe_fallback,optional" json:"unknown_safe_fallback,omitempty"`
	FirewallZone        string `hcl:"unknown_firewall_zone,optional" json:"unknown_firewall_zone,omitempty"`
}

// ExecutorConfig configures collaborator commands.
type ExecutorConfig struct {
	FirewallCommand []string `hcl:"firewall_command,optional" json:"firewall_command,omitempty"`
	PrivilegeWrap   []string `hcl:"privilege_wrap,optional" json:"privilege_wrap,omitempty"`
}

// LogConfig configures the ambient logger.
type LogConfig struct {
	Level string `hcl:"level,optional" json:"level,omitempty"`
	JSON  bool   `hcl:"json,optional" json:"json,omitempty"`
}

// MetricsConfig configures the loopback Prometheus listener.
type MetricsConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty"`
	Addr    string `hcl:"addr,optional" json:"addr,omitempty"` // loopback only, e.g. "127.0.0.1:9477"
}

// EventsConfig configures the loopback websocket event stream.
type EventsConfig struct {
	Enabled bool   `hcl:"enabled,optional" json:"enabled,omitempty"`
	Addr    string `hcl:"addr,optional" json:"addr,omitempty"`
}

// NotificationsConfig fans zone-transition and action-outcome events out
// to zero or more channels, each independently enabled and level-gated.
type NotificationsConfig struct {
	Enabled  bool                 `hcl:"enabled,optional" json:"enabled,omitempty"`
	Channels []NotificationChannel `hcl:"channel,block" json:"channels,omitempty"`
}

// NotificationChannel configures a single outbound notification sink.
// Type selects the implementation: "desktop", "webhook", "slack",
// "discord", "ntfy", or "pushover".
type NotificationChannel struct {
	Name       string            `hcl:"name,label" json:"name"`
	Type       string            `hcl:"type" json:"type"`
	Enabled    bool              `hcl:"enabled,optional" json:"enabled,omitempty"`
	Level      string            `hcl:"level,optional" json:"level,omitempty"`
	WebhookURL string            `hcl:"webhook_url,optional" json:"webhook_url,omitempty"`
	Server     string            `hcl:"server,optional" json:"server,omitempty"`
	Topic      string            `hcl:"topic,optional" json:"topic,omitempty"`
	Username   string            `hcl:"username,optional" json:"username,omitempty"`
	Password   string            `hcl:"password,optional" json:"password,omitempty"`
	Headers    map[string]string `hcl:"headers,optional" json:"headers,omitempty"`
	APIToken   string            `hcl:"api_token,optional" json:"api_token,omitempty"`
	UserKey    string            `hcl:"user_key,optional" json:"user_key,omitempty"`
	Sound      string            `hcl:"sound,optional" json:"sound,omitempty"`
	Priority   int               `hcl:"priority,optional" json:"priority,omitempty"`
}

// Default returns the daemon's built-in defaults, used when no config
// file is present and as a base that a loaded file's zero-valued fields
// fall back to.
func Default() *Config {
	return &Config{
		SocketPath: "", // the daemon substitutes brand.GetSocketPath() if empty
		Privacy:    PrivacyConfig{Mode: "medium"},
		Scan:       ScanConfig{MinIntervalSeconds: 15, MaxIntervalSeconds: 120},
		Matcher: MatcherConfig{
			WeightWifi: 0.55, WeightConnected: 0.20, WeightSignal: 0.15, WeightBluetooth: 0.10,
		},
		Transition: TransitionConfig{DebounceScans: 2},
		Log:        LogConfig{Level: "info"},
		Metrics:    MetricsConfig{Enabled: false, Addr: "127.0.0.1:9477"},
		Events:     EventsConfig{Enabled: false, Addr: "127.0.0.1:9478"},
	}
}

// applyDefaults fills zero-valued fields of cfg from Default(), so a
// config file only needs to set the fields it overrides. An HCL file must
// still declare every top-level block (an empty block is enough); a JSON
// file may omit whole sections.
func applyDefaults(cfg *Config) {
	d := Default()
	if cfg.Privacy.Mode == "" {
		cfg.Privacy.Mode = d.Privacy.Mode
	}
	if cfg.Scan.MinIntervalSeconds == 0 {
		cfg.Scan.MinIntervalSeconds = d.Scan.MinIntervalSeconds
	}
	if cfg.Scan.MaxIntervalSeconds == 0 {
		cfg.Scan.MaxIntervalSeconds = d.Scan.MaxIntervalSeconds
	}
	if cfg.Matcher.WeightWifi == 0 && cfg.Matcher.WeightConnected == 0 &&
		cfg.Matcher.WeightSignal == 0 && cfg.Matcher.WeightBluetooth == 0 {
		cfg.Matcher = d.Matcher
	}
	if cfg.Transition.DebounceScans == 0 {
		cfg.Transition.DebounceScans = d.Transition.DebounceScans
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = d.Log.Level
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = d.Metrics.Addr
	}
	if cfg.Events.Addr == "" {
		cfg.Events.Addr = d.Events.Addr
	}
}
