// Package config holds the PhotoLoop configuration model and loader.
package config

// AppName is used for log files and user agent strings.
const AppName = "photoloop"

// SourceConfig describes one configured media source.
type SourceConfig struct {
	Name    string `koanf:"name"`
	Type    string `koanf:"type" validate:"oneof=remote_album local"`
	URL     string `koanf:"url"`
	Path    string `koanf:"path"`
	Enabled bool   `koanf:"enabled"`
}

// Label returns the human label used to scope catalog entries to this
// source: the explicit name when set, otherwise the URL or path.
func (s SourceConfig) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Type == "local" {
		return s.Path
	}
	return s.URL
}

// CacheConfig controls the on-disk cache.
type CacheConfig struct {
	Directory string `koanf:"directory" validate:"required"`
	MaxSizeMB int64  `koanf:"max_size_mb" validate:"gt=0"`
}

// SyncConfig controls the background reconciliation cycle.
type SyncConfig struct {
	IntervalMinutes int    `koanf:"interval_minutes" validate:"gte=0"`
	SyncOnStart     bool   `koanf:"sync_on_start"`
	SyncTime        string `koanf:"sync_time" validate:"omitempty,hhmm"`
	MaxDimension    int    `koanf:"max_dimension" validate:"gt=0"`
	FullResolution  bool   `koanf:"full_resolution"`
	TimeoutSeconds  int    `koanf:"timeout_seconds" validate:"gt=0"`
}

// DisplayConfig controls playlist ordering and dwell.
type DisplayConfig struct {
	Order                string  `koanf:"order" validate:"oneof=random alphabetical chronological recency_weighted"`
	PhotoDurationSeconds float64 `koanf:"photo_duration_seconds" validate:"gt=0"`
	VideoEnabled         bool    `koanf:"video_enabled"`
	ShowLocation         bool    `koanf:"show_location"`
	RecencyCutoffYears   float64 `koanf:"recency_cutoff_years" validate:"gt=0"`
	RecencyMinWeight     float64 `koanf:"recency_min_weight" validate:"gt=0,lte=1"`
}

// ScalingConfig controls how images are cropped for the screen.
type ScalingConfig struct {
	Mode              string  `koanf:"mode" validate:"oneof=fill fit balanced stretch"`
	MaxCropPercent    int     `koanf:"max_crop_percent" validate:"gte=0,lte=50"`
	SmartCropMethod   string  `koanf:"smart_crop_method" validate:"oneof=face saliency aesthetic"`
	FacePosition      string  `koanf:"face_position" validate:"oneof=center rule_of_thirds top_third"`
	FallbackCrop      string  `koanf:"fallback_crop" validate:"oneof=center top bottom"`
	SaliencyThreshold float64 `koanf:"saliency_threshold" validate:"gte=0,lte=1"`
	SaliencyCoverage  float64 `koanf:"saliency_coverage" validate:"gte=0,lte=1"`
	CropBias          string  `koanf:"crop_bias" validate:"oneof=none top bottom"`

	FaceDetection  bool    `koanf:"face_detection"`
	FaceConfidence float64 `koanf:"face_confidence" validate:"gte=0,lte=1"`
	FaceModel      string  `koanf:"face_model"`
}

// KenBurnsConfig controls the slow zoom/pan animation.
type KenBurnsConfig struct {
	Enabled   bool       `koanf:"enabled"`
	ZoomRange [2]float64 `koanf:"zoom_range"`
	PanSpeed  float64    `koanf:"pan_speed" validate:"gte=0"`
	Randomize bool       `koanf:"randomize"`
}

// EventConfig is one schedule span within a day.
type EventConfig struct {
	StartTime string `koanf:"start_time" validate:"hhmm"`
	EndTime   string `koanf:"end_time" validate:"hhmm_end"`
	Mode      string `koanf:"mode" validate:"oneof=slideshow clock black"`
}

// HolidayConfig controls holiday-aware scheduling.
type HolidayConfig struct {
	UseWeekendSchedule bool     `koanf:"use_weekend_schedule"`
	Countries          []string `koanf:"countries"`
}

// ScheduleConfig holds the per-day event lists.
type ScheduleConfig struct {
	Enabled       bool                     `koanf:"enabled"`
	Weekday       []EventConfig            `koanf:"weekday" validate:"dive"`
	Weekend       []EventConfig            `koanf:"weekend" validate:"dive"`
	DateOverrides map[string][]EventConfig `koanf:"date_overrides" validate:"dive,dive"`
	Holidays      HolidayConfig            `koanf:"holidays"`
}

// WebConfig controls the control-surface HTTP server.
type WebConfig struct {
	Port int `koanf:"port" validate:"gt=0,lte=65535"`
}

// Config is the root PhotoLoop configuration.
type Config struct {
	Cache    CacheConfig    `koanf:"cache"`
	Sync     SyncConfig     `koanf:"sync"`
	Sources  []SourceConfig `koanf:"sources" validate:"dive"`
	Display  DisplayConfig  `koanf:"display"`
	Scaling  ScalingConfig  `koanf:"scaling"`
	KenBurns KenBurnsConfig `koanf:"ken_burns"`
	Schedule ScheduleConfig `koanf:"schedule"`
	Web      WebConfig      `koanf:"web"`
}

// Default returns the configuration used when keys are absent from the
// config file.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Directory: "~/.photoloop/cache",
			MaxSizeMB: 2048,
		},
		Sync: SyncConfig{
			IntervalMinutes: 360,
			SyncOnStart:     true,
			MaxDimension:    3840,
			TimeoutSeconds:  60,
		},
		Display: DisplayConfig{
			Order:                "random",
			PhotoDurationSeconds: 30,
			VideoEnabled:         false,
			ShowLocation:         true,
			RecencyCutoffYears:   5,
			RecencyMinWeight:     0.2,
		},
		Scaling: ScalingConfig{
			Mode:              "balanced",
			MaxCropPercent:    15,
			SmartCropMethod:   "face",
			FacePosition:      "center",
			FallbackCrop:      "center",
			SaliencyThreshold: 0.3,
			SaliencyCoverage:  0.9,
			CropBias:          "none",
			FaceDetection:     true,
			FaceConfidence:    0.6,
			FaceModel:         "pigo_facefinder",
		},
		KenBurns: KenBurnsConfig{
			Enabled:   true,
			ZoomRange: [2]float64{1.0, 1.15},
			PanSpeed:  0.02,
			Randomize: true,
		},
		Schedule: ScheduleConfig{
			Enabled: false,
			Weekday: []EventConfig{
				{StartTime: "00:00", EndTime: "07:00", Mode: "black"},
				{StartTime: "07:00", EndTime: "22:00", Mode: "slideshow"},
				{StartTime: "22:00", EndTime: "24:00", Mode: "black"},
			},
			Weekend: []EventConfig{
				{StartTime: "00:00", EndTime: "08:00", Mode: "black"},
				{StartTime: "08:00", EndTime: "23:00", Mode: "slideshow"},
				{StartTime: "23:00", EndTime: "24:00", Mode: "black"},
			},
		},
		Web: WebConfig{
			Port: 8080,
		},
	}
}

// EnabledSourceLabels returns the labels of all enabled sources.
func (c *Config) EnabledSourceLabels() map[string]bool {
	labels := make(map[string]bool)
	for _, s := range c.Sources {
		if s.Enabled {
			labels[s.Label()] = true
		}
	}
	return labels
}

// HasEnabledSources reports whether any source is enabled.
func (c *Config) HasEnabledSources() bool {
	for _, s := range c.Sources {
		if s.Enabled {
			return true
		}
	}
	return false
}
