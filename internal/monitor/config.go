package monitor

import (
	"time"

	"github.com/spigell/interview-guard/internal/integrity"
)

const (
	defaultTick          = 2 * time.Second
	defaultWarmup        = 2 * time.Second
	defaultDebounce      = time.Second
	defaultVoiceSegment  = 6 * time.Second
	defaultQueueSize     = 32
	defaultSaveTimeout   = 10 * time.Second
	defaultReviewTimeout = 30 * time.Second
)

// Config tunes one monitoring session. Zero values fall back to defaults.
type Config struct {
	Tick              time.Duration        `mapstructure:"tick"`
	Warmup            time.Duration        `mapstructure:"warmup"`
	Debounce          time.Duration        `mapstructure:"debounce"`
	VoiceSegment      time.Duration        `mapstructure:"voice-segment"`
	QueueSize         int                  `mapstructure:"queue-size"`
	SuppressionWindow time.Duration        `mapstructure:"suppression-window"`
	SaveTimeout       time.Duration        `mapstructure:"save-timeout"`
	ReviewTimeout     time.Duration        `mapstructure:"review-timeout"`
	ReferenceText     string               `mapstructure:"reference-text"`
	Thresholds        integrity.Thresholds `mapstructure:"thresholds"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = defaultTick
	}
	if c.Warmup < 0 {
		c.Warmup = 0
	} else if c.Warmup == 0 {
		c.Warmup = defaultWarmup
	}
	if c.Debounce <= 0 {
		c.Debounce = defaultDebounce
	}
	if c.VoiceSegment <= 0 {
		c.VoiceSegment = defaultVoiceSegment
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.SuppressionWindow <= 0 {
		c.SuppressionWindow = integrity.DefaultSuppressionWindow
	}
	if c.SaveTimeout <= 0 {
		c.SaveTimeout = defaultSaveTimeout
	}
	if c.ReviewTimeout <= 0 {
		c.ReviewTimeout = defaultReviewTimeout
	}
	c.Thresholds = c.Thresholds.WithDefaults()
	return c
}
