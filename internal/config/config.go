package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Pipeline  PipelineConfig  `yaml:"pipeline" mapstructure:"pipeline"`
	Match     MatchConfig     `yaml:"match" mapstructure:"match"`
	Sources   SourcesConfig   `yaml:"sources" mapstructure:"sources"`
	Report    ReportConfig    `yaml:"report" mapstructure:"report"`
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	ClassifierModel string `yaml:"classifier_model" mapstructure:"classifier_model"`
	ExtractorModel  string `yaml:"extractor_model" mapstructure:"extractor_model"`
	MaxTokens       int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// PipelineConfig configures batch classification behavior.
type PipelineConfig struct {
	// MaxRetries is the number of retries after the first failed attempt.
	MaxRetries      int     `yaml:"max_retries" mapstructure:"max_retries"`
	Concurrency     int     `yaml:"concurrency" mapstructure:"concurrency"`
	RatePerSec      float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	CompareLegacy   bool    `yaml:"compare_legacy" mapstructure:"compare_legacy"`
	AttachmentChars int     `yaml:"attachment_chars" mapstructure:"attachment_chars"`
}

// MatchConfig configures the order correlation engine.
type MatchConfig struct {
	ToleranceMinutes int `yaml:"tolerance_minutes" mapstructure:"tolerance_minutes"`
	HighBandMinutes  int `yaml:"high_band_minutes" mapstructure:"high_band_minutes"`
}

// SourcesConfig points at the evidence inputs for a run date.
type SourcesConfig struct {
	OrdersDir      string `yaml:"orders_dir" mapstructure:"orders_dir"`
	CallInfoFile   string `yaml:"call_info_file" mapstructure:"call_info_file"`
	TranscriptsDir string `yaml:"transcripts_dir" mapstructure:"transcripts_dir"`
	EmailFile      string `yaml:"email_file" mapstructure:"email_file"`
	UCCFile        string `yaml:"ucc_file" mapstructure:"ucc_file"`
	DealerPrefix   string `yaml:"dealer_prefix" mapstructure:"dealer_prefix"`
}

// ReportConfig configures report output.
type ReportConfig struct {
	OutputDir string `yaml:"output_dir" mapstructure:"output_dir"`
}

// StoreConfig configures the run store database.
type StoreConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SURVEIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	// Every key needs a default here. AutomaticEnv only surfaces a
	// SURVEIL_* variable through Unmarshal when viper already knows the
	// key, so a defaultless key would silently ignore its env override.
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.classifier_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.extractor_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.max_tokens", 1500)
	v.SetDefault("pipeline.max_retries", 2)
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.rate_per_sec", 2.0)
	v.SetDefault("pipeline.compare_legacy", false)
	v.SetDefault("pipeline.attachment_chars", 2000)
	v.SetDefault("match.tolerance_minutes", 5)
	v.SetDefault("match.high_band_minutes", 1)
	v.SetDefault("sources.orders_dir", "data/orders")
	v.SetDefault("sources.dealer_prefix", "")
	v.SetDefault("sources.call_info_file", "data/call_recordings_info.xlsx")
	v.SetDefault("sources.transcripts_dir", "data/transcripts")
	v.SetDefault("sources.email_file", "data/emails.json")
	v.SetDefault("sources.ucc_file", "data/ucc_master.xlsx")
	v.SetDefault("report.output_dir", "output")
	v.SetDefault("store.path", "surveil.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks settings that would make a run meaningless. Failures here
// abort the whole run before any evidence is touched.
func (c *Config) Validate() error {
	if c.Anthropic.Key == "" {
		return eris.New("config: anthropic.key is required")
	}
	if c.Anthropic.ClassifierModel == "" {
		return eris.New("config: anthropic.classifier_model is required")
	}
	if c.Anthropic.ExtractorModel == "" {
		return eris.New("config: anthropic.extractor_model is required")
	}
	if c.Pipeline.Concurrency < 1 {
		return eris.New("config: pipeline.concurrency must be at least 1")
	}
	if c.Pipeline.MaxRetries < 0 {
		return eris.New("config: pipeline.max_retries must not be negative")
	}
	if c.Match.ToleranceMinutes < 1 {
		return eris.New("config: match.tolerance_minutes must be at least 1")
	}
	if c.Match.HighBandMinutes < 0 || c.Match.HighBandMinutes > c.Match.ToleranceMinutes {
		return eris.New("config: match.high_band_minutes must be between 0 and match.tolerance_minutes")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
