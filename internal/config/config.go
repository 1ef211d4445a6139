// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Bridge   BridgeConfig   `mapstructure:"bridge" yaml:"bridge"`
	Decision DecisionConfig `mapstructure:"decision" yaml:"decision"`
	Pilot    PilotConfig    `mapstructure:"pilot" yaml:"pilot"`
	UI       UIConfig       `mapstructure:"ui" yaml:"ui"`
}

// LoggerConfig mirrors the observability package's needs.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig maps log levels to terminal colors for the console format.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BridgeConfig configures the adb device bridge.
type BridgeConfig struct {
	// ADBPath is the adb binary; resolved through PATH when bare.
	ADBPath string `mapstructure:"adb_path" yaml:"adb_path"`
	// Serial selects one device when several are attached (adb -s).
	Serial string `mapstructure:"serial" yaml:"serial"`
	// RemoteScreenshotPath is the on-device capture target.
	RemoteScreenshotPath string `mapstructure:"remote_screenshot_path" yaml:"remote_screenshot_path"`
	// CaptureSettle is the pause between on-device screencap and pull.
	CaptureSettle time.Duration `mapstructure:"capture_settle" yaml:"capture_settle"`
	// CommandTimeout bounds one adb invocation. Zero disables the bound.
	CommandTimeout time.Duration `mapstructure:"command_timeout" yaml:"command_timeout"`
}

// DecisionConfig configures the remote decision service client.
type DecisionConfig struct {
	Model    string `mapstructure:"model" yaml:"model"`
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APITimeout bounds one decision call. Zero disables the bound.
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	TopK        int           `mapstructure:"top_k" yaml:"top_k"`
	TopP        float64       `mapstructure:"top_p" yaml:"top_p"`
}

// PilotConfig configures the control loop.
type PilotConfig struct {
	MaxSteps    int           `mapstructure:"max_steps" yaml:"max_steps"`
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// UIConfig configures the presentation shell only; nothing here affects
// loop behavior.
type UIConfig struct {
	Disabled        bool   `mapstructure:"disabled" yaml:"disabled"`
	ThumbnailWidth  int    `mapstructure:"thumbnail_width" yaml:"thumbnail_width"`
	ThumbnailHeight int    `mapstructure:"thumbnail_height" yaml:"thumbnail_height"`
	PreviewFile     string `mapstructure:"preview_file" yaml:"preview_file"`
}

// NewDefaultConfig returns a configuration populated with defaults only.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// Logger
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "droidpilot")
	v.SetDefault("logger.log_file", "droidpilot.log")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "red")

	// Bridge
	v.SetDefault("bridge.adb_path", "adb")
	v.SetDefault("bridge.serial", "")
	v.SetDefault("bridge.remote_screenshot_path", "/sdcard/droidpilot_screen.png")
	v.SetDefault("bridge.capture_settle", "1s")
	v.SetDefault("bridge.command_timeout", "0")

	// Decision service
	v.SetDefault("decision.model", "gemini-2.0-flash")
	v.SetDefault("decision.api_key", "")
	v.SetDefault("decision.endpoint", "")
	v.SetDefault("decision.api_timeout", "0")
	v.SetDefault("decision.temperature", 0.1)
	v.SetDefault("decision.top_k", 1)
	v.SetDefault("decision.top_p", 1.0)

	// Pilot
	v.SetDefault("pilot.max_steps", 20)
	v.SetDefault("pilot.settle_delay", "2s")

	// UI (display only)
	v.SetDefault("ui.disabled", false)
	v.SetDefault("ui.thumbnail_width", 300)
	v.SetDefault("ui.thumbnail_height", 400)
	v.SetDefault("ui.preview_file", "")
}
