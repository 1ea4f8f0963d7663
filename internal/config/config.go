// Package config loads tiltlink settings from defaults, an optional
// tiltlink.yaml, TILTLINK_* environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/1ureka/tiltlink/internal/control"
	"github.com/1ureka/tiltlink/internal/transmit"
	"github.com/1ureka/tiltlink/internal/transport"
)

// Role is the side of the link this process plays.
type Role string

const (
	RolePad      Role = "pad"      // samples input and streams frames
	RoleReceiver Role = "receiver" // decodes and displays frames
)

// InputSource selects what drives the sampler on the pad.
type InputSource string

const (
	SourceKeyboard InputSource = "keyboard"
	SourceSweep    InputSource = "sweep"
	SourceNone     InputSource = "none"
)

const (
	envPrefix  = "TILTLINK"
	configName = "tiltlink"
)

var ErrInvalid = errors.New("invalid config")

// Config holds every setting either role needs.
type Config struct {
	Role          Role
	Interval      time.Duration
	Mode          transmit.Mode
	Strict        bool
	Name          string
	Debug         bool
	StatsInterval time.Duration

	Listen string // pad: signaling listen address
	URL    string // receiver: signaling URL to dial
	PIN    string // pad: required join PIN, empty to generate one

	Transport transport.Config
	Sampler   control.Config
	Input     InputSource
}

// New returns a viper instance with defaults, environment binding and the
// optional config file loaded.
func New() (*viper.Viper, error) {
	v := viper.New()

	sc := control.DefaultConfig()
	v.SetDefault("interval", transmit.DefaultInterval)
	v.SetDefault("mode", string(transmit.ModeControl))
	v.SetDefault("strict", false)
	v.SetDefault("name", defaultName())
	v.SetDefault("debug", false)
	v.SetDefault("stats_interval", time.Second)
	v.SetDefault("signaling.listen", ":0")
	v.SetDefault("signaling.url", "")
	v.SetDefault("signaling.pin", "")
	v.SetDefault("ice.stun", transport.DefaultSTUNServers)
	v.SetDefault("sampler.center", sc.Center)
	v.SetDefault("sampler.gain", sc.Gain)
	v.SetDefault("sampler.snap_threshold", sc.SnapThreshold)
	v.SetDefault("sampler.joystick_radius", sc.JoystickRadius)
	v.SetDefault("input.source", string(SourceKeyboard))

	// TILTLINK_SIGNALING_URL -> signaling.url
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	for _, path := range []string{".", "$HOME/.tiltlink"} {
		v.AddConfigPath(os.ExpandEnv(path))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}
	return v, nil
}

// Load reads a Config for role out of v and validates it.
func Load(v *viper.Viper, role Role) (*Config, error) {
	cfg := &Config{
		Role:          role,
		Interval:      v.GetDuration("interval"),
		Mode:          transmit.Mode(v.GetString("mode")),
		Strict:        v.GetBool("strict"),
		Name:          v.GetString("name"),
		Debug:         v.GetBool("debug"),
		StatsInterval: v.GetDuration("stats_interval"),
		Listen:        v.GetString("signaling.listen"),
		URL:           v.GetString("signaling.url"),
		PIN:           v.GetString("signaling.pin"),
		Transport: transport.Config{
			STUNServers: v.GetStringSlice("ice.stun"),
		},
		Sampler: control.Config{
			Center:         v.GetFloat64("sampler.center"),
			Gain:           v.GetFloat64("sampler.gain"),
			SnapThreshold:  v.GetFloat64("sampler.snap_threshold"),
			JoystickRadius: v.GetFloat64("sampler.joystick_radius"),
		},
		Input: InputSource(v.GetString("input.source")),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Role {
	case RolePad, RoleReceiver:
	default:
		return fmt.Errorf("%w: unknown role %q", ErrInvalid, c.Role)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive, got %v", ErrInvalid, c.Interval)
	}
	if _, err := transmit.ParseMode(string(c.Mode)); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	switch c.Input {
	case SourceKeyboard, SourceSweep, SourceNone:
	default:
		return fmt.Errorf("%w: unknown input source %q", ErrInvalid, c.Input)
	}
	if c.Sampler.JoystickRadius <= 0 {
		return fmt.Errorf("%w: joystick radius must be positive, got %v", ErrInvalid, c.Sampler.JoystickRadius)
	}
	if c.Sampler.Gain == 0 {
		return fmt.Errorf("%w: gain must not be zero", ErrInvalid)
	}
	if c.Role == RoleReceiver && c.URL == "" {
		return fmt.Errorf("%w: receiver needs a signaling url", ErrInvalid)
	}
	return nil
}

func defaultName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "receiver"
	}
	return host
}
