// Package settings holds the renderer configuration and loads it from YAML or TOML files.
package settings

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPickTimeout bounds how long a pick readback may wait for its fence.
const DefaultPickTimeout = 500 * time.Millisecond

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("settings: invalid")

// Duration is a time.Duration written as a Go duration string ("500ms") in config files.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Settings configures the presenter, the frame composer and the picking pass.
type Settings struct {
	// Width and Height are the initial swap chain size in pixels.
	Width  int `yaml:"width" toml:"width"`
	Height int `yaml:"height" toml:"height"`

	// BufferCount is the number of swap chain buffers and frame slots (2 or 3).
	BufferCount int `yaml:"buffer_count" toml:"buffer_count"`

	VSync           bool `yaml:"vsync" toml:"vsync"`
	BackfaceCulling bool `yaml:"backface_culling" toml:"backface_culling"`
	ShadowMapping   bool `yaml:"shadow_mapping" toml:"shadow_mapping"`
	ShadowMapSize   int  `yaml:"shadow_map_size" toml:"shadow_map_size"`
	EarlyZ          bool `yaml:"early_z" toml:"early_z"`

	// PickTimeout bounds the wait for an object-id readback.
	PickTimeout Duration `yaml:"pick_timeout" toml:"pick_timeout"`

	// FrameWaitTimeout bounds the wait for a frame slot to come free. Zero waits forever;
	// a non-zero timeout that expires is treated as device loss.
	FrameWaitTimeout Duration `yaml:"frame_wait_timeout" toml:"frame_wait_timeout"`

	// ShutdownTimeout bounds the final drain of all frame slots.
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`

	ClearColor   [4]float32 `yaml:"clear_color" toml:"clear_color"`
	AmbientColor [3]float32 `yaml:"ambient_color" toml:"ambient_color"`

	// ShaderDir overrides the embedded shaders when set.
	ShaderDir    string `yaml:"shader_dir" toml:"shader_dir"`
	WatchShaders bool   `yaml:"watch_shaders" toml:"watch_shaders"`

	LogLevel  string `yaml:"log_level" toml:"log_level"`
	Profiling bool   `yaml:"profiling" toml:"profiling"`
}

// Default returns the settings used when no file is given.
func Default() Settings {
	return Settings{
		Width:           1280,
		Height:          720,
		BufferCount:     3,
		VSync:           true,
		BackfaceCulling: true,
		ShadowMapping:   true,
		ShadowMapSize:   2048,
		EarlyZ:          true,
		PickTimeout:     Duration(DefaultPickTimeout),
		ShutdownTimeout: Duration(2 * time.Second),
		ClearColor:      [4]float32{0.1, 0.1, 0.12, 1},
		AmbientColor:    [3]float32{0.15, 0.15, 0.18},
		LogLevel:        "info",
	}
}

// Validate reports the first out-of-range field.
func (s Settings) Validate() error {
	switch {
	case s.Width <= 0 || s.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalid, s.Width, s.Height)
	case s.BufferCount < 2 || s.BufferCount > 3:
		return fmt.Errorf("%w: buffer_count %d not in [2, 3]", ErrInvalid, s.BufferCount)
	case s.ShadowMapping && s.ShadowMapSize <= 0:
		return fmt.Errorf("%w: shadow_map_size %d", ErrInvalid, s.ShadowMapSize)
	case s.PickTimeout <= 0:
		return fmt.Errorf("%w: pick_timeout must be positive", ErrInvalid)
	case s.FrameWaitTimeout < 0 || s.ShutdownTimeout < 0:
		return fmt.Errorf("%w: negative timeout", ErrInvalid)
	case s.WatchShaders && s.ShaderDir == "":
		return fmt.Errorf("%w: watch_shaders requires shader_dir", ErrInvalid)
	}
	if _, err := s.SlogLevel(); err != nil {
		return err
	}
	return nil
}

// SlogLevel parses LogLevel.
func (s Settings) SlogLevel() (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log_level %q", ErrInvalid, s.LogLevel)
	}
	return lvl, nil
}

// Load reads path over the defaults. The format is chosen by extension: .yaml/.yml or .toml.
//
// Parameters:
//   - path: the settings file
//
// Returns:
//   - Settings: defaults overlaid with the file's values
//   - error: read, decode or validation failure
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, err
	}
	s, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return Settings{}, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Parse decodes data over the defaults. format is a file extension with or without the dot.
func Parse(data []byte, format string) (Settings, error) {
	s := Default()
	switch strings.TrimPrefix(strings.ToLower(format), ".") {
	case "yaml", "yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
			return Settings{}, err
		}
	case "toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&s); err != nil {
			return Settings{}, err
		}
	default:
		return Settings{}, fmt.Errorf("settings: unsupported format %q", format)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
