package config

import (
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// GlobalDefaults holds the optional settings vde-layout reads from
// ~/.config/vde-layout/config.toml: default backend, default window mode, a
// window name prefix, and a tmux binary path. CLI flags and the preset's own
// declared backend take precedence over DefaultBackend; DefaultBackend is
// passed to backend.Resolve in the preset-backend slot when the preset
// declares none, so it takes precedence over the environment probe.
// TmuxBinPath is decoded and logged only: the tmux backend always runs the
// "tmux" binary found on PATH.
type GlobalDefaults struct {
	DefaultBackend    string `toml:"default_backend"`
	DefaultWindowMode string `toml:"default_window_mode"`
	WindowNamePrefix  string `toml:"window_name_prefix"`
	TmuxBinPath       string `toml:"tmux_bin_path"`
}

// DefaultGlobalConfigPath returns ~/.config/vde-layout/config.toml, or ""
// when the home directory can't be determined.
func DefaultGlobalConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "vde-layout", "config.toml")
}

// LoadGlobalDefaults decodes a GlobalDefaults from path. A missing file is
// not an error — it simply yields the zero value, so the caller's own
// defaults apply — but a malformed file is.
func LoadGlobalDefaults(path string) (GlobalDefaults, error) {
	if path == "" {
		return GlobalDefaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return GlobalDefaults{}, nil
		}
		return GlobalDefaults{}, err
	}

	var gd GlobalDefaults
	if err := toml.Unmarshal(data, &gd); err != nil {
		return GlobalDefaults{}, err
	}
	return gd, nil
}
