// Package loader resolves preset:// URIs to a decoded preset.Preset. YAML is
// the primary format, decoded with gopkg.in/yaml.v3; a .json extension
// switches to encoding/json.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"vde-layout/pkg/errs"
	"vde-layout/pkg/preset"
)

const presetScheme = "preset://"

// searchCandidates returns every candidate file path for name, in search
// order, with the .yaml and .yml extensions appended here. Resolve picks the
// first one that exists and otherwise falls back to .vde-layout/<name>.json.
func searchCandidates(name string) []string {
	xdgConfig := os.Getenv("XDG_CONFIG_HOME")
	home, _ := os.UserHomeDir()

	var candidates []string
	candidates = append(candidates,
		filepath.Join(".vde-layout", name+".yaml"),
		filepath.Join(".vde-layout", name+".yml"),
	)
	if xdgConfig != "" {
		candidates = append(candidates, filepath.Join(xdgConfig, "vde-layout", "presets", name+".yaml"))
	}
	if home != "" {
		candidates = append(candidates, filepath.Join(home, ".config", "vde-layout", "presets", name+".yaml"))
	}
	return candidates
}

// ParseURI splits a preset:// URI into its bare name, defaulting to
// "default" when omitted.
func ParseURI(uri string) string {
	name := strings.TrimPrefix(uri, presetScheme)
	name = strings.TrimSpace(name)
	if name == "" {
		return "default"
	}
	return name
}

// Resolve locates and decodes the preset named by a preset:// URI (or bare
// name). A name with no matching file on the search path yields a
// PRESET_NOT_FOUND error.
func Resolve(uri string) (preset.Preset, error) {
	name := ParseURI(uri)

	path, ok := findFirstExisting(searchCandidates(name))
	if !ok {
		// Also accept a direct .json sibling, for presets authored as JSON.
		jsonCandidates := []string{filepath.Join(".vde-layout", name+".json")}
		path, ok = findFirstExisting(jsonCandidates)
	}
	if !ok {
		return preset.Preset{}, errs.New(errs.CodePresetNotFound, fmt.Sprintf("no preset file found for %q", name)).
			WithDetails(map[string]any{"name": name})
	}

	return decodeFile(path)
}

// DiscoverNames lists every preset name discoverable on the search path,
// used by the CLI layer to build "did you mean" suggestions.
func DiscoverNames() []string {
	seen := map[string]bool{}
	var names []string

	dirs := []string{".vde-layout"}
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		dirs = append(dirs, filepath.Join(xdgConfig, "vde-layout", "presets"))
	}
	if home, _ := os.UserHomeDir(); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", "vde-layout", "presets"))
	}

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			ext := filepath.Ext(e.Name())
			if ext != ".yaml" && ext != ".yml" && ext != ".json" {
				continue
			}
			name := strings.TrimSuffix(e.Name(), ext)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}

func findFirstExisting(paths []string) (string, bool) {
	for _, p := range paths {
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, true
		}
	}
	return "", false
}

func decodeFile(path string) (preset.Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return preset.Preset{}, errs.Wrap(errs.CodePresetNotFound, err, fmt.Sprintf("failed to read preset file %s", path))
	}

	var p preset.Preset
	if filepath.Ext(path) == ".json" {
		if err := json.Unmarshal(data, &p); err != nil {
			return preset.Preset{}, errs.Wrap(errs.CodeInvalidLayout, err, fmt.Sprintf("failed to decode preset JSON %s", path))
		}
		return p, nil
	}

	if err := yaml.Unmarshal(data, &p); err != nil {
		return preset.Preset{}, errs.Wrap(errs.CodeInvalidLayout, err, fmt.Sprintf("failed to decode preset YAML %s", path))
	}
	return p, nil
}
