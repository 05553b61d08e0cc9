package seed

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Presets are named option sets selectable from the seed command.
var Presets = map[string]Options{
	"minimal": {
		NumUsers:        5,
		NumPosts:        10,
		EventRatio:      0.5,
		UpcomingRatio:   0.5,
		FollowsPerUser:  2,
		InterestPerPost: 2,
		CommentsPerPost: 1,
		MessagesPerChat: 2,
		MaxDays:         14,
		ShouldClean:     true,
		SkipBcrypt:      true,
	},
	"demo": DefaultOptions(),
	"busy": {
		NumUsers:        300,
		NumPosts:        1500,
		EventRatio:      0.5,
		UpcomingRatio:   0.7,
		FollowsPerUser:  25,
		InterestPerPost: 15,
		CommentsPerPost: 6,
		MessagesPerChat: 20,
		MaxDays:         120,
		ShouldClean:     true,
		SkipBcrypt:      true,
	},
}

// PresetNames lists the built-in presets in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Preset resolves a built-in preset name or a path to a YAML options file.
// Fields absent from a file keep their DefaultOptions value.
func Preset(nameOrPath string) (Options, error) {
	if opts, ok := Presets[strings.ToLower(nameOrPath)]; ok {
		return opts, nil
	}
	if strings.HasSuffix(nameOrPath, ".yaml") || strings.HasSuffix(nameOrPath, ".yml") {
		return LoadPresetFile(nameOrPath)
	}
	return Options{}, fmt.Errorf("unknown preset %q (available: %s)", nameOrPath, strings.Join(PresetNames(), ", "))
}

// LoadPresetFile reads options from a YAML file.
func LoadPresetFile(path string) (Options, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Options{}, fmt.Errorf("read preset: %w", err)
	}
	return ParsePreset(raw)
}

// ParsePreset decodes YAML options over DefaultOptions and checks ranges.
func ParsePreset(raw []byte) (Options, error) {
	opts := DefaultOptions()
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return Options{}, fmt.Errorf("parse preset: %w", err)
	}
	if opts.NumUsers < 0 || opts.NumPosts < 0 {
		return Options{}, fmt.Errorf("users and posts must not be negative")
	}
	if opts.EventRatio < 0 || opts.EventRatio > 1 || opts.UpcomingRatio < 0 || opts.UpcomingRatio > 1 {
		return Options{}, fmt.Errorf("ratios must be between 0 and 1")
	}
	return opts, nil
}
