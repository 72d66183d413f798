// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/labelmerge/internal/model"
)

// DefaultOutput is the combined label table written when no output is configured.
const DefaultOutput = "combined_dataset_labels.csv"

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Dir     *string        `toml:"dir"`
	Output  *string        `toml:"output"`
	Summary *string        `toml:"summary"`
	History *bool          `toml:"history"`
	Sources []SourceConfig `toml:"sources"`
	Log     LogConfig      `toml:"log"`
}

// SourceConfig maps one label file onto the canonical columns.
type SourceConfig struct {
	Path string `toml:"path"`
	Main string `toml:"main"`
	Sub  string `toml:"sub"`
}

// LogConfig maps diagnostic logging settings.
type LogConfig struct {
	Level  *string `toml:"level"`
	Format *string `toml:"format"`
}

// DefaultSources returns the built-in dataset list in merge order.
func DefaultSources() []model.SourceSpec {
	return []model.SourceSpec{
		{Path: "graffitti_labels.csv", MainField: "main_categories", SubField: "sub_categories"},
		{Path: "trash_labels.csv", MainField: "main_category", SubField: "sub_category"},
		{Path: "potholes_labels.csv", MainField: "main_categories", SubField: "sub_categories"},
		{Path: "damagedsigns_labeled_data.csv", MainField: "main_category", SubField: "sub_category"},
	}
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// SourceSpecs returns the configured sources, or the defaults when none are set.
func (c FileConfig) SourceSpecs() ([]model.SourceSpec, error) {
	if len(c.Sources) == 0 {
		return DefaultSources(), nil
	}
	specs := make([]model.SourceSpec, 0, len(c.Sources))
	for i, src := range c.Sources {
		spec := model.SourceSpec{
			Path:      strings.TrimSpace(src.Path),
			MainField: strings.TrimSpace(src.Main),
			SubField:  strings.TrimSpace(src.Sub),
		}
		if spec.Path == "" || spec.MainField == "" || spec.SubField == "" {
			return nil, fmt.Errorf("sources[%d]: path, main and sub must all be set", i)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}
