//
//Copyright [2016] [SnapRoute Inc]
//
//Licensed under the Apache License, Version 2.0 (the "License");
//you may not use this file except in compliance with the License.
//You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
//	 Unless required by applicable law or agreed to in writing, software
//	 distributed under the License is distributed on an "AS IS" BASIS,
//	 WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
//	 See the License for the specific language governing permissions and
//	 limitations under the License.
//

// Package config loads and validates decisiond's on-disk configuration:
// the viewer node name, the area list, the solver flags, the debounce and
// policy-save timings, and the rib-policy persistence path.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"l3/decision/model"
	"l3/decision/spf"
)

var namePattern = regexp.MustCompile("^[0-9a-zA-Z._-]+$")

// Solver mirrors spf.Config with yaml tags; kept separate from spf.Config
// so the solver package doesn't need to carry marshalling concerns.
type Solver struct {
	V4Enabled                bool `yaml:"v4_enabled"`
	EnableSegmentLabels      bool `yaml:"enable_segment_labels"`
	EnableAdjacencyLabels    bool `yaml:"enable_adjacency_labels"`
	EnableBestRouteSelection bool `yaml:"enable_best_route_selection"`
	V4OverV6Nexthop          bool `yaml:"v4_over_v6_nexthop"`
}

func (s Solver) ToSpfConfig() spf.Config {
	return spf.Config{
		V4Enabled:                s.V4Enabled,
		EnableSegmentLabels:      s.EnableSegmentLabels,
		EnableAdjacencyLabels:    s.EnableAdjacencyLabels,
		EnableBestRouteSelection: s.EnableBestRouteSelection,
		V4OverV6Nexthop:          s.V4OverV6Nexthop,
	}
}

// Config is the on-disk shape of decisiond's configuration file.
type Config struct {
	Viewer model.NodeName `yaml:"viewer"`
	Areas  []model.Area   `yaml:"areas"`

	Solver Solver `yaml:"solver"`

	DebounceMinMs int64 `yaml:"debounce_min_ms"`
	DebounceMaxMs int64 `yaml:"debounce_max_ms"`

	PolicySaveMinMs int64 `yaml:"policy_save_min_ms"`
	PolicySaveMaxMs int64 `yaml:"policy_save_max_ms"`

	PolicyFilePath string `yaml:"policy_file_path"`

	LogLevel string `yaml:"log_level"`
}

// Defaults returns the built-in configuration that a loaded file is
// merged over, so a sparse file only needs to name what it overrides.
func Defaults() Config {
	return Config{
		Areas: []model.Area{model.DefaultArea},
		Solver: Solver{
			V4Enabled:                true,
			EnableBestRouteSelection: true,
		},
		DebounceMinMs:   200,
		DebounceMaxMs:   2000,
		PolicySaveMinMs: 500,
		PolicySaveMaxMs: 5000,
		LogLevel:        "info",
	}
}

// Load reads path, merges it over Defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Defaults()
	buf, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var loaded Config
	if err := yaml.Unmarshal(buf, &loaded); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := mergo.Merge(&cfg, loaded, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge config %s: %w", path, err)
	}
	if err := Validate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the loaded configuration the way the teacher's config
// packages validate thrift structs before accepting them: descriptive
// errors, no panics.
func Validate(cfg *Config) error {
	if !namePattern.MatchString(string(cfg.Viewer)) {
		return fmt.Errorf("config: viewer %q is not a valid node name", cfg.Viewer)
	}
	if len(cfg.Areas) == 0 {
		return fmt.Errorf("config: areas must not be empty")
	}
	seen := make(map[model.Area]struct{}, len(cfg.Areas))
	for _, a := range cfg.Areas {
		if _, dup := seen[a]; dup {
			return fmt.Errorf("config: duplicate area %q", a)
		}
		seen[a] = struct{}{}
	}
	if cfg.DebounceMinMs <= 0 || cfg.DebounceMaxMs <= 0 {
		return fmt.Errorf("config: debounce_min_ms and debounce_max_ms must be positive")
	}
	if cfg.DebounceMaxMs < cfg.DebounceMinMs {
		return fmt.Errorf("config: debounce_max_ms must be >= debounce_min_ms")
	}
	if cfg.PolicySaveMinMs <= 0 || cfg.PolicySaveMaxMs <= 0 {
		return fmt.Errorf("config: policy_save_min_ms and policy_save_max_ms must be positive")
	}
	if cfg.PolicySaveMaxMs < cfg.PolicySaveMinMs {
		return fmt.Errorf("config: policy_save_max_ms must be >= policy_save_min_ms")
	}
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("config: unknown log_level %q", cfg.LogLevel)
	}
	return nil
}

// DebounceMin, DebounceMax, PolicySaveMin and PolicySaveMax convert the
// millisecond fields loaded from YAML into time.Duration, the shape
// decision.Config actually wants.
func (c Config) DebounceMin() time.Duration   { return time.Duration(c.DebounceMinMs) * time.Millisecond }
func (c Config) DebounceMax() time.Duration   { return time.Duration(c.DebounceMaxMs) * time.Millisecond }
func (c Config) PolicySaveMin() time.Duration { return time.Duration(c.PolicySaveMinMs) * time.Millisecond }
func (c Config) PolicySaveMax() time.Duration { return time.Duration(c.PolicySaveMaxMs) * time.Millisecond }
