// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/bucket"
	"github.com/walteh/shelf/pkg/catalog"
	"github.com/walteh/shelf/pkg/journal"
	"github.com/walteh/shelf/pkg/monitor"
	"github.com/walteh/shelf/pkg/recommend"
	"github.com/walteh/shelf/pkg/rules"
	"gitlab.com/tozd/go/errors"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse decodes the config from bytes; filename is used in diagnostics
	Parse(ctx context.Context, filename string, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Journal backends.
const (
	BackendSQLite = "sqlite"
	BackendFile   = "file"
	BackendMemory = "memory"
)

// 📂 CatalogConfig controls what a scan admits
type CatalogConfig struct {
	Exclude       []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
	MinSize       int64    `json:"min_size,omitempty" yaml:"min_size,omitempty"`
	MaxSize       int64    `json:"max_size,omitempty" yaml:"max_size,omitempty"`
	FlagFile      string   `json:"flag_file,omitempty" yaml:"flag_file,omitempty"`
	IncludeHidden bool     `json:"include_hidden,omitempty" yaml:"include_hidden,omitempty"`
	Workers       int      `json:"workers,omitempty" yaml:"workers,omitempty"`
}

// 🔗 AssociationConfig overrides the built-in association tables. Empty lists keep the defaults.
type AssociationConfig struct {
	Companions      []association.CompanionRule `json:"companions,omitempty" yaml:"companions,omitempty"`
	ProjectMarkers  []string                    `json:"project_markers,omitempty" yaml:"project_markers,omitempty"`
	MaxEditDistance *int                        `json:"max_edit_distance,omitempty" yaml:"max_edit_distance,omitempty"`
}

// 🗂️ BucketConfig holds the bucketing thresholds
type BucketConfig struct {
	Threshold     int      `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	MinBucketSize *int     `json:"min_bucket_size,omitempty" yaml:"min_bucket_size,omitempty"`
	MaxDepth      int      `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	Dimensions    []string `json:"dimensions,omitempty" yaml:"dimensions,omitempty"`
	Granularity   string   `json:"granularity,omitempty" yaml:"granularity,omitempty"`
	MiscName      string   `json:"misc_name,omitempty" yaml:"misc_name,omitempty"`
	Timezone      string   `json:"timezone,omitempty" yaml:"timezone,omitempty"`
}

// 💡 RecommendConfig holds the analysis thresholds
type RecommendConfig struct {
	DuplicateMinSize int64    `json:"duplicate_min_size,omitempty" yaml:"duplicate_min_size,omitempty"`
	StaleAfter       string   `json:"stale_after,omitempty" yaml:"stale_after,omitempty"` // "30d" or a Go duration
	TempFolders      []string `json:"temp_folders,omitempty" yaml:"temp_folders,omitempty"`
	TempExtensions   []string `json:"temp_extensions,omitempty" yaml:"temp_extensions,omitempty"`
	TempPrefixes     []string `json:"temp_prefixes,omitempty" yaml:"temp_prefixes,omitempty"`
	ClutterCeiling   float64  `json:"clutter_ceiling,omitempty" yaml:"clutter_ceiling,omitempty"`
}

// 👀 MonitorConfig tunes watch mode
type MonitorConfig struct {
	Debounce           string `json:"debounce,omitempty" yaml:"debounce,omitempty"`
	MaxPassesPerMinute int    `json:"max_passes_per_minute,omitempty" yaml:"max_passes_per_minute,omitempty"`
	QueueSize          int    `json:"queue_size,omitempty" yaml:"queue_size,omitempty"`
	AutoApply          bool   `json:"auto_apply,omitempty" yaml:"auto_apply,omitempty"`
}

// 📜 JournalConfig selects where plans and undo records live
type JournalConfig struct {
	Backend   string `json:"backend,omitempty" yaml:"backend,omitempty"`
	Path      string `json:"path,omitempty" yaml:"path,omitempty"`
	KeepPlans int    `json:"keep_plans,omitempty" yaml:"keep_plans,omitempty"`
}

// 📚 Config represents the complete configuration file
type Config struct {
	Source            string            `json:"source" yaml:"source"`
	Target            string            `json:"target" yaml:"target"`
	MaxSuffix         int               `json:"max_suffix,omitempty" yaml:"max_suffix,omitempty"`
	AllowCopyFallback bool              `json:"allow_copy_fallback,omitempty" yaml:"allow_copy_fallback,omitempty"`
	Catalog           CatalogConfig     `json:"catalog,omitempty" yaml:"catalog,omitempty"`
	Association       AssociationConfig `json:"association,omitempty" yaml:"association,omitempty"`
	Rules             []rules.Rule      `json:"rules,omitempty" yaml:"rules,omitempty"`
	Bucket            BucketConfig      `json:"bucket,omitempty" yaml:"bucket,omitempty"`
	Recommend         RecommendConfig   `json:"recommend,omitempty" yaml:"recommend,omitempty"`
	Monitor           MonitorConfig     `json:"monitor,omitempty" yaml:"monitor,omitempty"`
	Journal           JournalConfig     `json:"journal,omitempty" yaml:"journal,omitempty"`

	location string
}

// Default returns a config organizing source into target with the stock tables.
func Default(source, target string) *Config {
	return &Config{Source: source, Target: target}
}

// 🎯 Load loads and validates the configuration from a file
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	p := GetParser(path)
	if p == nil {
		return nil, errors.Errorf("no parser found for file: %s", path)
	}

	cfg, err := p.Parse(ctx, path, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	cfg.location = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

// Location returns the file the config was loaded from, if any.
func (cfg *Config) Location() string {
	return cfg.location
}

// 🔍 Validate resolves paths, fills defaults and compiles every table, so a
// bad rule or threshold is reported here rather than during a run
func (cfg *Config) Validate() error {
	if strings.TrimSpace(cfg.Source) == "" {
		return errors.Errorf("source is required")
	}
	if strings.TrimSpace(cfg.Target) == "" {
		return errors.Errorf("target is required")
	}

	var err error
	if cfg.Source, err = cfg.resolve(cfg.Source); err != nil {
		return errors.Errorf("resolving source: %w", err)
	}
	if cfg.Target, err = cfg.resolve(cfg.Target); err != nil {
		return errors.Errorf("resolving target: %w", err)
	}

	if cfg.MaxSuffix < 0 {
		return errors.Errorf("max_suffix must not be negative, got %d", cfg.MaxSuffix)
	}

	if err := rules.Compile(cfg.Rules); err != nil {
		return errors.Errorf("compiling rules: %w", err)
	}

	opts := cfg.catalogOptions()
	if err := opts.Validate(); err != nil {
		return errors.Errorf("catalog: %w", err)
	}

	assoc := cfg.associationConfig()
	if err := assoc.Validate(); err != nil {
		return errors.Errorf("association: %w", err)
	}

	if _, err := cfg.bucketConfig(); err != nil {
		return errors.Errorf("bucket: %w", err)
	}
	if _, err := cfg.recommendConfig(); err != nil {
		return errors.Errorf("recommend: %w", err)
	}
	if _, err := cfg.MonitorConfig(); err != nil {
		return errors.Errorf("monitor: %w", err)
	}

	switch cfg.Journal.Backend {
	case "":
		cfg.Journal.Backend = BackendSQLite
	case BackendSQLite, BackendFile, BackendMemory:
	default:
		return errors.Errorf("journal.backend must be %s, %s or %s, got %q", BackendSQLite, BackendFile, BackendMemory, cfg.Journal.Backend)
	}
	if cfg.Journal.KeepPlans < 0 {
		return errors.Errorf("journal.keep_plans must not be negative, got %d", cfg.Journal.KeepPlans)
	}
	if cfg.Journal.KeepPlans == 0 {
		cfg.Journal.KeepPlans = journal.DefaultKeepPlans
	}
	if cfg.Journal.Path == "" {
		cfg.Journal.Path = DefaultJournalPath(cfg.Journal.Backend)
	} else if cfg.Journal.Path, err = cfg.resolve(cfg.Journal.Path); err != nil {
		return errors.Errorf("resolving journal path: %w", err)
	}

	return nil
}

// resolve expands a leading ~ and makes relative paths relative to the config file.
func (cfg *Config) resolve(path string) (string, error) {
	path = expandHome(strings.TrimSpace(path))
	if !filepath.IsAbs(path) && cfg.location != "" {
		path = filepath.Join(filepath.Dir(cfg.location), path)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return filepath.Clean(abs), nil
}

func (cfg *Config) catalogOptions() catalog.Options {
	return catalog.Options{
		Exclude:       cfg.Catalog.Exclude,
		MinSize:       cfg.Catalog.MinSize,
		MaxSize:       cfg.Catalog.MaxSize,
		FlagFile:      cfg.Catalog.FlagFile,
		IncludeHidden: cfg.Catalog.IncludeHidden,
		Workers:       cfg.Catalog.Workers,
	}
}

func (cfg *Config) associationConfig() association.Config {
	out := association.DefaultConfig()
	if len(cfg.Association.Companions) > 0 {
		out.Companions = cfg.Association.Companions
	}
	if len(cfg.Association.ProjectMarkers) > 0 {
		out.ProjectMarkers = cfg.Association.ProjectMarkers
	}
	if cfg.Association.MaxEditDistance != nil {
		out.Media.MaxEditDistance = *cfg.Association.MaxEditDistance
	}
	return out
}

func (cfg *Config) bucketConfig() (bucket.Config, error) {
	out := bucket.DefaultConfig()
	b := cfg.Bucket
	if b.Threshold != 0 {
		out.Threshold = b.Threshold
	}
	if b.MinBucketSize != nil {
		out.MinBucketSize = *b.MinBucketSize
	}
	if b.MaxDepth != 0 {
		out.MaxDepth = b.MaxDepth
	}
	if len(b.Dimensions) > 0 {
		out.Dimensions = make([]bucket.Dimension, 0, len(b.Dimensions))
		for _, d := range b.Dimensions {
			out.Dimensions = append(out.Dimensions, bucket.Dimension(strings.ToLower(strings.TrimSpace(d))))
		}
	}
	if b.Granularity != "" {
		out.Granularity = bucket.Granularity(strings.ToLower(b.Granularity))
	}
	if b.MiscName != "" {
		out.MiscName = b.MiscName
	}
	if b.Timezone != "" {
		loc, err := loadLocation(b.Timezone)
		if err != nil {
			return out, errors.Errorf("loading timezone %q: %w", b.Timezone, err)
		}
		out.Location = loc
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (cfg *Config) recommendConfig() (recommend.Config, error) {
	out := recommend.DefaultConfig()
	r := cfg.Recommend
	if r.DuplicateMinSize != 0 {
		out.DuplicateMinSize = r.DuplicateMinSize
	}
	if r.StaleAfter != "" {
		d, err := rules.ParseAge(r.StaleAfter)
		if err != nil {
			return out, errors.Errorf("stale_after: %w", err)
		}
		out.StaleAfter = d
	}
	if len(r.TempFolders) > 0 {
		out.TempFolders = r.TempFolders
	}
	if len(r.TempExtensions) > 0 {
		out.TempExtensions = r.TempExtensions
	}
	if len(r.TempPrefixes) > 0 {
		out.TempPrefixes = r.TempPrefixes
	}
	if r.ClutterCeiling != 0 {
		out.ClutterCeiling = r.ClutterCeiling
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// MonitorConfig converts the watch settings.
func (cfg *Config) MonitorConfig() (monitor.Config, error) {
	out := monitor.DefaultConfig()
	m := cfg.Monitor
	if m.Debounce != "" {
		d, err := rules.ParseAge(m.Debounce)
		if err != nil {
			return out, errors.Errorf("debounce: %w", err)
		}
		out.Debounce = d
	}
	out.MaxPassesPerMinute = m.MaxPassesPerMinute
	if m.QueueSize != 0 {
		out.QueueSize = m.QueueSize
	}
	if err := out.Validate(); err != nil {
		return out, err
	}
	return out, nil
}

// 📝 String returns a short representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s -> %s (%d rules, journal %s)", cfg.Source, cfg.Target, len(cfg.Rules), cfg.Journal.Backend)
}
