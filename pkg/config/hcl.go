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
	"os"
	"strings"

	"github.com/adrg/xdg"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/walteh/shelf/pkg/association"
	"github.com/walteh/shelf/pkg/rules"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files. Expressions can
// use home and env, e.g. source = "${home}/Downloads"
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".hcl")
}

type hclCompanion struct {
	Primary       []string `hcl:"primary"`
	Companions    []string `hcl:"companions"`
	SameDirectory bool     `hcl:"same_directory,optional"`
}

type hclRule struct {
	ID             string   `hcl:"id,label"`
	Action         string   `hcl:"action,optional"`
	Category       string   `hcl:"category,optional"`
	Extensions     []string `hcl:"extensions,optional"`
	NamePattern    string   `hcl:"name_pattern,optional"`
	Glob           string   `hcl:"glob,optional"`
	MinSize        int64    `hcl:"min_size,optional"`
	MaxSize        int64    `hcl:"max_size,optional"`
	ModifiedAfter  string   `hcl:"modified_after,optional"`
	ModifiedBefore string   `hcl:"modified_before,optional"`
	OlderThan      string   `hcl:"older_than,optional"`
	NewerThan      string   `hcl:"newer_than,optional"`
}

type hclConfig struct {
	Source            string `hcl:"source"`
	Target            string `hcl:"target"`
	MaxSuffix         int    `hcl:"max_suffix,optional"`
	AllowCopyFallback bool   `hcl:"allow_copy_fallback,optional"`

	Catalog *struct {
		Exclude       []string `hcl:"exclude,optional"`
		MinSize       int64    `hcl:"min_size,optional"`
		MaxSize       int64    `hcl:"max_size,optional"`
		FlagFile      string   `hcl:"flag_file,optional"`
		IncludeHidden bool     `hcl:"include_hidden,optional"`
		Workers       int      `hcl:"workers,optional"`
	} `hcl:"catalog,block"`

	Association *struct {
		ProjectMarkers  []string       `hcl:"project_markers,optional"`
		MaxEditDistance *int           `hcl:"max_edit_distance,optional"`
		Companions      []hclCompanion `hcl:"companion,block"`
	} `hcl:"association,block"`

	Rules []hclRule `hcl:"rule,block"`

	Bucket *struct {
		Threshold     int      `hcl:"threshold,optional"`
		MinBucketSize *int     `hcl:"min_bucket_size,optional"`
		MaxDepth      int      `hcl:"max_depth,optional"`
		Dimensions    []string `hcl:"dimensions,optional"`
		Granularity   string   `hcl:"granularity,optional"`
		MiscName      string   `hcl:"misc_name,optional"`
		Timezone      string   `hcl:"timezone,optional"`
	} `hcl:"bucket,block"`

	Recommend *struct {
		DuplicateMinSize int64    `hcl:"duplicate_min_size,optional"`
		StaleAfter       string   `hcl:"stale_after,optional"`
		TempFolders      []string `hcl:"temp_folders,optional"`
		TempExtensions   []string `hcl:"temp_extensions,optional"`
		TempPrefixes     []string `hcl:"temp_prefixes,optional"`
		ClutterCeiling   float64  `hcl:"clutter_ceiling,optional"`
	} `hcl:"recommend,block"`

	Monitor *struct {
		Debounce           string `hcl:"debounce,optional"`
		MaxPassesPerMinute int    `hcl:"max_passes_per_minute,optional"`
		QueueSize          int    `hcl:"queue_size,optional"`
		AutoApply          bool   `hcl:"auto_apply,optional"`
	} `hcl:"monitor,block"`

	Journal *struct {
		Backend   string `hcl:"backend,optional"`
		Path      string `hcl:"path,optional"`
		KeepPlans int    `hcl:"keep_plans,optional"`
	} `hcl:"journal,block"`
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, filename string, data []byte) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalContext(), &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	cfg := &Config{
		Source:            hclCfg.Source,
		Target:            hclCfg.Target,
		MaxSuffix:         hclCfg.MaxSuffix,
		AllowCopyFallback: hclCfg.AllowCopyFallback,
	}

	if c := hclCfg.Catalog; c != nil {
		cfg.Catalog = CatalogConfig{
			Exclude:       c.Exclude,
			MinSize:       c.MinSize,
			MaxSize:       c.MaxSize,
			FlagFile:      c.FlagFile,
			IncludeHidden: c.IncludeHidden,
			Workers:       c.Workers,
		}
	}

	if a := hclCfg.Association; a != nil {
		cfg.Association.ProjectMarkers = a.ProjectMarkers
		cfg.Association.MaxEditDistance = a.MaxEditDistance
		for _, c := range a.Companions {
			cfg.Association.Companions = append(cfg.Association.Companions, association.CompanionRule{
				Primary:       c.Primary,
				Companions:    c.Companions,
				SameDirectory: c.SameDirectory,
			})
		}
	}

	for _, r := range hclCfg.Rules {
		cfg.Rules = append(cfg.Rules, rules.Rule{
			ID:             r.ID,
			Action:         rules.Action(r.Action),
			Category:       r.Category,
			Extensions:     r.Extensions,
			NamePattern:    r.NamePattern,
			Glob:           r.Glob,
			MinSize:        r.MinSize,
			MaxSize:        r.MaxSize,
			ModifiedAfter:  r.ModifiedAfter,
			ModifiedBefore: r.ModifiedBefore,
			OlderThan:      r.OlderThan,
			NewerThan:      r.NewerThan,
		})
	}

	if b := hclCfg.Bucket; b != nil {
		cfg.Bucket = BucketConfig{
			Threshold:     b.Threshold,
			MinBucketSize: b.MinBucketSize,
			MaxDepth:      b.MaxDepth,
			Dimensions:    b.Dimensions,
			Granularity:   b.Granularity,
			MiscName:      b.MiscName,
			Timezone:      b.Timezone,
		}
	}

	if r := hclCfg.Recommend; r != nil {
		cfg.Recommend = RecommendConfig{
			DuplicateMinSize: r.DuplicateMinSize,
			StaleAfter:       r.StaleAfter,
			TempFolders:      r.TempFolders,
			TempExtensions:   r.TempExtensions,
			TempPrefixes:     r.TempPrefixes,
			ClutterCeiling:   r.ClutterCeiling,
		}
	}

	if m := hclCfg.Monitor; m != nil {
		cfg.Monitor = MonitorConfig{
			Debounce:           m.Debounce,
			MaxPassesPerMinute: m.MaxPassesPerMinute,
			QueueSize:          m.QueueSize,
			AutoApply:          m.AutoApply,
		}
	}

	if j := hclCfg.Journal; j != nil {
		cfg.Journal = JournalConfig{Backend: j.Backend, Path: j.Path, KeepPlans: j.KeepPlans}
	}

	return cfg, nil
}

// evalContext exposes the home directory and the environment to expressions.
func evalContext() *hcl.EvalContext {
	env := map[string]cty.Value{}
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = cty.StringVal(v)
	}
	envVal := cty.MapValEmpty(cty.String)
	if len(env) > 0 {
		envVal = cty.MapVal(env)
	}

	home := xdg.Home
	if home == "" {
		home, _ = os.UserHomeDir()
	}

	return &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"home": cty.StringVal(home),
			"env":  envVal,
		},
	}
}
