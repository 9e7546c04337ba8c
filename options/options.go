// Copyright ©2025 nonlin authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package options holds the solver's tunable parameters as a
// string-keyed map with typed getters, loadable from a YAML file. Every
// getter takes an explicit default so a caller never has to consult a
// second source of truth for what "unset" means.
package options

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options is an immutable-after-Load, string-keyed parameter set.
// Values are stored as strings and parsed on read, the way command-line
// flags and environment variables are commonly threaded through a
// solver without a dedicated struct field per option.
type Options struct {
	values map[string]string
}

// New returns an empty option set; every getter falls back to its
// caller-supplied default until overridden with a Set call.
func New() *Options {
	return &Options{values: make(map[string]string)}
}

func (o *Options) SetString(key, value string) { o.values[key] = value }
func (o *Options) SetFloat(key string, value float64) {
	o.values[key] = strconv.FormatFloat(value, 'g', -1, 64)
}
func (o *Options) SetInt(key string, value int) { o.values[key] = strconv.Itoa(value) }
func (o *Options) SetBool(key string, value bool) { o.values[key] = strconv.FormatBool(value) }

// Has reports whether key was explicitly set.
func (o *Options) Has(key string) bool {
	_, ok := o.values[key]
	return ok
}

func (o *Options) GetString(key, def string) string {
	if v, ok := o.values[key]; ok {
		return v
	}
	return def
}

func (o *Options) GetFloat(key string, def float64) float64 {
	v, ok := o.values[key]
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func (o *Options) GetInt(key string, def int) int {
	v, ok := o.values[key]
	if !ok {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func (o *Options) GetBool(key string, def bool) bool {
	v, ok := o.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// document is the on-disk shape: a flat map under an "options" key, its
// values stringified regardless of the YAML scalar type they were
// written as (numbers, bools, strings all read back the same way).
type document struct {
	Options map[string]any `yaml:"options"`
}

// Load reads path, parses it as YAML and validates the recognized
// numeric options: read, then parse, then validate, each step wrapping
// its own error.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "options: read %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML bytes into an Options set and validates it.
func Parse(data []byte) (*Options, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "options: parse yaml")
	}
	o := New()
	for k, v := range doc.Options {
		o.values[k] = stringify(v)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	default:
		return ""
	}
}

// unitInterval names the options that must lie in [0,1] when present.
var unitInterval = []string{
	"restoration_switch_tolerance",
	"filter_beta",
	"penalty_epsilon1",
	"penalty_epsilon2",
	"penalty_tau",
	"line_search_beta",
	"trust_region_shrink",
}

// positive names the options that must be strictly positive when
// present.
var positive = []string{
	"iteration_limit",
	"time_limit_seconds",
	"trust_region_initial_radius",
	"divergence_threshold",
	"unbounded_threshold",
	"convergence_tolerance",
}

// Validate rejects an option set with an out-of-range value for any
// option this package recognizes by name. Options it does not
// recognize are left alone: they may belong to a caller-specific
// extension of the same file.
func (o *Options) Validate() error {
	for _, key := range unitInterval {
		if !o.Has(key) {
			continue
		}
		v := o.GetFloat(key, 0)
		if v < 0 || v > 1 {
			return errors.Errorf("options: %s must be in [0,1], got %v", key, v)
		}
	}
	for _, key := range positive {
		if !o.Has(key) {
			continue
		}
		v := o.GetFloat(key, 0)
		if v <= 0 {
			return errors.Errorf("options: %s must be positive, got %v", key, v)
		}
	}
	norm := o.GetString("residual_norm", "L1")
	switch norm {
	case "L1", "L2", "INF":
	default:
		return errors.Errorf("options: residual_norm must be one of L1, L2, INF, got %q", norm)
	}
	strategy := o.GetString("constraint_relaxation_strategy", "feasibility_restoration")
	switch strategy {
	case "feasibility_restoration", "l1_relaxation":
	default:
		return errors.Errorf("options: constraint_relaxation_strategy must be feasibility_restoration or l1_relaxation, got %q", strategy)
	}
	globalization := o.GetString("globalization_strategy", "merit")
	switch globalization {
	case "merit", "filter":
	default:
		return errors.Errorf("options: globalization_strategy must be merit or filter, got %q", globalization)
	}
	return nil
}
