// SPDX-FileCopyrightText: 2025 The Kepler Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// Builder layers YAML documents over a base configuration. Later documents
// override earlier ones; keys missing from a document keep their value.
type Builder struct {
	base    *Config
	sources []source
}

// source is one YAML document and where it came from
type source struct {
	name string
	path string
	data string
}

// Use sets the base configuration; DefaultConfig is used otherwise
func (b *Builder) Use(c *Config) *Builder {
	b.base = c
	return b
}

// Merge adds inline YAML documents
func (b *Builder) Merge(yamls ...string) *Builder {
	for _, y := range yamls {
		b.sources = append(b.sources, source{name: "inline", data: y})
	}
	return b
}

// MergeFiles adds YAML files; they are read by Build
func (b *Builder) MergeFiles(paths ...string) *Builder {
	for _, p := range paths {
		b.sources = append(b.sources, source{name: p, path: p})
	}
	return b
}

// Build merges every document into the base configuration in the order they
// were added. It does not validate the result.
func (b *Builder) Build() (*Config, error) {
	cfg := b.base
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var errs error
	for _, src := range b.sources {
		if err := mergeSource(cfg, src); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}
	return cfg, nil
}

func mergeSource(cfg *Config, src source) error {
	data := []byte(src.data)
	if src.path != "" {
		var err error
		if data, err = os.ReadFile(src.path); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	layer := &Config{}
	if err := yaml.Unmarshal(data, layer); err != nil {
		return fmt.Errorf("failed to parse YAML from %s: %w", src.name, err)
	}
	if err := mergo.Merge(cfg, layer, mergo.WithOverride, mergo.WithTransformers(pointerTransformer{})); err != nil {
		return fmt.Errorf("failed to merge config from %s: %w", src.name, err)
	}
	return nil
}

// pointerTransformer replaces *bool and *int fields instead of merging the
// pointed-to values, so explicit false and 0 override earlier documents
type pointerTransformer struct{}

var (
	boolPtrType = reflect.TypeOf((*bool)(nil))
	intPtrType  = reflect.TypeOf((*int)(nil))
)

func (pointerTransformer) Transformer(typ reflect.Type) func(dst, src reflect.Value) error {
	if typ != boolPtrType && typ != intPtrType {
		return nil
	}

	return func(dst, src reflect.Value) error {
		if !src.IsNil() && dst.CanSet() {
			dst.Set(src)
		}
		return nil
	}
}
