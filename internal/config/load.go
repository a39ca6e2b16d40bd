package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

// Load reads a configuration file, choosing the format by extension.
// Missing fields keep their Default() values. The result is validated.
func Load(path string) (Config, error) {
	cfg, err := Read(path)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Read is Load without validation, for callers that layer more settings
// on top before validating.
func Read(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return ParseYAML(data)
	case ".cue":
		return ParseCUE(path, data)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
}

// ParseYAML decodes YAML over the defaults. It does not validate.
func ParseYAML(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml config: %w", err)
	}
	return cfg, nil
}

// ParseCUE compiles CUE source, unifies it with the embedded #Config
// schema and decodes the concrete result over the defaults.
func ParseCUE(filename string, data []byte) (Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compile config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return Config{}, fmt.Errorf("compile cue config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validate cue config: %w", err)
	}

	cfg := Default()
	if err := unified.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode cue config: %w", err)
	}
	return cfg, nil
}
