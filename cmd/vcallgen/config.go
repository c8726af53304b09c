package main

import (
	"os"
	"path/filepath"
	"slices"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the contents of vcallgen.yaml.
type Config struct {
	// Package is the package holding the interfaces, as a go/packages
	// pattern resolved from the directory of the config file.
	Package string `yaml:"package"`

	// Output is the directory generated files are written to, relative to
	// the config file. Defaults to ".".
	Output string `yaml:"output,omitempty"`

	// Interfaces lists the interfaces to generate dispatch shims for.
	Interfaces []InterfaceSpec `yaml:"interfaces"`

	// dir is the directory of the config file.
	dir string
}

// InterfaceSpec selects one interface and how its methods are dispatched.
type InterfaceSpec struct {
	// Name is the Go name of the interface.
	Name string `yaml:"name"`

	// Domain is the registry domain of its instances. Defaults to Name.
	Domain string `yaml:"domain,omitempty"`

	// Prefix starts the name of every generated function. Defaults to Name.
	Prefix string `yaml:"prefix,omitempty"`

	// Methods restricts generation to these methods. Every listed method
	// must have a dispatchable signature. Defaults to all dispatchable
	// methods.
	Methods []string `yaml:"methods,omitempty"`

	// Strategy is the vcall entry point the shims call: "call" (the
	// dispatcher's mode, default), "trace" or "reduce".
	Strategy string `yaml:"strategy,omitempty"`
}

var strategies = map[string]string{
	"call":   "Call",
	"trace":  "Trace",
	"reduce": "Reduce",
}

// LoadConfig reads and parses a vcallgen.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses vcallgen.yaml content. path locates the file for
// relative paths and error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	cfg.dir = filepath.Dir(path)
	return &cfg, nil
}

func (c *Config) validate(path string) error {
	if c.Package == "" {
		return errors.Errorf("%s: package is required", path)
	}
	if len(c.Interfaces) == 0 {
		return errors.Errorf("%s: no interfaces defined", path)
	}
	seen := make(map[string]bool)
	for i, spec := range c.Interfaces {
		if spec.Name == "" {
			return errors.Errorf("%s: interfaces[%d]: name is required", path, i)
		}
		if seen[spec.Name] {
			return errors.Errorf("%s: interfaces[%d]: %s is listed twice", path, i, spec.Name)
		}
		seen[spec.Name] = true
		if _, ok := strategies[spec.Strategy]; spec.Strategy != "" && !ok {
			return errors.Errorf("%s: interfaces[%d]: unknown strategy %q", path, i, spec.Strategy)
		}
		if i := slices.Index(spec.Methods, ""); i >= 0 {
			return errors.Errorf("%s: interfaces[%s]: methods[%d] is empty", path, spec.Name, i)
		}
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.Output == "" {
		c.Output = "."
	}
	for i := range c.Interfaces {
		spec := &c.Interfaces[i]
		if spec.Domain == "" {
			spec.Domain = spec.Name
		}
		if spec.Prefix == "" {
			spec.Prefix = spec.Name
		}
		if spec.Strategy == "" {
			spec.Strategy = "call"
		}
	}
}

// OutputDir returns the directory generated files are written to.
func (c *Config) OutputDir() string {
	if filepath.IsAbs(c.Output) {
		return c.Output
	}
	return filepath.Join(c.dir, c.Output)
}
