// Package manifest handles ember.toml configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/xyproto/env/v2"
)

// FileName is the name of the configuration file.
const FileName = "ember.toml"

// DefaultAddr is the listen address for serve mode.
const DefaultAddr = ":4567"

// Environment variables that override the file.
const (
	EnvDisassemble  = "EMBER_DISASSEMBLE"
	EnvTrace        = "EMBER_TRACE"
	EnvAddr         = "EMBER_ADDR"
	EnvLogVerbosity = "EMBER_LOG_VERBOSITY"
	EnvLogFile      = "EMBER_LOG_FILE"
)

// Manifest represents an ember.toml configuration.
type Manifest struct {
	Compile CompileConfig `toml:"compile"`
	Run     RunConfig     `toml:"run"`
	Server  ServerConfig  `toml:"server"`
	Log     LogConfig     `toml:"log"`

	// Dir is the directory containing the ember.toml file (set at load
	// time). Empty for the built-in defaults.
	Dir string `toml:"-"`
}

// CompileConfig configures the compiler.
type CompileConfig struct {
	Disassemble bool `toml:"disassemble"`
}

// RunConfig configures execution.
type RunConfig struct {
	Trace bool `toml:"trace"`
}

// ServerConfig configures serve mode.
type ServerConfig struct {
	Addr string `toml:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Default returns the configuration used when no ember.toml exists.
func Default() *Manifest {
	return &Manifest{
		Server: ServerConfig{Addr: DefaultAddr},
	}
}

// Load parses an ember.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m := Default()
	if err := toml.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}

	if m.Server.Addr == "" {
		m.Server.Addr = DefaultAddr
	}
	if m.Log.File != "" && !filepath.IsAbs(m.Log.File) {
		m.Log.File = filepath.Join(m.Dir, m.Log.File)
	}

	return m, nil
}

// FindAndLoad walks up from startDir to find an ember.toml file, then loads
// and returns it. Returns the defaults if no file is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return Default(), nil
		}
		dir = parent
	}
}

// ApplyEnv overrides settings from EMBER_* environment variables that are
// set. The env package caches the environment, so the cache is reloaded
// first to pick up changes made since the last call.
func (m *Manifest) ApplyEnv() {
	env.Load()
	if env.Has(EnvDisassemble) {
		m.Compile.Disassemble = env.Bool(EnvDisassemble)
	}
	if env.Has(EnvTrace) {
		m.Run.Trace = env.Bool(EnvTrace)
	}
	m.Server.Addr = env.Str(EnvAddr, m.Server.Addr)
	m.Log.Verbosity = env.Int(EnvLogVerbosity, m.Log.Verbosity)
	m.Log.File = env.Str(EnvLogFile, m.Log.File)
}
