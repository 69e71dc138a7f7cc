// Package manifest handles plum.toml configuration.
package manifest

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/chain/txvm/errors"
)

// FileName is the configuration file looked up by Load and FindAndLoad.
const FileName = "plum.toml"

// Defaults applied when a key is absent.
const (
	DefaultMaxStack  = 1024
	DefaultVerbosity = 1
)

// Manifest represents a plum.toml configuration.
type Manifest struct {
	Project Project      `toml:"project"`
	VM      VMConfig     `toml:"vm"`
	Disasm  DisasmConfig `toml:"disasm"`
	Log     LogConfig    `toml:"log"`

	// Dir is the directory containing the plum.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name string `toml:"name"`
}

// VMConfig configures execution.
type VMConfig struct {
	MaxStack int   `toml:"max-stack"`
	Trace    bool  `toml:"trace"`
	Verify   *bool `toml:"verify"` // nil means true
}

// DisasmConfig configures the disassembler.
type DisasmConfig struct {
	Enabled bool `toml:"enabled"`
	Lenient bool `toml:"lenient"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity *int   `toml:"verbosity"` // nil means DefaultVerbosity
	File      string `toml:"file"`
}

// Default returns the configuration used when no plum.toml exists.
func Default() *Manifest {
	m := &Manifest{}
	m.applyDefaults()
	return m
}

// Load parses a plum.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot read %s", path)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, errors.Wrapf(err, "parse error in %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.WithData(
			errors.Wrapf(ErrUnknownKey, "%s: %s", path, undecoded[0]),
			"key", undecoded[0].String())
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve path %s", dir)
	}

	if m.VM.MaxStack < 0 {
		return nil, errors.WithData(ErrInvalidValue, "key", "vm.max-stack", "value", m.VM.MaxStack)
	}

	m.applyDefaults()
	return &m, nil
}

// FindAndLoad walks up from startDir to find a plum.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
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
			return nil, nil
		}
		dir = parent
	}
}

// ShouldVerify reports whether chunks are verified before execution.
func (m *Manifest) ShouldVerify() bool {
	return m.VM.Verify == nil || *m.VM.Verify
}

// Verbosity returns the configured log verbosity.
func (m *Manifest) Verbosity() int {
	if m.Log.Verbosity == nil {
		return DefaultVerbosity
	}
	return *m.Log.Verbosity
}

// LogPath returns the absolute log file path, or "" for stderr.
func (m *Manifest) LogPath() string {
	if m.Log.File == "" || filepath.IsAbs(m.Log.File) {
		return m.Log.File
	}
	return filepath.Join(m.Dir, m.Log.File)
}

func (m *Manifest) applyDefaults() {
	if m.VM.MaxStack == 0 {
		m.VM.MaxStack = DefaultMaxStack
	}
	if m.Project.Name == "" {
		m.Project.Name = "main"
	}
}

var (
	// ErrUnknownKey is returned for keys plum.toml does not define.
	ErrUnknownKey = errors.New("unknown configuration key")

	// ErrInvalidValue is returned for out-of-range settings.
	ErrInvalidValue = errors.New("invalid configuration value")
)
