package utils

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/geometry"
)

// EnvPrefix is the prefix for environment overrides (FRACTALTREE_TREE_SEED, ...)
const EnvPrefix = "FRACTALTREE"

// Upper bounds enforced by Validate
const (
	MaxAttractors  = 1_000_000
	MaxSampleSteps = 100_000_000
)

// Config represents the generator configuration
type Config struct {
	Tree     TreeConfig     `yaml:"tree" mapstructure:"tree" json:"tree"`
	Root     RootConfig     `yaml:"root" mapstructure:"root" json:"root"`
	Envelope EnvelopeConfig `yaml:"envelope" mapstructure:"envelope" json:"envelope"`
	Run      RunConfig      `yaml:"run" mapstructure:"run" json:"run"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server" json:"-"`
	Client   ClientConfig   `yaml:"client" mapstructure:"client" json:"-"`
}

// TreeConfig contains the growth parameters. RMin and RMax are squared distances.
type TreeConfig struct {
	Attractors    int     `yaml:"attractors" mapstructure:"attractors" json:"attractors"`
	RMin          float64 `yaml:"rmin" mapstructure:"rmin" json:"rmin"`
	RMax          float64 `yaml:"rmax" mapstructure:"rmax" json:"rmax"`
	Seed          uint64  `yaml:"seed" mapstructure:"seed" json:"seed"`
	MaxIterations int     `yaml:"max_iterations" mapstructure:"max_iterations" json:"max_iterations"`
	MaxStemSteps  int     `yaml:"max_stem_steps" mapstructure:"max_stem_steps" json:"max_stem_steps"`
}

// RootConfig places the first node
type RootConfig struct {
	Position  []float64 `yaml:"position" mapstructure:"position" json:"position"`
	Direction []float64 `yaml:"direction" mapstructure:"direction" json:"direction"`
}

// EnvelopeConfig selects a preset or lists custom planes
type EnvelopeConfig struct {
	Preset string        `yaml:"preset" mapstructure:"preset" json:"preset"`
	Planes []PlaneConfig `yaml:"planes,omitempty" mapstructure:"planes" json:"planes,omitempty"`
}

// PlaneConfig is either a normal with an offset or three points
type PlaneConfig struct {
	Normal []float64   `yaml:"normal,omitempty" mapstructure:"normal" json:"normal,omitempty"`
	Offset float64     `yaml:"offset,omitempty" mapstructure:"offset" json:"offset,omitempty"`
	Points [][]float64 `yaml:"points,omitempty" mapstructure:"points" json:"points,omitempty"`
}

// RunConfig controls the tick loop and snapshot export
type RunConfig struct {
	MaxTicks        int     `yaml:"max_ticks" mapstructure:"max_ticks" json:"max_ticks"`
	SnapshotEvery   int     `yaml:"snapshot_every" mapstructure:"snapshot_every" json:"snapshot_every"`
	Output          string  `yaml:"output" mapstructure:"output" json:"output"`
	View            string  `yaml:"view" mapstructure:"view" json:"view"`
	RotationPerTick float64 `yaml:"rotation_per_tick" mapstructure:"rotation_per_tick" json:"rotation_per_tick"`
}

// ServerConfig contains job service settings
type ServerConfig struct {
	Port    int `yaml:"port" mapstructure:"port"`
	Workers int `yaml:"workers" mapstructure:"workers"`
	MaxJobs int `yaml:"max_jobs" mapstructure:"max_jobs"`
}

// ClientConfig contains client-side settings
type ClientConfig struct {
	DataDir  string `yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

const (
	ViewNone      = "none"
	ViewIsometric = "isometric"
	PresetCustom  = "custom"
)

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Tree: TreeConfig{
			Attractors:    1000,
			RMin:          0.2 * 0.2,
			RMax:          0.4 * 0.4,
			Seed:          colonization.DefaultSeed,
			MaxIterations: colonization.DefaultMaxIterations,
			MaxStemSteps:  10000,
		},
		Root: RootConfig{
			Position:  []float64{0, 0, 0},
			Direction: []float64{0, 0, 1},
		},
		Envelope: EnvelopeConfig{
			Preset: "crown",
		},
		Run: RunConfig{
			MaxTicks:        5000,
			SnapshotEvery:   10,
			Output:          "fractal-tree.jsonl",
			View:            ViewNone,
			RotationPerTick: 0.01,
		},
		Server: ServerConfig{
			Port:    8080,
			Workers: 2,
			MaxJobs: 16,
		},
		Client: ClientConfig{
			DataDir:  filepath.Join(homeDir, ".fractaltree", "data"),
			LogLevel: "info",
		},
	}
}

// setDefaults registers every key so that env overrides apply without a file
func setDefaults(v *viper.Viper, c *Config) {
	v.SetDefault("tree.attractors", c.Tree.Attractors)
	v.SetDefault("tree.rmin", c.Tree.RMin)
	v.SetDefault("tree.rmax", c.Tree.RMax)
	v.SetDefault("tree.seed", c.Tree.Seed)
	v.SetDefault("tree.max_iterations", c.Tree.MaxIterations)
	v.SetDefault("tree.max_stem_steps", c.Tree.MaxStemSteps)
	v.SetDefault("root.position", c.Root.Position)
	v.SetDefault("root.direction", c.Root.Direction)
	v.SetDefault("envelope.preset", c.Envelope.Preset)
	v.SetDefault("run.max_ticks", c.Run.MaxTicks)
	v.SetDefault("run.snapshot_every", c.Run.SnapshotEvery)
	v.SetDefault("run.output", c.Run.Output)
	v.SetDefault("run.view", c.Run.View)
	v.SetDefault("run.rotation_per_tick", c.Run.RotationPerTick)
	v.SetDefault("server.port", c.Server.Port)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_jobs", c.Server.MaxJobs)
	v.SetDefault("client.data_dir", c.Client.DataDir)
	v.SetDefault("client.log_level", c.Client.LogLevel)
}

// LoadConfig loads configuration from path, or from ./config.yaml and
// $HOME/.fractaltree/config.yaml when path is empty. A missing file yields the
// defaults.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		homeDir, _ := os.UserHomeDir()
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(homeDir, ".fractaltree"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	} else {
		log.Printf("Using config file: %s", v.ConfigFileUsed())
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// SaveConfig writes configuration to path as yaml
func SaveConfig(config *Config, path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the path of the per-user config file
func GetConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".fractaltree", "config.yaml"), nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig validates the configuration
func validateConfig(config *Config) error {
	t := config.Tree
	if t.Attractors <= 0 {
		return fmt.Errorf("attractor count must be positive")
	}
	if t.Attractors > MaxAttractors {
		return fmt.Errorf("attractor count %d exceeds %d", t.Attractors, MaxAttractors)
	}
	if t.RMin <= 0 || t.RMax <= t.RMin {
		return fmt.Errorf("need 0 < rmin < rmax, got rmin=%g rmax=%g", t.RMin, t.RMax)
	}
	if t.MaxIterations < 0 || t.MaxStemSteps < 0 {
		return fmt.Errorf("iteration limits cannot be negative")
	}
	if t.MaxIterations > MaxSampleSteps {
		return fmt.Errorf("max_iterations %d exceeds %d", t.MaxIterations, MaxSampleSteps)
	}

	if len(config.Root.Position) != 3 {
		return fmt.Errorf("root position needs 3 components")
	}
	if len(config.Root.Direction) != 3 {
		return fmt.Errorf("root direction needs 3 components")
	}
	d := config.Root.Direction
	if d[0] == 0 && d[1] == 0 && d[2] == 0 {
		return fmt.Errorf("root direction cannot be zero")
	}

	if config.Envelope.Preset == PresetCustom {
		if len(config.Envelope.Planes) == 0 {
			return fmt.Errorf("custom envelope needs at least one plane")
		}
		for i, p := range config.Envelope.Planes {
			if err := p.validate(); err != nil {
				return fmt.Errorf("envelope plane %d: %w", i, err)
			}
		}
	} else if _, ok := colonization.LookupPreset(config.Envelope.Preset); !ok {
		return fmt.Errorf("unknown envelope preset: %s", config.Envelope.Preset)
	}

	r := config.Run
	if r.MaxTicks < 0 || r.SnapshotEvery < 0 {
		return fmt.Errorf("run limits cannot be negative")
	}
	if r.View != "" && r.View != ViewNone && r.View != ViewIsometric {
		return fmt.Errorf("invalid view: %s", r.View)
	}

	return nil
}

func (p PlaneConfig) validate() error {
	if len(p.Points) > 0 {
		if len(p.Points) != 3 {
			return fmt.Errorf("need exactly 3 points, got %d", len(p.Points))
		}
		for _, pt := range p.Points {
			if len(pt) != 3 {
				return fmt.Errorf("points need 3 components")
			}
		}
		return nil
	}
	if len(p.Normal) != 3 {
		return fmt.Errorf("normal needs 3 components")
	}
	return nil
}

func vec(c []float64) *geometry.Vector {
	return geometry.NewVector(c[0], c[1], c[2])
}

// BuildEnvelope resolves the preset or custom planes. Custom normals are normalized.
func (c *Config) BuildEnvelope() ([]geometry.Plane, error) {
	if c.Envelope.Preset != PresetCustom {
		preset, ok := colonization.LookupPreset(c.Envelope.Preset)
		if !ok {
			return nil, fmt.Errorf("unknown envelope preset: %s", c.Envelope.Preset)
		}
		return preset.Build()
	}

	envelope := make([]geometry.Plane, 0, len(c.Envelope.Planes))
	for i, p := range c.Envelope.Planes {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("envelope plane %d: %w", i, err)
		}
		if len(p.Points) == 3 {
			pl, err := geometry.PlaneFromPoints(vec(p.Points[0]), vec(p.Points[1]), vec(p.Points[2]))
			if err != nil {
				return nil, fmt.Errorf("envelope plane %d: %w", i, err)
			}
			envelope = append(envelope, pl)
			continue
		}
		n, err := vec(p.Normal).Normalize()
		if err != nil {
			return nil, fmt.Errorf("envelope plane %d: %w", i, err)
		}
		envelope = append(envelope, geometry.NewPlane(n, p.Offset))
	}
	return envelope, nil
}

// BuildOptions turns the configuration into a root node and engine options
func (c *Config) BuildOptions() (colonization.TreeNode, colonization.Options, error) {
	envelope, err := c.BuildEnvelope()
	if err != nil {
		return colonization.TreeNode{}, colonization.Options{}, err
	}

	root := colonization.NewRootNode(vec(c.Root.Position), vec(c.Root.Direction))
	opts := colonization.Options{
		Envelope:      envelope,
		N:             c.Tree.Attractors,
		RMin:          c.Tree.RMin,
		RMax:          c.Tree.RMax,
		MaxIterations: c.Tree.MaxIterations,
		MaxStemSteps:  c.Tree.MaxStemSteps,
		Rand:          colonization.NewRandomSource(c.Tree.Seed),
	}
	return root, opts, nil
}

// RunOptions converts the run section
func (c *Config) RunOptions() colonization.RunOptions {
	opts := colonization.RunOptions{
		MaxTicks:      c.Run.MaxTicks,
		SnapshotEvery: c.Run.SnapshotEvery,
	}
	if c.Run.View == ViewIsometric {
		view := geometry.IsometricView()
		opts.View = &view
		if c.Run.RotationPerTick != 0 {
			rot := geometry.ForRotationZ(c.Run.RotationPerTick)
			opts.ViewRotation = &rot
		}
	}
	return opts
}

// IsVerbose reports whether debug logging is requested
func (c *Config) IsVerbose() bool {
	return c.Client.LogLevel == "debug"
}
