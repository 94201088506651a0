package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/geometry"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	root, opts, err := cfg.BuildOptions()
	require.NoError(t, err)
	assert.True(t, root.IsRoot())
	assert.Equal(t, 1000, opts.N)
	assert.Len(t, opts.Envelope, 6)
	require.NoError(t, opts.Validate())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := DefaultConfig()
	cfg.Tree.Attractors = 250
	cfg.Tree.Seed = 99
	cfg.Envelope.Preset = "pyramid"
	cfg.Run.View = ViewIsometric
	cfg.Root.Position = []float64{0, 0, -1}
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 250, loaded.Tree.Attractors)
	assert.Equal(t, uint64(99), loaded.Tree.Seed)
	assert.Equal(t, "pyramid", loaded.Envelope.Preset)
	assert.Equal(t, ViewIsometric, loaded.Run.View)
	assert.Equal(t, []float64{0, 0, -1}, loaded.Root.Position)
	assert.Equal(t, cfg.Tree.RMin, loaded.Tree.RMin)
	assert.Equal(t, cfg.Server, loaded.Server)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, SaveConfig(DefaultConfig(), path))

	t.Setenv("FRACTALTREE_TREE_SEED", "42")
	t.Setenv("FRACTALTREE_SERVER_PORT", "9090")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), cfg.Tree.Seed)
	assert.Equal(t, 9090, cfg.Server.Port)
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(wd)

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Tree, cfg.Tree)
	assert.Equal(t, "crown", cfg.Envelope.Preset)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cases := map[string]func(c *Config){
		"no attractors":       func(c *Config) { c.Tree.Attractors = 0 },
		"too many attractors": func(c *Config) { c.Tree.Attractors = MaxAttractors + 1 },
		"huge sample walk":    func(c *Config) { c.Tree.MaxIterations = MaxSampleSteps + 1 },
		"rmax below rmin":     func(c *Config) { c.Tree.RMax = c.Tree.RMin },
		"short position":      func(c *Config) { c.Root.Position = []float64{0, 0} },
		"zero direction":      func(c *Config) { c.Root.Direction = []float64{0, 0, 0} },
		"unknown preset":      func(c *Config) { c.Envelope.Preset = "sphere" },
		"empty custom":        func(c *Config) { c.Envelope.Preset = PresetCustom },
		"bad view":            func(c *Config) { c.Run.View = "top" },
		"negative ticks":      func(c *Config) { c.Run.MaxTicks = -1 },
		"two points": func(c *Config) {
			c.Envelope.Preset = PresetCustom
			c.Envelope.Planes = []PlaneConfig{{Points: [][]float64{{0, 0, 0}, {1, 0, 0}}}}
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestCustomEnvelope(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tree.Attractors = 30
	cfg.Root.Position = []float64{0, 0, -2}
	cfg.Tree.RMax = 4
	cfg.Envelope.Preset = PresetCustom
	cfg.Envelope.Planes = []PlaneConfig{
		{Normal: []float64{2, 0, 0}, Offset: -1},
		{Normal: []float64{-1, 0, 0}, Offset: -1},
		{Normal: []float64{0, 1, 0}, Offset: -1},
		{Normal: []float64{0, -1, 0}, Offset: -1},
		{Points: [][]float64{{0, 0, 1}, {1, 0, 1}, {0, 1, 1}}},
		{Normal: []float64{0, 0, -1}, Offset: -1},
	}
	require.NoError(t, cfg.Validate())

	envelope, err := cfg.BuildEnvelope()
	require.NoError(t, err)
	require.Len(t, envelope, 6)
	assert.Equal(t, [3]float64{1, 0, 0}, envelope[0].N.Array())
	assert.InDelta(t, 1, envelope[4].N.Z, 1e-12)
	assert.InDelta(t, -1, envelope[4].D, 1e-12)
	require.NoError(t, geometry.ValidateEnvelope(envelope))

	root, opts, err := cfg.BuildOptions()
	require.NoError(t, err)
	tree, err := colonization.New(root, opts)
	require.NoError(t, err)
	assert.Equal(t, 30, tree.SampledCount())
}

func TestCustomEnvelopeDegenerate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Envelope.Preset = PresetCustom
	cfg.Envelope.Planes = []PlaneConfig{{Points: [][]float64{{0, 0, 0}, {1, 1, 1}, {2, 2, 2}}}}

	_, err := cfg.BuildEnvelope()
	require.ErrorIs(t, err, geometry.ErrDegenerateVector)

	cfg.Envelope.Planes = []PlaneConfig{{Normal: []float64{0, 0, 0}}}
	_, err = cfg.BuildEnvelope()
	require.ErrorIs(t, err, geometry.ErrDegenerateVector)
}

func TestRunOptions(t *testing.T) {
	cfg := DefaultConfig()
	opts := cfg.RunOptions()
	assert.Nil(t, opts.View)
	assert.Equal(t, 5000, opts.MaxTicks)

	cfg.Run.View = ViewIsometric
	opts = cfg.RunOptions()
	require.NotNil(t, opts.View)
	require.NotNil(t, opts.ViewRotation)
	assert.Equal(t, geometry.IsometricView().Rows(), opts.View.Rows())
}
