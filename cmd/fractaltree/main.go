package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/oxygene76/fractaltree/pkg/colonization"
	"github.com/oxygene76/fractaltree/pkg/utils"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatal(err)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "fractaltree",
		Short: "Space colonization tree generator",
		Long: `Grows a branching tree inside a convex envelope with the space colonization
algorithm and exports per-tick snapshots for an external renderer.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml or $HOME/.fractaltree/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(
		initCmd(),
		growCmd(),
		sampleCmd(),
		presetsCmd(),
		serveCmd(),
		submitCmd(),
	)

	return rootCmd
}

// loadConfig reads the configuration selected by --config
func loadConfig() (*utils.Config, error) {
	cfg, err := utils.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.Client.LogLevel = "debug"
	}
	return cfg, nil
}

// engineLogger returns the logger handed to the engine
func engineLogger(cfg *utils.Config) *log.Logger {
	if cfg.IsVerbose() {
		return log.Default()
	}
	return nil
}

func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			output, _ := cmd.Flags().GetString("output")
			preset, _ := cmd.Flags().GetString("preset")
			force, _ := cmd.Flags().GetBool("force")

			if output == "" {
				path, err := utils.GetConfigPath()
				if err != nil {
					return err
				}
				output = path
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			config := utils.DefaultConfig()
			if _, ok := colonization.LookupPreset(preset); !ok {
				return fmt.Errorf("unknown envelope preset: %s", preset)
			}
			config.Envelope.Preset = preset

			if err := utils.SaveConfig(config, output); err != nil {
				return err
			}
			fmt.Printf("Configuration saved to: %s\n", output)
			return nil
		},
	}

	cmd.Flags().String("output", "", "config file to write (default $HOME/.fractaltree/config.yaml)")
	cmd.Flags().String("preset", "crown", "envelope preset")
	cmd.Flags().Bool("force", false, "overwrite an existing file")

	return cmd
}

func presetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets",
		Short: "List envelope presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, p := range colonization.Presets() {
				planes, err := p.Build()
				if err != nil {
					return err
				}
				fmt.Printf("%-10s %d planes  %s\n", p.Name, len(planes), p.Description)
			}
			return nil
		},
	}
}
