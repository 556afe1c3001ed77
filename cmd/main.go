package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/brettbedarf/treefs"
	"github.com/brettbedarf/treefs/config"
	"github.com/brettbedarf/treefs/internal/util"
	"github.com/brettbedarf/treefs/manifest"
	"github.com/brettbedarf/treefs/memfs"
	"github.com/spf13/cobra"
)

var (
	nodesDef   string
	configPath string
	verbose    int
	umount     bool
	noDefaults bool
)

func init() {
	rootCmd.Flags().StringVarP(&nodesDef, "nodes", "n", "", "Path to nodes manifest file (YAML or JSON)")
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config override file")
	rootCmd.Flags().IntVarP(&verbose, "verbose", "v", config.DefaultVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	rootCmd.Flags().BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	rootCmd.Flags().BoolVar(&noDefaults, "no-default-options", false,
		"Do not expand mount args with -s, default_permissions and uid/gid; pass only the configured extra args")
}

var rootCmd = &cobra.Command{
	Use:   "treefs [mountpoint]",
	Short: "Mount an in-memory node tree over FUSE",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mnt := args[0]

		override := &config.ConfigOverride{}
		if configPath != "" {
			loaded, err := config.LoadConfigOverrideFile(configPath)
			if err != nil {
				return fmt.Errorf("failed to load config file: %w", err)
			}
			override = loaded
		}
		if cmd.Flags().Changed("verbose") || override.LogLvl == nil {
			override.LogLvl = &verbose
		}
		if noDefaults {
			f := false
			override.DefaultOptions = &f
		}
		cfg := config.NewConfig(override)

		util.InitializeLogger(cfg.LogLvl)
		logger := util.GetLogger("main")
		logger.Info().Str("mnt", mnt).Str("nodes", nodesDef).Msg("treefs initializing")

		// Try unmount if requested
		if umount { // send cli command
			c := exec.Command("fusermount", "-u", mnt)
			// we ignore error here if not already mounted
			c.Run() // nolint:errcheck
		}

		root := memfs.NewDir(0o755)
		if nodesDef != "" {
			defs, err := manifest.Load(nodesDef)
			if err != nil {
				return fmt.Errorf("failed to load nodes manifest: %w", err)
			}
			if err := manifest.Build(root, defs); err != nil {
				return fmt.Errorf("failed to build node tree: %w", err)
			}
			logger.Info().Int("nodes", len(defs)).Msg("Built node tree from manifest")
		} else {
			logger.Warn().Msg("No nodes manifest provided; mounting an empty tree")
		}

		opts := []treefs.Option{}
		if !cfg.DefaultOptions {
			opts = append(opts, treefs.WithoutDefaultOptions())
		}
		d := treefs.New(root, opts...)

		mntArgs := cfg.ExtraArgs
		if cfg.FsName != "" {
			mntArgs = append(mntArgs, "-o", "fsname="+cfg.FsName)
		}

		// Serve blocks until the filesystem is unmounted; the host unmounts
		// on SIGINT/SIGTERM.
		return d.Serve(mnt, mntArgs...)
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
