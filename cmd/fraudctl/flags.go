package main

import (
	"github.com/spf13/cobra"

	"fraudserve/internal/shared/config"
)

// loadConfig reads the environment and applies the persistent flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Artifacts.Source = config.ArtifactSourceFile
		cfg.Artifacts.Dir = dir
	}
	if manifest, _ := cmd.Flags().GetString("manifest"); manifest != "" {
		cfg.Artifacts.Manifest = manifest
	}
	return cfg, nil
}
