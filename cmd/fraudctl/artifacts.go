package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"fraudserve/internal/infrastructure/artifactstore"
	"fraudserve/internal/infrastructure/postgres"
	"fraudserve/internal/shared/bootstrap"
)

func artifactsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect, verify and publish artifact sets",
	}

	cmd.AddCommand(verifyCmd())
	cmd.AddCommand(digestCmd())
	cmd.AddCommand(publishCmd())
	cmd.AddCommand(versionsCmd())

	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Load the configured artifact set and check it can serve predictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Artifacts.VerifyDigests = true

			artifacts, err := bootstrap.LoadArtifacts(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer artifacts.Close()

			info := artifacts.Bundle.Info()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Version:    %s\n", info.Version)
			if info.Description != "" {
				fmt.Fprintf(out, "About:      %s\n", info.Description)
			}
			fmt.Fprintf(out, "Digests:    %s, verified\n", info.DigestAlgorithm)

			roles := make([]string, 0, len(info.Artifacts))
			for role := range info.Artifacts {
				roles = append(roles, role)
			}
			sort.Strings(roles)
			for _, role := range roles {
				e := info.Artifacts[role]
				fmt.Fprintf(out, "  %-11s %-14s %s\n", role+":", e.Kind, e.File)
			}

			fmt.Fprintf(out, "Columns:    %s\n", strings.Join(info.ModelColumns, ", "))
			if !info.Compatible {
				fmt.Fprintf(out, "Classifier: INCOMPATIBLE (%s)\n", strings.Join(info.FeatureNames, ", "))
				return errors.New("classifier was not fit on the model columns")
			}
			fmt.Fprintln(out, "Classifier: compatible")
			return nil
		},
	}
}

func digestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest <file>...",
		Short: "Print the manifest digest of artifact files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range args {
				data, err := os.ReadFile(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", artifactstore.Digest(data), name)
			}
			return nil
		},
	}
}

func publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish a local artifact directory to Postgres",
		Long: `Reads the manifest and artifacts from --dir, checks they load, and stores the
set in model_artifacts under --version (or the manifest version). Running API
instances watching the database are notified.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			version, _ := cmd.Flags().GetString("version")

			src := artifactstore.NewDirSource(cfg.Artifacts.Dir, cfg.Artifacts.Manifest)
			bundle, err := artifactstore.Load(cmd.Context(), src, artifactstore.LoadOptions{VerifyDigests: cfg.Artifacts.VerifyDigests})
			if err != nil {
				return err
			}

			m := *bundle.Manifest
			if version != "" {
				m.Version = version
			}
			payloads := make(map[string][]byte, 3)
			for role, entry := range m.Entries() {
				data, err := src.Open(cmd.Context(), role, entry)
				if err != nil {
					return err
				}
				payloads[role] = data
			}

			db, err := postgres.New(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			repo := postgres.NewArtifactRepository(db, m.Version)
			if err := repo.EnsureSchema(cmd.Context()); err != nil {
				return err
			}
			if err := repo.Publish(cmd.Context(), &m, payloads); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Published artifact version %s\n", m.Version)
			return nil
		},
	}

	cmd.Flags().String("version", "", "Version to publish under (defaults to the manifest version)")

	return cmd
}

func versionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List artifact versions published to Postgres",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			db, err := postgres.New(cfg.Database.ConnectionString())
			if err != nil {
				return err
			}
			defer db.Close()

			versions, err := postgres.NewArtifactRepository(db, "").Versions(cmd.Context())
			if err != nil {
				return err
			}
			if len(versions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No published versions")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "VERSION\tPUBLISHED\tDESCRIPTION")
			for _, v := range versions {
				fmt.Fprintf(w, "%s\t%s\t%s\n", v.Version, v.CreatedAt.Format(time.RFC3339), v.Description)
			}
			return w.Flush()
		},
	}
}
