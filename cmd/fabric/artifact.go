package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/monoco-io/fabric/pkg/artifact"
	"github.com/monoco-io/fabric/pkg/clock"
	"github.com/monoco-io/fabric/pkg/types"
)

// openArtifactManager wires the CAS and manifest under the store root
func openArtifactManager() (*artifact.Manager, error) {
	cas, err := artifact.NewCAS(filepath.Join(cfg.Store.Root, "blobs"))
	if err != nil {
		return nil, err
	}
	registry, err := artifact.OpenRegistry(filepath.Join(cfg.Store.Root, "manifest.jsonl"))
	if err != nil {
		return nil, err
	}
	mgr := artifact.NewManager(cas, registry, clock.Real())
	artifact.SetDefault(mgr)
	return mgr, nil
}

var artifactCmd = &cobra.Command{
	Use:   "artifact",
	Short: "Manage the artifact store",
}

var artifactStoreCmd = &cobra.Command{
	Use:   "store <file>",
	Short: "Store a file as a new artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		tags, _ := cmd.Flags().GetStringSlice("tag")
		contentType, _ := cmd.Flags().GetString("content-type")

		var expiresAt *time.Time
		if cfg.Store.DefaultTTL > 0 {
			deadline := time.Now().UTC().Add(cfg.Store.DefaultTTL)
			expiresAt = &deadline
		}

		a, err := mgr.Store(data, artifact.StoreOptions{
			SourceType:       types.SourceUploaded,
			ContentType:      contentType,
			OriginalFilename: filepath.Base(args[0]),
			Tags:             tags,
			ExpiresAt:        expiresAt,
		})
		if err != nil {
			return err
		}

		fmt.Printf("✓ Artifact stored\n")
		fmt.Printf("  ID:   %s\n", a.ArtifactID)
		fmt.Printf("  Hash: %s\n", a.ContentHash)
		fmt.Printf("  Size: %d bytes\n", a.SizeBytes)
		return nil
	},
}

var artifactShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one artifact record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}

		a, err := mgr.Get(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("ID:           %s\n", a.ArtifactID)
		fmt.Printf("Status:       %s\n", a.Status)
		fmt.Printf("Hash:         %s\n", a.ContentHash)
		fmt.Printf("Content-Type: %s\n", a.ContentType)
		fmt.Printf("Size:         %d bytes\n", a.SizeBytes)
		fmt.Printf("Created:      %s\n", a.CreatedAt)
		if len(a.Tags) > 0 {
			fmt.Printf("Tags:         %v\n", a.Tags)
		}
		if path, err := mgr.ContentPath(a.ArtifactID); err == nil {
			fmt.Printf("Blob:         %s\n", path)
		}
		return nil
	},
}

var artifactListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}

		tags, _ := cmd.Flags().GetStringSlice("tag")
		status, _ := cmd.Flags().GetString("status")

		artifacts := mgr.List(artifact.Filter{
			Status: types.ArtifactStatus(status),
			Tags:   tags,
		})
		if len(artifacts) == 0 {
			fmt.Println("No artifacts found")
			return nil
		}

		for _, a := range artifacts {
			fmt.Printf("%s  %-8s  %8d  %s\n", a.ArtifactID, a.Status, a.SizeBytes, a.OriginalFilename)
		}

		stats := mgr.Stats()
		fmt.Printf("\n%d artifacts, %d bytes total\n", stats.Total, stats.TotalSizeBytes)
		return nil
	},
}

var artifactDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an artifact (soft by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}

		hard, _ := cmd.Flags().GetBool("hard")
		if hard {
			if err := mgr.HardDelete(args[0]); err != nil {
				return err
			}
			fmt.Printf("✓ Artifact %s removed\n", args[0])
			return nil
		}

		if err := mgr.SoftDelete(args[0]); err != nil {
			return err
		}
		fmt.Printf("✓ Artifact %s marked deleted\n", args[0])
		return nil
	},
}

var artifactSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Expire artifacts past their TTL",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := openArtifactManager()
		if err != nil {
			return err
		}

		expired, err := mgr.SweepExpired()
		if err != nil {
			return err
		}
		fmt.Printf("✓ Sweep complete: %d artifacts expired\n", len(expired))
		return nil
	},
}

func init() {
	artifactStoreCmd.Flags().StringSlice("tag", nil, "tags to attach")
	artifactStoreCmd.Flags().String("content-type", "application/octet-stream", "MIME type")
	artifactListCmd.Flags().StringSlice("tag", nil, "filter by tags")
	artifactListCmd.Flags().String("status", "", "filter by status")
	artifactDeleteCmd.Flags().Bool("hard", false, "remove the record and reclaim the blob")

	artifactCmd.AddCommand(artifactStoreCmd)
	artifactCmd.AddCommand(artifactShowCmd)
	artifactCmd.AddCommand(artifactListCmd)
	artifactCmd.AddCommand(artifactDeleteCmd)
	artifactCmd.AddCommand(artifactSweepCmd)
}
