package main

import (
	"errors"
	"fmt"

	"github.com/neurender/neurender/internal/logger"
	"github.com/neurender/neurender/internal/output"
	"github.com/neurender/neurender/internal/storage"
	"github.com/neurender/neurender/internal/syncer"
	"github.com/spf13/cobra"
)

var (
	syncSelect string
	lsJSON     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync a directory with remote storage",
}

var syncDownCmd = &cobra.Command{
	Use:   "down <remote> [local]",
	Short: "Download new and updated objects into a local directory",
	Long: `Downloads every object under the remote prefix that matches --select and is
missing locally or newer than the local copy. The local directory defaults to
the last segment of the remote address and remembers its origin, so a later
"sync up" without a destination goes back to the same place.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := newSyncer(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		var local string
		if len(args) > 1 {
			local = args[1]
		}

		result, err := s.ToLocal(cmd.Context(), args[0], local, syncSelect)
		if err != nil {
			return fmt.Errorf("syncing %s: %w", args[0], err)
		}

		reportSync(syncer.Download, result)
		return nil
	},
}

var syncUpCmd = &cobra.Command{
	Use:   "up <local> [remote]",
	Short: "Upload new and changed files from a local directory",
	Long: `Uploads every file below the local directory that matches --select and is
missing remotely or newer than the remote copy. Without a remote address the
origin recorded by "sync down" is used.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		s, err := newSyncer(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		var dest string
		if len(args) > 1 {
			dest = args[1]
		}

		result, err := s.ToRemote(cmd.Context(), args[0], dest, syncSelect)
		if err != nil {
			return fmt.Errorf("syncing %s: %w", args[0], err)
		}

		reportSync(syncer.Upload, result)
		return nil
	},
}

func reportSync(direction syncer.Direction, result *syncer.Result) {
	output.PrintSyncResult(direction, result)
	if result.Failed > 0 {
		logger.Log.Warn().Int("failed", result.Failed).Msg("Some transfers failed, run the sync again to retry them")
	}
}

var lsCmd = &cobra.Command{
	Use:   "ls <remote>",
	Short: "List objects under a remote prefix",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		bucket, prefix, err := storage.ParseURL(args[0])
		if err != nil {
			return err
		}

		r, err := newRemote(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		var objects []storage.Object
		for obj, err := range r.Objects(cmd.Context(), bucket, prefix) {
			if errors.Is(err, storage.ErrNoRemoteContent) {
				break
			}
			if err != nil {
				return err
			}
			objects = append(objects, obj)
		}

		url := storage.FormatURL(bucket, prefix)
		if lsJSON {
			if err := output.PrintObjectsJSON(url, objects, cfg); err != nil {
				return fmt.Errorf("printing JSON output: %w", err)
			}
			return nil
		}
		output.PrintObjects(url, objects)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{syncDownCmd, syncUpCmd} {
		c.Flags().StringVar(&syncSelect, "select", syncer.SelectAll, "glob selecting which files to sync")
	}
	syncCmd.AddCommand(syncDownCmd)
	syncCmd.AddCommand(syncUpCmd)

	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "output in JSON format")
}
