package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/kfimusic/beatstore/config"
	"github.com/kfimusic/beatstore/models"
	"github.com/kfimusic/beatstore/policy"
	"github.com/kfimusic/beatstore/storage"
)

func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration with secrets redacted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg.Redacted())
		},
	}
}

func filesCmd() *cobra.Command {
	var (
		expiry time.Duration
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "files <folder>",
		Short: "List the signed files a buyer of folder would receive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Storage.Enabled() {
				return storage.ErrNotConfigured
			}
			lister := storage.NewFileLister(storage.NewSupabaseStore(cfg.Storage.URL, cfg.Storage.Key, cfg.Storage.Bucket))
			files, err := lister.ListSignedFiles(cmd.Context(), args[0], expiry)
			if err != nil {
				return err
			}
			if !all {
				files = policy.Default().Deliverable(files)
			}
			printFiles(cmd, files)
			return nil
		},
	}

	cmd.Flags().DurationVarP(&expiry, "expiry", "e", time.Hour, "Signed URL lifetime")
	cmd.Flags().BoolVarP(&all, "all", "a", false, "Include files the download policy excludes")

	return cmd
}

func printFiles(cmd *cobra.Command, files []models.DeliverableFile) {
	out := cmd.OutOrStdout()
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no files found")
		return
	}
	for _, f := range files {
		fmt.Fprintf(out, "%s\t%s\n", f.Name, f.URL)
	}
}
