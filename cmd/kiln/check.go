package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kilnhq/kiln/internal/build"
	"github.com/kilnhq/kiln/internal/config"
	"github.com/kilnhq/kiln/internal/linkcheck"
	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Build the site and verify every external link",
	Long: `Check builds the site into a temporary directory and probes every
external link found in the rendered HTML, including #anchor fragments.
Results are cached per URL, though pages checked concurrently can fetch
the same URL more than once; failures are reported per page.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Root().PersistentFlags().GetString("config")
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		projectRoot, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("determining project root: %w", err)
		}

		outputDir, err := os.MkdirTemp("", "kiln-check-*")
		if err != nil {
			return fmt.Errorf("creating temporary output directory: %w", err)
		}
		defer os.RemoveAll(outputDir)

		drafts, _ := cmd.Flags().GetBool("drafts")
		builder := build.NewBuilder(cfg, build.BuildOptions{
			IncludeDrafts: drafts,
			OutputDir:     outputDir,
			BaseURL:       cfg.BaseURL,
			ProjectRoot:   projectRoot,
		})
		if _, err := builder.Build(); err != nil {
			return fmt.Errorf("building site: %w", err)
		}

		pages, err := collectRenderedPages(outputDir)
		if err != nil {
			return fmt.Errorf("reading rendered output: %w", err)
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		checker := linkcheck.NewChecker(timeout)
		failures := checker.CheckPages(context.Background(), pages, 8)

		if len(failures) == 0 {
			fmt.Println("All external links are reachable.")
			return nil
		}
		for _, f := range failures {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f.Page, f.Err)
		}
		return fmt.Errorf("%d broken external link(s)", len(failures))
	},
}

// collectRenderedPages maps each rendered page's site-relative URL to its
// HTML, skipping non-HTML output.
func collectRenderedPages(outputDir string) (map[string]string, error) {
	pages := make(map[string]string)
	err := filepath.WalkDir(outputDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".html") {
			return nil
		}
		rel, err := filepath.Rel(outputDir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		pages["/"+filepath.ToSlash(rel)] = string(data)
		return nil
	})
	return pages, err
}

func init() {
	checkCmd.Flags().Bool("drafts", false, "include draft content")
	checkCmd.Flags().Duration("timeout", 5*time.Second, "per-URL request timeout")
	rootCmd.AddCommand(checkCmd)
}
