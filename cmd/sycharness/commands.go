// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/karin0/syc/cmd/sycharness/config"
	"github.com/karin0/syc/cmd/sycharness/internal/journal"
)

// cliFlags holds the values bound to persistent flags.
type cliFlags struct {
	configPath  string
	noStats     bool
	noBuild     bool
	description string
	jobs        int
	logLevel    string
	historyN    int
	force       bool
}

// newRootCmd builds the command tree. Every call returns fresh commands and
// flags, so tests can execute it repeatedly.
func newRootCmd(a *app) *cobra.Command {
	flags := &a.flags

	rootCmd := &cobra.Command{
		Use:   "sycharness",
		Short: "Differential test harness for the syc compiler",
		Long: `sycharness compiles test programs with syc, runs the generated MIPS
assembly on the MARS simulator, compares the output against a gcc reference
build and keeps per-run instruction statistics.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", config.DefaultFileName, "path to the harness config")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")

	runCmd := &cobra.Command{
		Use:   "run [specifier]",
		Short: "Run every case, or the cases named by one specifier",
		Long: `Run every discovered case, or only the cases selected by a specifier:
  A-3        course case 3 of group A
  path/dir   a directory holding case.txt, or a tree to discover`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec := ""
			if len(args) == 1 {
				spec = args[0]
			}
			return a.run(cmd, RunOptions{Mode: ModeRun, Specifier: spec})
		},
	}
	runCmd.Flags().BoolVar(&flags.noStats, "no-stats", false, "do not write statistics")
	runCmd.Flags().StringVar(&flags.description, "desc", "", "description appended to the history column label")

	replayCmd := &cobra.Command{
		Use:   "replay",
		Short: "Rerun the quarantined failing case (statistics are never written)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, RunOptions{Mode: ModeReplay})
		},
	}

	errorsCmd := &cobra.Command{
		Use:   "errors",
		Short: "Check the compiler's error listings against their fixtures",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, RunOptions{Mode: ModeErrors})
		},
	}

	for _, c := range []*cobra.Command{runCmd, replayCmd, errorsCmd} {
		c.Flags().BoolVar(&flags.noBuild, "no-build", false, "skip building the compiler")
		c.Flags().IntVarP(&flags.jobs, "jobs", "j", 0, "parallel cases (default: config, then one per CPU)")
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "List journaled run-sets, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := a.harness.History(flags.historyN)
			if err != nil {
				return err
			}
			printHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	historyCmd.Flags().IntVarP(&flags.historyN, "limit", "n", 20, "number of run-sets to list (0 = all)")

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file holding the default settings",
		Args:  cobra.NoArgs,
		// Overrides the root hook: there is no config to load yet.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := flags.configPath
			if _, err := os.Stat(path); err == nil && !flags.force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.WriteDefault(path); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&flags.force, "force", false, "overwrite an existing config file")

	rootCmd.AddCommand(runCmd, replayCmd, errorsCmd, historyCmd, initCmd)
	return rootCmd
}

func printHistory(w io.Writer, records []journal.RunRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No run-sets recorded yet.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("STARTED", "MODE", "CASES", "PASSED", "FAILED", "SKIPPED", "ELAPSED", "QUARANTINED", "DESCRIPTION")
	for _, r := range records {
		t.Row(
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Mode,
			strconv.Itoa(r.Cases),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Failed),
			strconv.Itoa(r.Skipped),
			r.Elapsed.Round(time.Millisecond).String(),
			r.Quarantined,
			r.Description,
		)
	}
	fmt.Fprintln(w, t.Render())
}
