package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/agentsync/pkg/config"
	"github.com/arthur-debert/agentsync/pkg/orchestrator"
)

func newCheckCmd() *cobra.Command {
	var showDiffs bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report drift between source and installed targets",
		Long: `Check compares every declared artifact against its installed copies
and classifies drift without changing anything.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			steps := config.BuildSteps(a.cfg, a.paths.SourceRoot(), a.deps())
			report := orchestrator.RunCheck(steps)
			a.render.CheckReport(report, showDiffs)

			if report.Summary.Failed > 0 {
				return fmt.Errorf("%d checks failed", report.Summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showDiffs, "diff", false, "Show unified diffs for drifted artifacts")
	return cmd
}

func newSyncCmd() *cobra.Command {
	var only []string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Apply declared artifacts to their installed targets",
		Long: `Sync checks every declaration and writes targets that are missing or
drifted, backing up whatever it overwrites. Conflicts where both sides
changed are skipped; resolve them by re-running with --only to pick the
declarations whose source should win.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			steps := config.BuildSteps(a.cfg, a.paths.SourceRoot(), a.deps())

			if dryRun {
				report := orchestrator.RunCheck(steps)
				a.render.CheckReport(report, false)
				fmt.Println("dry run, nothing applied")
				return nil
			}

			release, err := a.acquireLock()
			if err != nil {
				return err
			}
			defer release()

			var filter map[string]bool
			if len(only) > 0 {
				filter = make(map[string]bool, len(only))
				for _, label := range only {
					filter[label] = true
				}
			}

			report := orchestrator.RunApply(steps, filter)
			a.render.ApplyReport(report)

			if report.Summary.Failed > 0 {
				return fmt.Errorf("%d steps failed", report.Summary.Failed)
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, "only", nil, "Apply only the named declarations")
	return cmd
}

func newPullbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pullback <declaration>",
		Short: "Copy installed target content back into the source",
		Long: `Pullback reverses sync for one declaration, overwriting the source
from the installed target. The declaration must opt in with
pullback = true.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			release, err := a.acquireLock()
			if err != nil {
				return err
			}
			defer release()

			steps := config.BuildSteps(a.cfg, a.paths.SourceRoot(), a.deps())
			report := orchestrator.RunPullback(steps, args[0])
			a.render.ApplyReport(report)

			if report.Summary.Failed > 0 {
				return fmt.Errorf("pullback failed")
			}
			return nil
		},
	}
}
