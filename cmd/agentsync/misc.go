package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/agentsync/pkg/config"
	"github.com/arthur-debert/agentsync/pkg/ledger"
)

func newPruneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Trim old backups and drop orphaned ledger entries",
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

			removed, err := a.backups.PruneAll()
			if err != nil {
				return err
			}

			// Ledger entries whose declaration disappeared from the
			// config are orphans. Glob declarations record one entry per
			// expanded pair, so matching is on declaration identity.
			steps := config.BuildSteps(a.cfg, a.paths.SourceRoot(), a.deps())
			declared := map[string]bool{}
			for _, step := range steps {
				if k := step.Params.LedgerKey; k != nil {
					declared[k.Name+"\x00"+k.Tool+"\x00"+k.Instance] = true
				}
			}
			orphans, err := a.ledger.CleanupOrphansFunc(func(key ledger.Key) bool {
				return declared[key.Name+"\x00"+key.Tool+"\x00"+key.Instance]
			})
			if err != nil {
				return err
			}

			fmt.Printf("pruned %d backups, removed %d orphaned ledger entries\n", removed, orphans)
			return nil
		},
	}
}

func newGenConfigCmd() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "genconfig",
		Short: "Generate a starter configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := config.GenerateStarter()
			if err != nil {
				return err
			}

			if !write {
				fmt.Print(content)
				return nil
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			path := a.paths.ConfigFilePath()
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("config already exists at %s", path)
			}
			if err := os.MkdirAll(a.paths.ConfigDir(), 0755); err != nil {
				return err
			}
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&write, "write", false, "Write the config file instead of printing it")
	return cmd
}
