package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/agentsync/pkg/manifest"
	"github.com/arthur-debert/agentsync/pkg/plugin"
)

func newInstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install <plugin-dir>",
		Short: "Install a plugin's components into every enabled instance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p, err := plugin.Load(args[0])
			if err != nil {
				return err
			}

			if dryRun {
				for _, c := range p.Components {
					fmt.Printf("  would install %s\n", c.Key())
				}
				return nil
			}

			release, err := a.acquireLock()
			if err != nil {
				return err
			}
			defer release()

			report := a.installer.InstallPlugin(p, a.instances())
			a.render.InstallReport(report, "installed")
			if !report.Success() {
				return fmt.Errorf("install of %s did not complete on every instance", p.Meta.Name)
			}
			return nil
		},
	}
}

func newUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <plugin>",
		Short: "Remove a plugin's components from every enabled instance",
		Args:  cobra.ExactArgs(1),
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

			report := a.installer.UninstallPlugin(args[0], a.instances())
			a.render.InstallReport(report, "removed")
			if !report.Success() {
				return fmt.Errorf("uninstall of %s did not complete on every instance", args[0])
			}
			return nil
		},
	}
}

func newEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <plugin-dir> <kind:name>",
		Short: "Re-enable a disabled plugin component",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return toggleComponent(args[0], args[1], true)
		},
	}
}

func newDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <plugin-dir> <kind:name>",
		Short: "Disable one plugin component without uninstalling the rest",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return toggleComponent(args[0], args[1], false)
		},
	}
}

func toggleComponent(pluginDir, component string, enable bool) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	p, err := plugin.Load(pluginDir)
	if err != nil {
		return err
	}
	key, err := manifest.ParseComponentKey(component)
	if err != nil {
		return err
	}

	release, err := a.acquireLock()
	if err != nil {
		return err
	}
	defer release()

	report, err := a.installer.ToggleComponent(p, key, enable, a.instances())
	if err != nil {
		return err
	}
	verb := "disabled"
	if enable {
		verb = "enabled"
	}
	a.render.InstallReport(report, verb)
	if !report.Success() {
		return fmt.Errorf("toggle of %s did not complete on every instance", component)
	}
	return nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show what is installed where",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}

			instances, err := a.manifest.Instances()
			if err != nil {
				return err
			}
			if len(instances) == 0 {
				fmt.Println("nothing installed")
				return nil
			}

			for _, key := range instances {
				items, err := a.manifest.ItemsFor(key)
				if err != nil {
					return err
				}
				a.render.StatusTable(key, items)
			}
			return nil
		},
	}
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info <plugin-dir>",
		Short: "Show plugin metadata, components and documentation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			p, err := plugin.Load(args[0])
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", p.Meta.Name, p.Meta.Version)
			if p.Meta.Description != "" {
				fmt.Println(p.Meta.Description)
			}
			fmt.Printf("\ncomponents (%d):\n", len(p.Components))
			for _, c := range p.Components {
				fmt.Printf("  %s\n", c.Key())
			}

			if readme, err := os.ReadFile(filepath.Join(p.Dir, "README.md")); err == nil {
				fmt.Println()
				a.render.Markdown(string(readme))
			}
			return nil
		},
	}
}
