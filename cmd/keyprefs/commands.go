package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kalambet/keyprefs/internal/config"
	"github.com/kalambet/keyprefs/internal/device"
	"github.com/kalambet/keyprefs/internal/layout"
	"github.com/kalambet/keyprefs/internal/prefs"
)

func newRootCmd() *cobra.Command {
	var noColor bool

	root := &cobra.Command{
		Use:           "keyprefs",
		Short:         "Inspect and edit keyboard device settings",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	root.AddCommand(newDeviceCmd(), newCurrencyCmd(), newLayoutCmd(), newPrefsCmd(), newConfigCmd())
	return root
}

// --- device ---

func newDeviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "device",
		Short: "Show or change the selected device",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the selected device",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				id, err := a.devices.Device()
				if err != nil {
					return err
				}
				selected, err := a.devices.IsDeviceSelected()
				if err != nil {
					return err
				}
				w := cmd.OutOrStdout()
				printStatus(w, "Device", "%s", id)
				if selected {
					printStatus(w, "Selected", "yes")
				} else {
					printStatus(w, "Selected", "no (default)")
				}
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <id>",
		Short: "Select a device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			return withApp(func(a *app) error {
				if _, err := a.devices.KeyMappingBlob(id); errors.Is(err, device.ErrMappingNotFound) {
					printWarning(cmd.ErrOrStderr(), "No key mapping bundled for %s", id)
				}
				if err := a.devices.SetDevice(id); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Selected device %s", id)
				return nil
			})
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List devices with a bundled key mapping",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ids, err := a.assets.Devices()
				if err != nil {
					return err
				}
				current, err := a.devices.Device()
				if err != nil {
					return err
				}
				for _, id := range ids {
					marker := " "
					if id == current {
						marker = "*"
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", marker, id)
				}
				return nil
			})
		},
	}

	mapping := &cobra.Command{
		Use:   "mapping [id]",
		Short: "Print the key-mapping JSON for a device (default: selected)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var id string
			if len(args) == 1 {
				id = args[0]
			}
			return withApp(func(a *app) error {
				blob, err := a.devices.KeyMappingBlob(id)
				if errors.Is(err, device.ErrMappingNotFound) {
					if ids, lerr := a.assets.Devices(); lerr == nil && len(ids) > 0 {
						return fmt.Errorf("%w (available: %s)", err, strings.Join(ids, ", "))
					}
				}
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), blob)
				return nil
			})
		},
	}

	cmd.AddCommand(show, set, list, mapping)
	return cmd
}

// --- currency ---

func newCurrencyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "currency",
		Short: "Show or change the currency symbol",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the currency symbol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				sym, err := a.devices.Currency()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), sym)
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <symbol>",
		Short: "Set the currency symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				if err := a.devices.SetCurrency(args[0]); err != nil {
					return err
				}
				printSuccess(cmd.OutOrStdout(), "Currency set to %s", args[0])
				return nil
			})
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

// --- layout ---

func newLayoutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Show or customize the symbol page layout",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show the committed symbol layout",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				content, err := a.symbols.Committed()
				if err != nil {
					return err
				}
				if content == "" {
					fmt.Fprintln(cmd.OutOrStdout(), "(default)")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), content)
				return nil
			})
		},
	}

	var discard bool
	edit := &cobra.Command{
		Use:   "edit <content>",
		Short: "Run a customization session for the symbol layout",
		Long: `Run a customization session for the symbol layout.

The session exits through back (the edit is committed) unless --discard is
given, in which case the screen is torn down without finishing and the edit
is dropped.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				w := cmd.OutOrStdout()
				screen := layout.NewScreen(a.symbols)

				printStep(w, "Opening symbol layout editor")
				if err := screen.OnResume(); err != nil {
					return err
				}
				if err := a.symbols.Stage(args[0]); err != nil {
					return err
				}

				if discard {
					if err := screen.OnDestroy(false); err != nil {
						return err
					}
					printWarning(w, "Edit discarded")
					return nil
				}

				if err := screen.OnBack(); err != nil {
					return err
				}
				if err := screen.OnDestroy(true); err != nil {
					return err
				}
				printSuccess(w, "Symbol layout saved")
				return nil
			})
		},
	}
	edit.Flags().BoolVar(&discard, "discard", false, "tear the editor down instead of leaving through back")

	cmd.AddCommand(show, edit)
	return cmd
}

// --- prefs ---

func newPrefsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefs",
		Short: "Inspect stored preferences",
	}

	list := &cobra.Command{
		Use:   "list [namespace]",
		Short: "List stored preferences (default: all namespaces)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespaces := []prefs.Namespace{prefs.CurrencyPrefs, prefs.DevicePrefs}
			if len(args) == 1 {
				ns := prefs.Namespace(args[0])
				if ns != prefs.CurrencyPrefs && ns != prefs.DevicePrefs {
					return fmt.Errorf("unknown namespace %q (want %s or %s)", ns, prefs.CurrencyPrefs, prefs.DevicePrefs)
				}
				namespaces = []prefs.Namespace{ns}
			}
			return withApp(func(a *app) error {
				w := cmd.OutOrStdout()
				for _, ns := range namespaces {
					rows, err := a.store.ListPrefs(string(ns))
					if err != nil {
						return fmt.Errorf("listing %s: %w", ns, err)
					}
					for _, p := range rows {
						fmt.Fprintf(w, "%s/%s = %s  (%s)\n", p.Namespace, p.Key, p.Value, p.UpdatedAt.Format("2006-01-02 15:04:05"))
					}
				}
				return nil
			})
		},
	}

	cmd.AddCommand(list)
	return cmd
}

// --- config ---

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or update configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for _, k := range config.ShowAll(cfg) {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s\n", color.New(color.Bold).Sprint(k.Key), k.Value)
			}
			return nil
		},
	}

	set := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value (empty value resets it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, value := args[0], args[1]
			if err := config.SetKey(key, value); err != nil {
				return fmt.Errorf("%w (valid keys: %s)", err, strings.Join(config.ValidKeys(), ", "))
			}
			printSuccess(cmd.OutOrStdout(), "Set %s = %s", key, value)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}
