package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kalambet/prefs"
	"github.com/kalambet/prefs/internal/config"
)

// --- show ---

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show every preference",
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetBool("raw")
		return withSession(func(rec *prefs.Record) error {
			if raw {
				text, err := rec.Encode()
				if err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), text)
				return nil
			}
			printValues(cmd.OutOrStdout(), rec)
			return nil
		})
	},
}

func init() {
	showCmd.Flags().Bool("raw", false, "print the serialized record")
}

// --- get ---

var getCmd = &cobra.Command{
	Use:   "get <field>",
	Short: "Print one preference",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(rec *prefs.Record) error {
			v, ok := rec.Value(args[0])
			if !ok {
				return fmt.Errorf("%w %q", prefs.ErrUnknownField, args[0])
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		})
	},
}

// --- set ---

var setCmd = &cobra.Command{
	Use:   "set <field> <value>",
	Short: "Change one preference and save",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, raw := args[0], args[1]
		return withSession(func(rec *prefs.Record) error {
			v, err := parseField(rec, name, raw)
			if err != nil {
				return err
			}
			if err := rec.SaveValue(name, v); err != nil {
				return err
			}
			printSuccess("Set %s = %s", name, formatValue(v))
			return nil
		})
	},
}

// --- edit ---

var editCmd = &cobra.Command{
	Use:   "edit <field=value>...",
	Short: "Change several preferences in one transaction",
	Long: `Change several preferences in one transaction. The record is written
once, and only if at least one value changed.

Examples:
  prefsctl edit count=5 name=x
  prefsctl edit dark_mode=true font_size=14`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := parseAssignments(args)
		if err != nil {
			return err
		}
		return withSession(func(rec *prefs.Record) error {
			values := make(map[string]any, len(raw))
			for name, text := range raw {
				v, err := parseField(rec, name, text.(string))
				if err != nil {
					return err
				}
				values[name] = v
			}

			modified := false
			err := rec.Update(func(tx *prefs.Txn) error {
				for name, v := range values {
					if err := tx.SetValue(name, v); err != nil {
						return err
					}
				}
				modified = tx.Modified()
				return nil
			})
			if err != nil {
				return err
			}
			if !modified {
				printWarning("No changes")
				return nil
			}
			printSuccess("Saved %d field(s) to %s", len(values), rec.Describe())
			return nil
		})
	},
}

// --- path ---

var pathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print where the record is stored",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(rec *prefs.Record) error {
			fmt.Fprintln(cmd.OutOrStdout(), rec.Describe())
			return nil
		})
	},
}

// --- fields ---

var fieldsCmd = &cobra.Command{
	Use:   "fields",
	Short: "List the fields declared by the schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := loadSchema(cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", colorize(colorBold, s.Name()), s.BaseName())
		printFields(cmd.OutOrStdout(), s)
		return nil
	},
}

// parseAssignments splits field=value arguments. Values stay text.
func parseAssignments(args []string) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, raw, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid assignment %q: want field=value", arg)
		}
		out[name] = raw
	}
	return out, nil
}

func parseField(rec *prefs.Record, name, raw string) (any, error) {
	f, ok := rec.Schema().Field(name)
	if !ok {
		return nil, fmt.Errorf("%w %q", prefs.ErrUnknownField, name)
	}
	v, err := f.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", name, err)
	}
	return v, nil
}

// --- config ---

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or update prefsctl configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.ShowAll(cfg) {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s = %s  (%s)\n", colorize(colorBold, k.Key), k.Value, k.EnvVar)
		}
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		if err := config.SetKey(key, value); err != nil {
			return err
		}

		printSuccess("Set %s = %s", key, value)
		return nil
	},
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset <key>",
	Short: "Restore a configuration value to its default",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.UnsetKey(args[0]); err != nil {
			return err
		}
		printSuccess("Unset %s", args[0])
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file location",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintln(cmd.OutOrStdout(), config.Path())
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configPathCmd)
}
