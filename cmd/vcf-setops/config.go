package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func (ap *app) configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage vcf-setops configuration",
		Long:  "Show, get, or set configuration values. Config is stored in ~/" + configName + ".",
		Example: `  vcf-setops config                      # show all config
  vcf-setops config set window 5000      # buffer 5000 records per input
  vcf-setops config set priority merge   # merge colliding records by default
  vcf-setops config get window           # get a value`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ap.runConfigShow()
		},
	}

	cmd.AddCommand(ap.configSetCmd())
	cmd.AddCommand(ap.configGetCmd())

	return cmd
}

func (ap *app) configSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ap.runConfigSet(args[0], args[1])
		},
	}
}

func (ap *app) configGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ap.runConfigGet(args[0])
		},
	}
}

func (ap *app) runConfigShow() error {
	settings := ap.v.AllSettings()
	if len(settings) == 0 {
		fmt.Fprintf(ap.stdout, "# No configuration set. Config file: ~/%s\n", configName)
		return nil
	}

	out, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	fmt.Fprint(ap.stdout, string(out))
	return nil
}

func (ap *app) runConfigSet(key, value string) error {
	// Parse boolean-like values
	switch value {
	case "true", "yes", "on":
		ap.v.Set(key, true)
	case "false", "no", "off":
		ap.v.Set(key, false)
	default:
		ap.v.Set(key, value)
	}

	// Ensure config file exists
	cfgFile := ap.v.ConfigFileUsed()
	if cfgFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		cfgFile = filepath.Join(home, configName)
	}

	if err := ap.v.WriteConfigAs(cfgFile); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Fprintf(ap.stdout, "Set %s = %s in %s\n", key, value, cfgFile)
	return nil
}

func (ap *app) runConfigGet(key string) error {
	val := ap.v.Get(key)
	if val == nil {
		return fmt.Errorf("key %q is not set", key)
	}
	fmt.Fprintln(ap.stdout, val)
	return nil
}
