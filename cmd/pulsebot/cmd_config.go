package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/user/pulsebot/internal/config"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := config.LoadK(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		values := k.All()
		keys := make([]string, 0, len(values))
		for key := range values {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		for _, key := range keys {
			val := values[key]
			if config.IsSecretKey(key) && val != "" {
				val = "********"
			}
			fmt.Fprintf(os.Stdout, "%s = %v\n", key, val)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := config.LoadK(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if !k.Exists(args[0]) {
			return fmt.Errorf("unknown config key: %s", args[0])
		}
		fmt.Fprintf(os.Stdout, "%v\n", k.Get(args[0]))
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		k, err := config.LoadK(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if err := k.Set(args[0], config.ParseValue(args[1])); err != nil {
			return fmt.Errorf("set config key: %w", err)
		}
		if err := config.Save(configPath, k); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "%s updated.\n", args[0])
		return nil
	},
}
