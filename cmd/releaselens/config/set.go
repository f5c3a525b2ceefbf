package configcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/releaselens/releaselens/pkg/cliui"
	"github.com/releaselens/releaselens/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Writes the value for the given key into the config.toml file in the
.releaselens/ directory, creating the file if it does not exist.
Keys use dotted notation matching the TOML section structure.

Examples:
  releaselens config set storage.provider chroma
  releaselens config set docs.dir ./qa-sheets
  releaselens config set ingest.on_table_failure abort`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(args[0], args[1], configDir)
		},
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
	}

	return cmd
}

func runSet(key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
			key, strings.Join(config.ValidConfigKeys(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	fmt.Printf("\n  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(value),
	)
	fmt.Printf("  %s\n\n", cliui.DimStyle.Render(cfger.GetTarget()))

	return nil
}
