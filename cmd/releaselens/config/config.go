// Package configcmder provides the config command for managing persistent
// releaselens configuration stored in the .releaselens/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent releaselens configuration.

Configuration is stored as config.toml in the .releaselens/ directory and
provides default values for command flags. CLI flags always take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.provider, storage.sqlite_path, storage.chroma_url, storage.collection,
  docs.dir, docs.watch, docs.debounce_ms,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  llm.provider, llm.target, llm.model, llm.api_key_env,
  api.listen, ingest.on_table_failure,
  events.kafka_brokers, events.kafka_topic

Use subcommands to get, set, or list configuration values:
  releaselens config set <key> <value>    Set a configuration value
  releaselens config get <key>            Get a configuration value
  releaselens config list                 List all configuration values

Examples:
  releaselens config set storage.provider chroma
  releaselens config set llm.provider groq
  releaselens config get docs.dir
  releaselens config list`

const configShortDesc string = "Manage persistent releaselens configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
