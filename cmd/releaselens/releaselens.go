// Package releaselenscmder
package releaselenscmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/releaselens/releaselens/cmd/releaselens/ask"
	configcmder "github.com/releaselens/releaselens/cmd/releaselens/config"
	debugcmder "github.com/releaselens/releaselens/cmd/releaselens/debug"
	ingestcmder "github.com/releaselens/releaselens/cmd/releaselens/ingest"
	servecmder "github.com/releaselens/releaselens/cmd/releaselens/serve"
	versioncmder "github.com/releaselens/releaselens/cmd/version"
)

const releaselensLongDesc string = `ReleaseLens answers questions about release QA data.

Spreadsheets of defects, test executions, and release metadata are turned
into embedded Q&A knowledge and served through a grounded query API.

Common commands:
  releaselens serve     Run the query API (with optional file watching)
  releaselens ingest    Rebuild the index from the docs directory
  releaselens debug     Inspect raw retrieval for a question
  releaselens ask       Ask a running server a question`

const releaselensShortDesc string = "ReleaseLens - release QA question answering"

func NewReleaseLensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "releaselens",
		Short: releaselensShortDesc,
		Long:  releaselensLongDesc,
	}

	// Global flags
	cmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .releaselens/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(ingestcmder.NewIngestCmd())
	cmd.AddCommand(debugcmder.NewDebugCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
