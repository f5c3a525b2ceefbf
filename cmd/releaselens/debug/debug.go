// Package debugcmder provides retrieval-only inspection of the index.
package debugcmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/releaselens/releaselens/pkg/answer"
	"github.com/releaselens/releaselens/pkg/bootstrap"
	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/cliui"
	"github.com/releaselens/releaselens/pkg/config"
	"github.com/releaselens/releaselens/pkg/logger"
	"github.com/releaselens/releaselens/pkg/utils"
)

const debugLongDesc string = `Inspect raw retrieval for a question.

Embeds the question, runs the similarity search against the local index, and
prints the ranked chunks with scores and provenance, followed by the exact
context that answer synthesis would receive. No generative call is made.

Examples:
  releaselens debug "how many critical defects in R24.1"
  releaselens debug "pass rate trend" --doc-type comparison --k 12`

const debugShortDesc string = "Inspect raw retrieval for a question"

func NewDebugCmd() *cobra.Command {
	var (
		release string
		docType string
		topK    int
	)

	cmd := &cobra.Command{
		Use:   "debug <question>",
		Short: debugShortDesc,
		Long:  debugLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}

			return runDebug(v, args[0], release, docType, topK, debug)
		},
	}

	cmd.Flags().StringVar(&release, "release", "", "Restrict retrieval to one release label")
	cmd.Flags().StringVar(&docType, "doc-type", "", "Restrict retrieval to one document type")
	cmd.Flags().IntVarP(&topK, "k", "k", 0, "Number of chunks to retrieve (default 8)")

	return cmd
}

func runDebug(v *viper.Viper, question, release, docType string, topK int, debug bool) error {
	log := logger.NewLogger(debug)
	defer log.Sync()

	components, err := bootstrap.Build(v, log)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx := context.Background()

	total, err := components.Index.Count(ctx)
	if err != nil {
		return fmt.Errorf("reading index size: %w", err)
	}

	filters := make(map[string]string, 2)
	if release != "" {
		filters[chunkgen.MetaRelease] = release
	}
	if docType != "" {
		filters[chunkgen.MetaDocType] = docType
	}

	results, err := components.Index.Search(ctx, question, topK, filters)
	if err != nil {
		return fmt.Errorf("retrieval: %w", err)
	}

	fmt.Printf("\n  %s %d documents in index, %d retrieved\n\n",
		cliui.KeyStyle.Render("Retrieval:"), total, len(results))

	fmt.Print(answer.Provenance(results))

	for i, res := range results {
		preview := utils.Truncate(res.Text, 72)
		fmt.Printf("  [%d] %s\n", i+1, cliui.DimStyle.Render(preview))
	}

	fmt.Printf("\n  %s\n\n%s\n", cliui.KeyStyle.Render("Assembled context:"), answer.Assemble(results))

	return nil
}
