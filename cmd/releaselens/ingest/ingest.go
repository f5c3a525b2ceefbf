// Package ingestcmder provides the one-shot foreground ingestion command.
package ingestcmder

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/bootstrap"
	"github.com/releaselens/releaselens/pkg/cliui"
	"github.com/releaselens/releaselens/pkg/config"
	"github.com/releaselens/releaselens/pkg/dotdir"
	"github.com/releaselens/releaselens/pkg/ingest"
	"github.com/releaselens/releaselens/pkg/logger"
)

const ingestLongDesc string = `Rebuild the index from the docs directory.

Scans the docs directory for release spreadsheets, generates Q&A pairs for
each table and across releases, embeds them, and atomically replaces the
index contents. The summary of the run is persisted to
.releaselens/lastrun.json.`

const ingestShortDesc string = "Rebuild the index from the docs directory"

var ingestFlags = []string{
	config.FlagDocsDir,
	config.FlagStorageProvider,
	config.FlagSQLitePath,
	config.FlagChromaURL,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagLLMProvider,
	config.FlagLLMModel,
	config.FlagOnTableFailure,
}

func NewIngestCmd() *cobra.Command {
	fs := config.DefaultFlagSet()

	var (
		docsDir         string
		storageProvider string
		sqlitePath      string
		chromaURL       string
		embProvider     string
		embTarget       string
		embModel        string
		embDims         uint
		llmProvider     string
		llmModel        string
		onTableFailure  string
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: ingestShortDesc,
		Long:  ingestLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			debug, _ := cmd.Flags().GetBool("debug")
			configDir, _ := cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, ingestFlags)

			return runIngest(v, debug, configDir)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagDocsDir, &docsDir)
	config.AddStringFlag(cmd, fs, config.FlagStorageProvider, &storageProvider)
	config.AddStringFlag(cmd, fs, config.FlagSQLitePath, &sqlitePath)
	config.AddStringFlag(cmd, fs, config.FlagChromaURL, &chromaURL)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingProv, &embProvider)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingTgt, &embTarget)
	config.AddStringFlag(cmd, fs, config.FlagEmbeddingModel, &embModel)
	config.AddUintFlag(cmd, fs, config.FlagEmbeddingDims, &embDims)
	config.AddStringFlag(cmd, fs, config.FlagLLMProvider, &llmProvider)
	config.AddStringFlag(cmd, fs, config.FlagLLMModel, &llmModel)
	config.AddStringFlag(cmd, fs, config.FlagOnTableFailure, &onTableFailure)

	return cmd
}

func runIngest(v *viper.Viper, debug bool, configDir string) error {
	log := logger.NewLogger(debug)
	defer log.Sync()

	components, err := bootstrap.Build(v, log)
	if err != nil {
		return err
	}
	defer components.Close()

	var result *ingest.Result
	err = cliui.Step(os.Stdout, fmt.Sprintf("Ingesting %s", v.GetString("docs.dir")), func() error {
		var runErr error
		result, runErr = components.Runner.Run(context.Background())
		return runErr
	})
	if err != nil {
		return err
	}

	fmt.Printf("\n  %s Ingested %s from %s\n",
		cliui.SuccessMark,
		cliui.ValueStyle.Render(fmt.Sprintf("%d chunks", result.Chunks)),
		cliui.ValueStyle.Render(fmt.Sprintf("%d tables", result.Tables)),
	)
	for _, failure := range result.Failures {
		fmt.Printf("  %s %s\n", cliui.FailMark, cliui.DimStyle.Render(failure))
	}
	fmt.Println()

	state := &dotdir.LastRunState{
		RunID:      result.RunID,
		Tables:     result.Tables,
		Chunks:     result.Chunks,
		Failures:   result.Failures,
		DurationMs: result.Duration.Milliseconds(),
		FinishedAt: time.Now().UTC(),
	}
	if err := dotdir.NewManager().SaveLastRunState(configDir, state); err != nil {
		log.Warn("could not persist last-run state", zap.Error(err))
	}

	return nil
}
