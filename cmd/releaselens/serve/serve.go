// Package servecmder provides the serve command running the query API.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/api"
	"github.com/releaselens/releaselens/pkg/bootstrap"
	"github.com/releaselens/releaselens/pkg/config"
	"github.com/releaselens/releaselens/pkg/logger"
	"github.com/releaselens/releaselens/pkg/tabular"
	"github.com/releaselens/releaselens/pkg/watch"
)

const serveLongDesc string = `Run the ReleaseLens query API.

Builds the embedder, vector store, and generative caller from config, then
serves /query, /health, /ingest, and /debug. When the index is empty and
source files exist, an initial ingestion run is started automatically. With
docs.watch enabled, changes to the docs directory re-trigger ingestion.`

const serveShortDesc string = "Run the ReleaseLens query API"

type ServeCommander struct {
	apiListen string
	docsDir   string
	watchDocs bool
	debug     bool
	configDir string
	logger    *zap.Logger
}

var serveFlags = []string{
	config.FlagAPIListen,
	config.FlagDocsDir,
	config.FlagDocsWatch,
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

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}
	fs := config.DefaultFlagSet()

	var (
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
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %v", err)
			}
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, fs, serveFlags)

			return cmder.run(v)
		},
	}

	config.AddStringFlag(cmd, fs, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, fs, config.FlagDocsDir, &cmder.docsDir)
	config.AddBoolFlag(cmd, fs, config.FlagDocsWatch, &cmder.watchDocs)
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

func (c *ServeCommander) run(v *viper.Viper) error {
	c.logger = logger.NewLogger(c.debug)
	defer c.logger.Sync()

	components, err := bootstrap.Build(v, c.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initial ingestion when the index is empty and sources exist.
	c.maybeIngest(ctx, v.GetString("docs.dir"), components)

	apiServer := api.NewServer(api.Config{
		ListenAddr: v.GetString("api.listen"),
		LLMModel:   v.GetString("llm.model"),
	}, components.Index, components.Runner, components.Synth, c.logger)

	errChan := make(chan error, 2)

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if v.GetBool("docs.watch") {
		watcher := watch.New(
			v.GetString("docs.dir"),
			time.Duration(v.GetUint("docs.debounce_ms"))*time.Millisecond,
			components.Runner,
			c.logger,
		)
		go func() {
			if err := watcher.Run(ctx); err != nil && ctx.Err() == nil {
				errChan <- fmt.Errorf("watcher error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
		return apiServer.Shutdown()
	}
}

// maybeIngest starts a background run on an empty index with sources
// present. Failures are logged; the API still serves (and reports an empty
// index).
func (c *ServeCommander) maybeIngest(ctx context.Context, docsDir string, components *bootstrap.Components) {
	total, err := components.Index.Count(ctx)
	if err != nil {
		c.logger.Warn("could not check index size", zap.Error(err))
		return
	}
	if total > 0 {
		return
	}

	sources, err := tabular.ScanDir(docsDir)
	if err != nil || len(sources) == 0 {
		return
	}

	runID, err := components.Runner.Start(ctx)
	if err != nil {
		c.logger.Warn("initial ingestion not started", zap.Error(err))
		return
	}
	c.logger.Info("initial ingestion started",
		zap.String("run_id", runID),
		zap.Int("sources", len(sources)),
	)
}
