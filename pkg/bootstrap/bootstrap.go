// Package bootstrap builds the component graph shared by the serve, ingest,
// and debug commands from resolved configuration.
package bootstrap

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/answer"
	"github.com/releaselens/releaselens/pkg/embeddings"
	embeddingutils "github.com/releaselens/releaselens/pkg/embeddings/utils"
	"github.com/releaselens/releaselens/pkg/eventstream"
	"github.com/releaselens/releaselens/pkg/eventstream/kafka"
	"github.com/releaselens/releaselens/pkg/eventstream/nop"
	"github.com/releaselens/releaselens/pkg/genai"
	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/ingest"
	"github.com/releaselens/releaselens/pkg/vector"
	vectorutils "github.com/releaselens/releaselens/pkg/vector/utils"
)

// Components is the wired object graph for one process.
type Components struct {
	Embedder  embeddings.Embedder
	Driver    vector.Driver
	Index     *index.Index
	Caller    genai.CallFunc
	Synth     *answer.Synthesizer
	Publisher eventstream.Publisher
	Runner    *ingest.Runner
}

// apiKeyFromEnv resolves an API key through the configured env indirection,
// so the key itself never appears in config files.
func apiKeyFromEnv(envName string) string {
	if envName == "" {
		return ""
	}
	return os.Getenv(envName)
}

// Build wires all components from the resolved viper configuration.
func Build(v *viper.Viper, logger *zap.Logger) (*Components, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: v.GetString("embedding.provider"),
		TargetURL:    v.GetString("embedding.target"),
		APIKey:       apiKeyFromEnv(v.GetString("embedding.api_key_env")),
		Model:        v.GetString("embedding.model"),
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	driver, err := vectorutils.NewVectorDriver(&vectorutils.NewVectorDriverOpts{
		ProviderType: v.GetString("storage.provider"),
		TargetURL:    v.GetString("storage.chroma_url"),
		Path:         v.GetString("storage.sqlite_path"),
		Dimensions:   v.GetInt("embedding.dimensions"),
		Collection:   v.GetString("storage.collection"),
		Logger:       logger,
	})
	if err != nil {
		embedder.Close()
		return nil, fmt.Errorf("creating vector driver: %w", err)
	}

	ix := index.New(embedder, driver, logger)

	caller, err := genai.NewCaller(genai.CallerConfig{
		Provider: v.GetString("llm.provider"),
		Model:    v.GetString("llm.model"),
		APIKey:   apiKeyFromEnv(v.GetString("llm.api_key_env")),
		BaseURL:  v.GetString("llm.target"),
	})
	if err != nil {
		ix.Close()
		return nil, fmt.Errorf("creating LLM caller: %w", err)
	}

	var publisher eventstream.Publisher
	if brokers := v.GetStringSlice("events.kafka_brokers"); len(brokers) > 0 {
		publisher, err = kafka.NewPublisher(kafka.Config{
			Brokers: brokers,
			Topic:   v.GetString("events.kafka_topic"),
		}, logger)
		if err != nil {
			ix.Close()
			return nil, fmt.Errorf("creating kafka publisher: %w", err)
		}
	} else {
		publisher = nop.NewPublisher()
	}

	runner, err := ingest.NewRunner(ingest.Config{
		DocsDir:        v.GetString("docs.dir"),
		OnTableFailure: v.GetString("ingest.on_table_failure"),
	}, ix, caller, publisher, logger)
	if err != nil {
		publisher.Close()
		ix.Close()
		return nil, fmt.Errorf("creating ingest runner: %w", err)
	}

	return &Components{
		Embedder:  embedder,
		Driver:    driver,
		Index:     ix,
		Caller:    caller,
		Synth:     answer.NewSynthesizer(caller),
		Publisher: publisher,
		Runner:    runner,
	}, nil
}

// Close releases all held resources.
func (c *Components) Close() {
	if c.Publisher != nil {
		c.Publisher.Close()
	}
	if c.Index != nil {
		// Index.Close closes the embedder and driver.
		c.Index.Close()
	}
}
