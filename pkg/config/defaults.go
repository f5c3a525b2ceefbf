package config

const (
	defaultVectorProvider = "sqlite"
	defaultSQLitePath     = "releaselens.db"
	defaultChromaURL      = "http://localhost:8000"
	defaultCollection     = "qa_documents"

	defaultDocsDir    = "./docs"
	defaultDebounceMs = 2000

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "all-minilm"
	defaultEmbeddingDimensions = 384

	defaultLLMProvider = "ollama"
	defaultLLMTarget   = "http://localhost:11434"
	defaultLLMModel    = "llama3.2"

	defaultAPIListen = ":8081"

	defaultOnTableFailure = "skip"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Provider:   defaultVectorProvider,
			SQLitePath: defaultSQLitePath,
			ChromaURL:  defaultChromaURL,
			Collection: defaultCollection,
		},
		Docs: DocsConfig{
			Dir:        defaultDocsDir,
			Watch:      true,
			DebounceMs: defaultDebounceMs,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		LLM: LLMConfig{
			Provider: defaultLLMProvider,
			Target:   defaultLLMTarget,
			Model:    defaultLLMModel,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		Ingest: IngestConfig{
			OnTableFailure: defaultOnTableFailure,
		},
	}
}
