package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Config represents the persistent releaselens configuration stored as
// config.toml in the .releaselens/ directory. The TOML layout uses sections
// for logical grouping.
type Config struct {
	Version   int             `toml:"version"`
	Storage   StorageConfig   `toml:"storage"`
	Docs      DocsConfig      `toml:"docs"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	API       APIConfig       `toml:"api"`
	Ingest    IngestConfig    `toml:"ingest"`
	Events    EventsConfig    `toml:"events"`
}

// StorageConfig holds vector store settings.
type StorageConfig struct {
	// Provider is "sqlite" or "chroma".
	Provider   string `toml:"provider,omitempty"`
	SQLitePath string `toml:"sqlite_path,omitempty"`
	ChromaURL  string `toml:"chroma_url,omitempty"`
	Collection string `toml:"collection,omitempty"`
}

// DocsConfig holds source document settings.
type DocsConfig struct {
	Dir        string `toml:"dir,omitempty"`
	Watch      bool   `toml:"watch,omitempty"`
	DebounceMs uint   `toml:"debounce_ms,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`

	// APIKeyEnv names the environment variable holding the API key, so the
	// key itself never lands in the config file.
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// LLMConfig holds generative provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Model     string `toml:"model,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// IngestConfig holds ingestion settings.
type IngestConfig struct {
	// OnTableFailure is "skip" or "abort".
	OnTableFailure string `toml:"on_table_failure,omitempty"`
}

// EventsConfig holds event publishing settings. Empty brokers disables
// publishing.
type EventsConfig struct {
	KafkaBrokers []string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string   `toml:"kafka_topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.provider": {
		get: func(c *Config) string { return c.Storage.Provider },
		set: func(c *Config, v string) error { c.Storage.Provider = v; return nil },
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.chroma_url": {
		get: func(c *Config) string { return c.Storage.ChromaURL },
		set: func(c *Config, v string) error { c.Storage.ChromaURL = v; return nil },
	},
	"storage.collection": {
		get: func(c *Config) string { return c.Storage.Collection },
		set: func(c *Config, v string) error { c.Storage.Collection = v; return nil },
	},
	"docs.dir": {
		get: func(c *Config) string { return c.Docs.Dir },
		set: func(c *Config, v string) error { c.Docs.Dir = v; return nil },
	},
	"docs.watch": {
		get: func(c *Config) string { return strconv.FormatBool(c.Docs.Watch) },
		set: func(c *Config, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid value for docs.watch: %w", err)
			}
			c.Docs.Watch = b
			return nil
		},
	},
	"docs.debounce_ms": {
		get: func(c *Config) string {
			if c.Docs.DebounceMs == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Docs.DebounceMs), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for docs.debounce_ms: %w", err)
			}
			c.Docs.DebounceMs = uint(n)
			return nil
		},
	},
	"embedding.provider": {
		get: func(c *Config) string { return c.Embedding.Provider },
		set: func(c *Config, v string) error { c.Embedding.Provider = v; return nil },
	},
	"embedding.target": {
		get: func(c *Config) string { return c.Embedding.Target },
		set: func(c *Config, v string) error { c.Embedding.Target = v; return nil },
	},
	"embedding.model": {
		get: func(c *Config) string { return c.Embedding.Model },
		set: func(c *Config, v string) error { c.Embedding.Model = v; return nil },
	},
	"embedding.dimensions": {
		get: func(c *Config) string {
			if c.Embedding.Dimensions == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(c.Embedding.Dimensions), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for embedding.dimensions: %w", err)
			}
			c.Embedding.Dimensions = uint(n)
			return nil
		},
	},
	"embedding.api_key_env": {
		get: func(c *Config) string { return c.Embedding.APIKeyEnv },
		set: func(c *Config, v string) error { c.Embedding.APIKeyEnv = v; return nil },
	},
	"llm.provider": {
		get: func(c *Config) string { return c.LLM.Provider },
		set: func(c *Config, v string) error { c.LLM.Provider = v; return nil },
	},
	"llm.target": {
		get: func(c *Config) string { return c.LLM.Target },
		set: func(c *Config, v string) error { c.LLM.Target = v; return nil },
	},
	"llm.model": {
		get: func(c *Config) string { return c.LLM.Model },
		set: func(c *Config, v string) error { c.LLM.Model = v; return nil },
	},
	"llm.api_key_env": {
		get: func(c *Config) string { return c.LLM.APIKeyEnv },
		set: func(c *Config, v string) error { c.LLM.APIKeyEnv = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"ingest.on_table_failure": {
		get: func(c *Config) string { return c.Ingest.OnTableFailure },
		set: func(c *Config, v string) error {
			if v != "skip" && v != "abort" {
				return fmt.Errorf("invalid value for ingest.on_table_failure: %q (expected skip or abort)", v)
			}
			c.Ingest.OnTableFailure = v
			return nil
		},
	},
	"events.kafka_brokers": {
		get: func(c *Config) string { return strings.Join(c.Events.KafkaBrokers, ",") },
		set: func(c *Config, v string) error {
			if v == "" {
				c.Events.KafkaBrokers = nil
				return nil
			}
			c.Events.KafkaBrokers = strings.Split(v, ",")
			return nil
		},
	},
	"events.kafka_topic": {
		get: func(c *Config) string { return c.Events.KafkaTopic },
		set: func(c *Config, v string) error { c.Events.KafkaTopic = v; return nil },
	},
}
