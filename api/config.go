// Package api provides the HTTP API server for querying and managing the
// release QA index.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// LLMModel is the generative model name reported by /health.
	LLMModel string
}
