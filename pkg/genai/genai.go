// Package genai provides chat-completion callers for the LLM providers used
// by chunk generation and answer synthesis.
//
// A CallFunc is an injectable function taking a system instruction and a
// user prompt and returning the model's text. Keeping it a plain function
// lets ingestion and query code be tested with scripted responses.
package genai

import "context"

// CallFunc sends a system instruction and user prompt to a language model
// and returns its text response.
type CallFunc func(ctx context.Context, system, prompt string) (string, error)
