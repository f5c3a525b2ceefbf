// Package answer assembles retrieved chunks into a grounded context and
// synthesizes answers from it.
package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/genai"
	"github.com/releaselens/releaselens/pkg/vector"
)

// ErrGeneration indicates answer synthesis failed: the generative call
// errored or returned an empty response. The caller surfaces this as an
// explicit failure, never a fabricated answer.
var ErrGeneration = errors.New("answer generation error")

// ContextDelimiter separates chunks in the assembled context.
const ContextDelimiter = "\n\n---\n\n"

// NoContextSentence is the context used when retrieval returned nothing.
const NoContextSentence = "No relevant documents were found."

// Assemble joins result texts in the given order. The result order is the
// retrieval ranking; assembly never reorders or truncates.
func Assemble(results []vector.QueryResult) string {
	if len(results) == 0 {
		return NoContextSentence
	}

	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, ContextDelimiter)
}

// Provenance renders per-chunk provenance (rank, score, labels) for the
// debug surface.
func Provenance(results []vector.QueryResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] score=%.4f release=%s doc_type=%s source=%s\n",
			i+1,
			r.Score,
			r.Metadata[chunkgen.MetaRelease],
			r.Metadata[chunkgen.MetaDocType],
			r.Metadata[chunkgen.MetaSource],
		)
	}
	return b.String()
}

// systemInstruction pins the synthesis role: answer only from the provided
// context.
const systemInstruction = "You are a QA analyst assistant. Answer the question using ONLY the provided context. If the context does not contain the answer, say so. Be concise and factual."

// Synthesizer produces grounded answers from retrieved chunks.
type Synthesizer struct {
	call genai.CallFunc
}

// NewSynthesizer creates a Synthesizer over the given generative call.
func NewSynthesizer(call genai.CallFunc) *Synthesizer {
	return &Synthesizer{call: call}
}

// Answer assembles the context from results and runs one generative call.
// The model response is returned verbatim.
func (s *Synthesizer) Answer(ctx context.Context, question string, results []vector.QueryResult) (string, error) {
	prompt := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", Assemble(results), question)

	response, err := s.call(ctx, systemInstruction, prompt)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return "", fmt.Errorf("%w: model returned an empty response", ErrGeneration)
	}

	return response, nil
}
