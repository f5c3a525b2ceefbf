// Package chunkgen turns loaded tables into question/answer chunks via an
// injectable generative-service call.
//
// Generation runs in two phases. Phase 1 produces Q&A pairs per table from a
// markdown rendering plus computed statistics. Phase 2 produces cross-release
// comparison pairs from the summary statistics of all tables together.
package chunkgen

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/releaselens/releaselens/pkg/genai"
	"github.com/releaselens/releaselens/pkg/tabular"
)

// ErrParse indicates the model response contained no parseable JSON array.
var ErrParse = errors.New("chunkgen parse error")

// markdownRowLimit caps how many data rows are rendered into a Phase-1
// prompt.
const markdownRowLimit = 60

// Metadata keys attached to every chunk.
const (
	MetaSource   = "source"
	MetaDocType  = "doc_type"
	MetaRelease  = "release"
	MetaQuestion = "question"
)

// Cross-release chunks carry fixed labels instead of per-file ones.
const (
	CrossReleaseSource  = "cross_release"
	CrossReleaseRelease = "all"
)

// Pair is one generated question/answer pair.
type Pair struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Chunk is the embeddable unit: the rendered pair text plus its metadata.
type Chunk struct {
	Text     string
	Metadata map[string]string
}

// ParsePairs locates the outermost JSON array in a model response and
// unmarshals it into pairs. Pairs missing a question or answer are dropped;
// the second return value counts them. A response with no parseable array
// returns ErrParse.
func ParsePairs(raw string) ([]Pair, int, error) {
	jsonStr := raw
	if idx := strings.Index(raw, "["); idx >= 0 {
		endIdx := strings.LastIndex(raw, "]")
		if endIdx > idx {
			jsonStr = raw[idx : endIdx+1]
		}
	}

	var parsed []Pair
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return nil, 0, fmt.Errorf("%w: unmarshal pairs JSON: %v", ErrParse, err)
	}

	pairs := make([]Pair, 0, len(parsed))
	dropped := 0
	for _, p := range parsed {
		p.Question = strings.TrimSpace(p.Question)
		p.Answer = strings.TrimSpace(p.Answer)
		if p.Question == "" || p.Answer == "" {
			dropped++
			continue
		}
		pairs = append(pairs, p)
	}

	return pairs, dropped, nil
}

// renderChunk is the canonical chunk text form. Retrieval and answer
// synthesis both depend on this exact layout.
func renderChunk(p Pair) string {
	return "Q: " + p.Question + "\nA: " + p.Answer
}

func toChunks(pairs []Pair, metadata map[string]string) []Chunk {
	chunks := make([]Chunk, 0, len(pairs))
	for _, p := range pairs {
		md := make(map[string]string, len(metadata)+1)
		for k, v := range metadata {
			md[k] = v
		}
		md[MetaQuestion] = p.Question
		chunks = append(chunks, Chunk{
			Text:     renderChunk(p),
			Metadata: md,
		})
	}
	return chunks
}

// GenerateTable runs Phase-1 generation for one table. The returned chunks
// carry {source, doc_type, release, question} metadata. A call or parse
// failure aborts only this table.
func GenerateTable(ctx context.Context, call genai.CallFunc, table *tabular.Table) ([]Chunk, error) {
	prompt := buildTablePrompt(table)

	raw, err := call(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating pairs for %s: %w", table.Source, err)
	}

	pairs, _, err := ParsePairs(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing pairs for %s: %w", table.Source, err)
	}

	return toChunks(pairs, map[string]string{
		MetaSource:  table.Source,
		MetaDocType: table.DocType,
		MetaRelease: table.Release,
	}), nil
}

// GenerateComparison runs Phase-2 generation across all tables. The returned
// chunks carry the fixed cross-release metadata. Runs once per ingestion
// cycle.
func GenerateComparison(ctx context.Context, call genai.CallFunc, tables []*tabular.Table) ([]Chunk, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	prompt := buildComparisonPrompt(tables)

	raw, err := call(ctx, systemInstruction, prompt)
	if err != nil {
		return nil, fmt.Errorf("generating cross-release pairs: %w", err)
	}

	pairs, _, err := ParsePairs(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing cross-release pairs: %w", err)
	}

	return toChunks(pairs, map[string]string{
		MetaSource:  CrossReleaseSource,
		MetaDocType: tabular.DocTypeComparison,
		MetaRelease: CrossReleaseRelease,
	}), nil
}

const systemInstruction = "You are a QA analyst assistant. You generate factual question/answer pairs grounded strictly in the data you are given. Respond with a JSON array of objects, each with \"question\" and \"answer\" string fields. Return ONLY the JSON array, no markdown or extra text."

func buildTablePrompt(table *tabular.Table) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Below is QA data from file %q (release %s, document type %s).\n\n", table.Source, table.Release, table.DocType)
	b.WriteString(table.Markdown(markdownRowLimit))
	b.WriteString("\nComputed statistics:\n")
	b.WriteString(table.Stats().Render())
	b.WriteString("\nGenerate 20-30 question/answer pairs covering this data. Include questions about:\n")

	switch table.DocType {
	case tabular.DocTypeDefect:
		b.WriteString(`- total defect counts, and counts broken down by severity, priority, status, and component
- which components have the most defects
- open versus closed defect ratios
- notable individual defects (highest severity, oldest open)
`)
	case tabular.DocTypeTestExecution:
		b.WriteString(`- total test counts, and pass/fail/blocked/skipped breakdowns
- pass rate overall and per test suite or component
- which areas have the most failures
- execution coverage gaps
`)
	case tabular.DocTypeMetadata:
		b.WriteString(`- release dates, milestones, and scope described in the data
- environments, builds, and configurations listed
- ownership and team assignments
`)
	default:
		b.WriteString("- counts, breakdowns by each categorical column, and notable values\n")
	}

	b.WriteString("\nEvery answer must be directly supported by the data above. Do not invent values.")

	return b.String()
}

func buildComparisonPrompt(tables []*tabular.Table) string {
	var b strings.Builder

	b.WriteString("Below are summary statistics for QA data across releases.\n\n")

	// Group by release so the model sees releases side by side.
	byRelease := make(map[string][]*tabular.Table)
	var order []string
	for _, t := range tables {
		if _, seen := byRelease[t.Release]; !seen {
			order = append(order, t.Release)
		}
		byRelease[t.Release] = append(byRelease[t.Release], t)
	}

	for _, release := range order {
		fmt.Fprintf(&b, "## Release %s\n\n", release)
		for _, t := range byRelease[release] {
			b.WriteString(t.Stats().Render())
			b.WriteString("\n")
		}
	}

	b.WriteString(`Generate 20-30 question/answer pairs comparing these releases. Include questions about:
- how defect counts and severities changed between releases
- how test pass rates changed between releases
- which release had the best and worst quality indicators
- trends across all releases

Every answer must be directly supported by the statistics above. Do not invent values.`)

	return b.String()
}
