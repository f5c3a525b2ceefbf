package chunkgen_test

import (
	"context"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/tabular"
	testutils "github.com/releaselens/releaselens/pkg/utils/test"
)

var _ = Describe("ParsePairs", func() {
	It("parses a bare JSON array", func() {
		pairs, dropped, err := chunkgen.ParsePairs(
			`[{"question": "How many defects?", "answer": "12"}]`)
		Expect(err).ToNot(HaveOccurred())
		Expect(dropped).To(BeZero())
		Expect(pairs).To(Equal([]chunkgen.Pair{
			{Question: "How many defects?", Answer: "12"},
		}))
	})

	It("extracts the array from surrounding prose and code fences", func() {
		raw := "Here are the pairs:\n```json\n" +
			`[{"question": "Q1", "answer": "A1"}, {"question": "Q2", "answer": "A2"}]` +
			"\n```\nLet me know if you need more."

		pairs, dropped, err := chunkgen.ParsePairs(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(dropped).To(BeZero())
		Expect(pairs).To(HaveLen(2))
		Expect(pairs[1].Question).To(Equal("Q2"))
	})

	It("drops pairs missing a question or answer and counts them", func() {
		raw := `[
			{"question": "Q1", "answer": "A1"},
			{"question": "", "answer": "A2"},
			{"question": "Q3", "answer": "   "}
		]`

		pairs, dropped, err := chunkgen.ParsePairs(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(dropped).To(Equal(2))
		Expect(pairs).To(HaveLen(1))
	})

	It("trims whitespace from questions and answers", func() {
		pairs, _, err := chunkgen.ParsePairs(
			`[{"question": "  Q1  ", "answer": "\nA1\n"}]`)
		Expect(err).ToNot(HaveOccurred())
		Expect(pairs[0]).To(Equal(chunkgen.Pair{Question: "Q1", Answer: "A1"}))
	})

	It("returns ErrParse when no array can be extracted", func() {
		_, _, err := chunkgen.ParsePairs("I could not generate any pairs, sorry.")
		Expect(err).To(MatchError(chunkgen.ErrParse))
	})

	It("returns ErrParse for a malformed array", func() {
		_, _, err := chunkgen.ParsePairs(`[{"question": "Q1", "answer": ]`)
		Expect(err).To(MatchError(chunkgen.ErrParse))
	})
})

var _ = Describe("GenerateTable", func() {
	var (
		ctx   context.Context
		table *tabular.Table
	)

	BeforeEach(func() {
		ctx = context.Background()
		table = &tabular.Table{
			Source:  "R24.1_Defects.csv",
			Release: "R24.1",
			DocType: tabular.DocTypeDefect,
			Columns: []string{"ID", "Severity"},
			Rows:    [][]string{{"D-1", "Critical"}, {"D-2", "Minor"}},
		}
	})

	It("produces chunks with per-table metadata and the Q/A text form", func() {
		caller := testutils.NewScriptedCaller(
			`[{"question": "How many defects are in R24.1?", "answer": "2"},
			  {"question": "How many critical defects?", "answer": "1"}]`)

		chunks, err := chunkgen.GenerateTable(ctx, caller.Call, table)
		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(HaveLen(2))

		Expect(chunks[0].Text).To(Equal("Q: How many defects are in R24.1?\nA: 2"))
		Expect(chunks[0].Metadata).To(Equal(map[string]string{
			chunkgen.MetaSource:   "R24.1_Defects.csv",
			chunkgen.MetaDocType:  tabular.DocTypeDefect,
			chunkgen.MetaRelease:  "R24.1",
			chunkgen.MetaQuestion: "How many defects are in R24.1?",
		}))
	})

	It("includes the table rendering and statistics in the prompt", func() {
		caller := testutils.NewScriptedCaller(`[{"question": "Q", "answer": "A"}]`)

		_, err := chunkgen.GenerateTable(ctx, caller.Call, table)
		Expect(err).ToNot(HaveOccurred())

		Expect(caller.Prompts).To(HaveLen(1))
		Expect(caller.Prompts[0]).To(ContainSubstring("| D-1 | Critical |"))
		Expect(caller.Prompts[0]).To(ContainSubstring("release R24.1"))
		Expect(caller.Prompts[0]).To(ContainSubstring("distinct values"))
		Expect(caller.Prompts[0]).To(ContainSubstring("severity"))
	})

	It("propagates call failures", func() {
		caller := testutils.NewScriptedCaller()
		caller.Err = context.DeadlineExceeded

		_, err := chunkgen.GenerateTable(ctx, caller.Call, table)
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	It("wraps unparseable responses in ErrParse", func() {
		caller := testutils.NewScriptedCaller("no json here")

		_, err := chunkgen.GenerateTable(ctx, caller.Call, table)
		Expect(err).To(MatchError(chunkgen.ErrParse))
	})
})

var _ = Describe("GenerateComparison", func() {
	var (
		ctx    context.Context
		tables []*tabular.Table
	)

	BeforeEach(func() {
		ctx = context.Background()
		tables = []*tabular.Table{
			{
				Source: "R24.1_Defects.csv", Release: "R24.1", DocType: tabular.DocTypeDefect,
				Columns: []string{"ID"}, Rows: [][]string{{"D-1"}},
			},
			{
				Source: "R25.0_Defects.csv", Release: "R25.0", DocType: tabular.DocTypeDefect,
				Columns: []string{"ID"}, Rows: [][]string{{"D-2"}, {"D-3"}},
			},
		}
	})

	It("produces chunks with the fixed cross-release metadata", func() {
		caller := testutils.NewScriptedCaller(
			`[{"question": "Which release has more defects?", "answer": "R25.0 with 2 against 1 in R24.1."}]`)

		chunks, err := chunkgen.GenerateComparison(ctx, caller.Call, tables)
		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(HaveLen(1))

		Expect(chunks[0].Metadata[chunkgen.MetaSource]).To(Equal(chunkgen.CrossReleaseSource))
		Expect(chunks[0].Metadata[chunkgen.MetaDocType]).To(Equal(tabular.DocTypeComparison))
		Expect(chunks[0].Metadata[chunkgen.MetaRelease]).To(Equal(chunkgen.CrossReleaseRelease))
	})

	It("groups statistics by release in first-seen order", func() {
		caller := testutils.NewScriptedCaller(`[{"question": "Q", "answer": "A"}]`)

		_, err := chunkgen.GenerateComparison(ctx, caller.Call, tables)
		Expect(err).ToNot(HaveOccurred())

		prompt := caller.Prompts[0]
		first := "## Release R24.1"
		second := "## Release R25.0"
		Expect(prompt).To(ContainSubstring(first))
		Expect(prompt).To(ContainSubstring(second))
		Expect(strings.Index(prompt, first)).To(BeNumerically("<", strings.Index(prompt, second)))
	})

	It("returns no chunks and makes no call for an empty table set", func() {
		caller := testutils.NewScriptedCaller()

		chunks, err := chunkgen.GenerateComparison(ctx, caller.Call, nil)
		Expect(err).ToNot(HaveOccurred())
		Expect(chunks).To(BeEmpty())
		Expect(caller.Prompts).To(BeEmpty())
	})
})
