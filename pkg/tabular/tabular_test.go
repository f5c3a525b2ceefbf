package tabular_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/xuri/excelize/v2"

	"github.com/releaselens/releaselens/pkg/tabular"
)

func writeCSV(dir, name, content string) string {
	path := filepath.Join(dir, name)
	Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
	return path
}

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("loads a csv file with the first row as header", func() {
		path := writeCSV(dir, "R24.1_Defects.csv",
			"ID,Severity,Status\nD-1,Critical,Open\nD-2,Minor,Closed\n")

		table, err := tabular.Load(path, "R24.1", tabular.DocTypeDefect)
		Expect(err).ToNot(HaveOccurred())

		Expect(table.Source).To(Equal("R24.1_Defects.csv"))
		Expect(table.Release).To(Equal("R24.1"))
		Expect(table.DocType).To(Equal(tabular.DocTypeDefect))
		Expect(table.Columns).To(Equal([]string{"ID", "Severity", "Status"}))
		Expect(table.Rows).To(HaveLen(2))
		Expect(table.Rows[0]).To(Equal([]string{"D-1", "Critical", "Open"}))
	})

	It("pads ragged rows to the header width", func() {
		path := writeCSV(dir, "R24.1_Defects.csv",
			"ID,Severity,Status\nD-1,Critical\nD-2\n")

		table, err := tabular.Load(path, "R24.1", tabular.DocTypeDefect)
		Expect(err).ToNot(HaveOccurred())

		Expect(table.Rows[0]).To(Equal([]string{"D-1", "Critical", ""}))
		Expect(table.Rows[1]).To(Equal([]string{"D-2", "", ""}))
	})

	It("loads the first sheet of an xlsx workbook", func() {
		path := filepath.Join(dir, "R25.0_TestExecution.xlsx")

		f := excelize.NewFile()
		Expect(f.SetSheetRow("Sheet1", "A1", &[]any{"Case", "Result"})).To(Succeed())
		Expect(f.SetSheetRow("Sheet1", "A2", &[]any{"TC-9", "Pass"})).To(Succeed())
		Expect(f.SaveAs(path)).To(Succeed())

		table, err := tabular.Load(path, "R25.0", tabular.DocTypeTestExecution)
		Expect(err).ToNot(HaveOccurred())

		Expect(table.Columns).To(Equal([]string{"Case", "Result"}))
		Expect(table.Rows).To(Equal([][]string{{"TC-9", "Pass"}}))
	})

	It("rejects unsupported file types", func() {
		path := writeCSV(dir, "notes.txt", "hello")

		_, err := tabular.Load(path, "R24.1", tabular.DocTypeDefect)
		Expect(err).To(MatchError(tabular.ErrLoad))
	})

	It("rejects a file without a header row", func() {
		path := writeCSV(dir, "R24.1_Meta.csv", "")

		_, err := tabular.Load(path, "R24.1", tabular.DocTypeMetadata)
		Expect(err).To(MatchError(tabular.ErrLoad))
	})

	It("wraps missing files in ErrLoad", func() {
		_, err := tabular.Load(filepath.Join(dir, "missing.csv"), "R24.1", tabular.DocTypeDefect)
		Expect(err).To(MatchError(tabular.ErrLoad))
	})
})

var _ = Describe("Classify", func() {
	DescribeTable("recognized names",
		func(filename, wantRelease, wantType string) {
			release, docType, ok := tabular.Classify(filename)
			Expect(ok).To(BeTrue())
			Expect(release).To(Equal(wantRelease))
			Expect(docType).To(Equal(wantType))
		},
		Entry("defects xlsx", "R24.1_Defects.xlsx", "R24.1", tabular.DocTypeDefect),
		Entry("defects with suffix", "R24.1_Defects_final.xlsx", "R24.1", tabular.DocTypeDefect),
		Entry("test execution csv", "R25.0_TestExecution.csv", "R25.0", tabular.DocTypeTestExecution),
		Entry("metadata", "R25.0_Meta.csv", "R25.0", tabular.DocTypeMetadata),
		Entry("metadata long form", "R25.0_Metadata.xlsx", "R25.0", tabular.DocTypeMetadata),
		Entry("uppercase extension", "R24.1_Defects.XLSX", "R24.1", tabular.DocTypeDefect),
	)

	DescribeTable("rejected names",
		func(filename string) {
			_, _, ok := tabular.Classify(filename)
			Expect(ok).To(BeFalse())
		},
		Entry("wrong extension", "R24.1_Defects.pdf"),
		Entry("no release prefix", "Defects.xlsx"),
		Entry("leading underscore", "_Defects.xlsx"),
		Entry("unknown kind", "R24.1_Summary.xlsx"),
	)
})

var _ = Describe("ScanDir", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("lists recognized files sorted by path and skips the rest", func() {
		writeCSV(dir, "R25.0_Defects.csv", "ID\n")
		writeCSV(dir, "R24.1_Defects.csv", "ID\n")
		writeCSV(dir, "README.md", "not a table")
		Expect(os.Mkdir(filepath.Join(dir, "archive"), 0o755)).To(Succeed())

		files, err := tabular.ScanDir(dir)
		Expect(err).ToNot(HaveOccurred())

		Expect(files).To(HaveLen(2))
		Expect(filepath.Base(files[0].Path)).To(Equal("R24.1_Defects.csv"))
		Expect(filepath.Base(files[1].Path)).To(Equal("R25.0_Defects.csv"))
		Expect(files[0].Release).To(Equal("R24.1"))
		Expect(files[0].DocType).To(Equal(tabular.DocTypeDefect))
	})

	It("wraps unreadable directories in ErrLoad", func() {
		_, err := tabular.ScanDir(filepath.Join(dir, "missing"))
		Expect(err).To(MatchError(tabular.ErrLoad))
	})
})

var _ = Describe("Markdown", func() {
	table := &tabular.Table{
		Source:  "R24.1_Defects.csv",
		Release: "R24.1",
		DocType: tabular.DocTypeDefect,
		Columns: []string{"ID", "Severity"},
		Rows: [][]string{
			{"D-1", "Critical"},
			{"D-2", "Minor"},
			{"D-3", "Minor"},
		},
	}

	It("renders a pipe table with a separator row", func() {
		md := table.Markdown(0)

		Expect(md).To(HavePrefix("| ID | Severity |\n| --- | --- |\n"))
		Expect(md).To(ContainSubstring("| D-1 | Critical |\n"))
		Expect(md).To(ContainSubstring("| D-3 | Minor |\n"))
		Expect(md).ToNot(ContainSubstring("omitted"))
	})

	It("truncates rows and notes how many were dropped", func() {
		md := table.Markdown(1)

		Expect(md).To(ContainSubstring("| D-1 | Critical |\n"))
		Expect(md).ToNot(ContainSubstring("D-2"))
		Expect(md).To(ContainSubstring("(2 more rows omitted)"))
	})
})

var _ = Describe("Stats", func() {
	table := &tabular.Table{
		Source:  "R24.1_Defects.csv",
		Release: "R24.1",
		DocType: tabular.DocTypeDefect,
		Columns: []string{"Severity", "Count"},
		Rows: [][]string{
			{"Minor", "3"},
			{"Critical", "12"},
			{"Minor", "5"},
			{"", "7"},
		},
	}

	It("counts rows and distinct non-empty values", func() {
		stats := table.Stats()

		Expect(stats.RowCount).To(Equal(4))
		Expect(stats.Columns).To(HaveLen(2))

		sev := stats.Columns[0]
		Expect(sev.Name).To(Equal("Severity"))
		Expect(sev.Distinct).To(Equal(2))
		Expect(sev.Numeric).To(BeFalse())
	})

	It("orders top values by count descending, value ascending", func() {
		sev := table.Stats().Columns[0]

		Expect(sev.TopValues).To(Equal([]tabular.ValueCount{
			{Value: "Minor", Count: 2},
			{Value: "Critical", Count: 1},
		}))
	})

	It("reports numeric ranges when every non-empty cell parses", func() {
		count := table.Stats().Columns[1]

		Expect(count.Numeric).To(BeTrue())
		Expect(count.Min).To(Equal(3.0))
		Expect(count.Max).To(Equal(12.0))
	})

	It("renders a compact text summary", func() {
		out := table.Stats().Render()

		Expect(out).To(ContainSubstring("Source: R24.1_Defects.csv (release R24.1, type defect), 4 rows"))
		Expect(out).To(ContainSubstring("- Severity: 2 distinct values; top: Minor(2), Critical(1)"))
		Expect(out).To(ContainSubstring("- Count: 4 distinct values, range 3..12"))
	})
})
