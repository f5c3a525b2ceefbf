package watch

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/ingest"
	testutils "github.com/releaselens/releaselens/pkg/utils/test"
)

var _ = Describe("relevant", func() {
	DescribeTable("event filtering",
		func(name string, op fsnotify.Op, want bool) {
			Expect(relevant(fsnotify.Event{Name: name, Op: op})).To(Equal(want))
		},
		Entry("xlsx write", "/docs/R24.1_Defects.xlsx", fsnotify.Write, true),
		Entry("csv create", "/docs/R24.1_Meta.csv", fsnotify.Create, true),
		Entry("csv remove", "/docs/R24.1_Meta.csv", fsnotify.Remove, true),
		Entry("xlsx rename", "/docs/R24.1_Defects.xlsx", fsnotify.Rename, true),
		Entry("uppercase extension", "/docs/R24.1_Defects.CSV", fsnotify.Write, true),
		Entry("chmod only", "/docs/R24.1_Defects.xlsx", fsnotify.Chmod, false),
		Entry("irrelevant file type", "/docs/notes.txt", fsnotify.Write, false),
		Entry("editor temp file", "/docs/.R24.1_Defects.xlsx.swp", fsnotify.Write, false),
	)
})

var _ = Describe("Watcher", func() {
	var (
		dir    string
		runner *ingest.Runner
		ix     *index.Index
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()

		ix = index.New(testutils.NewMockEmbedder(), testutils.NewMockVectorDriver(), zap.NewNop())

		pairs := `[{"question": "Q", "answer": "A"}]`
		caller := testutils.NewScriptedCaller(pairs, pairs, pairs, pairs, pairs, pairs)

		var err error
		runner, err = ingest.NewRunner(ingest.Config{DocsDir: dir}, ix, caller.Call,
			testutils.NewCapturePublisher(), zap.NewNop())
		Expect(err).ToNot(HaveOccurred())
	})

	It("defaults the debounce interval", func() {
		w := New(dir, 0, runner, zap.NewNop())
		Expect(w.debounce).To(Equal(DefaultDebounce))
	})

	It("triggers an ingestion run after a debounced file change", func() {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		w := New(dir, 20*time.Millisecond, runner, zap.NewNop())

		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()

		// give the watcher time to register before writing
		time.Sleep(100 * time.Millisecond)

		path := filepath.Join(dir, "R24.1_Defects.csv")
		Expect(os.WriteFile(path, []byte("ID\nD-1\n"), 0o644)).To(Succeed())

		Eventually(func() int {
			count, _ := ix.Count(ctx)
			return count
		}, 5*time.Second, 50*time.Millisecond).Should(BeNumerically(">", 0))

		cancel()
		Eventually(done).Should(Receive(MatchError(context.Canceled)))
	})

	It("fails for a missing directory", func() {
		w := New(filepath.Join(dir, "missing"), time.Millisecond, runner, zap.NewNop())
		Expect(w.Run(context.Background())).To(HaveOccurred())
	})
})
