package api_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/api"
	"github.com/releaselens/releaselens/pkg/answer"
	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/ingest"
	testutils "github.com/releaselens/releaselens/pkg/utils/test"
)

var _ = Describe("Server", func() {
	var (
		docsDir  string
		embedder *testutils.MockEmbedder
		driver   *testutils.MockVectorDriver
		ix       *index.Index
		runner   *ingest.Runner
		synth    *answer.Synthesizer
		caller   *testutils.ScriptedCaller
		server   *api.Server
	)

	BeforeEach(func() {
		docsDir = GinkgoT().TempDir()
		embedder = testutils.NewMockEmbedder()
		driver = testutils.NewMockVectorDriver()
		ix = index.New(embedder, driver, zap.NewNop())

		caller = testutils.NewScriptedCaller("Synthesized answer.")
		synth = answer.NewSynthesizer(caller.Call)

		var err error
		runner, err = ingest.NewRunner(ingest.Config{DocsDir: docsDir}, ix, caller.Call,
			testutils.NewCapturePublisher(), zap.NewNop())
		Expect(err).ToNot(HaveOccurred())

		server = api.NewServer(api.Config{ListenAddr: ":0", LLMModel: "llama3.2"}, ix, runner, synth, zap.NewNop())
	})

	seedIndex := func() {
		chunks := []chunkgen.Chunk{
			{
				Text: "Q: how many defects?\nA: 12",
				Metadata: map[string]string{
					chunkgen.MetaSource:   "R24.1_Defects.csv",
					chunkgen.MetaRelease:  "R24.1",
					chunkgen.MetaDocType:  "defect",
					chunkgen.MetaQuestion: "how many defects?",
				},
			},
			{
				Text: "Q: pass rate?\nA: 97%",
				Metadata: map[string]string{
					chunkgen.MetaSource:   "R25.0_TestExecution.csv",
					chunkgen.MetaRelease:  "R25.0",
					chunkgen.MetaDocType:  "test_execution",
					chunkgen.MetaQuestion: "pass rate?",
				},
			},
		}
		Expect(ix.EmbedAndStore(context.Background(), chunks)).To(Succeed())
	}

	get := func(path string) *http.Response {
		req, err := http.NewRequest(http.MethodGet, path, nil)
		Expect(err).ToNot(HaveOccurred())

		resp, err := server.App().Test(req, -1)
		Expect(err).ToNot(HaveOccurred())
		return resp
	}

	post := func(path, body string) *http.Response {
		req, err := http.NewRequest(http.MethodPost, path, strings.NewReader(body))
		Expect(err).ToNot(HaveOccurred())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := server.App().Test(req, -1)
		Expect(err).ToNot(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, out any) {
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(json.Unmarshal(data, out)).To(Succeed())
	}

	Describe("GET /ping", func() {
		It("responds pong", func() {
			resp := get("/ping")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body string
			decode(resp, &body)
			Expect(body).To(Equal("pong"))
		})
	})

	Describe("GET /health", func() {
		It("reports store readiness, document count, and the model", func() {
			seedIndex()

			resp := get("/health")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var health api.HealthResponse
			decode(resp, &health)

			Expect(health.Status).To(Equal("ok"))
			Expect(health.ChromaReady).To(BeTrue())
			Expect(health.TotalDocs).To(Equal(2))
			Expect(health.IngestRunning).To(BeFalse())
			Expect(health.LLMModel).To(Equal("llama3.2"))
		})

		It("uses the pinned wire field names", func() {
			resp := get("/health")

			var raw map[string]any
			decode(resp, &raw)

			Expect(raw).To(HaveKey("status"))
			Expect(raw).To(HaveKey("chroma_ready"))
			Expect(raw).To(HaveKey("total_docs"))
			Expect(raw).To(HaveKey("ingest_running"))
			Expect(raw).To(HaveKey("llm_model"))
		})
	})

	Describe("POST /query", func() {
		It("returns the synthesized answer with its sources", func() {
			seedIndex()

			resp := post("/query", `{"question": "how many defects?"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body api.QueryResponse
			decode(resp, &body)

			Expect(body.Answer).To(Equal("Synthesized answer."))
			Expect(body.Sources).To(HaveLen(2))
			Expect(body.Sources[0].Content).To(HavePrefix("Q: "))
			Expect(body.Sources[0].Metadata).To(HaveKey("release"))
		})

		It("applies release and doc_type filters", func() {
			seedIndex()

			resp := post("/query", `{"question": "q", "release": "R25.0", "doc_type": "test_execution"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body api.QueryResponse
			decode(resp, &body)

			Expect(body.Sources).To(HaveLen(1))
			Expect(body.Sources[0].Metadata["release"]).To(Equal("R25.0"))
		})

		It("rejects a missing question", func() {
			seedIndex()

			resp := post("/query", `{}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects an unparseable body", func() {
			seedIndex()

			resp := post("/query", `{not json`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 503 while the index is empty", func() {
			resp := post("/query", `{"question": "q"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))

			var body api.ErrorResponse
			decode(resp, &body)
			Expect(body.Error).To(ContainSubstring("empty"))
		})

		It("returns 502 when synthesis fails", func() {
			seedIndex()
			caller.Err = context.DeadlineExceeded

			resp := post("/query", `{"question": "q"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("answers even when filters match nothing", func() {
			seedIndex()

			resp := post("/query", `{"question": "q", "release": "R99.9"}`)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body api.QueryResponse
			decode(resp, &body)
			Expect(body.Sources).To(BeEmpty())
			Expect(body.Answer).ToNot(BeEmpty())
		})
	})

	Describe("POST /ingest", func() {
		It("starts a background run and returns its ID", func() {
			Expect(os.WriteFile(filepath.Join(docsDir, "R24.1_Defects.csv"),
				[]byte("ID\nD-1\n"), 0o644)).To(Succeed())

			resp := post("/ingest", "")
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			var body api.IngestResponse
			decode(resp, &body)
			Expect(body.Status).To(Equal("started"))
			Expect(body.RunID).ToNot(BeEmpty())

			Eventually(runner.Running).Should(BeFalse())
		})

		It("returns 409 while a run is in flight", func() {
			blocked := make(chan struct{})
			DeferCleanup(func() { close(blocked) })

			blockingRunner, err := ingest.NewRunner(ingest.Config{DocsDir: docsDir}, ix,
				func(_ context.Context, _, _ string) (string, error) {
					<-blocked
					return "[]", nil
				}, testutils.NewCapturePublisher(), zap.NewNop())
			Expect(err).ToNot(HaveOccurred())

			Expect(os.WriteFile(filepath.Join(docsDir, "R24.1_Defects.csv"),
				[]byte("ID\nD-1\n"), 0o644)).To(Succeed())

			blockedServer := api.NewServer(api.Config{}, ix, blockingRunner, synth, zap.NewNop())

			req, err := http.NewRequest(http.MethodPost, "/ingest", nil)
			Expect(err).ToNot(HaveOccurred())
			resp, err := blockedServer.App().Test(req, -1)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))

			req, err = http.NewRequest(http.MethodPost, "/ingest", nil)
			Expect(err).ToNot(HaveOccurred())
			resp, err = blockedServer.App().Test(req, -1)
			Expect(err).ToNot(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	Describe("GET /debug", func() {
		It("returns ranked chunks without calling the model", func() {
			seedIndex()

			resp := get("/debug?q=how+many+defects%3F")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body api.DebugResponse
			decode(resp, &body)

			Expect(body.TotalDocsInDB).To(Equal(2))
			Expect(body.Query).To(Equal("how many defects?"))
			Expect(body.Retrieved).To(HaveLen(2))
			Expect(body.Retrieved[0].Rank).To(Equal(1))
			Expect(body.Retrieved[0].Content).To(HavePrefix("Q: "))
			Expect(body.Retrieved[0].Metadata).To(HaveKey("source"))

			Expect(caller.Prompts).To(BeEmpty())
		})

		It("honors the k parameter", func() {
			seedIndex()

			resp := get("/debug?q=anything&k=1")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var body api.DebugResponse
			decode(resp, &body)
			Expect(body.Retrieved).To(HaveLen(1))
		})

		It("requires q", func() {
			resp := get("/debug")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("rejects non-positive k", func() {
			resp := get("/debug?q=x&k=0")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

			resp = get("/debug?q=x&k=abc")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})
})
