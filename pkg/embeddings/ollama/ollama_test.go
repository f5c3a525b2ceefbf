package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/releaselens/releaselens/pkg/embeddings/ollama"
	"github.com/releaselens/releaselens/pkg/vector"
)

var _ = Describe("Embedder", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		requests []map[string]any
		respond  func(w http.ResponseWriter)
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests = nil
		respond = func(w http.ResponseWriter) {
			json.NewEncoder(w).Encode(map[string]any{
				"embeddings": [][]float32{{0.1, 0.2, 0.3}},
			})
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer GinkgoRecover()
			Expect(r.Method).To(Equal("POST"))
			Expect(r.URL.Path).To(Equal("/api/embed"))

			var body map[string]any
			Expect(json.NewDecoder(r.Body).Decode(&body)).To(Succeed())
			requests = append(requests, body)

			respond(w)
		}))
		DeferCleanup(server.Close)
	})

	newEmbedder := func(model string) *ollama.Embedder {
		e, err := ollama.NewEmbedder(ollama.EmbedderConfig{BaseURL: server.URL, Model: model})
		Expect(err).NotTo(HaveOccurred())
		return e
	}

	Describe("Embed", func() {
		It("sends the text as input and returns the first embedding", func() {
			e := newEmbedder("all-minilm")

			emb, err := e.Embed(ctx, "how many defects?")
			Expect(err).NotTo(HaveOccurred())
			Expect(emb).To(Equal([]float32{0.1, 0.2, 0.3}))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0]["model"]).To(Equal("all-minilm"))
			Expect(requests[0]["input"]).To(Equal("how many defects?"))
		})

		It("defaults the model when none is configured", func() {
			e := newEmbedder("")

			_, err := e.Embed(ctx, "q")
			Expect(err).NotTo(HaveOccurred())
			Expect(requests[0]["model"]).To(Equal(ollama.DefaultEmbeddingModel))
		})

		It("wraps non-200 responses in ErrEmbedding", func() {
			respond = func(w http.ResponseWriter) {
				http.Error(w, "model not found", http.StatusNotFound)
			}
			e := newEmbedder("missing")

			_, err := e.Embed(ctx, "q")
			Expect(err).To(MatchError(vector.ErrEmbedding))
		})
	})

	Describe("EmbedBatch", func() {
		It("sends all texts in one request and preserves order", func() {
			respond = func(w http.ResponseWriter) {
				json.NewEncoder(w).Encode(map[string]any{
					"embeddings": [][]float32{{1, 0}, {0, 1}},
				})
			}
			e := newEmbedder("all-minilm")

			out, err := e.EmbedBatch(ctx, []string{"first", "second"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(Equal([][]float32{{1, 0}, {0, 1}}))

			Expect(requests).To(HaveLen(1))
			Expect(requests[0]["input"]).To(Equal([]any{"first", "second"}))
		})

		It("rejects a count mismatch as ErrEmbedding", func() {
			e := newEmbedder("all-minilm")

			_, err := e.EmbedBatch(ctx, []string{"first", "second"})
			Expect(err).To(MatchError(vector.ErrEmbedding))
		})

		It("returns nothing for an empty batch without calling the API", func() {
			e := newEmbedder("all-minilm")

			out, err := e.EmbedBatch(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(out).To(BeNil())
			Expect(requests).To(BeEmpty())
		})
	})
})
