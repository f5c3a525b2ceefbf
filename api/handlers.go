package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/answer"
	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/index"
	"github.com/releaselens/releaselens/pkg/ingest"
)

// ErrorResponse is the JSON body for error statuses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// QueryRequest is the body of POST /query.
type QueryRequest struct {
	Question string `json:"question"`
	Release  string `json:"release,omitempty"`
	DocType  string `json:"doc_type,omitempty"`
	K        int    `json:"k,omitempty"`
}

// QuerySource is one retrieved chunk returned alongside the answer.
type QuerySource struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// QueryResponse is the body of a successful POST /query.
type QueryResponse struct {
	Answer  string        `json:"answer"`
	Sources []QuerySource `json:"sources"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	ChromaReady   bool   `json:"chroma_ready"`
	TotalDocs     int    `json:"total_docs"`
	IngestRunning bool   `json:"ingest_running"`
	LLMModel      string `json:"llm_model"`
}

// IngestResponse is the body of a successful POST /ingest.
type IngestResponse struct {
	Status string `json:"status"`
	RunID  string `json:"run_id"`
}

// DebugChunk is one retrieved chunk in the GET /debug response.
type DebugChunk struct {
	Rank     int               `json:"rank"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata"`
	Content  string            `json:"content"`
}

// DebugResponse is the body of GET /debug.
type DebugResponse struct {
	TotalDocsInDB int          `json:"total_docs_in_db"`
	Query         string       `json:"query"`
	Retrieved     []DebugChunk `json:"retrieved"`
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// filters builds the conjunctive metadata filter map from optional labels.
func filters(release, docType string) map[string]string {
	f := make(map[string]string, 2)
	if release != "" {
		f[chunkgen.MetaRelease] = release
	}
	if docType != "" {
		f[chunkgen.MetaDocType] = docType
	}
	return f
}

// handleQuery handles POST /query: retrieval plus grounded answer synthesis.
func (s *Server) handleQuery(c *fiber.Ctx) error {
	var req QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "question is required"})
	}

	if s.runner.Running() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "ingestion in progress, try again shortly"})
	}

	total, err := s.index.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "index not ready"})
	}
	if total == 0 {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "index is empty, run ingestion first"})
	}

	results, err := s.index.Search(c.Context(), req.Question, req.K, filters(req.Release, req.DocType))
	if err != nil {
		s.logger.Error("query retrieval failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "retrieval failed: " + err.Error()})
	}

	// Zero retrieved sources is not an error; synthesis runs with the
	// no-context sentence and says so.
	response, err := s.synthesizer.Answer(c.Context(), req.Question, results)
	if err != nil {
		s.logger.Error("answer synthesis failed", zap.Error(err))
		if errors.Is(err, answer.ErrGeneration) {
			return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: err.Error()})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	sources := make([]QuerySource, len(results))
	for i, r := range results {
		sources[i] = QuerySource{Content: r.Text, Metadata: r.Metadata}
	}

	return c.JSON(QueryResponse{
		Answer:  response,
		Sources: sources,
	})
}

// handleHealth handles GET /health. Field names are pinned by existing
// clients of the original deployment.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := HealthResponse{
		Status:        "ok",
		IngestRunning: s.runner.Running(),
		LLMModel:      s.config.LLMModel,
	}

	total, err := s.index.Count(c.Context())
	if err != nil {
		resp.Status = "degraded"
	} else {
		resp.ChromaReady = true
		resp.TotalDocs = total
	}

	return c.JSON(resp)
}

// handleIngest handles POST /ingest: starts a background ingestion run.
func (s *Server) handleIngest(c *fiber.Ctx) error {
	runID, err := s.runner.Start(s.baseCtx)
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			return c.Status(fiber.StatusConflict).JSON(ErrorResponse{Error: "ingestion already running"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}

	return c.Status(fiber.StatusAccepted).JSON(IngestResponse{
		Status: "started",
		RunID:  runID,
	})
}

// handleDebug handles GET /debug: retrieval-only inspection of the index.
// Query parameters: q (required), release, doc_type, k.
func (s *Server) handleDebug(c *fiber.Ctx) error {
	query := c.Query("q")
	if query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "q parameter is required"})
	}

	topK := index.DefaultTopK
	if kStr := c.Query("k"); kStr != "" {
		parsed, err := strconv.Atoi(kStr)
		if err != nil || parsed <= 0 {
			return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "k must be a positive integer"})
		}
		topK = parsed
	}

	total, err := s.index.Count(c.Context())
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{Error: "index not ready"})
	}

	results, err := s.index.Search(c.Context(), query, topK, filters(c.Query("release"), c.Query("doc_type")))
	if err != nil {
		s.logger.Error("debug retrieval failed", zap.Error(err))
		return c.Status(fiber.StatusBadGateway).JSON(ErrorResponse{Error: "retrieval failed: " + err.Error()})
	}

	retrieved := make([]DebugChunk, len(results))
	for i, r := range results {
		retrieved[i] = DebugChunk{
			Rank:     i + 1,
			Score:    r.Score,
			Metadata: r.Metadata,
			Content:  r.Text,
		}
	}

	return c.JSON(DebugResponse{
		TotalDocsInDB: total,
		Query:         query,
		Retrieved:     retrieved,
	})
}
