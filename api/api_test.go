package api_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/api"
	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

func doJSON(server *api.Server, method, path string, body any) (*http.Response, []byte) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		Expect(err).NotTo(HaveOccurred())
		reader = bytes.NewReader(b)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := server.App().Test(req, -1)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())
	return resp, data
}

var _ = Describe("Server", func() {
	var (
		mem    *testutils.MockMemoryDriver
		server *api.Server
		cfg    api.Config
	)

	newServer := func() {
		var err error
		server, err = api.NewServer(cfg, mem, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
	}

	BeforeEach(func() {
		mem = testutils.NewMockMemoryDriver()
		cfg = api.Config{ListenAddr: ":0"}
		newServer()
	})

	It("requires a memory driver", func() {
		_, err := api.NewServer(cfg, nil, logger.Nop())
		Expect(err).To(MatchError(ContainSubstring("memory driver is required")))
	})

	It("answers ping", func() {
		resp, body := doJSON(server, http.MethodGet, "/ping", nil)
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(string(body)).To(Equal(`"pong"`))
	})

	Describe("POST /v1/classify", func() {
		It("classifies text", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/classify", api.ClassifyRequest{Text: "Fixed login bug in auth.ts"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out classify.Classification
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Type).To(Equal(record.BugFix))
			Expect(out.KeyElements.Files).To(ContainElement("auth.ts"))
		})

		It("rejects empty text", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/classify", api.ClassifyRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("text is required"))
		})
	})

	Describe("POST /v1/evaluate", func() {
		It("evaluates with an explicit type", func() {
			t := record.BugFix
			resp, body := doJSON(server, http.MethodPost, "/v1/evaluate", api.EvaluateRequest{Text: "Fixed login bug in auth.ts", ActivityType: &t})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.EvaluateResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ActivityType).To(Equal(record.BugFix))
			Expect(out.Value.TotalScore).To(Equal(64))
		})

		It("classifies when no type is given", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/evaluate", api.EvaluateRequest{Text: "Updated README with installation docs"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.EvaluateResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.ActivityType).To(Equal(record.Documentation))
		})
	})

	Describe("POST /v1/capture", func() {
		It("captures synchronously and tags the source", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/capture", memory.Activity{Content: "Fixed login bug"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out memory.CaptureOutcome
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Recorded).To(BeTrue())
			Expect(out.RecordID).To(Equal("mock-record"))
			Expect(mem.CapturedActivities()[0].Source).To(Equal("api"))
		})

		It("rejects empty content", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/capture", memory.Activity{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when the driver fails", func() {
			mem.FailCapture = true
			resp, _ := doJSON(server, http.MethodPost, "/v1/capture", memory.Activity{Content: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("refuses async capture without a pool", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/capture?async=true", memory.Activity{Content: "x"})
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		It("queues async captures on the pool", func() {
			pool, err := worker.NewPool(&worker.Config{Memory: mem, NumWorkers: 1, QueueSize: 4})
			Expect(err).NotTo(HaveOccurred())
			DeferCleanup(pool.Close)
			cfg.Pool = pool
			newServer()

			resp, body := doJSON(server, http.MethodPost, "/v1/capture?async=true", memory.Activity{Content: "Fixed login bug"})
			Expect(resp.StatusCode).To(Equal(http.StatusAccepted))
			Expect(string(body)).To(ContainSubstring(`"queued":true`))

			Eventually(mem.CapturedActivities).WithTimeout(2 * time.Second).Should(HaveLen(1))
		})
	})

	Describe("pending confirmations", func() {
		It("lists pending items", func() {
			mem.PendingItems = []capture.Pending{{ID: "p1", Confidence: 0.6}}
			resp, body := doJSON(server, http.MethodGet, "/v1/pending", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out []capture.Pending
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out).To(HaveLen(1))
			Expect(out[0].ID).To(Equal("p1"))
		})

		It("resolves with a valid choice", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/pending/p1", api.ResolveRequest{Choice: "yes"})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out memory.CaptureOutcome
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.PendingID).To(Equal("p1"))
		})

		It("rejects an invalid choice", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/pending/p1", api.ResolveRequest{Choice: "perhaps"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("invalid choice"))
		})
	})

	Describe("GET /v1/search", func() {
		BeforeEach(func() {
			mem.RecallResults = []retrieval.Result{{
				Record: record.Record{ID: "r1", Type: record.BugFix, Content: "Fixed login bug"},
				Score:  0.9,
				Scored: true,
			}}
		})

		It("returns results", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/search?query=login&limit=5&tags=auth,bug", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.SearchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Query).To(Equal("login"))
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].Record.ID).To(Equal("r1"))
		})

		It("requires a query", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/search", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(string(body)).To(ContainSubstring("query parameter is required"))
		})

		It("validates the limit", func() {
			resp, _ := doJSON(server, http.MethodGet, "/v1/search?query=x&limit=-1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})

		It("returns 500 when recall fails", func() {
			mem.FailRecall = true
			resp, _ := doJSON(server, http.MethodGet, "/v1/search?query=x", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
		})

		It("returns an empty list rather than null", func() {
			mem.RecallResults = nil
			_, body := doJSON(server, http.MethodGet, "/v1/search?query=x", nil)
			Expect(string(body)).To(ContainSubstring(`"results":[]`))
		})
	})

	Describe("POST /v1/search/batch", func() {
		It("lines results up with queries and reports per-query errors", func() {
			resp, body := doJSON(server, http.MethodPost, "/v1/search/batch", api.BatchSearchRequest{
				Queries: []memory.Query{{Text: "login"}, {Text: ""}},
			})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out api.BatchSearchResponse
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Results).To(HaveLen(2))
			Expect(out.Results[0].Error).To(BeEmpty())
			Expect(out.Results[1].Error).To(ContainSubstring("query is required"))
		})

		It("rejects an empty batch", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/search/batch", api.BatchSearchRequest{})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("records", func() {
		BeforeEach(func() {
			mem.Records["r1"] = &record.Record{
				ID:       "r1",
				Content:  "Fixed login bug",
				Metadata: record.Metadata{Quality: &record.QualityMetrics{Overall: 0.7}},
			}
		})

		It("returns a record", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/records/r1", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"id":"r1"`))
		})

		It("returns 404 for unknown records", func() {
			resp, _ := doJSON(server, http.MethodGet, "/v1/records/nope", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})

		It("returns quality metrics", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/records/r1/quality", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var q record.QualityMetrics
			Expect(json.Unmarshal(body, &q)).To(Succeed())
			Expect(q.Overall).To(Equal(0.7))
		})

		It("accepts a rating", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/records/r1/feedback", api.FeedbackRequest{Kind: memory.FeedbackRating, Rating: 0.9})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(*mem.Records["r1"].Metadata.UserRating).To(Equal(0.9))
		})

		It("rejects an unknown feedback kind", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/records/r1/feedback", api.FeedbackRequest{Kind: "like"})
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("POST /v1/ranges", func() {
		It("is unavailable without an extractor", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/ranges", api.RangesRequest{Path: "main.go"})
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		It("extracts ranges", func() {
			dir, err := filepath.EvalSymlinks(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			path := filepath.Join(dir, "main.go")

			provider := testutils.NewMockDiffProvider()
			provider.Diffs[path] = "@@ -1,1 +1,3 @@\n a\n+b\n+c\n"
			ex, err := diffrange.New(diffrange.Config{Provider: provider})
			Expect(err).NotTo(HaveOccurred())
			cfg.Ranges = ex
			newServer()

			resp, body := doJSON(server, http.MethodPost, "/v1/ranges", api.RangesRequest{Path: path})
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var out diffrange.Result
			Expect(json.Unmarshal(body, &out)).To(Succeed())
			Expect(out.Ranges).To(Equal([]record.LineRange{{Start: 2, End: 3}}))
			Expect(out.ChangeType).To(Equal(diffrange.ChangeModified))
		})
	})

	Describe("status and sessions", func() {
		It("reports the project status", func() {
			resp, body := doJSON(server, http.MethodGet, "/v1/status?dir=/tmp/project", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(string(body)).To(ContainSubstring(`"root_path":"/tmp/project"`))
		})

		It("returns 404 when there is no active session", func() {
			resp, _ := doJSON(server, http.MethodPost, "/v1/projects/p1/end-session", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	Describe("cache endpoints", func() {
		It("are unavailable without an engine", func() {
			resp, _ := doJSON(server, http.MethodGet, "/v1/cache/stats", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusServiceUnavailable))
		})

		It("report and clear engine caches", func() {
			engine, err := retrieval.NewEngine(retrieval.Config{Embedder: testutils.NewHashEmbedder(), EmbeddingVersion: "hashing/64"})
			Expect(err).NotTo(HaveOccurred())
			cfg.Retrieval = engine
			newServer()

			resp, body := doJSON(server, http.MethodGet, "/v1/cache/stats", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))

			var stats retrieval.CacheStats
			Expect(json.Unmarshal(body, &stats)).To(Succeed())
			Expect(stats.Results.Capacity).To(BeNumerically(">", 0))

			resp, _ = doJSON(server, http.MethodDelete, "/v1/cache", nil)
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
		})
	})

	It("mounts an MCP handler at /mcp", func() {
		cfg.MCP = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})
		newServer()

		resp, _ := doJSON(server, http.MethodPost, "/mcp", map[string]string{})
		Expect(resp.StatusCode).To(Equal(http.StatusTeapot))
	})
})
