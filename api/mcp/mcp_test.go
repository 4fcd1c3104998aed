package mcp

import (
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/classify"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/logger"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

func textOf(result *mcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*mcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx    context.Context
		mem    *testutils.MockMemoryDriver
		server *Server
	)

	BeforeEach(func() {
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()

		var err error
		server, err = NewServer(Config{Memory: mem, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewServer", func() {
		It("returns an error when the memory driver is nil", func() {
			_, err := NewServer(Config{Logger: logger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("memory driver is required"))
		})

		It("allows a noop server without a memory driver", func() {
			s, err := NewServer(Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Handler()).NotTo(BeNil())
		})

		It("defaults the classifier", func() {
			Expect(server.classifier).NotTo(BeNil())
		})
	})

	Describe("classify", func() {
		It("classifies activity text", func() {
			result, out, err := server.handleClassify(ctx, nil, ClassifyInput{Text: "Fixed login bug in auth.ts"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Type).To(Equal(record.BugFix))
			Expect(out.KeyElements.Files).To(ContainElement("auth.ts"))

			var decoded classify.Classification
			Expect(json.Unmarshal([]byte(textOf(result)), &decoded)).To(Succeed())
			Expect(decoded.Type).To(Equal(record.BugFix))
		})

		It("rejects empty text", func() {
			result, _, err := server.handleClassify(ctx, nil, ClassifyInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(Equal("text is required"))
		})

		It("rejects unknown history types", func() {
			result, _, err := server.handleClassify(ctx, nil, ClassifyInput{Text: "x", History: []string{"nope"}})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("evaluate_value", func() {
		It("uses the given activity type", func() {
			result, out, err := server.handleEvaluate(ctx, nil, EvaluateInput{
				Text:         "Fixed login bug in auth.ts",
				ActivityType: "bug_fix",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.ActivityType).To(Equal(record.BugFix))
			Expect(out.Value.TotalScore).To(BeNumerically("==", 64))
		})

		It("classifies the text when no type is given", func() {
			_, out, err := server.handleEvaluate(ctx, nil, EvaluateInput{Text: "Updated README with installation docs"})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.ActivityType).To(Equal(record.Documentation))
		})

		It("rejects an unknown activity type", func() {
			result, _, err := server.handleEvaluate(ctx, nil, EvaluateInput{Text: "x", ActivityType: "nope"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("capture", func() {
		It("captures activity tagged with the mcp source", func() {
			result, out, err := server.handleCapture(ctx, nil, CaptureInput{Content: "Fixed login bug", Dir: "/tmp/p"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Recorded).To(BeTrue())

			captured := mem.CapturedActivities()
			Expect(captured).To(HaveLen(1))
			Expect(captured[0].Source).To(Equal(Source))
			Expect(captured[0].Dir).To(Equal("/tmp/p"))
		})

		It("reports capture errors as tool errors", func() {
			result, _, err := server.handleCapture(ctx, nil, CaptureInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Capture failed"))
		})
	})

	Describe("resolve_confirmation", func() {
		It("resolves a pending id", func() {
			result, out, err := server.handleResolve(ctx, nil, ResolveInput{PendingID: "p1", Choice: "yes"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.PendingID).To(Equal("p1"))
			Expect(out.State).To(Equal(capture.StateRecorded))
		})

		It("rejects an unknown choice", func() {
			result, _, err := server.handleResolve(ctx, nil, ResolveInput{PendingID: "p1", Choice: "perhaps"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("score_quality", func() {
		It("returns the record quality", func() {
			rec := testutils.NewTestRecord("r1", "s1", "p1", record.BugFix, "Fixed login bug")
			rec.Metadata.Quality = &record.QualityMetrics{Overall: 0.7}
			mem.Records["r1"] = rec

			result, out, err := server.handleQuality(ctx, nil, QualityInput{RecordID: "r1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Overall).To(BeNumerically("==", 0.7))
		})

		It("reports unknown records", func() {
			result, _, err := server.handleQuality(ctx, nil, QualityInput{RecordID: "missing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})

		It("requires a record id", func() {
			result, _, err := server.handleQuality(ctx, nil, QualityInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
		})
	})

	Describe("extract_diff_ranges", func() {
		It("extracts changed ranges", func() {
			dir, err := filepath.EvalSymlinks(GinkgoT().TempDir())
			Expect(err).NotTo(HaveOccurred())
			path := filepath.Join(dir, "main.go")

			provider := testutils.NewMockDiffProvider()
			provider.Diffs[path] = "@@ -1,1 +1,3 @@\n a\n+b\n+c\n"
			ex, err := diffrange.New(diffrange.Config{Provider: provider})
			Expect(err).NotTo(HaveOccurred())

			server, err = NewServer(Config{Memory: mem, Ranges: ex})
			Expect(err).NotTo(HaveOccurred())

			result, out, err := server.handleRanges(ctx, nil, RangesInput{Path: path})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Ranges).To(Equal([]record.LineRange{{Start: 2, End: 3}}))
			Expect(out.ChangeType).To(Equal(diffrange.ChangeModified))
		})
	})

	Describe("hybrid_search", func() {
		It("returns trimmed results", func() {
			rec := testutils.NewTestRecord("r1", "s1", "p1", record.BugFix, "Fixed login bug")
			rec.FilePath = "auth.ts"
			rec.QualityScore = 0.8
			mem.RecallResults = []retrieval.Result{{Record: *rec, Score: 0.9}}

			result, out, err := server.handleSearch(ctx, nil, SearchInput{Query: "login"})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeFalse())
			Expect(out.Count).To(Equal(1))
			Expect(out.Results[0].RecordID).To(Equal("r1"))
			Expect(out.Results[0].FilePath).To(Equal("auth.ts"))
			Expect(out.Results[0].Quality).To(BeNumerically("==", 0.8))

			var decoded SearchOutput
			Expect(json.Unmarshal([]byte(textOf(result)), &decoded)).To(Succeed())
			Expect(decoded.Query).To(Equal("login"))
		})

		It("returns an empty list rather than null", func() {
			result, _, err := server.handleSearch(ctx, nil, SearchInput{Query: "nothing"})
			Expect(err).NotTo(HaveOccurred())
			Expect(textOf(result)).To(ContainSubstring(`"results":[]`))
		})

		It("reports recall errors", func() {
			result, _, err := server.handleSearch(ctx, nil, SearchInput{})
			Expect(err).NotTo(HaveOccurred())
			Expect(result.IsError).To(BeTrue())
			Expect(textOf(result)).To(ContainSubstring("Search failed"))
		})
	})
})
