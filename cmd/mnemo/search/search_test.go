package searchcmder

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("searchCommander", func() {
	var (
		ctx context.Context
		mem *testutils.MockMemoryDriver
		buf *bytes.Buffer
		c   *searchCommander
	)

	BeforeEach(func() {
		cliui.Plain()
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()
		buf = &bytes.Buffer{}
		c = &searchCommander{
			query:     "login bug",
			limit:     5,
			configDir: GinkgoT().TempDir(),
			out:       buf,
		}
		mem.RecallResults = []retrieval.Result{
			{Record: record.Record{
				ID:           "r1",
				Type:         record.BugFix,
				Content:      "Fixed login bug in auth.ts",
				FilePath:     "auth.ts",
				LineRanges:   []record.LineRange{{Start: 10, End: 12}},
				Tags:         []string{"auth"},
				QualityScore: 0.8,
				CreatedAt:    time.Now(),
			}, Score: 0.91},
			{Record: record.Record{ID: "r2", Type: record.Documentation, Content: "Documented login"}, Score: 0.42},
		}
	})

	It("prints ranked results", func() {
		Expect(c.run(ctx, mem)).To(Succeed())
		out := buf.String()
		Expect(out).To(ContainSubstring(`Search Results for: "login bug"`))
		Expect(out).To(ContainSubstring("#1"))
		Expect(out).To(ContainSubstring("score: 0.9100"))
		Expect(out).To(ContainSubstring("auth.ts:10-12"))
		Expect(out).To(ContainSubstring("#2"))
	})

	It("renders full content with --full", func() {
		c.full = true
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Fixed login bug in auth.ts"))
		Expect(buf.String()).To(ContainSubstring("Documented login"))
	})

	It("prints only IDs when quiet", func() {
		c.quiet = true
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(Equal("r1\nr2\n"))
	})

	It("prints JSON", func() {
		c.jsonOut = true
		Expect(c.run(ctx, mem)).To(Succeed())
		var results []retrieval.Result
		Expect(json.Unmarshal(buf.Bytes(), &results)).To(Succeed())
		Expect(results).To(HaveLen(2))
		Expect(results[0].Record.ID).To(Equal("r1"))
	})

	It("reports no results", func() {
		mem.RecallResults = nil
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("No results found."))
	})

	It("remembers the result order for positional feedback", func() {
		Expect(c.run(ctx, mem)).To(Succeed())

		state, err := dotdir.NewManager().LoadRecallState(c.configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).NotTo(BeNil())
		Expect(state.Query).To(Equal("login bug"))
		Expect(state.ProjectID).To(Equal("mock-project"))
		Expect(state.RecordIDs).To(Equal([]string{"r1", "r2"}))
	})

	It("does not scope to a project with --all", func() {
		c.allProj = true
		Expect(c.run(ctx, mem)).To(Succeed())

		state, err := dotdir.NewManager().LoadRecallState(c.configDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.ProjectID).To(BeEmpty())
	})

	It("returns recall errors", func() {
		mem.FailRecall = true
		Expect(c.run(ctx, mem)).To(MatchError(ContainSubstring("searching")))
	})
})
