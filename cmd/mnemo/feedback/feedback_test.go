package feedbackcmder

import (
	"bytes"
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/dotdir"
	"github.com/papercomputeco/mnemo/pkg/record"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("feedbackCommander", func() {
	var (
		ctx context.Context
		mem *testutils.MockMemoryDriver
		buf *bytes.Buffer
		c   *feedbackCommander
	)

	BeforeEach(func() {
		cliui.Plain()
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()
		mem.Records["r1"] = &record.Record{
			ID:      "r1",
			Content: "Fixed login bug",
			Metadata: record.Metadata{Quality: &record.QualityMetrics{
				Overall:    0.75,
				References: 2,
			}},
		}
		mem.Records["r2"] = &record.Record{ID: "r2", Content: "Documented login"}
		buf = &bytes.Buffer{}
		c = &feedbackCommander{configDir: GinkgoT().TempDir(), out: buf}
	})

	Describe("validate", func() {
		It("requires a record", func() {
			Expect(c.validate()).To(MatchError(ContainSubstring("record ID or --result")))
		})

		It("rejects both a record ID and a position", func() {
			c.recordID, c.result = "r1", 1
			Expect(c.validate()).To(MatchError(ContainSubstring("not both")))
		})

		It("rejects out of range ratings", func() {
			c.recordID, c.rated, c.rating = "r1", true, 1.5
			Expect(c.validate()).To(MatchError(ContainSubstring("outside [0,1]")))
		})
	})

	It("marks a record as referenced", func() {
		c.recordID = "r1"
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Marked as referenced"))
		Expect(buf.String()).To(ContainSubstring("0.75"))
		Expect(buf.String()).To(ContainSubstring("2 references"))
	})

	It("rates a record", func() {
		c.recordID, c.rated, c.rating = "r1", true, 0.4
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(*mem.Records["r1"].Metadata.UserRating).To(Equal(0.4))
		Expect(buf.String()).To(ContainSubstring("Rated 0.40"))
	})

	It("resolves a position from the last search", func() {
		Expect(dotdir.NewManager().SaveRecallState(&dotdir.RecallState{
			Query:     "login",
			RecordIDs: []string{"r1", "r2"},
		}, c.configDir)).To(Succeed())

		c.result = 2
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("r2"))
	})

	It("fails without a previous search", func() {
		c.result = 1
		Expect(c.run(ctx, mem)).To(MatchError(ContainSubstring("no previous search")))
	})

	It("fails for a position past the results", func() {
		Expect(dotdir.NewManager().SaveRecallState(&dotdir.RecallState{RecordIDs: []string{"r1"}}, c.configDir)).To(Succeed())
		c.result = 3
		Expect(c.run(ctx, mem)).To(MatchError(ContainSubstring("no result #3")))
	})

	It("returns unknown records as errors", func() {
		c.recordID = "missing"
		Expect(c.run(ctx, mem)).To(MatchError(ContainSubstring("recording feedback")))
	})
})
