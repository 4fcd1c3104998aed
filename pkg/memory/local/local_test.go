package local_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/git"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/memory/local"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/retrieval"
	"github.com/papercomputeco/mnemo/pkg/storage"
	"github.com/papercomputeco/mnemo/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

const (
	bugText = "Fixed login bug in auth.ts"
	docText = "Updated README docs for the install guide"
)

// anyDiff serves the same diff for every path.
type anyDiff struct{ diff string }

func (a anyDiff) IsRepo(context.Context, string) bool { return true }
func (a anyDiff) Status(context.Context, string) (git.Status, error) {
	return git.Status{}, nil
}
func (a anyDiff) Diff(context.Context, string) (string, error) { return a.diff, nil }

func newProjectDir(name string) string {
	dir := GinkgoT().TempDir()
	Expect(os.WriteFile(filepath.Join(dir, "go.mod"), []byte("module example.com/"+name+"\n"), 0o644)).To(Succeed())
	Expect(os.MkdirAll(filepath.Join(dir, "src", "deep"), 0o755)).To(Succeed())
	return dir
}

var _ = Describe("Driver", func() {
	var (
		ctx       context.Context
		store     *inmemory.Driver
		vectors   *testutils.MockVectorDriver
		publisher *testutils.MockPublisher
		root      string
	)

	newDriver := func(cc capture.Config, opts ...func(*local.Config)) *local.Driver {
		engine, err := retrieval.NewEngine(retrieval.Config{
			Embedder:         testutils.NewHashEmbedder(),
			EmbeddingVersion: "hashing/64",
		})
		Expect(err).NotTo(HaveOccurred())

		c := local.Config{
			Store:               store,
			Retrieval:           engine,
			Capture:             cc,
			Embedder:            testutils.NewHashEmbedder(),
			EmbeddingVersion:    "hashing/64",
			EmbeddingDimensions: 64,
			Vectors:             vectors,
			Publisher:           publisher,
		}
		for _, opt := range opts {
			opt(&c)
		}
		d, err := local.NewDriver(c)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(d.Close)
		return d
	}

	autoBugFix := capture.Config{AutoConfirmTypes: []record.ActivityType{record.BugFix}}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		vectors = testutils.NewMockVectorDriver()
		publisher = testutils.NewMockPublisher()
		root = newProjectDir("app")
	})

	Describe("NewDriver", func() {
		It("requires a store and a retrieval engine", func() {
			_, err := local.NewDriver(local.Config{})
			Expect(err).To(MatchError(ContainSubstring("storage driver is required")))

			_, err = local.NewDriver(local.Config{Store: store})
			Expect(err).To(MatchError(ContainSubstring("retrieval engine is required")))
		})

		It("rejects inverted thresholds", func() {
			engine, err := retrieval.NewEngine(retrieval.Config{DisableSemantic: true})
			Expect(err).NotTo(HaveOccurred())
			_, err = local.NewDriver(local.Config{
				Store:     store,
				Retrieval: engine,
				Capture:   capture.Config{HighThreshold: 40, LowThreshold: 60},
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Capture", func() {
		It("rejects empty content without touching the store", func() {
			d := newDriver(autoBugFix)
			_, err := d.Capture(ctx, memory.Activity{Content: "   ", Dir: root})
			Expect(err).To(MatchError(capture.ErrEmptyContent))

			projects, err := store.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(BeEmpty())
		})

		It("auto-records an always-confirmed bug fix", func() {
			d := newDriver(autoBugFix)
			out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root, FilePath: "src/auth.ts", Source: "cli"})
			Expect(err).NotTo(HaveOccurred())

			Expect(out.Decision).To(Equal(capture.DecisionAutoRecord))
			Expect(out.State).To(Equal(capture.StateRecorded))
			Expect(out.Recorded).To(BeTrue())
			Expect(out.Classification.Type).To(Equal(record.BugFix))
			Expect(out.Classification.Confidence).To(BeNumerically(">", 50))
			Expect(out.Value.TotalScore).To(BeNumerically(">=", 60))

			rec, err := d.Record(ctx, out.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Type).To(Equal(record.BugFix))
			Expect(rec.FilePath).To(Equal("src/auth.ts"))
			Expect(rec.Language).To(Equal("typescript"))
			Expect(rec.SessionID).To(Equal(out.SessionID))
			Expect(rec.Metadata.Source).To(Equal("cli"))
			Expect(*rec.Metadata.ValueScore).To(Equal(out.Value.TotalScore))
			Expect(rec.Metadata.Quality).NotTo(BeNil())
			Expect(rec.QualityScore).To(BeNumerically(">", 0))
			Expect(rec.Embedding).To(HaveLen(64))
			Expect(rec.EmbeddingVersion).To(Equal("hashing/64"))
			Expect(vectors.Len()).To(Equal(1))

			events := publisher.Events()
			Expect(events).To(HaveLen(1))
			Expect(events[0].Decision).To(Equal(string(capture.DecisionAutoRecord)))
			Expect(events[0].RecordID).To(Equal(out.RecordID))
			Expect(events[0].Project).To(Equal(out.ProjectID))
		})

		It("resolves sub-paths to the same project and session", func() {
			d := newDriver(autoBugFix)
			first, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			second, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: filepath.Join(root, "src", "deep"), Source: "watch"})
			Expect(err).NotTo(HaveOccurred())

			Expect(second.ProjectID).To(Equal(first.ProjectID))
			Expect(second.SessionID).To(Equal(first.SessionID))

			projects, err := store.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(HaveLen(1))
			Expect(projects[0].Name).To(Equal(filepath.Base(root)))
			Expect(projects[0].Language).To(Equal("go"))

			s, err := store.GetSession(ctx, first.SessionID)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Metadata.Tools).To(ConsistOf("watch"))
		})

		It("keeps projects apart", func() {
			d := newDriver(autoBugFix)
			other := newProjectDir("other")
			a, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			b, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: other})
			Expect(err).NotTo(HaveOccurred())
			Expect(a.ProjectID).NotTo(Equal(b.ProjectID))
		})

		Context("when the project changes on disk", func() {
			var (
				now   time.Time
				clock = func() time.Time { return now }
			)

			BeforeEach(func() {
				now = testutils.Epoch
			})

			It("keeps the project when the manifest is edited", func() {
				d := newDriver(autoBugFix, func(c *local.Config) { c.Now = clock })
				first, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
				Expect(err).NotTo(HaveOccurred())
				before, err := store.GetProject(ctx, first.ProjectID)
				Expect(err).NotTo(HaveOccurred())

				Expect(os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example.com/app\n\ngo 1.25\n"), 0o644)).To(Succeed())
				now = now.Add(6 * time.Minute)

				second, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
				Expect(err).NotTo(HaveOccurred())
				Expect(second.ProjectID).To(Equal(first.ProjectID))

				projects, err := store.ListProjects(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(projects).To(HaveLen(1))
				Expect(projects[0].Fingerprint).NotTo(Equal(before.Fingerprint))

				results, err := d.Recall(ctx, memory.Query{Text: "auth bug", Dir: root})
				Expect(err).NotTo(HaveOccurred())
				Expect(results).To(HaveLen(2))
			})

			It("follows a project that moved", func() {
				d := newDriver(autoBugFix, func(c *local.Config) { c.Now = clock })
				first, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
				Expect(err).NotTo(HaveOccurred())

				moved := filepath.Join(GinkgoT().TempDir(), "moved")
				Expect(os.Rename(root, moved)).To(Succeed())

				second, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: moved})
				Expect(err).NotTo(HaveOccurred())
				Expect(second.ProjectID).To(Equal(first.ProjectID))

				p, err := store.GetProject(ctx, first.ProjectID)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.RootPath).To(Equal(filepath.ToSlash(moved)))
			})

			It("registers a copy as its own project while the original exists", func() {
				d := newDriver(autoBugFix, func(c *local.Config) { c.Now = clock })
				first, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
				Expect(err).NotTo(HaveOccurred())

				copied := filepath.Join(GinkgoT().TempDir(), "copy")
				Expect(os.MkdirAll(copied, 0o755)).To(Succeed())
				manifest, err := os.ReadFile(filepath.Join(root, "go.mod"))
				Expect(err).NotTo(HaveOccurred())
				Expect(os.WriteFile(filepath.Join(copied, "go.mod"), manifest, 0o644)).To(Succeed())

				second, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: copied})
				Expect(err).NotTo(HaveOccurred())
				Expect(second.ProjectID).NotTo(Equal(first.ProjectID))

				p, err := store.GetProject(ctx, first.ProjectID)
				Expect(err).NotTo(HaveOccurred())
				Expect(p.RootPath).To(Equal(filepath.ToSlash(root)))
			})
		})

		It("discards low-value activity", func() {
			d := newDriver(capture.Config{})
			out, err := d.Capture(ctx, memory.Activity{Content: docText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Decision).To(Equal(capture.DecisionDiscard))
			Expect(out.State).To(Equal(capture.StateDiscarded))
			Expect(out.Recorded).To(BeFalse())
			Expect(out.Reason).NotTo(BeEmpty())

			recs, err := store.ListRecords(ctx, storage.RecordFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(BeEmpty())
			Expect(publisher.Events()).To(HaveLen(1))
			Expect(publisher.Events()[0].Decision).To(Equal(string(capture.DecisionDiscard)))
		})

		It("attaches diff ranges to records with a file", func() {
			diff := "--- a/src/auth.ts\n+++ b/src/auth.ts\n@@ -1,3 +1,4 @@\n ctx\n+added one\n+added two\n ctx\n"
			extractor, err := diffrange.New(diffrange.Config{Provider: anyDiff{diff: diff}})
			Expect(err).NotTo(HaveOccurred())

			d := newDriver(autoBugFix, func(c *local.Config) { c.Ranges = extractor })
			out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root, FilePath: "src/auth.ts"})
			Expect(err).NotTo(HaveOccurred())

			rec, err := d.Record(ctx, out.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.LineRanges).To(Equal([]record.LineRange{{Start: 2, End: 3}}))
			Expect(rec.Metadata.ChangeType).To(Equal(string(diffrange.ChangeModified)))
			Expect(*rec.Metadata.ChangedLines).To(Equal(2))
		})

		It("records without an embedding when the embedder fails", func() {
			emb := testutils.NewMockEmbedder()
			emb.FailOn = bugText
			d := newDriver(autoBugFix, func(c *local.Config) { c.Embedder = emb; c.EmbeddingDimensions = 0 })

			out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Recorded).To(BeTrue())

			rec, err := d.Record(ctx, out.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Embedding).To(BeEmpty())
			Expect(vectors.Len()).To(Equal(0))
		})

		It("drops embeddings of the wrong width", func() {
			d := newDriver(autoBugFix, func(c *local.Config) { c.Embedder = testutils.NewMockEmbedder() })
			out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())

			rec, err := d.Record(ctx, out.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Embedding).To(BeEmpty())
			Expect(rec.EmbeddingVersion).To(BeEmpty())
		})
	})

	Describe("CaptureBatch", func() {
		It("returns outcomes in input order", func() {
			d := newDriver(autoBugFix)
			outs, err := d.CaptureBatch(ctx, []memory.Activity{
				{Content: docText, Dir: root},
				{Content: bugText, Dir: root},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(outs).To(HaveLen(2))
			Expect(outs[0].Decision).To(Equal(capture.DecisionDiscard))
			Expect(outs[1].Decision).To(Equal(capture.DecisionAutoRecord))
			Expect(outs[1].Recorded).To(BeTrue())
		})

		It("decides nothing when any activity is empty", func() {
			d := newDriver(autoBugFix)
			_, err := d.CaptureBatch(ctx, []memory.Activity{{Content: bugText, Dir: root}, {Content: ""}})
			Expect(err).To(MatchError(capture.ErrEmptyContent))

			projects, err := store.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(projects).To(BeEmpty())
		})
	})

	Describe("pending confirmations", func() {
		var (
			d   *local.Driver
			out *memory.CaptureOutcome
		)

		BeforeEach(func() {
			d = newDriver(capture.Config{})
			var err error
			out, err = d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			Expect(out.State).To(Equal(capture.StatePending))
			Expect(out.PendingID).NotTo(BeEmpty())
		})

		It("lists the pending confirmation without publishing", func() {
			Expect(d.Pending()).To(HaveLen(1))
			Expect(publisher.Events()).To(BeEmpty())

			st, err := d.Status(ctx, root)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.Pending).To(Equal(1))
			Expect(st.Records).To(Equal(0))
		})

		It("records on yes", func() {
			res, err := d.Resolve(ctx, out.PendingID, capture.ChoiceYes)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(capture.StateRecorded))
			Expect(res.Recorded).To(BeTrue())
			Expect(res.Confidence).To(Equal(1.0))

			rec, err := d.Record(ctx, res.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metadata.ConfirmedByUser).To(BeTrue())
			Expect(*rec.Metadata.Confidence).To(Equal(1.0))
			Expect(d.Pending()).To(BeEmpty())

			Expect(publisher.Events()).To(HaveLen(1))
			Expect(publisher.Events()[0].Decision).To(Equal(string(capture.StateRecorded)))
		})

		It("discards on no", func() {
			res, err := d.Resolve(ctx, out.PendingID, capture.ChoiceNo)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(capture.StateDiscarded))
			Expect(res.Recorded).To(BeFalse())
			Expect(d.Pending()).To(BeEmpty())
		})

		It("halves confidence on maybe and stays pending", func() {
			res, err := d.Resolve(ctx, out.PendingID, capture.ChoiceMaybe)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(capture.StatePending))
			Expect(res.Confidence).To(BeNumerically("~", out.Confidence/2, 1e-9))
			Expect(d.Pending()).To(HaveLen(1))
		})

		It("treats unknown ids as a discard", func() {
			res, err := d.Resolve(ctx, "missing", capture.ChoiceYes)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.State).To(Equal(capture.StateDiscarded))
			Expect(res.Confidence).To(BeZero())
			Expect(res.Recorded).To(BeFalse())
		})

		It("is a no-op when resolved twice", func() {
			_, err := d.Resolve(ctx, out.PendingID, capture.ChoiceYes)
			Expect(err).NotTo(HaveOccurred())
			res, err := d.Resolve(ctx, out.PendingID, capture.ChoiceYes)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Recorded).To(BeFalse())

			recs, err := store.ListRecords(ctx, storage.RecordFilter{})
			Expect(err).NotTo(HaveOccurred())
			Expect(recs).To(HaveLen(1))
		})

		It("rejects invalid choices", func() {
			_, err := d.Resolve(ctx, out.PendingID, capture.Choice("perhaps"))
			Expect(err).To(HaveOccurred())
			Expect(d.Pending()).To(HaveLen(1))
		})
	})

	It("publishes timed out confirmations", func() {
		d := newDriver(capture.Config{Timeout: 50 * time.Millisecond})
		out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
		Expect(err).NotTo(HaveOccurred())
		Expect(out.State).To(Equal(capture.StatePending))

		Eventually(publisher.Events).Should(HaveLen(1))
		Expect(publisher.Events()[0].Decision).To(Equal(string(capture.StateTimedOut)))
		Expect(d.Pending()).To(BeEmpty())
	})

	Describe("Recall", func() {
		var (
			d           *local.Driver
			bug, doc    *memory.CaptureOutcome
			recallQuery memory.Query
		)

		BeforeEach(func() {
			d = newDriver(capture.Config{
				AutoConfirmTypes: []record.ActivityType{record.BugFix},
				HighThreshold:    30,
				LowThreshold:     20,
			})
			var err error
			doc, err = d.Capture(ctx, memory.Activity{Content: docText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			bug, err = d.Capture(ctx, memory.Activity{Content: bugText, Dir: root, FilePath: "src/auth.ts"})
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Recorded).To(BeTrue())
			Expect(bug.Recorded).To(BeTrue())
			recallQuery = memory.Query{Text: "auth bug", Dir: root}
		})

		It("ranks the bug fix above unrelated documentation", func() {
			results, err := d.Recall(ctx, recallQuery)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).NotTo(BeEmpty())
			Expect(results[0].Record.ID).To(Equal(bug.RecordID))
			Expect(results[0].Scored).To(BeTrue())
		})

		It("counts a search hit on returned records", func() {
			results, err := d.Recall(ctx, recallQuery)
			Expect(err).NotTo(HaveOccurred())

			for _, r := range results {
				rec, err := d.Record(ctx, r.Record.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(rec.Metadata.Usage).NotTo(BeNil())
				Expect(rec.Metadata.Usage.Searches).To(Equal(1))
				Expect(rec.Metadata.Usage.LastAccessedAt).NotTo(BeNil())
			}
		})

		It("counts every repeat of the same query", func() {
			const repeats = 3
			var results []retrieval.Result
			for range repeats {
				var err error
				results, err = d.Recall(ctx, recallQuery)
				Expect(err).NotTo(HaveOccurred())
			}

			rec, err := d.Record(ctx, bug.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metadata.Usage.Searches).To(Equal(repeats))

			Expect(results[0].Record.ID).To(Equal(bug.RecordID))
			Expect(results[0].Record.Metadata.Usage.Searches).To(Equal(repeats))
		})

		It("keeps feedback recorded between repeated searches", func() {
			_, err := d.Recall(ctx, recallQuery)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Feedback(ctx, bug.RecordID, memory.FeedbackReference, 0)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.Recall(ctx, recallQuery)
			Expect(err).NotTo(HaveOccurred())

			rec, err := d.Record(ctx, bug.RecordID)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metadata.Usage.Searches).To(Equal(2))
			Expect(rec.Metadata.Usage.References).To(Equal(1))
		})

		It("searches every project when none is named", func() {
			results, err := d.Recall(ctx, memory.Query{Text: "auth bug"})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("returns candidates unscored when semantic search is disabled", func() {
			results, err := d.Recall(ctx, memory.Query{Text: "auth bug", ProjectID: bug.ProjectID, DisableSemantic: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].Scored).To(BeFalse())
		})

		It("rejects empty queries", func() {
			_, err := d.Recall(ctx, memory.Query{})
			Expect(err).To(MatchError(retrieval.ErrEmptyQuery))
		})

		It("runs batches in query order", func() {
			out := d.BatchRecall(ctx, []memory.Query{
				recallQuery,
				{},
				{Text: "readme install guide", ProjectID: doc.ProjectID},
			})
			Expect(out).To(HaveLen(3))
			Expect(out[0].Err).NotTo(HaveOccurred())
			Expect(out[0].Results[0].Record.ID).To(Equal(bug.RecordID))
			Expect(out[1].Err).To(MatchError(retrieval.ErrEmptyQuery))
			Expect(out[2].Err).NotTo(HaveOccurred())
			Expect(out[2].Results[0].Record.ID).To(Equal(doc.RecordID))
		})
	})

	Describe("Feedback", func() {
		var (
			d  *local.Driver
			id string
		)

		BeforeEach(func() {
			d = newDriver(autoBugFix)
			out, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			id = out.RecordID
		})

		It("counts references", func() {
			rec, err := d.Feedback(ctx, id, memory.FeedbackReference, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.Metadata.Usage.References).To(Equal(1))

			q, err := d.Quality(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(q.References).To(Equal(1))
			Expect(q.Relevance).To(BeNumerically(">", 0.5))
		})

		It("uses the rating as accuracy", func() {
			rec, err := d.Feedback(ctx, id, memory.FeedbackRating, 0.9)
			Expect(err).NotTo(HaveOccurred())
			Expect(*rec.Metadata.UserRating).To(Equal(0.9))
			Expect(rec.Metadata.Quality.Accuracy).To(Equal(0.9))

			stored, err := d.Record(ctx, id)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.QualityScore).To(Equal(rec.QualityScore))
		})

		It("rejects invalid feedback", func() {
			_, err := d.Feedback(ctx, id, memory.FeedbackRating, 1.5)
			Expect(err).To(MatchError(memory.ErrInvalidFeedback))
			_, err = d.Feedback(ctx, id, memory.FeedbackKind("like"), 0)
			Expect(err).To(MatchError(memory.ErrInvalidFeedback))
		})

		It("reports unknown records", func() {
			_, err := d.Feedback(ctx, "missing", memory.FeedbackReference, 0)
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})

	Describe("sessions", func() {
		It("ends the active session and starts a new one on the next capture", func() {
			d := newDriver(autoBugFix)
			first, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())

			s, err := d.EndSession(ctx, first.ProjectID)
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Status).To(Equal(record.SessionCompleted))
			Expect(s.EndedAt).NotTo(BeNil())

			st, err := d.Status(ctx, root)
			Expect(err).NotTo(HaveOccurred())
			Expect(st.ActiveSession).To(BeNil())
			Expect(st.Records).To(Equal(1))

			second, err := d.Capture(ctx, memory.Activity{Content: bugText, Dir: root})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.SessionID).NotTo(Equal(first.SessionID))
		})

		It("reports a project without an active session", func() {
			d := newDriver(autoBugFix)
			st, err := d.Status(ctx, root)
			Expect(err).NotTo(HaveOccurred())
			_, err = d.EndSession(ctx, st.Project.ID)
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})
	})
})
