package testutils

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/storage"
)

// Epoch is a fixed reference time for storage fixtures.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewTestProject creates a project fixture.
func NewTestProject(id string) *record.Project {
	return &record.Project{
		ID:          id,
		Name:        id,
		RootPath:    "/work/" + id,
		Language:    "go",
		Fingerprint: "fp-" + id,
		CreatedAt:   Epoch,
		UpdatedAt:   Epoch,
	}
}

// NewTestSession creates an active session fixture.
func NewTestSession(id, projectID string) *record.Session {
	return &record.Session{
		ID:        id,
		ProjectID: projectID,
		Name:      "session " + id,
		Status:    record.SessionActive,
		StartedAt: Epoch,
		Metadata:  record.SessionMetadata{Tools: []string{"cli"}},
	}
}

// NewTestRecord creates a record fixture.
func NewTestRecord(id, sessionID, projectID string, t record.ActivityType, content string) *record.Record {
	return &record.Record{
		ID:         id,
		SessionID:  sessionID,
		ProjectID:  projectID,
		Type:       t,
		Content:    content,
		FilePath:   "src/auth.ts",
		LineRanges: []record.LineRange{{Start: 2, End: 3}},
		Language:   "typescript",
		Tags:       []string{t.String()},
		Metadata:   record.NewMetadata(),
		CreatedAt:  Epoch,
	}
}

// DescribeStorageDriver registers the behavior every storage.Driver shares.
// newDriver is called before each spec.
func DescribeStorageDriver(newDriver func() storage.Driver) {
	var (
		ctx    context.Context
		driver storage.Driver
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
		DeferCleanup(func() { driver.Close() })
	})

	Describe("projects", func() {
		It("stores and retrieves a project", func() {
			p := NewTestProject("p1")
			Expect(driver.PutProject(ctx, p)).To(Succeed())

			got, err := driver.GetProject(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.RootPath).To(Equal("/work/p1"))
			Expect(got.CreatedAt).To(BeTemporally("==", Epoch))

			byFP, err := driver.FindProjectByFingerprint(ctx, "fp-p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(byFP.ID).To(Equal("p1"))
		})

		It("replaces a project with the same id", func() {
			p := NewTestProject("p1")
			Expect(driver.PutProject(ctx, p)).To(Succeed())
			p.Name = "renamed"
			p.UpdatedAt = Epoch.Add(time.Hour)
			Expect(driver.PutProject(ctx, p)).To(Succeed())

			got, err := driver.GetProject(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Name).To(Equal("renamed"))

			all, err := driver.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})

		It("lists projects most recently updated first", func() {
			older := NewTestProject("old")
			newer := NewTestProject("new")
			newer.UpdatedAt = Epoch.Add(time.Hour)
			Expect(driver.PutProject(ctx, older)).To(Succeed())
			Expect(driver.PutProject(ctx, newer)).To(Succeed())

			all, err := driver.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))
			Expect(all[0].ID).To(Equal("new"))
		})

		It("returns NotFoundError for unknown projects", func() {
			_, err := driver.GetProject(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			_, err = driver.FindProjectByFingerprint(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			_, err = driver.FindProjectByRoot(ctx, "/work/missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("finds a project by root path", func() {
			Expect(driver.PutProject(ctx, NewTestProject("p1"))).To(Succeed())

			got, err := driver.FindProjectByRoot(ctx, "/work/p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("p1"))
		})

		It("updates the fingerprint of a project in place", func() {
			p := NewTestProject("p1")
			Expect(driver.PutProject(ctx, p)).To(Succeed())
			p.Fingerprint = "fp-drifted"
			Expect(driver.PutProject(ctx, p)).To(Succeed())

			got, err := driver.FindProjectByRoot(ctx, "/work/p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Fingerprint).To(Equal("fp-drifted"))
			_, err = driver.FindProjectByFingerprint(ctx, "fp-p1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
		})

		It("lets clones share a fingerprint", func() {
			older := NewTestProject("p1")
			newer := NewTestProject("p2")
			newer.Fingerprint = older.Fingerprint
			newer.UpdatedAt = Epoch.Add(time.Hour)
			Expect(driver.PutProject(ctx, older)).To(Succeed())
			Expect(driver.PutProject(ctx, newer)).To(Succeed())

			got, err := driver.FindProjectByFingerprint(ctx, "fp-p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("p2"))
		})

		It("rejects a second project with the same root path", func() {
			Expect(driver.PutProject(ctx, NewTestProject("p1"))).To(Succeed())
			dup := NewTestProject("p2")
			dup.RootPath = "/work/p1"

			err := driver.PutProject(ctx, dup)
			Expect(err).To(MatchError(storage.ErrProjectConflict))

			all, err := driver.ListProjects(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(1))
		})
	})

	Describe("sessions", func() {
		BeforeEach(func() {
			Expect(driver.PutProject(ctx, NewTestProject("p1"))).To(Succeed())
		})

		It("stores and retrieves a session", func() {
			Expect(driver.CreateSession(ctx, NewTestSession("s1", "p1"))).To(Succeed())

			got, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(record.SessionActive))
			Expect(got.EndedAt).To(BeNil())
			Expect(got.Metadata.Tools).To(Equal([]string{"cli"}))

			active, err := driver.ActiveSession(ctx, "p1")
			Expect(err).NotTo(HaveOccurred())
			Expect(active.ID).To(Equal("s1"))
		})

		It("allows at most one active session per project", func() {
			Expect(driver.CreateSession(ctx, NewTestSession("s1", "p1"))).To(Succeed())
			Expect(driver.CreateSession(ctx, NewTestSession("s2", "p1"))).To(MatchError(storage.ErrActiveSessionExists))

			paused := NewTestSession("s3", "p1")
			paused.Status = record.SessionPaused
			Expect(driver.CreateSession(ctx, paused)).To(Succeed())

			paused.Status = record.SessionActive
			Expect(driver.UpdateSession(ctx, paused)).To(MatchError(storage.ErrActiveSessionExists))
		})

		It("completes a session and frees the active slot", func() {
			s := NewTestSession("s1", "p1")
			Expect(driver.CreateSession(ctx, s)).To(Succeed())

			Expect(s.Transition(record.SessionCompleted, Epoch.Add(time.Hour))).To(Succeed())
			Expect(driver.UpdateSession(ctx, s)).To(Succeed())

			got, err := driver.GetSession(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(record.SessionCompleted))
			Expect(got.EndedAt).NotTo(BeNil())
			Expect(*got.EndedAt).To(BeTemporally("==", Epoch.Add(time.Hour)))

			_, err = driver.ActiveSession(ctx, "p1")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(driver.CreateSession(ctx, NewTestSession("s2", "p1"))).To(Succeed())
		})

		It("filters sessions by status", func() {
			done := NewTestSession("s1", "p1")
			done.Status = record.SessionCompleted
			Expect(driver.CreateSession(ctx, done)).To(Succeed())
			Expect(driver.CreateSession(ctx, NewTestSession("s2", "p1"))).To(Succeed())

			all, err := driver.ListSessions(ctx, storage.SessionFilter{ProjectID: "p1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(2))

			completed, err := driver.ListSessions(ctx, storage.SessionFilter{Status: record.SessionCompleted})
			Expect(err).NotTo(HaveOccurred())
			Expect(completed).To(HaveLen(1))
			Expect(completed[0].ID).To(Equal("s1"))
		})

		It("returns NotFoundError when updating an unknown session", func() {
			s := NewTestSession("missing", "p1")
			s.Status = record.SessionPaused
			Expect(storage.IsNotFound(driver.UpdateSession(ctx, s))).To(BeTrue())
		})
	})

	Describe("records", func() {
		BeforeEach(func() {
			Expect(driver.PutProject(ctx, NewTestProject("p1"))).To(Succeed())
			Expect(driver.CreateSession(ctx, NewTestSession("s1", "p1"))).To(Succeed())
		})

		It("stores and retrieves a record", func() {
			r := NewTestRecord("r1", "s1", "p1", record.BugFix, "Fixed login bug in auth.ts")
			r.Embedding = []float32{0.25, 0.5}
			r.EmbeddingVersion = "v1"
			Expect(driver.CreateRecord(ctx, r)).To(Succeed())

			got, err := driver.GetRecord(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Type).To(Equal(record.BugFix))
			Expect(got.Content).To(Equal(r.Content))
			Expect(got.LineRanges).To(Equal(r.LineRanges))
			Expect(got.Tags).To(Equal([]string{"bug_fix"}))
			Expect(got.Embedding).To(Equal([]float32{0.25, 0.5}))
			Expect(got.Metadata.Version).To(Equal(record.MetadataVersion))
		})

		It("updates only the mutable fields", func() {
			r := NewTestRecord("r1", "s1", "p1", record.BugFix, "original")
			Expect(driver.CreateRecord(ctx, r)).To(Succeed())

			r.Content = "changed"
			r.QualityScore = 0.75
			r.Metadata.Usage = &record.Usage{References: 2}
			Expect(driver.UpdateRecord(ctx, r)).To(Succeed())

			got, err := driver.GetRecord(ctx, "r1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Content).To(Equal("original"))
			Expect(got.QualityScore).To(Equal(0.75))
			Expect(got.Metadata.Usage.References).To(Equal(2))
		})

		It("lists records newest first with filters", func() {
			for i, t := range []record.ActivityType{record.BugFix, record.Documentation, record.BugFix} {
				r := NewTestRecord(string(rune('a'+i)), "s1", "p1", t, "content")
				r.CreatedAt = Epoch.Add(time.Duration(i) * time.Minute)
				Expect(driver.CreateRecord(ctx, r)).To(Succeed())
			}

			all, err := driver.ListRecords(ctx, storage.RecordFilter{ProjectID: "p1"})
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
			Expect(all[0].ID).To(Equal("c"))

			bugs, err := driver.ListRecords(ctx, storage.RecordFilter{Type: record.BugFix})
			Expect(err).NotTo(HaveOccurred())
			Expect(bugs).To(HaveLen(2))

			limited, err := driver.ListRecords(ctx, storage.RecordFilter{SessionID: "s1", Limit: 1})
			Expect(err).NotTo(HaveOccurred())
			Expect(limited).To(HaveLen(1))
			Expect(limited[0].ID).To(Equal("c"))
		})

		It("returns NotFoundError for unknown records", func() {
			_, err := driver.GetRecord(ctx, "missing")
			Expect(storage.IsNotFound(err)).To(BeTrue())
			Expect(storage.IsNotFound(driver.UpdateRecord(ctx, &record.Record{ID: "missing"}))).To(BeTrue())
		})
	})
}
