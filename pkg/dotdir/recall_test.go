package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/dotdir"
)

var _ = Describe("dotdir.Manager recall state", func() {
	var tmpDir string
	var m *dotdir.Manager

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "dotdir-recall-*")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(os.RemoveAll, tmpDir)
		m = dotdir.NewManager()
	})

	It("returns nil when no search has been saved", func() {
		state, err := m.LoadRecallState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("returns error for invalid JSON", func() {
		Expect(os.WriteFile(filepath.Join(tmpDir, "recall.json"), []byte("not json"), 0o600)).To(Succeed())

		state, err := m.LoadRecallState(tmpDir)
		Expect(err).To(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("returns error for nil state", func() {
		Expect(m.SaveRecallState(nil, tmpDir)).NotTo(Succeed())
	})

	It("saves, loads and clears the last search", func() {
		at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		state := &dotdir.RecallState{Query: "auth bug", ProjectID: "p1", RecordIDs: []string{"a", "b"}, SearchedAt: at}
		Expect(m.SaveRecallState(state, tmpDir)).To(Succeed())

		loaded, err := m.LoadRecallState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(state))

		Expect(m.ClearRecallState(tmpDir)).To(Succeed())
		loaded, err = m.LoadRecallState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(BeNil())

		Expect(m.ClearRecallState(tmpDir)).To(Succeed())
	})

	It("resolves 1-based positions", func() {
		state := &dotdir.RecallState{RecordIDs: []string{"a", "b"}}
		id, err := state.Resolve(2)
		Expect(err).NotTo(HaveOccurred())
		Expect(id).To(Equal("b"))

		_, err = state.Resolve(0)
		Expect(err).To(HaveOccurred())
		_, err = state.Resolve(3)
		Expect(err).To(MatchError(ContainSubstring("no result #3")))
	})
})
