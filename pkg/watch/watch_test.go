package watch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/diffrange"
	"github.com/papercomputeco/mnemo/pkg/record"
	"github.com/papercomputeco/mnemo/pkg/watch"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

type recorder struct {
	mu      sync.Mutex
	changes []watch.Change
}

func (r *recorder) on(_ context.Context, c watch.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) all() []watch.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]watch.Change(nil), r.changes...)
}

type queue struct {
	mu   sync.Mutex
	jobs []worker.Job
	full bool
}

func (q *queue) Enqueue(job worker.Job) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.full {
		return false
	}
	q.jobs = append(q.jobs, job)
	return true
}

var _ = Describe("Watcher", func() {
	It("requires a change handler", func() {
		_, err := watch.New(watch.Config{Root: "."})
		Expect(err).To(MatchError(ContainSubstring("handler")))
	})

	It("rejects invalid ignore patterns", func() {
		_, err := watch.New(watch.Config{Root: ".", Ignore: []string{"[a-"}, OnChange: func(context.Context, watch.Change) {}})
		Expect(err).To(HaveOccurred())
	})

	It("ignores the default directories", func() {
		w, err := watch.New(watch.Config{Root: ".", OnChange: func(context.Context, watch.Change) {}})
		Expect(err).NotTo(HaveOccurred())
		Expect(w.Ignored(".git")).To(BeTrue())
		Expect(w.Ignored(".git/objects/ab")).To(BeTrue())
		Expect(w.Ignored("node_modules/react/index.js")).To(BeTrue())
		Expect(w.Ignored(".mnemo/config.toml")).To(BeTrue())
		Expect(w.Ignored("src/main.go")).To(BeFalse())
		Expect(w.Ignored("docs/vendor.md")).To(BeFalse())
	})

	It("reports one debounced change per burst of writes", func() {
		root := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(root, "src"), 0o755)).To(Succeed())
		Expect(os.MkdirAll(filepath.Join(root, ".git"), 0o755)).To(Succeed())
		file := filepath.Join(root, "src", "main.go")
		Expect(os.WriteFile(file, []byte("package main\n"), 0o644)).To(Succeed())

		rec := &recorder{}
		w, err := watch.New(watch.Config{Root: root, Debounce: 100 * time.Millisecond, OnChange: rec.on})
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- w.Run(ctx) }()
		DeferCleanup(func() {
			cancel()
			Eventually(done).Should(Receive(BeNil()))
		})

		// Give the watcher time to register the tree.
		time.Sleep(100 * time.Millisecond)
		for i := range 3 {
			Expect(os.WriteFile(file, []byte("package main\n// "+string(rune('a'+i))+"\n"), 0o644)).To(Succeed())
			time.Sleep(10 * time.Millisecond)
		}
		Expect(os.WriteFile(filepath.Join(root, ".git", "index"), []byte("x"), 0o644)).To(Succeed())

		Eventually(rec.all).Should(HaveLen(1))
		Consistently(rec.all, 300*time.Millisecond).Should(HaveLen(1))
		c := rec.all()[0]
		Expect(c.Rel).To(Equal("src/main.go"))
		Expect(c.Path).To(Equal(file))
		Expect(c.Op).To(Equal(watch.OpWrite))
	})

	It("watches directories created after start", func() {
		root := GinkgoT().TempDir()
		rec := &recorder{}
		w, err := watch.New(watch.Config{Root: root, Debounce: 50 * time.Millisecond, OnChange: rec.on})
		Expect(err).NotTo(HaveOccurred())

		ctx, cancel := context.WithCancel(context.Background())
		go func() { _ = w.Run(ctx) }()
		DeferCleanup(cancel)

		time.Sleep(100 * time.Millisecond)
		Expect(os.MkdirAll(filepath.Join(root, "pkg"), 0o755)).To(Succeed())
		time.Sleep(100 * time.Millisecond)
		Expect(os.WriteFile(filepath.Join(root, "pkg", "new.go"), []byte("package pkg\n"), 0o644)).To(Succeed())

		Eventually(rec.all).Should(ContainElement(HaveField("Rel", "pkg/new.go")))
	})
})

var _ = Describe("Summarize", func() {
	It("describes modified ranges", func() {
		res := diffrange.Result{
			Ranges:            []record.LineRange{{Start: 10, End: 12}, {Start: 20, End: 20}},
			ChangeType:        diffrange.ChangeModified,
			TotalChangedLines: 4,
		}
		Expect(watch.Summarize(watch.Change{Rel: "src/auth.ts", Op: watch.OpWrite}, res)).
			To(Equal("Modified src/auth.ts: lines 10-12, 20 (4 lines changed)"))
	})

	It("describes created and deleted files", func() {
		Expect(watch.Summarize(watch.Change{Rel: "a.go", Op: watch.OpCreate}, diffrange.Result{})).To(Equal("Created a.go"))
		Expect(watch.Summarize(watch.Change{Rel: "a.go", Op: watch.OpRemove}, diffrange.Result{})).To(Equal("Deleted a.go"))
	})
})

var _ = Describe("CaptureHandler", func() {
	It("enqueues watched changes as activity", func() {
		q := &queue{}
		handle := watch.CaptureHandler("/repo", nil, q, nil)
		handle(context.Background(), watch.Change{Path: "/repo/a.go", Rel: "a.go", Op: watch.OpCreate})

		Expect(q.jobs).To(HaveLen(1))
		a := q.jobs[0].Activity
		Expect(a.Source).To(Equal(watch.Source))
		Expect(a.Dir).To(Equal("/repo"))
		Expect(a.FilePath).To(Equal("a.go"))
		Expect(a.Content).To(Equal("Created a.go"))
	})

	It("skips changes without a diff", func() {
		q := &queue{}
		extractor, err := diffrange.New(diffrange.Config{Provider: noRepo{}})
		Expect(err).NotTo(HaveOccurred())

		handle := watch.CaptureHandler("/repo", extractor, q, nil)
		handle(context.Background(), watch.Change{Path: "/repo/a.go", Rel: "a.go", Op: watch.OpWrite})
		Expect(q.jobs).To(BeEmpty())
	})

	It("tolerates a full queue", func() {
		q := &queue{full: true}
		handle := watch.CaptureHandler("/repo", nil, q, nil)
		handle(context.Background(), watch.Change{Path: "/repo/a.go", Rel: "a.go", Op: watch.OpWrite})
		Expect(q.jobs).To(BeEmpty())
	})
})
