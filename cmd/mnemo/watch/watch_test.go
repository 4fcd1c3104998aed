package watchcmder

import (
	"bytes"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/memory"
	"github.com/papercomputeco/mnemo/pkg/worker"
)

var _ = Describe("watchCommander", func() {
	var (
		buf *bytes.Buffer
		c   *watchCommander
		job worker.Job
	)

	BeforeEach(func() {
		cliui.Plain()
		buf = &bytes.Buffer{}
		c = &watchCommander{out: buf}
		job = worker.Job{Activity: memory.Activity{Content: "Modified auth.go: lines 11-12 (2 lines changed)"}}
	})

	It("reports recorded changes with their record ID", func() {
		c.report(job, &memory.CaptureOutcome{State: capture.StateRecorded, RecordID: "r1"}, nil)
		Expect(buf.String()).To(ContainSubstring("Modified auth.go"))
		Expect(buf.String()).To(ContainSubstring("r1"))
	})

	It("reports pending changes", func() {
		c.report(job, &memory.CaptureOutcome{State: capture.StatePending}, nil)
		Expect(buf.String()).To(ContainSubstring("needs confirmation"))
	})

	It("reports discarded changes with the reason", func() {
		c.report(job, &memory.CaptureOutcome{State: capture.StateDiscarded, Reason: "score 30 < low threshold 50"}, nil)
		Expect(buf.String()).To(ContainSubstring("low threshold"))
	})

	It("reports capture failures", func() {
		c.report(job, nil, errors.New("store offline"))
		Expect(buf.String()).To(ContainSubstring("store offline"))
	})
})
