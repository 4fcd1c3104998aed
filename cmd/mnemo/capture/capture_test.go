package capturecmder

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	"github.com/papercomputeco/mnemo/pkg/config"
	"github.com/papercomputeco/mnemo/pkg/memory"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("captureCommander", func() {
	var (
		ctx context.Context
		mem *testutils.MockMemoryDriver
		buf *bytes.Buffer
		c   *captureCommander
		cfg *config.Config
	)

	BeforeEach(func() {
		cliui.Plain()
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()
		buf = &bytes.Buffer{}
		c = &captureCommander{out: buf, noPrompt: true}
		cfg = config.NewDefaultConfig()
	})

	It("captures with the cli source and prints the record", func() {
		c.file = "auth.ts"
		Expect(c.run(ctx, mem, "Fixed login bug", cfg)).To(Succeed())

		captured := mem.CapturedActivities()
		Expect(captured).To(HaveLen(1))
		Expect(captured[0].Source).To(Equal(Source))
		Expect(captured[0].FilePath).To(Equal("auth.ts"))
		Expect(buf.String()).To(ContainSubstring("Recorded"))
		Expect(buf.String()).To(ContainSubstring("mock-record"))
	})

	It("leaves a pending capture unanswered without a prompt", func() {
		mem.Outcome = &memory.CaptureOutcome{
			Decision:  capture.DecisionPending,
			State:     capture.StatePending,
			PendingID: "p1",
		}
		Expect(c.run(ctx, mem, "Tweaked config", cfg)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Needs confirmation"))
	})

	It("answers a pending capture from --choice", func() {
		mem.Outcome = &memory.CaptureOutcome{
			Decision:  capture.DecisionPending,
			State:     capture.StatePending,
			PendingID: "p1",
		}
		c.choice = "n"
		c.jsonOut = true
		Expect(c.run(ctx, mem, "Tweaked config", cfg)).To(Succeed())

		var out memory.CaptureOutcome
		Expect(json.Unmarshal(buf.Bytes(), &out)).To(Succeed())
		Expect(out.PendingID).To(Equal("p1"))
	})

	It("returns capture errors", func() {
		Expect(c.run(ctx, mem, "", cfg)).To(MatchError(ContainSubstring("capturing activity")))
	})
})

var _ = Describe("promptModel", func() {
	var (
		m   promptModel
		now time.Time
	)

	BeforeEach(func() {
		now = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		m = newPromptModel("Tweaked config", &memory.CaptureOutcome{Confidence: 0.5, Reason: "score 65 between 50 and 80 needs confirmation"}, now.Add(10*time.Second))
		m.now = func() time.Time { return now }
	})

	press := func(m promptModel, keys string) promptModel {
		next, _ := m.Update(bubbletea.KeyMsg{Type: bubbletea.KeyRunes, Runes: []rune(keys)})
		return next.(promptModel)
	}

	It("maps keys to choices", func() {
		Expect(press(m, "y").choice).To(Equal(capture.ChoiceYes))
		Expect(press(m, "n").choice).To(Equal(capture.ChoiceNo))
		Expect(press(m, "m").choice).To(Equal(capture.ChoiceMaybe))
		Expect(press(m, "q").quit).To(BeTrue())
		Expect(press(m, "q").choice).To(BeEmpty())
	})

	It("times out at the deadline", func() {
		next, cmd := m.Update(countdownMsg(now))
		Expect(next.(promptModel).timedOut).To(BeFalse())
		Expect(cmd).NotTo(BeNil())

		now = now.Add(10 * time.Second)
		next, _ = m.Update(countdownMsg(now))
		Expect(next.(promptModel).timedOut).To(BeTrue())
	})

	It("renders the countdown and reason", func() {
		view := m.View()
		Expect(view).To(ContainSubstring("Record this activity?"))
		Expect(view).To(ContainSubstring("expires in 10s"))
		Expect(view).To(ContainSubstring("needs confirmation"))
	})
})

var _ = Describe("NewCaptureCmd", func() {
	var origDir string

	BeforeEach(func() {
		var err error
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())

		tmp := GinkgoT().TempDir()
		Expect(os.MkdirAll(filepath.Join(tmp, ".mnemo"), 0o755)).To(Succeed())
		Expect(os.Chdir(tmp)).To(Succeed())
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	It("rejects an invalid --choice", func() {
		cmd := NewCaptureCmd()
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})
		cmd.SetArgs([]string{"text", "--choice", "perhaps"})
		Expect(cmd.Execute()).To(MatchError(ContainSubstring("invalid choice")))
	})

	It("captures through an in-memory stack", func() {
		project := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(project, "go.mod"), []byte("module example.com/demo\n"), 0o644)).To(Succeed())

		var out bytes.Buffer
		cmd := NewCaptureCmd()
		cmd.SetOut(&out)
		cmd.SetArgs([]string{
			"Fixed login bug in auth.ts",
			"--storage-provider", "memory",
			"--vector-store-provider", "none",
			"--dir", project,
			"--json",
		})
		Expect(cmd.Execute()).To(Succeed())

		var outcome memory.CaptureOutcome
		Expect(json.Unmarshal(out.Bytes(), &outcome)).To(Succeed())
		Expect(outcome.Recorded).To(BeTrue())
		Expect(outcome.Decision).To(Equal(capture.DecisionAutoRecord))
	})
})
