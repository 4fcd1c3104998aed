package statuscmder

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/mnemo/pkg/capture"
	"github.com/papercomputeco/mnemo/pkg/cliui"
	testutils "github.com/papercomputeco/mnemo/pkg/utils/test"
)

var _ = Describe("statusCommander", func() {
	var (
		ctx context.Context
		mem *testutils.MockMemoryDriver
		buf *bytes.Buffer
		c   *statusCommander
	)

	BeforeEach(func() {
		cliui.Plain()
		ctx = context.Background()
		mem = testutils.NewMockMemoryDriver()
		buf = &bytes.Buffer{}
		c = &statusCommander{dir: "/src/demo", out: buf, now: time.Now}
	})

	It("prints the project", func() {
		Expect(c.run(ctx, mem)).To(Succeed())
		out := buf.String()
		Expect(out).To(ContainSubstring("mock"))
		Expect(out).To(ContainSubstring("/src/demo"))
		Expect(out).To(ContainSubstring("none"))
	})

	It("lists pending confirmations", func() {
		mem.PendingItems = []capture.Pending{{
			ID:        "p1",
			Candidate: capture.Candidate{Content: "Tweaked config loading"},
			ExpiresAt: time.Now().Add(30 * time.Second),
		}}
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("Tweaked config loading"))
		Expect(buf.String()).To(ContainSubstring("p1"))
	})

	It("reports when there is no session to end", func() {
		c.endSession = true
		Expect(c.run(ctx, mem)).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("No active session."))
	})
})

var _ = Describe("ping", func() {
	It("reports a server answering /ping", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/ping" {
				w.Write([]byte(`{"status":"ok"}`))
				return
			}
			http.NotFound(w, r)
		}))
		defer server.Close()

		Expect(ping(context.Background(), server.URL+"/")).To(BeTrue())
	})

	It("reports unreachable servers", func() {
		server := httptest.NewServer(http.NotFoundHandler())
		url := server.URL
		server.Close()

		Expect(ping(context.Background(), url)).To(BeFalse())
	})

	It("shows the server line in status", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
		defer server.Close()

		cliui.Plain()
		buf := &bytes.Buffer{}
		c := &statusCommander{out: buf, now: time.Now, apiTarget: server.URL}
		Expect(c.run(context.Background(), testutils.NewMockMemoryDriver())).To(Succeed())
		Expect(buf.String()).To(ContainSubstring("running at " + server.URL))
	})
})
